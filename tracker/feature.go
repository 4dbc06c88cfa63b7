package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const monitorInterval = 5 * time.Minute

// Template tokens a custom format may use.
var formatTokens = []string{
	"{member_count}",
	"{remaining_until_goal}",
	"{member_goal}",
	"{servername}",
}

const defaultFormat = "We are now {member_count} members strong!"

// session is the slice of the Discord session the monitor needs.
type session interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Feature announces member count growth in a configured channel and
// celebrates when a guild reaches its member goal.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner

	mu         sync.Mutex
	lastCounts map[string]int

	session session
	ctx     context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("tracker")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening tracker database: %w", err)
	}
	return &Feature{
		pool:       pool,
		store:      NewStore(pool),
		runner:     reconcile.NewRunner(),
		lastCounts: make(map[string]int),
		ctx:        context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "tracker" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&TrackerCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}

	active, err := f.store.Active(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	for _, tr := range active {
		f.lastCounts[tr.GuildID] = tr.LastMemberCount
	}
	f.mu.Unlock()

	if err := f.runner.Add("tracker-monitor", monitorInterval, f.monitor); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.pool.Close()
}

// ValidFormat reports whether a custom format contains at least one known
// token.
func ValidFormat(format string) bool {
	for _, token := range formatTokens {
		if strings.Contains(format, token) {
			return true
		}
	}
	return false
}

// render expands the template tokens against the guild's current numbers.
func render(format string, memberCount, goal int, serverName string) string {
	if format == "" {
		format = defaultFormat
	}
	remaining := goal - memberCount
	if remaining < 0 {
		remaining = 0
	}
	return strings.NewReplacer(
		"{member_count}", strconv.Itoa(memberCount),
		"{remaining_until_goal}", strconv.Itoa(remaining),
		"{member_goal}", strconv.Itoa(goal),
		"{servername}", serverName,
	).Replace(format)
}

// monitor announces growth for every active tracker. Per-guild failures are
// isolated; the batch of fresh counts is written in one transaction at the
// end of the pass.
func (f *Feature) monitor() error {
	trackers, err := f.store.Active(f.ctx)
	if err != nil {
		return err
	}

	updated := make(map[string]int)
	for _, tr := range trackers {
		reconcile.Guard("tracker-guild", func() error {
			count, err := f.checkGuild(tr)
			if err != nil {
				return err
			}
			if count > 0 {
				updated[tr.GuildID] = count
			}
			return nil
		})
	}

	f.mu.Lock()
	for guildID, count := range updated {
		f.lastCounts[guildID] = count
	}
	f.mu.Unlock()
	return f.store.UpdateCounts(f.ctx, updated)
}

// checkGuild compares the live member count against the last seen one and
// announces growth. Reaching the goal celebrates and deactivates the
// tracker. Missing permissions skip the guild without error noise.
func (f *Feature) checkGuild(tr Tracker) (int, error) {
	guild, err := f.session.Guild(tr.GuildID)
	if err != nil {
		if utils.IsForbidden(err) || utils.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	count := guild.MemberCount

	f.mu.Lock()
	last, ok := f.lastCounts[tr.GuildID]
	f.mu.Unlock()
	if !ok {
		last = tr.LastMemberCount
	}
	if count <= last {
		return count, nil
	}

	text := render(tr.CustomFormat, count, tr.MemberGoal, guild.Name)
	_, err = f.session.ChannelMessageSendComplex(tr.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{Description: text, Color: tr.Color}},
	})
	if err != nil {
		if utils.IsForbidden(err) {
			return count, nil
		}
		return 0, err
	}

	if tr.MemberGoal > 0 && count >= tr.MemberGoal {
		_, err = f.session.ChannelMessageSendComplex(tr.ChannelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Goal reached!",
				Description: fmt.Sprintf("**%s** has reached its goal of %d members. Congratulations!", guild.Name, tr.MemberGoal),
				Color:       tr.Color,
			}},
		})
		if err != nil && !utils.IsForbidden(err) {
			log.Error().Str("guild", tr.GuildID).Err(err).Msg("tracker: celebration failed")
		}
		if err := f.store.SetActive(f.ctx, tr.GuildID, false); err != nil {
			return count, err
		}
	}
	return count, nil
}
