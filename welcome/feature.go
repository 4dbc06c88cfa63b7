package welcome

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const defaultMessage = "Welcome to {servername}, {user}!"

// sender is the slice of the Discord session the member-join handler needs.
type sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Feature greets new members. The full settings table is held in memory;
// writes go through to SQLite and update the cache in place.
type Feature struct {
	pool  *database.Pool
	store *Store

	mu       sync.RWMutex
	settings map[string]Settings

	session sender
	ctx     context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("welcome")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening welcome database: %w", err)
	}
	return &Feature{
		pool:     pool,
		store:    NewStore(pool),
		settings: make(map[string]Settings),
		ctx:      context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "welcome" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&WelcomeCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.GuildMemberAdd) {
		f.onMemberJoin(ds, m)
	})
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	settings, err := f.store.All(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.settings = settings
	f.mu.Unlock()
	return nil
}

func (f *Feature) Stop() {
	f.pool.Close()
}

func (f *Feature) guildSettings(guildID string) (Settings, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.settings[guildID]
	return s, ok
}

// onMemberJoin greets the new member in the configured channel. Missing
// permissions are ignored, not logged as errors.
func (f *Feature) onMemberJoin(ds *discordgo.Session, m *discordgo.GuildMemberAdd) {
	settings, ok := f.guildSettings(m.GuildID)
	if !ok || m.User == nil {
		return
	}

	serverName := m.GuildID
	if guild, err := ds.State.Guild(m.GuildID); err == nil {
		serverName = guild.Name
	}

	message := settings.CustomMessage
	if message == "" {
		message = defaultMessage
	}
	text := strings.NewReplacer(
		"{user}", m.User.Mention(),
		"{username}", m.User.Username,
		"{servername}", serverName,
	).Replace(message)

	embed := &discordgo.MessageEmbed{
		Description: text,
		Color:       settings.EmbedColor,
	}
	if settings.ShowImage && settings.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: settings.ImageURL}
	}

	_, err := f.session.ChannelMessageSendComplex(settings.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil && !utils.IsForbidden(err) && !utils.IsNotFound(err) {
		log.Error().Str("guild", m.GuildID).Err(err).Msg("welcome: greeting failed")
	}
}
