package scheduled

import (
	"context"
	"fmt"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	sendInterval = time.Minute
	// Frequencies below this are rejected at the command layer. The parser
	// itself accepts any positive duration.
	minFrequencySeconds = 60
)

// sender is the slice of the Discord session the send loop needs.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Feature delivers recurring per-guild messages on a fixed one-minute loop.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner

	session sender
	now     func() time.Time
	ctx     context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("scheduled")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening scheduled database: %w", err)
	}
	return &Feature{
		pool:   pool,
		store:  NewStore(pool),
		runner: reconcile.NewRunner(),
		now:    time.Now,
		ctx:    context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "scheduled" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&ScheduleCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.runner.Add("scheduled-send", sendInterval, f.tick); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.pool.Close()
}

// tick sends every due message and advances its next send time. A failing
// row is logged and skipped; the rest of the batch still goes out.
func (f *Feature) tick() error {
	now := f.now()
	due, err := f.store.Due(f.ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	sent := make([]Message, 0, len(due))
	for _, m := range due {
		if _, err := f.session.ChannelMessageSend(m.ChannelID, m.Content); err != nil {
			log.Error().
				Str("guild", m.GuildID).
				Int64("message", m.MessageID).
				Err(err).
				Msg("scheduled: send failed")
			continue
		}
		sent = append(sent, m)
	}
	return f.store.Advance(f.ctx, sent, now)
}
