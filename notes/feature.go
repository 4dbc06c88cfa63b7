package notes

import (
	"context"
	"fmt"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"

	"github.com/bwmarrin/discordgo"
)

const keepaliveInterval = time.Minute

// Feature is the per-user notes subsystem.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner
	ctx    context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("notes")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening notes database: %w", err)
	}
	return &Feature{
		pool:   pool,
		store:  NewStore(pool),
		runner: reconcile.NewRunner(),
		ctx:    context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "notes" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&NoteCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.runner.Add("notes-keepalive", keepaliveInterval, func() error {
		return f.store.Ping(f.ctx)
	}); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.pool.Close()
}
