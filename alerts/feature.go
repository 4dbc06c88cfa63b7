package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/cache"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	positionTTL = 5 * time.Minute
	reminderTTL = 5 * time.Minute
)

// Feature is the deployment-wide alert subsystem. It keeps the current alert
// in memory and reminds interacting users who have not read it.
type Feature struct {
	pool  *database.Pool
	store *Store

	mu      sync.RWMutex
	current *Alert

	// positions caches "alertID:userID" to the assigned read position. A
	// zero position marks a user known to have read the alert already.
	positions *cache.TTL[string, int64]
	reminders *cache.TTL[string, struct{}]

	runner *reconcile.Runner
	ctx    context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("alerts")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening alerts database: %w", err)
	}
	return &Feature{
		pool:      pool,
		store:     NewStore(pool),
		positions: cache.NewTTL[string, int64](positionTTL),
		reminders: cache.NewTTL[string, struct{}](reminderTTL),
		runner:    reconcile.NewRunner(),
		ctx:       context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "alerts" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{
		&ReadCommand{feature: f},
		&PushCommand{feature: f},
	}
}

func (f *Feature) Register(s *discordgo.Session) {
	s.AddHandler(f.onInteraction)
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.reload(ctx); err != nil {
		return err
	}

	if err := f.runner.Add("alerts-cache-evict", 5*time.Minute, func() error {
		now := time.Now()
		f.positions.EvictExpired(now)
		f.reminders.EvictExpired(now)
		return nil
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

// Current returns the in-memory copy of the active alert.
func (f *Feature) Current() *Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

func (f *Feature) reload(ctx context.Context) error {
	alert, err := f.store.Current(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.current = alert
	f.mu.Unlock()
	return nil
}

func positionKey(alertID int64, userID string) string {
	return fmt.Sprintf("%d:%s", alertID, userID)
}

// readPosition resolves the user's position, preferring the cache. Positions
// are assigned transactionally and only the result lands in the cache.
func (f *Feature) readPosition(ctx context.Context, alert *Alert, userID string) (int64, error) {
	key := positionKey(alert.ID, userID)
	if pos, ok := f.positions.Get(key); ok && pos > 0 {
		return pos, nil
	}
	pos, err := f.store.ReadPosition(ctx, alert.ID, userID)
	if err != nil {
		return 0, err
	}
	f.positions.Put(key, pos)
	return pos, nil
}

// onInteraction reminds users with an unread alert, at most once per
// reminderTTL per user.
func (f *Feature) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	alert := f.Current()
	if alert == nil {
		return
	}

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if userID == "" {
		return
	}
	if i.ApplicationCommandData().Name == "alert" {
		return
	}
	if _, onCooldown := f.reminders.Get(userID); onCooldown {
		return
	}
	f.reminders.Put(userID, struct{}{})

	key := positionKey(alert.ID, userID)
	if _, known := f.positions.Get(key); known {
		return
	}
	read, err := f.store.HasRead(f.ctx, alert.ID, userID)
	if err != nil {
		log.Error().Err(err).Msg("alerts: read check failed")
		return
	}
	if read {
		f.positions.Put(key, 0)
		return
	}

	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, err = s.ChannelMessageSend(ch.ID,
		fmt.Sprintf("There is a new announcement you have not read yet: **%s**. Use /alert to read it.", alert.Title))
	if err != nil {
		log.Debug().Str("user", userID).Err(err).Msg("alerts: reminder DM failed")
	}
}
