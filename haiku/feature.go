package haiku

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	haikuSyllables  = 17
	recentRingSize  = 500
	monitorInterval = 10 * time.Second
	channelsMaxAge  = 3 * time.Minute
)

// replier is the slice of the Discord session the workers need.
type replier interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type candidate struct {
	channelID string
	messageID string
	content   string
}

// Feature spots accidental 5-7-5 haikus in watched channels. Candidate
// messages flow through a bounded queue into a small worker pool so a burst
// cannot block the gateway handler.
type Feature struct {
	settingsPool *database.Pool
	wordsPool    *database.Pool
	settings     *SettingsStore
	words        *WordStore
	counter      *Counter
	runner       *reconcile.Runner

	queue   chan candidate
	workers int
	wg      sync.WaitGroup

	// queueMu guards queueClosed so a late gateway event cannot send on the
	// closed queue during shutdown.
	queueMu     sync.Mutex
	queueClosed bool

	mu          sync.Mutex
	channels    map[string]bool
	refreshedAt time.Time
	recent      *ring

	session replier
	ctx     context.Context
}

func New() (*Feature, error) {
	settingsDB := config.DatabaseFor("haiku")
	settingsPool, err := database.Open(settingsDB.Path, settingsDB.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening haiku settings database: %w", err)
	}
	wordsDB := config.DatabaseFor("haiku_words")
	wordsPool, err := database.Open(wordsDB.Path, wordsDB.PoolSize)
	if err != nil {
		settingsPool.Close()
		return nil, fmt.Errorf("opening haiku words database: %w", err)
	}

	return &Feature{
		settingsPool: settingsPool,
		wordsPool:    wordsPool,
		settings:     NewSettingsStore(settingsPool),
		words:        NewWordStore(wordsPool),
		counter:      NewCounter(nil),
		runner:       reconcile.NewRunner(),
		queue:        make(chan candidate, viper.GetInt("haiku.queueSize")),
		workers:      viper.GetInt("haiku.workers"),
		channels:     make(map[string]bool),
		recent:       newRing(recentRingSize),
		ctx:          context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "haiku" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&HaikuCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		f.onMessage(m)
	})
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.settings.Init(ctx); err != nil {
		return err
	}
	if err := f.words.Init(ctx); err != nil {
		return err
	}
	if err := f.reloadWords(ctx); err != nil {
		return err
	}
	if err := f.refreshChannels(ctx); err != nil {
		return err
	}

	for n := 0; n < f.workers; n++ {
		f.wg.Add(1)
		go f.worker()
	}

	if err := f.runner.Add("haiku-channel-refresh", monitorInterval, func() error {
		f.mu.Lock()
		stale := time.Since(f.refreshedAt) >= channelsMaxAge
		f.mu.Unlock()
		if !stale {
			return nil
		}
		return f.refreshChannels(f.ctx)
	}); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.queueMu.Lock()
	if !f.queueClosed {
		f.queueClosed = true
		close(f.queue)
	}
	f.queueMu.Unlock()
	f.wg.Wait()
	f.settingsPool.Close()
	f.wordsPool.Close()
}

// reloadWords replaces the in-memory syllable table from the database.
func (f *Feature) reloadWords(ctx context.Context) error {
	words, err := f.words.All(ctx)
	if err != nil {
		return err
	}
	f.counter.SetWords(words)
	return nil
}

func (f *Feature) refreshChannels(ctx context.Context) error {
	channels, err := f.settings.EnabledChannels(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.channels = channels
	f.refreshedAt = time.Now()
	f.mu.Unlock()
	return nil
}

func (f *Feature) watching(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID]
}

func (f *Feature) onMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}
	if !f.watching(m.ChannelID) {
		return
	}

	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	if f.queueClosed {
		return
	}
	select {
	case f.queue <- candidate{channelID: m.ChannelID, messageID: m.ID, content: m.Content}:
	default:
		log.Warn().Str("channel", m.ChannelID).Msg("haiku: queue full, dropping message")
	}
}

func (f *Feature) worker() {
	defer f.wg.Done()
	for c := range f.queue {
		reconcile.Guard("haiku-detect", func() error {
			f.detect(c)
			return nil
		})
	}
}

// detect replies when the message is exactly seventeen syllables. The recent
// ring stops a redelivered message from earning two replies.
func (f *Feature) detect(c candidate) {
	f.mu.Lock()
	seen := f.recent.contains(c.messageID)
	if !seen {
		f.recent.add(c.messageID)
	}
	f.mu.Unlock()
	if seen {
		return
	}

	words, total := f.counter.Analyze(c.content)
	if total != haikuSyllables || len(words) < 3 {
		return
	}

	_, err := f.session.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "A haiku appears",
			Description: FormatHaiku(words),
			Color:       0x77b255,
		}},
		Reference: &discordgo.MessageReference{MessageID: c.messageID, ChannelID: c.channelID},
	})
	if err != nil {
		log.Debug().Str("channel", c.channelID).Err(err).Msg("haiku: reply failed")
	}
}

// ring is a fixed-size set of recently processed message IDs.
type ring struct {
	ids   []string
	index map[string]bool
	next  int
}

func newRing(size int) *ring {
	return &ring{ids: make([]string, size), index: make(map[string]bool, size)}
}

func (r *ring) contains(id string) bool {
	return r.index[id]
}

func (r *ring) add(id string) {
	if old := r.ids[r.next]; old != "" {
		delete(r.index, old)
	}
	r.ids[r.next] = id
	r.index[id] = true
	r.next = (r.next + 1) % len(r.ids)
}
