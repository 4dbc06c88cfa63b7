package sticky

import (
	"context"
	"fmt"
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

const monitorInterval = 2 * time.Minute

type panelKey struct {
	guildID string
	panelID int64
}

// session is the slice of the Discord session the sticky loops need.
type session interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Feature keeps sticky panels pinned to the bottom of their channels. All
// panels live in memory; SQLite is the write-through backing store.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner

	mu     sync.Mutex
	panels map[panelKey]*Panel
	// activeChannels maps a channel to the panel currently live in it.
	activeChannels map[string]panelKey

	session session
	botID   string
	ctx     context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("sticky")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening sticky database: %w", err)
	}
	return &Feature{
		pool:           pool,
		store:          NewStore(pool),
		runner:         reconcile.NewRunner(),
		panels:         make(map[panelKey]*Panel),
		activeChannels: make(map[string]panelKey),
		ctx:            context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "sticky" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&StickyCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageCreate) {
		if ds.State.User != nil {
			f.botID = ds.State.User.ID
		}
		f.onMessage(m)
	})
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.loadAll(ctx); err != nil {
		return err
	}
	if err := f.runner.Add("sticky-monitor", monitorInterval, f.monitor); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.pool.Close()
}

func (f *Feature) loadAll(ctx context.Context) error {
	panels, err := f.store.All(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = make(map[panelKey]*Panel, len(panels))
	f.activeChannels = make(map[string]panelKey)
	for n := range panels {
		p := panels[n]
		key := panelKey{p.GuildID, p.PanelID}
		f.panels[key] = &p
		if p.LastMessageID != nil && p.ChannelID != "" {
			f.activeChannels[p.ChannelID] = key
		}
	}
	return nil
}

// render builds the sticky message payload for a panel.
func render(p *Panel) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: p.Content}
	if p.Title != "" || p.Description != "" || p.ImageURL != "" {
		embed := &discordgo.MessageEmbed{
			Title:       p.Title,
			Description: p.Description,
			Color:       p.EmbedColor,
		}
		if p.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: p.ImageURL}
		}
		if p.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: p.Footer}
		}
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return msg
}

// onMessage reposts the sticky when someone else posts in its channel.
// Panel fields are copied out under the lock; repost mutates LastMessageID
// concurrently.
func (f *Feature) onMessage(m *discordgo.MessageCreate) {
	f.mu.Lock()
	key, ok := f.activeChannels[m.ChannelID]
	var p *Panel
	if ok {
		p = f.panels[key]
	}
	if p == nil {
		f.mu.Unlock()
		return
	}
	lastMessage := p.LastMessageID
	imageOnly := p.ImageOnly
	whitelistOn := p.WhitelistEnabled
	whitelistID := p.WhitelistID
	f.mu.Unlock()

	if m.Author != nil && (m.Author.Bot || m.Author.ID == f.botID) {
		return
	}
	if lastMessage != nil && m.ID == *lastMessage {
		return
	}
	if imageOnly && len(m.Attachments) == 0 {
		return
	}
	if whitelistOn && m.Author != nil && m.Author.ID == whitelistID {
		return
	}

	if err := f.repost(key); err != nil {
		log.Error().Str("guild", key.guildID).Int64("panel", key.panelID).Err(err).Msg("sticky: repost failed")
	}
}

// repost deletes the old sticky message, sends a fresh one and writes the new
// message ID through to the store. Safe to call when the old message is
// already gone.
func (f *Feature) repost(key panelKey) error {
	f.mu.Lock()
	p, ok := f.panels[key]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	channelID := p.ChannelID
	oldMessage := p.LastMessageID
	f.mu.Unlock()

	if oldMessage != nil {
		if err := f.session.ChannelMessageDelete(channelID, *oldMessage); err != nil && !utils.IsNotFound(err) {
			log.Debug().Str("channel", channelID).Err(err).Msg("sticky: old message delete failed")
		}
	}

	sent, err := f.session.ChannelMessageSendComplex(channelID, render(p))
	if err != nil {
		return err
	}

	f.mu.Lock()
	p.LastMessageID = &sent.ID
	f.activeChannels[channelID] = key
	f.mu.Unlock()
	return f.store.SetLastMessage(f.ctx, key.guildID, key.panelID, &sent.ID)
}

// monitor verifies every live panel's message still exists and repairs the
// ones that have drifted. Channels that are gone are skipped, not removed;
// only an explicit stop or delete retires a panel.
func (f *Feature) monitor() error {
	f.mu.Lock()
	keys := make([]panelKey, 0, len(f.activeChannels))
	for _, key := range f.activeChannels {
		keys = append(keys, key)
	}
	f.mu.Unlock()

	for _, key := range keys {
		f.mu.Lock()
		p, ok := f.panels[key]
		var channelID string
		var lastMessage *string
		if ok {
			channelID = p.ChannelID
			lastMessage = p.LastMessageID
		}
		f.mu.Unlock()
		if !ok || lastMessage == nil {
			continue
		}

		_, err := f.session.ChannelMessage(channelID, *lastMessage)
		if err == nil {
			continue
		}
		if !utils.IsNotFound(err) {
			log.Debug().Str("channel", channelID).Err(err).Msg("sticky: monitor fetch failed")
			continue
		}
		if err := f.repost(key); err != nil {
			log.Error().Str("guild", key.guildID).Int64("panel", key.panelID).Err(err).Msg("sticky: repair failed")
		}
	}
	return nil
}

// startPanel activates a panel in a channel and posts the first sticky.
func (f *Feature) startPanel(key panelKey, channelID string) error {
	f.mu.Lock()
	p, ok := f.panels[key]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("panel %d not found", key.panelID)
	}
	if prev, live := f.activeChannels[p.ChannelID]; live && prev == key && p.ChannelID != channelID {
		delete(f.activeChannels, p.ChannelID)
	}
	p.ChannelID = channelID
	f.mu.Unlock()

	if err := f.store.SetChannel(f.ctx, key.guildID, key.panelID, channelID); err != nil {
		return err
	}
	return f.repost(key)
}

// stopPanel removes the live sticky message and marks the panel stopped.
func (f *Feature) stopPanel(key panelKey) error {
	f.mu.Lock()
	p, ok := f.panels[key]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("panel %d not found", key.panelID)
	}
	channelID := p.ChannelID
	lastMessage := p.LastMessageID
	p.LastMessageID = nil
	delete(f.activeChannels, channelID)
	f.mu.Unlock()

	if lastMessage != nil {
		if err := f.session.ChannelMessageDelete(channelID, *lastMessage); err != nil && !utils.IsNotFound(err) {
			log.Debug().Str("channel", channelID).Err(err).Msg("sticky: stop delete failed")
		}
	}
	return f.store.SetLastMessage(f.ctx, key.guildID, key.panelID, nil)
}

// deletePanel stops a panel and removes it entirely.
func (f *Feature) deletePanel(key panelKey) (bool, error) {
	f.mu.Lock()
	_, exists := f.panels[key]
	f.mu.Unlock()
	if exists {
		if err := f.stopPanel(key); err != nil {
			return false, err
		}
		f.mu.Lock()
		delete(f.panels, key)
		f.mu.Unlock()
	}
	return f.store.Delete(f.ctx, key.guildID, key.panelID)
}
