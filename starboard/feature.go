package starboard

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
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/forPelevin/gomoji"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	settingsTTL   = 5 * time.Minute
	debounceDelay = 500 * time.Millisecond
)

// session is the slice of the Discord session the starboard needs.
type session interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error)
}

type pendingUpdate struct {
	guildID   string
	channelID string
	messageID string
}

// Feature mirrors well-starred messages into a per-guild starboard channel
// and runs the LFG (looking-for-group) flow on top of the same reactions.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner
	writer *writer

	settings *cache.TTL[string, Settings]

	mu      sync.Mutex
	pending map[string]*time.Timer // source message ID -> debounce timer

	lfg *lfgState

	starEmoji string
	session   session
	botID     string
	ctx       context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("starboard")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening starboard database: %w", err)
	}

	emoji := viper.GetString("starboard.emoji")
	if !gomoji.ContainsEmoji(emoji) {
		pool.Close()
		return nil, fmt.Errorf("starboard.emoji %q is not an emoji", emoji)
	}

	return &Feature{
		pool:      pool,
		store:     NewStore(pool),
		runner:    reconcile.NewRunner(),
		writer:    newWriter(viper.GetInt("starboard.writeQueueSize")),
		settings:  cache.NewTTL[string, Settings](settingsTTL),
		pending:   make(map[string]*time.Timer),
		lfg:       newLFGState(),
		starEmoji: emoji,
		ctx:       context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "starboard" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{
		&ConfigCommand{feature: f},
		&LFGCommand{feature: f},
	}
}

func (f *Feature) Register(s *discordgo.Session) {
	f.session = s
	s.AddHandler(func(ds *discordgo.Session, r *discordgo.MessageReactionAdd) {
		f.captureBotID(ds)
		f.onReactionAdd(r)
	})
	s.AddHandler(func(ds *discordgo.Session, r *discordgo.MessageReactionRemove) {
		f.captureBotID(ds)
		f.onReactionRemove(r)
	})
	s.AddHandler(func(ds *discordgo.Session, r *discordgo.MessageReactionRemoveAll) {
		f.onReactionClear(r)
	})
	s.AddHandler(func(ds *discordgo.Session, m *discordgo.MessageUpdate) {
		f.onMessageEdit(m)
	})
}

func (f *Feature) captureBotID(ds *discordgo.Session) {
	if f.botID == "" && ds.State.User != nil {
		f.botID = ds.State.User.ID
	}
}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.runner.Add("starboard-cache-evict", 5*time.Minute, func() error {
		f.settings.EvictExpired(time.Now())
		return nil
	}); err != nil {
		return err
	}
	if err := f.runner.Add("starboard-lfg-ageout", 10*time.Minute, func() error {
		f.lfg.evictStale(time.Now())
		return nil
	}); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()

	f.mu.Lock()
	for id, timer := range f.pending {
		timer.Stop()
		delete(f.pending, id)
	}
	f.mu.Unlock()

	f.writer.stop()
	f.pool.Close()
}

// guildSettings reads through the settings cache.
func (f *Feature) guildSettings(guildID string) (Settings, error) {
	if s, ok := f.settings.Get(guildID); ok {
		return s, nil
	}
	s, err := f.store.GetSettings(f.ctx, guildID)
	if err != nil {
		return s, err
	}
	f.settings.Put(guildID, s)
	return s, nil
}

// putSettings updates the cache synchronously and persists in the background.
func (f *Feature) putSettings(s Settings) {
	f.settings.Put(s.GuildID, s)
	f.writer.enqueue(func() error {
		return f.store.PutSettings(f.ctx, s)
	})
}

func (f *Feature) isStar(emoji discordgo.Emoji) bool {
	return emoji.Name == f.starEmoji
}

func (f *Feature) onReactionAdd(r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || !f.isStar(r.Emoji) || r.UserID == f.botID {
		return
	}
	if f.lfg.tracks(r.MessageID) {
		f.checkLFG(r.GuildID, r.ChannelID, r.MessageID)
		return
	}
	f.schedule(r.GuildID, r.ChannelID, r.MessageID)
}

func (f *Feature) onReactionRemove(r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" || !f.isStar(r.Emoji) || f.lfg.tracks(r.MessageID) {
		return
	}
	f.schedule(r.GuildID, r.ChannelID, r.MessageID)
}

func (f *Feature) onReactionClear(r *discordgo.MessageReactionRemoveAll) {
	if r.GuildID == "" {
		return
	}
	f.cancelPending(r.MessageID)
	if err := f.removeMirror(r.GuildID, r.MessageID); err != nil {
		log.Error().Err(err).Msg("starboard: mirror removal failed")
	}
}

func (f *Feature) onMessageEdit(m *discordgo.MessageUpdate) {
	if m.GuildID == "" {
		return
	}
	mirrorID, err := f.store.MirrorID(f.ctx, m.GuildID, m.ID)
	if err != nil || mirrorID == "" {
		return
	}
	f.schedule(m.GuildID, m.ChannelID, m.ID)
}

// schedule debounces processing per source message: a new reaction within
// the delay window cancels and replaces the pending update.
func (f *Feature) schedule(guildID, channelID, messageID string) {
	u := pendingUpdate{guildID: guildID, channelID: channelID, messageID: messageID}
	f.mu.Lock()
	defer f.mu.Unlock()
	if timer, ok := f.pending[messageID]; ok {
		timer.Stop()
	}
	f.pending[messageID] = time.AfterFunc(debounceDelay, func() {
		f.mu.Lock()
		delete(f.pending, messageID)
		f.mu.Unlock()
		reconcile.Guard("starboard-update", func() error {
			return f.process(u)
		})
	})
}

func (f *Feature) cancelPending(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if timer, ok := f.pending[messageID]; ok {
		timer.Stop()
		delete(f.pending, messageID)
	}
}

// process brings the mirror for one source message in line with its current
// star count.
func (f *Feature) process(u pendingUpdate) error {
	settings, err := f.guildSettings(u.guildID)
	if err != nil {
		return err
	}
	if settings.ChannelID == "" || u.channelID == settings.ChannelID {
		return nil
	}

	msg, err := f.session.ChannelMessage(u.channelID, u.messageID)
	if err != nil {
		if utils.IsNotFound(err) {
			return f.removeMirror(u.guildID, u.messageID)
		}
		return err
	}

	stars := f.starCount(msg)
	if msg.Author == nil || msg.Author.Bot || stars < settings.StarThreshold {
		return f.removeMirror(u.guildID, u.messageID)
	}

	embed := f.buildEmbed(u.guildID, msg, stars)
	mirrorID, err := f.store.MirrorID(f.ctx, u.guildID, u.messageID)
	if err != nil {
		return err
	}

	if mirrorID != "" {
		_, err = f.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel: settings.ChannelID,
			ID:      mirrorID,
			Embeds:  &[]*discordgo.MessageEmbed{embed},
		})
		if err == nil {
			return nil
		}
		if !utils.IsNotFound(err) {
			return err
		}
		// Someone deleted the mirror; fall through and repair with a fresh one.
	}

	sent, err := f.session.ChannelMessageSendComplex(settings.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		return err
	}
	f.writer.enqueue(func() error {
		return f.store.PutMirror(f.ctx, u.guildID, u.messageID, sent.ID)
	})
	return nil
}

// removeMirror deletes the starboard message and its row, if any.
func (f *Feature) removeMirror(guildID, sourceID string) error {
	mirrorID, err := f.store.MirrorID(f.ctx, guildID, sourceID)
	if err != nil || mirrorID == "" {
		return err
	}
	settings, err := f.guildSettings(guildID)
	if err != nil {
		return err
	}
	if settings.ChannelID != "" {
		if err := f.session.ChannelMessageDelete(settings.ChannelID, mirrorID); err != nil && !utils.IsNotFound(err) {
			return err
		}
	}
	f.writer.enqueue(func() error {
		return f.store.DeleteMirror(f.ctx, guildID, sourceID)
	})
	return nil
}

func (f *Feature) starCount(msg *discordgo.Message) int {
	for _, r := range msg.Reactions {
		if r.Emoji != nil && f.isStar(*r.Emoji) {
			return r.Count
		}
	}
	return 0
}

func (f *Feature) buildEmbed(guildID string, msg *discordgo.Message, stars int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: msg.Content,
		Color:       0xf1c40f,
		Timestamp:   msg.Timestamp.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Source",
				Value: fmt.Sprintf("[Jump to message](https://discord.com/channels/%s/%s/%s)", guildID, msg.ChannelID, msg.ID),
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d %s", stars, f.starEmoji),
		},
	}
	if msg.Author != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    msg.Author.Username,
			IconURL: msg.Author.AvatarURL(""),
		}
	}
	for _, a := range msg.Attachments {
		if a.Width > 0 {
			embed.Image = &discordgo.MessageEmbedImage{URL: a.URL}
			break
		}
	}
	return embed
}
