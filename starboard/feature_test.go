package starboard

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dopamine-bot/cache"
	"dopamine-bot/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu       sync.Mutex
	nextID   int
	messages map[string]*discordgo.Message // "channel/message" -> message
	sends    int
	edits    int
	deletes  int
	reactors map[string][]*discordgo.User // message ID -> reactors
	texts    []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		messages: make(map[string]*discordgo.Message),
		reactors: make(map[string][]*discordgo.User),
	}
}

func msgKey(channelID, messageID string) string { return channelID + "/" + messageID }

func notFound() error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeSession) put(channelID string, msg *discordgo.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ChannelID = channelID
	f.messages[msgKey(channelID, msg.ID)] = msg
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[msgKey(channelID, messageID)]; ok {
		return m, nil
	}
	return nil, notFound()
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, content)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Content: content}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.nextID++
	msg := &discordgo.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, Embeds: data.Embeds}
	f.messages[msgKey(channelID, msg.ID)] = msg
	return msg, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.messages[msgKey(m.Channel, m.ID)]
	if !ok {
		return nil, notFound()
	}
	f.edits++
	if m.Embeds != nil {
		existing.Embeds = *m.Embeds
	}
	return existing, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[msgKey(channelID, messageID)]; !ok {
		return notFound()
	}
	delete(f.messages, msgKey(channelID, messageID))
	f.deletes++
	return nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) MessageReactions(channelID, messageID, emojiID string, limit int, beforeID, afterID string, options ...discordgo.RequestOption) ([]*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactors[messageID], nil
}

func newTestFeature(t *testing.T) (*Feature, *fakeSession) {
	t.Helper()
	pool, err := database.Open(filepath.Join(t.TempDir(), "starboard.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	fs := newFakeSession()
	f := &Feature{
		pool:      pool,
		store:     NewStore(pool),
		writer:    newWriter(16),
		settings:  cache.NewTTL[string, Settings](settingsTTL),
		pending:   make(map[string]*time.Timer),
		lfg:       newLFGState(),
		starEmoji: "⭐",
		session:   fs,
		botID:     "bot-user",
		ctx:       context.Background(),
	}
	require.NoError(t, f.store.Init(f.ctx))
	t.Cleanup(func() { f.writer.stop() })
	return f, fs
}

func starredMessage(id, author string, stars int) *discordgo.Message {
	return &discordgo.Message{
		ID:      id,
		Author:  &discordgo.User{ID: author, Username: "author"},
		Content: "a starred message",
		Reactions: []*discordgo.MessageReactions{
			{Emoji: &discordgo.Emoji{Name: "⭐"}, Count: stars},
		},
	}
}

func configure(t *testing.T, f *Feature, guildID, channelID string) {
	t.Helper()
	settings, err := f.guildSettings(guildID)
	require.NoError(t, err)
	settings.ChannelID = channelID
	require.NoError(t, f.store.PutSettings(f.ctx, settings))
	f.settings.Put(guildID, settings)
}

func TestProcessMirrorsOnceThreshold(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	fs.put("general", starredMessage("src", "someone", 2))
	u := pendingUpdate{guildID: "g1", channelID: "general", messageID: "src"}

	// Below the default threshold of 3: no mirror.
	require.NoError(t, f.process(u))
	assert.Equal(t, 0, fs.sends)

	// At threshold: mirrored.
	fs.put("general", starredMessage("src", "someone", 3))
	require.NoError(t, f.process(u))
	assert.Equal(t, 1, fs.sends)

	f.writer.stop()
	mirrorID, err := f.store.MirrorID(f.ctx, "g1", "src")
	require.NoError(t, err)
	assert.NotEmpty(t, mirrorID)
}

func TestProcessEditsExistingMirror(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	fs.put("general", starredMessage("src", "someone", 3))
	u := pendingUpdate{guildID: "g1", channelID: "general", messageID: "src"}
	require.NoError(t, f.process(u))
	f.writer.stop()
	f.writer = newWriter(16)

	fs.put("general", starredMessage("src", "someone", 5))
	require.NoError(t, f.process(u))
	assert.Equal(t, 1, fs.sends, "existing mirror is edited, not resent")
	assert.Equal(t, 1, fs.edits)
}

func TestProcessRepairsDeletedMirror(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	fs.put("general", starredMessage("src", "someone", 3))
	u := pendingUpdate{guildID: "g1", channelID: "general", messageID: "src"}
	require.NoError(t, f.process(u))
	f.writer.stop()

	mirrorID, err := f.store.MirrorID(f.ctx, "g1", "src")
	require.NoError(t, err)

	// Someone deletes the mirror; the next update resends instead of failing.
	fs.mu.Lock()
	delete(fs.messages, msgKey("board", mirrorID))
	fs.mu.Unlock()

	f.writer = newWriter(16)
	require.NoError(t, f.process(u))
	f.writer.stop()
	assert.Equal(t, 2, fs.sends)

	newMirror, err := f.store.MirrorID(f.ctx, "g1", "src")
	require.NoError(t, err)
	assert.NotEqual(t, mirrorID, newMirror)
}

func TestProcessRemovesMirrorWhenStarsDrop(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	fs.put("general", starredMessage("src", "someone", 4))
	u := pendingUpdate{guildID: "g1", channelID: "general", messageID: "src"}
	require.NoError(t, f.process(u))
	f.writer.stop()
	f.writer = newWriter(16)

	fs.put("general", starredMessage("src", "someone", 1))
	require.NoError(t, f.process(u))
	f.writer.stop()
	assert.Equal(t, 1, fs.deletes)

	mirrorID, err := f.store.MirrorID(f.ctx, "g1", "src")
	require.NoError(t, err)
	assert.Empty(t, mirrorID)
}

func TestProcessIgnoresBotAuthorsAndStarboardChannel(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	bot := starredMessage("src", "bot-user", 10)
	bot.Author.Bot = true
	fs.put("general", bot)
	require.NoError(t, f.process(pendingUpdate{guildID: "g1", channelID: "general", messageID: "src"}))
	assert.Equal(t, 0, fs.sends)

	// A message inside the starboard channel itself is never mirrored.
	fs.put("board", starredMessage("other", "someone", 10))
	require.NoError(t, f.process(pendingUpdate{guildID: "g1", channelID: "board", messageID: "other"}))
	assert.Equal(t, 0, fs.sends)
}

func TestSettingsDefaultsAndPersistence(t *testing.T) {
	f, _ := newTestFeature(t)

	settings, err := f.store.GetSettings(f.ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, settings.StarThreshold)
	assert.Equal(t, 4, settings.LFGThreshold)
	assert.Empty(t, settings.ChannelID)

	settings.StarThreshold = 5
	settings.ChannelID = "board"
	require.NoError(t, f.store.PutSettings(f.ctx, settings))

	got, err := f.store.GetSettings(f.ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.StarThreshold)
	assert.Equal(t, "board", got.ChannelID)
}
