package utils

import (
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedSender struct {
	mu       sync.Mutex
	channels []string
	embeds   []*discordgo.MessageEmbed
}

func (f *fakeEmbedSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{ID: "sent", ChannelID: channelID}, nil
}

func drainMirrorQueue() {
	for {
		select {
		case <-mirrorQueue:
		default:
			return
		}
	}
}

func TestMirrorHookForwardsOnlyWarnAndError(t *testing.T) {
	drainMirrorQueue()
	h := mirrorHook{}

	h.Run(nil, zerolog.DebugLevel, "quiet")
	h.Run(nil, zerolog.InfoLevel, "quiet")
	assert.Len(t, mirrorQueue, 0)

	h.Run(nil, zerolog.WarnLevel, "watch out")
	h.Run(nil, zerolog.ErrorLevel, "it broke")
	require.Len(t, mirrorQueue, 2)

	first := <-mirrorQueue
	assert.Equal(t, zerolog.WarnLevel, first.level)
	assert.Equal(t, "watch out", first.message)
	drainMirrorQueue()
}

func TestSendMirrorPostsEmbedToAdminChannel(t *testing.T) {
	fake := &fakeEmbedSender{}
	mirrorMu.Lock()
	prevSession, prevChannel := mirrorSession, mirrorChannel
	mirrorSession, mirrorChannel = fake, "admin-chan"
	mirrorMu.Unlock()
	t.Cleanup(func() {
		mirrorMu.Lock()
		mirrorSession, mirrorChannel = prevSession, prevChannel
		mirrorMu.Unlock()
	})

	sendMirror(mirrorEntry{level: zerolog.ErrorLevel, message: "it broke"})
	sendMirror(mirrorEntry{level: zerolog.WarnLevel, message: "watch out"})

	require.Len(t, fake.embeds, 2)
	assert.Equal(t, "admin-chan", fake.channels[0])
	assert.Equal(t, "Log Level: ERROR", fake.embeds[0].Title)
	assert.Equal(t, ColorError, fake.embeds[0].Color)
	assert.Equal(t, "it broke", fake.embeds[0].Fields[0].Value)
	assert.Equal(t, "Log Level: WARN", fake.embeds[1].Title)
	assert.Equal(t, ColorWarn, fake.embeds[1].Color)
}

func TestSendMirrorWithoutSessionIsANoOp(t *testing.T) {
	mirrorMu.Lock()
	prevSession, prevChannel := mirrorSession, mirrorChannel
	mirrorSession, mirrorChannel = nil, ""
	mirrorMu.Unlock()
	t.Cleanup(func() {
		mirrorMu.Lock()
		mirrorSession, mirrorChannel = prevSession, prevChannel
		mirrorMu.Unlock()
	})

	assert.NotPanics(t, func() {
		sendMirror(mirrorEntry{level: zerolog.ErrorLevel, message: "nowhere to go"})
	})
}
