package starboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLFGCooldownPerGuild(t *testing.T) {
	l := newLFGState()
	base := time.Now()

	assert.False(t, l.onCooldown("g1", base))
	assert.True(t, l.onCooldown("g1", base.Add(30*time.Second)))
	assert.False(t, l.onCooldown("g2", base), "cooldowns are per guild")
	assert.False(t, l.onCooldown("g1", base.Add(61*time.Second)))
}

func TestLFGAgeOut(t *testing.T) {
	l := newLFGState()
	base := time.Now()

	l.add("fresh", lfgPost{guildID: "g1", createdAt: base})
	l.add("stale", lfgPost{guildID: "g1", createdAt: base.Add(-25 * time.Hour)})

	l.evictStale(base)
	assert.True(t, l.tracks("fresh"))
	assert.False(t, l.tracks("stale"))
}

func TestLFGSizeCapDropsOldest(t *testing.T) {
	l := newLFGState()
	base := time.Now()

	for n := 0; n < lfgMaxPosts; n++ {
		l.add(fmt.Sprintf("post-%d", n), lfgPost{createdAt: base.Add(time.Duration(n) * time.Second)})
	}
	l.add("overflow", lfgPost{createdAt: base.Add(time.Hour)})

	assert.False(t, l.tracks("post-0"), "oldest post evicted at the cap")
	assert.True(t, l.tracks("overflow"))
}

func TestCheckLFGPingsAtThreshold(t *testing.T) {
	f, fs := newTestFeature(t)
	configure(t, f, "g1", "board")

	f.lfg.add("lfg-msg", lfgPost{guildID: "g1", channelID: "general", authorID: "author", createdAt: time.Now()})

	// Three non-bot reactors, threshold is four: nothing happens.
	fs.reactors["lfg-msg"] = []*discordgo.User{
		{ID: "u1"}, {ID: "u2"}, {ID: "u3"}, {ID: "bot-user", Bot: true},
	}
	f.checkLFG("g1", "general", "lfg-msg")
	assert.Empty(t, fs.texts)
	assert.True(t, f.lfg.tracks("lfg-msg"))

	// Fourth human reactor: the group is pinged and the post forgotten.
	fs.reactors["lfg-msg"] = append(fs.reactors["lfg-msg"], &discordgo.User{ID: "u4"})
	f.checkLFG("g1", "general", "lfg-msg")
	require.Len(t, fs.texts, 1)
	assert.Contains(t, fs.texts[0], "<@author>")
	assert.Contains(t, fs.texts[0], "<@u4>")
	assert.NotContains(t, fs.texts[0], "<@bot-user>")
	assert.False(t, f.lfg.tracks("lfg-msg"))
}
