package starboard

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	lfgMaxAge   = 24 * time.Hour
	lfgMaxPosts = 1000
	lfgCooldown = time.Minute
)

type lfgPost struct {
	guildID   string
	channelID string
	authorID  string
	createdAt time.Time
}

// lfgState tracks open LFG posts in memory only. Posts age out after 24h
// and the map is hard-capped so an abandoned deployment cannot grow without
// bound.
type lfgState struct {
	mu        sync.Mutex
	posts     map[string]lfgPost // keyed by LFG message ID
	cooldowns map[string]time.Time
}

func newLFGState() *lfgState {
	return &lfgState{
		posts:     make(map[string]lfgPost),
		cooldowns: make(map[string]time.Time),
	}
}

func (l *lfgState) tracks(messageID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.posts[messageID]
	return ok
}

func (l *lfgState) get(messageID string) (lfgPost, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.posts[messageID]
	return p, ok
}

func (l *lfgState) add(messageID string, p lfgPost) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.posts) >= lfgMaxPosts {
		// Drop the oldest post to stay under the cap.
		var oldestID string
		var oldest time.Time
		for id, post := range l.posts {
			if oldestID == "" || post.createdAt.Before(oldest) {
				oldestID, oldest = id, post.createdAt
			}
		}
		delete(l.posts, oldestID)
	}
	l.posts[messageID] = p
}

func (l *lfgState) remove(messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.posts, messageID)
}

// onCooldown records a guild's LFG attempt and reports whether it was still
// inside the cooldown window.
func (l *lfgState) onCooldown(guildID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.cooldowns[guildID]; ok && now.Sub(last) < lfgCooldown {
		return true
	}
	l.cooldowns[guildID] = now
	return false
}

func (l *lfgState) evictStale(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, p := range l.posts {
		if now.Sub(p.createdAt) >= lfgMaxAge {
			delete(l.posts, id)
		}
	}
	for guildID, last := range l.cooldowns {
		if now.Sub(last) >= lfgCooldown {
			delete(l.cooldowns, guildID)
		}
	}
}

// checkLFG fires the group ping once enough non-bot members have reacted.
func (f *Feature) checkLFG(guildID, channelID, messageID string) {
	post, ok := f.lfg.get(messageID)
	if !ok {
		return
	}
	settings, err := f.guildSettings(guildID)
	if err != nil {
		log.Error().Err(err).Msg("lfg: settings load failed")
		return
	}

	users, err := f.session.MessageReactions(channelID, messageID, f.starEmoji, 100, "", "")
	if err != nil {
		log.Error().Err(err).Msg("lfg: reactor fetch failed")
		return
	}

	mentions := make([]string, 0, len(users))
	for _, u := range users {
		if u.Bot {
			continue
		}
		mentions = append(mentions, fmt.Sprintf("<@%s>", u.ID))
	}
	if len(mentions) < settings.LFGThreshold {
		return
	}

	f.lfg.remove(messageID)
	content := fmt.Sprintf("The group posted by <@%s> is ready! %s", post.authorID, strings.Join(mentions, " "))
	if _, err := f.session.ChannelMessageSend(channelID, content); err != nil {
		log.Error().Err(err).Msg("lfg: group ping failed")
	}
}
