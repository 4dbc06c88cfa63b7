package utils

import (
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// embedSender is the slice of the Discord session the mirror needs.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type mirrorEntry struct {
	level   zerolog.Level
	message string
}

var (
	mirrorMu      sync.Mutex
	mirrorSession embedSender
	mirrorChannel string

	mirrorQueue = make(chan mirrorEntry, 64)
	mirrorOnce  sync.Once
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.Kitchen,
	})
}

// InitLogger wires the Discord session into the logger. Once wired, every
// warn and error log line is mirrored to the admin channel as an embed.
// Safe to call again on reconnect.
func InitLogger(s *discordgo.Session) {
	channelID := viper.GetString("bot.adminChannelId")
	if channelID == "" {
		log.Warn().Msg("bot.adminChannelId is not set; logging to channel is disabled")
		return
	}

	mirrorMu.Lock()
	mirrorSession = s
	mirrorChannel = channelID
	mirrorMu.Unlock()

	mirrorOnce.Do(func() {
		go mirrorLoop()
		log.Logger = log.Logger.Hook(mirrorHook{})
	})
}

// mirrorHook forwards warn and error events onto the mirror queue. The send
// is non-blocking; when the queue is full the line is only written to the
// console.
type mirrorHook struct{}

func (mirrorHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level != zerolog.WarnLevel && level != zerolog.ErrorLevel {
		return
	}
	select {
	case mirrorQueue <- mirrorEntry{level: level, message: msg}:
	default:
	}
}

func mirrorLoop() {
	for entry := range mirrorQueue {
		sendMirror(entry)
	}
}

// sendMirror posts one log line to the admin channel. A failed send is
// logged at debug level, below the hook's threshold, so it cannot feed back
// into the queue.
func sendMirror(entry mirrorEntry) {
	mirrorMu.Lock()
	session := mirrorSession
	channelID := mirrorChannel
	mirrorMu.Unlock()
	if session == nil || channelID == "" {
		return
	}

	if _, err := session.ChannelMessageSendEmbed(channelID, mirrorEmbed(entry)); err != nil {
		log.Debug().Err(err).Msg("could not mirror log line to admin channel")
	}
}

func mirrorEmbed(entry mirrorEntry) *discordgo.MessageEmbed {
	title, color := "Log Level: WARN", ColorWarn
	if entry.level == zerolog.ErrorLevel {
		title, color = "Log Level: ERROR", ColorError
	}
	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Details",
				Value: entry.message,
			},
		},
	}
}
