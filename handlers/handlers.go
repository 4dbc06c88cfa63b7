package handlers

import (
	"dopamine-bot/bot"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Register all handlers to the bot.
func Register(b *bot.Bot) {
	b.Session.AddHandler(InteractionCreate(b))

	// Log when the bot is connected and wire the admin-channel log mirror.
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		utils.InitLogger(s)
		log.Info().
			Str("username", s.State.User.Username).
			Str("discriminator", s.State.User.Discriminator).
			Msg("logged in")
	})
}
