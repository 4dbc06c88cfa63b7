package handlers

import (
	"dopamine-bot/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// InteractionCreate dispatches slash command, autocomplete and message
// component interactions to the owning command or feature.
func InteractionCreate(b *bot.Bot) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			name := i.ApplicationCommandData().Name
			cmd, ok := b.Commands[name]
			if !ok {
				log.Warn().Str("command", name).Msg("unknown command interaction")
				return
			}
			cmd.Handler(s, i)

		case discordgo.InteractionApplicationCommandAutocomplete:
			name := i.ApplicationCommandData().Name
			cmd, ok := b.Commands[name]
			if !ok {
				return
			}
			ac, ok := cmd.(bot.Autocompleter)
			if !ok {
				log.Warn().Str("command", name).Msg("autocomplete for command without autocompleter")
				return
			}
			ac.Autocomplete(s, i)

		case discordgo.InteractionMessageComponent:
			customID := i.MessageComponentData().CustomID
			h, ok := b.Component(customID)
			if !ok {
				log.Warn().Str("custom_id", customID).Msg("unhandled component interaction")
				return
			}
			h.HandleComponent(s, i)
		}
	}
}
