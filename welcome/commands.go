package welcome

import (
	"fmt"

	"dopamine-bot/sticky"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// WelcomeCommand defines the /welcome command.
type WelcomeCommand struct {
	feature *Feature
}

func (c *WelcomeCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "welcome",
		Description: "Manage the welcome message",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "toggle",
				Description: "Enable welcomes in a channel, or disable them entirely",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "channel", Description: "Channel to greet in; leave empty to disable", Type: discordgo.ApplicationCommandOptionChannel, Required: false},
					{Name: "message", Description: "Custom greeting, tokens: {user}, {username}, {servername}", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "image", Description: "Image URL shown in the greeting", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "color", Description: "Embed color, hex or a name", Type: discordgo.ApplicationCommandOptionString, Required: false},
				},
			},
		},
	}
}

func (c *WelcomeCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage the welcome message.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	settings := Settings{GuildID: i.GuildID, EmbedColor: 0x2ecc71}
	if existing, ok := c.feature.guildSettings(i.GuildID); ok {
		settings = existing
	}

	var channelGiven bool
	for _, opt := range sub.Options {
		switch opt.Name {
		case "channel":
			channelGiven = true
			settings.ChannelID = opt.ChannelValue(s).ID
		case "message":
			settings.CustomMessage = opt.StringValue()
		case "image":
			settings.ImageURL = opt.StringValue()
			settings.ShowImage = settings.ImageURL != ""
		case "color":
			color, err := sticky.ParseColor(opt.StringValue())
			if err != nil {
				utils.RespondEphemeral(s, i, fmt.Sprintf("I do not know the color %q.", opt.StringValue()))
				return
			}
			settings.EmbedColor = color
		}
	}

	// Toggling without a channel disables welcomes for the guild.
	if !channelGiven {
		deleted, err := c.feature.store.Delete(c.feature.ctx, i.GuildID)
		if err != nil {
			log.Error().Err(err).Msg("welcome: disable failed")
			utils.RespondEphemeral(s, i, "Could not disable the welcome message.")
			return
		}
		c.feature.mu.Lock()
		delete(c.feature.settings, i.GuildID)
		c.feature.mu.Unlock()
		if deleted {
			utils.RespondEphemeral(s, i, "Welcome messages disabled.")
		} else {
			utils.RespondEphemeral(s, i, "Welcome messages were not enabled.")
		}
		return
	}

	if err := c.feature.store.Upsert(c.feature.ctx, settings); err != nil {
		log.Error().Err(err).Msg("welcome: enable failed")
		utils.RespondEphemeral(s, i, "Could not save the welcome settings.")
		return
	}
	c.feature.mu.Lock()
	c.feature.settings[i.GuildID] = settings
	c.feature.mu.Unlock()
	utils.RespondEphemeral(s, i, fmt.Sprintf("New members will be greeted in <#%s>.", settings.ChannelID))
}
