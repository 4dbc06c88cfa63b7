package starboard

import (
	"fmt"
	"time"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ConfigCommand defines the /starboard configuration command.
type ConfigCommand struct {
	feature *Feature
}

func (c *ConfigCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "starboard",
		Description: "Configure the starboard",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "set_channel",
				Description: "Choose the channel starred messages are mirrored to",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "channel", Description: "The starboard channel", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
				},
			},
			{
				Name:        "threshold",
				Description: "Stars needed before a message is mirrored",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "count", Description: "Minimum star count (at least 1)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				},
			},
			{
				Name:        "lfg_threshold",
				Description: "Reactions needed before an LFG group is pinged",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "count", Description: "Minimum reactor count (at least 1)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				},
			},
		},
	}
}

func (c *ConfigCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to configure the starboard.")
		return
	}

	settings, err := c.feature.guildSettings(i.GuildID)
	if err != nil {
		log.Error().Err(err).Msg("starboard: settings load failed")
		utils.RespondEphemeral(s, i, "Could not load the starboard settings.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "set_channel":
		settings.ChannelID = sub.Options[0].ChannelValue(s).ID
		c.feature.putSettings(settings)
		utils.RespondEphemeral(s, i, fmt.Sprintf("Starred messages will be mirrored to <#%s>.", settings.ChannelID))

	case "threshold":
		count := int(sub.Options[0].IntValue())
		if count < 1 {
			utils.RespondEphemeral(s, i, "The star threshold must be at least 1.")
			return
		}
		settings.StarThreshold = count
		c.feature.putSettings(settings)
		utils.RespondEphemeral(s, i, fmt.Sprintf("Messages now need %d %s to reach the starboard.", count, c.feature.starEmoji))

	case "lfg_threshold":
		count := int(sub.Options[0].IntValue())
		if count < 1 {
			utils.RespondEphemeral(s, i, "The LFG threshold must be at least 1.")
			return
		}
		settings.LFGThreshold = count
		c.feature.putSettings(settings)
		utils.RespondEphemeral(s, i, fmt.Sprintf("LFG groups now fire at %d reactors.", count))
	}
}

// LFGCommand defines the /lfg command.
type LFGCommand struct {
	feature *Feature
}

func (c *LFGCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "lfg",
		Description: "Post a looking-for-group message",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "create",
				Description: "Create an LFG post in this channel",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "activity", Description: "What are you looking to do?", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
		},
	}
}

func (c *LFGCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		utils.RespondEphemeral(s, i, "LFG posts only work in a server.")
		return
	}
	if c.feature.lfg.onCooldown(i.GuildID, time.Now()) {
		utils.RespondEphemeral(s, i, "An LFG post was just created here, wait a minute before the next one.")
		return
	}

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	}
	activity := i.ApplicationCommandData().Options[0].Options[0].StringValue()

	sent, err := c.feature.session.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Looking for group",
			Description: activity,
			Color:       utils.ColorInfo,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("React with %s to join", c.feature.starEmoji),
			},
			Author: &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("Posted by %s", displayName(i))},
		}},
	})
	if err != nil {
		log.Error().Err(err).Msg("lfg: post failed")
		utils.RespondEphemeral(s, i, "Could not create the LFG post.")
		return
	}

	if err := c.feature.session.MessageReactionAdd(i.ChannelID, sent.ID, c.feature.starEmoji); err != nil {
		log.Debug().Err(err).Msg("lfg: seed reaction failed")
	}

	c.feature.lfg.add(sent.ID, lfgPost{
		guildID:   i.GuildID,
		channelID: i.ChannelID,
		authorID:  userID,
		createdAt: time.Now(),
	})
	utils.RespondEphemeral(s, i, "Your LFG post is up.")
}

func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	return "someone"
}
