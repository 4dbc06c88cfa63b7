package scheduled

import (
	"fmt"
	"strings"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ScheduleCommand defines the /schedule command and its subcommands.
type ScheduleCommand struct {
	feature *Feature
}

func (c *ScheduleCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "schedule",
		Description: "Manage recurring scheduled messages",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "setup",
				Description: "Create a new scheduled message",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "name",
						Description: "A short name for this message",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
					{
						Name:        "channel",
						Description: "Channel to send the message in",
						Type:        discordgo.ApplicationCommandOptionChannel,
						Required:    true,
					},
					{
						Name:        "message",
						Description: "The message content",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
					{
						Name:        "frequency",
						Description: "How often to send it, e.g. \"1d 12hr\" or \"30m\"",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
			},
			{
				Name:        "list",
				Description: "List this server's scheduled messages",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "delete",
				Description: "Delete a scheduled message",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     idOption(),
			},
			{
				Name:        "start",
				Description: "Start a stopped scheduled message",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     idOption(),
			},
			{
				Name:        "stop",
				Description: "Stop a scheduled message without deleting it",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     idOption(),
			},
		},
	}
}

func idOption() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Name:        "id",
			Description: "The scheduled message ID (see /schedule list)",
			Type:        discordgo.ApplicationCommandOptionInteger,
			Required:    true,
		},
	}
}

func (c *ScheduleCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage scheduled messages.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "setup":
		c.handleSetup(s, i, sub)
	case "list":
		c.handleList(s, i)
	case "delete":
		c.handleDelete(s, i, sub)
	case "start":
		c.handleSetActive(s, i, sub, true)
	case "stop":
		c.handleSetActive(s, i, sub, false)
	}
}

func (c *ScheduleCommand) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	var name, channelID, content, frequency string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "name":
			name = opt.StringValue()
		case "channel":
			channelID = opt.ChannelValue(s).ID
		case "message":
			content = opt.StringValue()
		case "frequency":
			frequency = opt.StringValue()
		}
	}

	seconds, err := utils.ParseFrequency(frequency)
	if err != nil {
		utils.RespondEphemeral(s, i, fmt.Sprintf("I could not understand the frequency %q. Try something like `1d 12hr` or `30m`.", frequency))
		return
	}
	if seconds < minFrequencySeconds {
		utils.RespondEphemeral(s, i, "Frequency must be at least 1 minute.")
		return
	}

	now := c.feature.now()
	m := &Message{
		GuildID:          i.GuildID,
		Name:             name,
		ChannelID:        channelID,
		Content:          content,
		FrequencySeconds: seconds,
		NextSendTime:     now.Unix() + seconds,
		IsActive:         true,
		StartedAt:        now.Unix(),
	}
	if err := c.feature.store.Create(c.feature.ctx, m); err != nil {
		log.Error().Err(err).Msg("scheduled: setup failed")
		utils.RespondEphemeral(s, i, "Could not create the scheduled message.")
		return
	}

	utils.RespondEphemeral(s, i, fmt.Sprintf(
		"Scheduled message **%s** (ID %d) will be sent every %s in <#%s>.",
		name, m.MessageID, utils.FormatFrequency(seconds), channelID))
}

func (c *ScheduleCommand) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	messages, err := c.feature.store.List(c.feature.ctx, i.GuildID)
	if err != nil {
		log.Error().Err(err).Msg("scheduled: list failed")
		utils.RespondEphemeral(s, i, "Could not list scheduled messages.")
		return
	}
	if len(messages) == 0 {
		utils.RespondEphemeral(s, i, "This server has no scheduled messages.")
		return
	}

	var sb strings.Builder
	for _, m := range messages {
		state := "running"
		if !m.IsActive {
			state = "stopped"
		}
		fmt.Fprintf(&sb, "**%d. %s** in <#%s>, every %s (%s)\n",
			m.MessageID, m.Name, m.ChannelID, utils.FormatFrequency(m.FrequencySeconds), state)
	}
	utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       "Scheduled messages",
		Description: sb.String(),
		Color:       utils.ColorInfo,
	})
}

func (c *ScheduleCommand) handleDelete(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	id := sub.Options[0].IntValue()
	deleted, err := c.feature.store.Delete(c.feature.ctx, i.GuildID, id)
	if err != nil {
		log.Error().Err(err).Msg("scheduled: delete failed")
		utils.RespondEphemeral(s, i, "Could not delete the scheduled message.")
		return
	}
	if !deleted {
		utils.RespondEphemeral(s, i, fmt.Sprintf("No scheduled message with ID %d.", id))
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Scheduled message %d deleted.", id))
}

func (c *ScheduleCommand) handleSetActive(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption, active bool) {
	id := sub.Options[0].IntValue()
	found, err := c.feature.store.SetActive(c.feature.ctx, i.GuildID, id, active, c.feature.now())
	if err != nil {
		log.Error().Err(err).Msg("scheduled: state change failed")
		utils.RespondEphemeral(s, i, "Could not update the scheduled message.")
		return
	}
	if !found {
		utils.RespondEphemeral(s, i, fmt.Sprintf("No scheduled message with ID %d.", id))
		return
	}
	if active {
		utils.RespondEphemeral(s, i, fmt.Sprintf("Scheduled message %d is running again.", id))
	} else {
		utils.RespondEphemeral(s, i, fmt.Sprintf("Scheduled message %d stopped.", id))
	}
}
