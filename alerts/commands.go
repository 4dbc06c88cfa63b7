package alerts

import (
	"fmt"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ReadCommand defines the /alert command.
type ReadCommand struct {
	feature *Feature
}

func (c *ReadCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "alert",
		Description: "Read the current announcement",
	}
}

func (c *ReadCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	alert := c.feature.Current()
	if alert == nil {
		utils.RespondEphemeral(s, i, "There is no announcement right now.")
		return
	}

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}

	position, err := c.feature.readPosition(c.feature.ctx, alert, userID)
	if err != nil {
		log.Error().Err(err).Msg("alerts: could not assign read position")
		utils.RespondEphemeral(s, i, "Something went wrong reading the announcement, please try again.")
		return
	}

	utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       alert.Title,
		Description: alert.Description,
		Color:       utils.ColorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("You are reader #%d", position),
		},
	})
}

// PushCommand defines the /alert_push command, restricted to developers.
type PushCommand struct {
	feature *Feature
}

func (c *PushCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "alert_push",
		Description: "Replace the current announcement",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "title",
				Description: "Announcement title",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
			{
				Name:        "description",
				Description: "Announcement body",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
		},
	}
}

func (c *PushCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if !utils.IsDeveloper(userID) {
		utils.RespondEphemeral(s, i, "Only bot developers can push announcements.")
		return
	}

	optionMap := utils.OptionMap(i)
	title := optionMap["title"].StringValue()
	description := optionMap["description"].StringValue()

	if _, err := c.feature.store.Push(c.feature.ctx, title, description); err != nil {
		log.Error().Err(err).Msg("alerts: push failed")
		utils.RespondEphemeral(s, i, "Could not push the announcement.")
		return
	}
	// Drop every cached position and reminder cooldown for the old alert.
	c.feature.positions.Purge()
	c.feature.reminders.Purge()
	if err := c.feature.reload(c.feature.ctx); err != nil {
		log.Error().Err(err).Msg("alerts: reload after push failed")
	}

	utils.RespondEphemeral(s, i, fmt.Sprintf("Announcement **%s** is now live.", title))
}
