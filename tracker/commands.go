package tracker

import (
	"fmt"
	"strings"

	"dopamine-bot/sticky"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// TrackerCommand defines the /tracker command and its subcommands.
type TrackerCommand struct {
	feature *Feature
}

func (c *TrackerCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "tracker",
		Description: "Manage the member count tracker",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "enable",
				Description: "Announce member growth in a channel",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "channel", Description: "Channel for announcements", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
					{Name: "goal", Description: "Member goal to celebrate", Type: discordgo.ApplicationCommandOptionInteger, Required: false},
				},
			},
			{
				Name:        "disable",
				Description: "Remove the tracker for this server",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "info",
				Description: "Show the tracker settings",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "edit",
				Description: "Change the tracker's goal, format or color",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "goal", Description: "Member goal to celebrate", Type: discordgo.ApplicationCommandOptionInteger, Required: false},
					{Name: "format", Description: "Custom message, must use a token like {member_count}", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "color", Description: "Embed color, hex like #2ecc71 or a name", Type: discordgo.ApplicationCommandOptionString, Required: false},
				},
			},
			{
				Name:        "reset",
				Description: "Delete all tracker data for this server",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

func (c *TrackerCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage the tracker.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "enable":
		c.handleEnable(s, i, sub)
	case "disable":
		c.handleDisable(s, i)
	case "info":
		c.handleInfo(s, i)
	case "edit":
		c.handleEdit(s, i, sub)
	case "reset":
		c.handleReset(s, i)
	}
}

func (c *TrackerCommand) handleEnable(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	tr := Tracker{GuildID: i.GuildID, IsActive: true, Color: 0x2ecc71}
	for _, opt := range sub.Options {
		switch opt.Name {
		case "channel":
			tr.ChannelID = opt.ChannelValue(s).ID
		case "goal":
			tr.MemberGoal = int(opt.IntValue())
		}
	}

	if existing, err := c.feature.store.Get(c.feature.ctx, i.GuildID); err == nil && existing != nil {
		tr.CustomFormat = existing.CustomFormat
		tr.LastMemberCount = existing.LastMemberCount
		tr.Color = existing.Color
		if tr.MemberGoal == 0 {
			tr.MemberGoal = existing.MemberGoal
		}
	}

	if err := c.feature.store.Upsert(c.feature.ctx, tr); err != nil {
		log.Error().Err(err).Msg("tracker: enable failed")
		utils.RespondEphemeral(s, i, "Could not enable the tracker.")
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Member growth will be announced in <#%s>.", tr.ChannelID))
}

func (c *TrackerCommand) handleDisable(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := c.feature.store.Reset(c.feature.ctx, i.GuildID); err != nil {
		log.Error().Err(err).Msg("tracker: disable failed")
		utils.RespondEphemeral(s, i, "Could not disable the tracker.")
		return
	}
	c.feature.mu.Lock()
	delete(c.feature.lastCounts, i.GuildID)
	c.feature.mu.Unlock()
	utils.RespondEphemeral(s, i, "Tracker removed.")
}

func (c *TrackerCommand) handleInfo(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tr, err := c.feature.store.Get(c.feature.ctx, i.GuildID)
	if err != nil {
		log.Error().Err(err).Msg("tracker: info failed")
		utils.RespondEphemeral(s, i, "Could not load the tracker.")
		return
	}
	if tr == nil {
		utils.RespondEphemeral(s, i, "This server has no tracker. Use /tracker enable to create one.")
		return
	}

	state := "active"
	if !tr.IsActive {
		state = "inactive"
	}
	format := tr.CustomFormat
	if format == "" {
		format = defaultFormat
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: <#%s>\nState: %s\nLast count: %d\n", tr.ChannelID, state, tr.LastMemberCount)
	if tr.MemberGoal > 0 {
		fmt.Fprintf(&sb, "Goal: %d\n", tr.MemberGoal)
	}
	fmt.Fprintf(&sb, "Format: %s", format)

	utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       "Member tracker",
		Description: sb.String(),
		Color:       tr.Color,
	})
}

func (c *TrackerCommand) handleEdit(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	tr, err := c.feature.store.Get(c.feature.ctx, i.GuildID)
	if err != nil || tr == nil {
		utils.RespondEphemeral(s, i, "This server has no tracker. Use /tracker enable to create one.")
		return
	}

	for _, opt := range sub.Options {
		switch opt.Name {
		case "goal":
			tr.MemberGoal = int(opt.IntValue())
		case "format":
			format := opt.StringValue()
			if !ValidFormat(format) {
				utils.RespondEphemeral(s, i, fmt.Sprintf(
					"The format must contain at least one token: %s.", strings.Join(formatTokens, ", ")))
				return
			}
			tr.CustomFormat = format
		case "color":
			color, err := sticky.ParseColor(opt.StringValue())
			if err != nil {
				utils.RespondEphemeral(s, i, fmt.Sprintf("I do not know the color %q.", opt.StringValue()))
				return
			}
			tr.Color = color
		}
	}

	if err := c.feature.store.Upsert(c.feature.ctx, *tr); err != nil {
		log.Error().Err(err).Msg("tracker: edit failed")
		utils.RespondEphemeral(s, i, "Could not update the tracker.")
		return
	}
	utils.RespondEphemeral(s, i, "Tracker updated.")
}

func (c *TrackerCommand) handleReset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := c.feature.store.Reset(c.feature.ctx, i.GuildID); err != nil {
		log.Error().Err(err).Msg("tracker: reset failed")
		utils.RespondEphemeral(s, i, "Could not reset the tracker data.")
		return
	}
	c.feature.mu.Lock()
	delete(c.feature.lastCounts, i.GuildID)
	c.feature.mu.Unlock()
	utils.RespondEphemeral(s, i, "All tracker data for this server was deleted.")
}
