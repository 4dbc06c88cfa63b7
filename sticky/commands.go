package sticky

import (
	"fmt"
	"sort"
	"strings"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// StickyCommand defines the /sticky command and its subcommands.
type StickyCommand struct {
	feature *Feature
}

func (c *StickyCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "sticky",
		Description: "Manage sticky panels",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "setup",
				Description: "Create a sticky panel and start it in a channel",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "A short name for this panel", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "channel", Description: "Channel to pin the panel in", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
					{Name: "title", Description: "Embed title", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "description", Description: "Embed body", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "message", Description: "Plain message text above the embed", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "color", Description: "Embed color, hex like #5865F2 or a name like blue", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "image", Description: "Embed image URL", Type: discordgo.ApplicationCommandOptionString, Required: false},
					{Name: "footer", Description: "Embed footer text", Type: discordgo.ApplicationCommandOptionString, Required: false},
				},
			},
			{
				Name:        "start",
				Description: "Start a panel in a channel",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "id", Description: "The panel ID (see /sticky list)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
					{Name: "channel", Description: "Channel to pin the panel in", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
				},
			},
			{
				Name:        "stop",
				Description: "Stop a panel and remove its message",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "id", Description: "The panel ID", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				},
			},
			{
				Name:        "modes",
				Description: "Set a panel's repost filters",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "id", Description: "The panel ID", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
					{Name: "image_only", Description: "Only repost after messages with attachments", Type: discordgo.ApplicationCommandOptionBoolean, Required: false},
					{Name: "whitelist_member", Description: "Member whose messages never trigger a repost", Type: discordgo.ApplicationCommandOptionUser, Required: false},
					{Name: "clear_whitelist", Description: "Remove the member whitelist", Type: discordgo.ApplicationCommandOptionBoolean, Required: false},
				},
			},
			{
				Name:        "delete",
				Description: "Delete a panel entirely",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "id", Description: "The panel ID", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				},
			},
			{
				Name:        "list",
				Description: "List this server's sticky panels",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

func (c *StickyCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage sticky panels.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "setup":
		c.handleSetup(s, i, sub)
	case "start":
		c.handleStart(s, i, sub)
	case "stop":
		c.handleStop(s, i, sub)
	case "modes":
		c.handleModes(s, i, sub)
	case "delete":
		c.handleDelete(s, i, sub)
	case "list":
		c.handleList(s, i)
	}
}

func (c *StickyCommand) handleSetup(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	p := &Panel{GuildID: i.GuildID}
	var channelID string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "name":
			p.Name = opt.StringValue()
		case "channel":
			channelID = opt.ChannelValue(s).ID
		case "title":
			p.Title = opt.StringValue()
		case "description":
			p.Description = opt.StringValue()
		case "message":
			p.Content = opt.StringValue()
		case "color":
			color, err := ParseColor(opt.StringValue())
			if err != nil {
				utils.RespondEphemeral(s, i, fmt.Sprintf("I do not know the color %q. Use hex like #5865F2 or a name like blue.", opt.StringValue()))
				return
			}
			p.EmbedColor = color
		case "image":
			p.ImageURL = opt.StringValue()
		case "footer":
			p.Footer = opt.StringValue()
		}
	}
	if p.Title == "" && p.Description == "" && p.Content == "" {
		utils.RespondEphemeral(s, i, "A panel needs at least a title, description or message.")
		return
	}
	p.ChannelID = channelID

	if err := c.feature.store.Create(c.feature.ctx, p); err != nil {
		log.Error().Err(err).Msg("sticky: setup failed")
		utils.RespondEphemeral(s, i, "Could not create the panel.")
		return
	}

	key := panelKey{p.GuildID, p.PanelID}
	c.feature.mu.Lock()
	c.feature.panels[key] = p
	c.feature.mu.Unlock()

	if err := c.feature.startPanel(key, channelID); err != nil {
		log.Error().Err(err).Msg("sticky: initial post failed")
		utils.RespondEphemeral(s, i, fmt.Sprintf("Panel **%s** (ID %d) was created but I could not post in <#%s>.", p.Name, p.PanelID, channelID))
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Panel **%s** (ID %d) is now sticky in <#%s>.", p.Name, p.PanelID, channelID))
}

func (c *StickyCommand) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	var id int64
	var channelID string
	for _, opt := range sub.Options {
		switch opt.Name {
		case "id":
			id = opt.IntValue()
		case "channel":
			channelID = opt.ChannelValue(s).ID
		}
	}
	if err := c.feature.startPanel(panelKey{i.GuildID, id}, channelID); err != nil {
		utils.RespondEphemeral(s, i, fmt.Sprintf("Could not start panel %d: it may not exist or I cannot post in <#%s>.", id, channelID))
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Panel %d is now sticky in <#%s>.", id, channelID))
}

func (c *StickyCommand) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	id := sub.Options[0].IntValue()
	if err := c.feature.stopPanel(panelKey{i.GuildID, id}); err != nil {
		utils.RespondEphemeral(s, i, fmt.Sprintf("No panel with ID %d.", id))
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Panel %d stopped.", id))
}

func (c *StickyCommand) handleModes(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	key := panelKey{i.GuildID, 0}
	c.feature.mu.Lock()
	var p *Panel
	for _, opt := range sub.Options {
		if opt.Name == "id" {
			key.panelID = opt.IntValue()
			p = c.feature.panels[key]
		}
	}
	if p == nil {
		c.feature.mu.Unlock()
		utils.RespondEphemeral(s, i, fmt.Sprintf("No panel with ID %d.", key.panelID))
		return
	}
	for _, opt := range sub.Options {
		switch opt.Name {
		case "image_only":
			p.ImageOnly = opt.BoolValue()
		case "whitelist_member":
			p.WhitelistEnabled = true
			p.WhitelistID = opt.UserValue(nil).ID
		case "clear_whitelist":
			if opt.BoolValue() {
				p.WhitelistEnabled = false
				p.WhitelistID = ""
			}
		}
	}
	imageOnly, whitelistEnabled, whitelistID := p.ImageOnly, p.WhitelistEnabled, p.WhitelistID
	c.feature.mu.Unlock()

	if err := c.feature.store.SetModes(c.feature.ctx, key.guildID, key.panelID, imageOnly, whitelistEnabled, whitelistID); err != nil {
		log.Error().Err(err).Msg("sticky: modes update failed")
		utils.RespondEphemeral(s, i, "Could not update the panel modes.")
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Panel %d modes updated.", key.panelID))
}

func (c *StickyCommand) handleDelete(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	id := sub.Options[0].IntValue()
	deleted, err := c.feature.deletePanel(panelKey{i.GuildID, id})
	if err != nil {
		log.Error().Err(err).Msg("sticky: delete failed")
		utils.RespondEphemeral(s, i, "Could not delete the panel.")
		return
	}
	if !deleted {
		utils.RespondEphemeral(s, i, fmt.Sprintf("No panel with ID %d.", id))
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Panel %d deleted.", id))
}

func (c *StickyCommand) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	c.feature.mu.Lock()
	var panels []*Panel
	for key, p := range c.feature.panels {
		if key.guildID == i.GuildID {
			panels = append(panels, p)
		}
	}
	c.feature.mu.Unlock()

	if len(panels) == 0 {
		utils.RespondEphemeral(s, i, "This server has no sticky panels.")
		return
	}
	sort.Slice(panels, func(a, b int) bool { return panels[a].PanelID < panels[b].PanelID })

	var sb strings.Builder
	for _, p := range panels {
		state := "stopped"
		if p.LastMessageID != nil {
			state = fmt.Sprintf("running in <#%s>", p.ChannelID)
		}
		fmt.Fprintf(&sb, "**%d. %s** (%s)\n", p.PanelID, p.Name, state)
	}
	utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       "Sticky panels",
		Description: sb.String(),
		Color:       utils.ColorInfo,
	})
}
