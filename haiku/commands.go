package haiku

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// HaikuCommand defines the /haiku command and its subcommands.
type HaikuCommand struct {
	feature *Feature
}

func (c *HaikuCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "haiku",
		Description: "Manage haiku detection",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "enable",
				Description: "Watch a channel for accidental haikus",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "channel", Description: "Channel to watch", Type: discordgo.ApplicationCommandOptionChannel, Required: true},
				},
			},
			{
				Name:        "disable",
				Description: "Stop watching for haikus in this server",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "word_add",
				Description: "Add or correct syllable counts (developers only)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "entries", Description: "Space-separated word:count pairs, e.g. \"queue:1 poem:2\"", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
			{
				Name:        "word_count",
				Description: "How many words are in the syllable table",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "word_list",
				Description: "Show a slice of the syllable table (developers only)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "prefix", Description: "Only words starting with this prefix", Type: discordgo.ApplicationCommandOptionString, Required: false},
				},
			},
		},
	}
}

func (c *HaikuCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "enable":
		c.handleEnable(s, i, sub)
	case "disable":
		c.handleDisable(s, i)
	case "word_add":
		c.handleWordAdd(s, i, sub)
	case "word_count":
		c.handleWordCount(s, i)
	case "word_list":
		c.handleWordList(s, i, sub)
	}
}

func (c *HaikuCommand) handleEnable(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage haiku detection.")
		return
	}
	channelID := sub.Options[0].ChannelValue(s).ID
	if err := c.feature.settings.Enable(c.feature.ctx, i.GuildID, channelID); err != nil {
		log.Error().Err(err).Msg("haiku: enable failed")
		utils.RespondEphemeral(s, i, "Could not enable haiku detection.")
		return
	}
	if err := c.feature.refreshChannels(c.feature.ctx); err != nil {
		log.Error().Err(err).Msg("haiku: channel refresh failed")
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Watching <#%s> for haikus.", channelID))
}

func (c *HaikuCommand) handleDisable(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !utils.ModCheck(i) {
		utils.RespondEphemeral(s, i, "You need moderator permissions to manage haiku detection.")
		return
	}
	if err := c.feature.settings.Disable(c.feature.ctx, i.GuildID); err != nil {
		log.Error().Err(err).Msg("haiku: disable failed")
		utils.RespondEphemeral(s, i, "Could not disable haiku detection.")
		return
	}
	if err := c.feature.refreshChannels(c.feature.ctx); err != nil {
		log.Error().Err(err).Msg("haiku: channel refresh failed")
	}
	utils.RespondEphemeral(s, i, "Haiku detection disabled.")
}

func (c *HaikuCommand) handleWordAdd(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !isDev(i) {
		utils.RespondEphemeral(s, i, "Only bot developers can edit the syllable table.")
		return
	}

	entries := make(map[string]int)
	for _, pair := range strings.Fields(sub.Options[0].StringValue()) {
		word, countText, ok := strings.Cut(pair, ":")
		if !ok {
			utils.RespondEphemeral(s, i, fmt.Sprintf("Bad entry %q, expected word:count.", pair))
			return
		}
		count, err := strconv.Atoi(countText)
		if err != nil || count < 1 {
			utils.RespondEphemeral(s, i, fmt.Sprintf("Bad syllable count in %q.", pair))
			return
		}
		entries[strings.ToLower(word)] = count
	}
	if len(entries) == 0 {
		utils.RespondEphemeral(s, i, "No entries given.")
		return
	}

	if err := c.feature.words.Upsert(c.feature.ctx, entries); err != nil {
		log.Error().Err(err).Msg("haiku: word upsert failed")
		utils.RespondEphemeral(s, i, "Could not save the words.")
		return
	}
	if err := c.feature.reloadWords(c.feature.ctx); err != nil {
		log.Error().Err(err).Msg("haiku: word reload failed")
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("Saved %d word(s).", len(entries)))
}

func (c *HaikuCommand) handleWordCount(s *discordgo.Session, i *discordgo.InteractionCreate) {
	count, err := c.feature.words.Count(c.feature.ctx)
	if err != nil {
		log.Error().Err(err).Msg("haiku: word count failed")
		utils.RespondEphemeral(s, i, "Could not count the words.")
		return
	}
	utils.RespondEphemeral(s, i, fmt.Sprintf("The syllable table has %d words.", count))
}

func (c *HaikuCommand) handleWordList(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !isDev(i) {
		utils.RespondEphemeral(s, i, "Only bot developers can list the syllable table.")
		return
	}
	var prefix string
	if len(sub.Options) > 0 {
		prefix = strings.ToLower(sub.Options[0].StringValue())
	}

	words, err := c.feature.words.All(c.feature.ctx)
	if err != nil {
		log.Error().Err(err).Msg("haiku: word list failed")
		utils.RespondEphemeral(s, i, "Could not list the words.")
		return
	}

	var names []string
	for word := range words {
		if strings.HasPrefix(word, prefix) {
			names = append(names, word)
		}
	}
	sort.Strings(names)
	const limit = 50
	if len(names) > limit {
		names = names[:limit]
	}
	if len(names) == 0 {
		utils.RespondEphemeral(s, i, "No matching words.")
		return
	}

	var sb strings.Builder
	for _, word := range names {
		fmt.Fprintf(&sb, "%s: %d\n", word, words[word])
	}
	utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
		Title:       "Syllable table",
		Description: sb.String(),
		Color:       utils.ColorInfo,
	})
}

func isDev(i *discordgo.InteractionCreate) bool {
	if i.Member != nil && i.Member.User != nil {
		return utils.IsDeveloper(i.Member.User.ID)
	}
	if i.User != nil {
		return utils.IsDeveloper(i.User.ID)
	}
	return false
}
