package notes

import (
	"fmt"
	"strings"

	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// NoteCommand defines the /note command and its subcommands. The name option
// on fetch and delete autocompletes against the user's own notes.
type NoteCommand struct {
	feature *Feature
}

func (c *NoteCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "note",
		Description: "Keep personal named notes",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "save",
				Description: "Create or update a note",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "The note's name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "content", Description: "The note's content", Type: discordgo.ApplicationCommandOptionString, Required: true},
				},
			},
			{
				Name:        "fetch",
				Description: "Read one of your notes",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "The note's name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				},
			},
			{
				Name:        "list",
				Description: "List your notes",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "delete",
				Description: "Delete one of your notes",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "The note's name", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				},
			},
		},
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (c *NoteCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	sub := i.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "save":
		var name, content string
		for _, opt := range sub.Options {
			switch opt.Name {
			case "name":
				name = strings.TrimSpace(opt.StringValue())
			case "content":
				content = opt.StringValue()
			}
		}
		if name == "" {
			utils.RespondEphemeral(s, i, "A note needs a name.")
			return
		}
		if err := c.feature.store.Save(c.feature.ctx, userID, name, content); err != nil {
			log.Error().Err(err).Msg("notes: save failed")
			utils.RespondEphemeral(s, i, "Could not save the note.")
			return
		}
		utils.RespondEphemeral(s, i, fmt.Sprintf("Note **%s** saved.", name))

	case "fetch":
		name := sub.Options[0].StringValue()
		note, err := c.feature.store.Get(c.feature.ctx, userID, name)
		if err != nil {
			log.Error().Err(err).Msg("notes: fetch failed")
			utils.RespondEphemeral(s, i, "Could not load the note.")
			return
		}
		if note == nil {
			utils.RespondEphemeral(s, i, fmt.Sprintf("You have no note named **%s**.", name))
			return
		}
		utils.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Title:       note.Name,
			Description: note.Content,
			Color:       utils.ColorInfo,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Last updated " + note.UpdatedAt},
		})

	case "list":
		names, err := c.feature.store.List(c.feature.ctx, userID, "")
		if err != nil {
			log.Error().Err(err).Msg("notes: list failed")
			utils.RespondEphemeral(s, i, "Could not list your notes.")
			return
		}
		if len(names) == 0 {
			utils.RespondEphemeral(s, i, "You have no notes yet.")
			return
		}
		utils.RespondEphemeral(s, i, "Your notes: "+strings.Join(names, ", "))

	case "delete":
		name := sub.Options[0].StringValue()
		deleted, err := c.feature.store.Delete(c.feature.ctx, userID, name)
		if err != nil {
			log.Error().Err(err).Msg("notes: delete failed")
			utils.RespondEphemeral(s, i, "Could not delete the note.")
			return
		}
		if !deleted {
			utils.RespondEphemeral(s, i, fmt.Sprintf("You have no note named **%s**.", name))
			return
		}
		utils.RespondEphemeral(s, i, fmt.Sprintf("Note **%s** deleted.", name))
	}
}

// Autocomplete serves name suggestions for fetch and delete.
func (c *NoteCommand) Autocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	sub := i.ApplicationCommandData().Options[0]

	var prefix string
	for _, opt := range sub.Options {
		if opt.Name == "name" && opt.Focused {
			prefix = opt.StringValue()
		}
	}

	names, err := c.feature.store.List(c.feature.ctx, userID, prefix)
	if err != nil {
		log.Error().Err(err).Msg("notes: autocomplete failed")
		return
	}
	const limit = 25
	if len(names) > limit {
		names = names[:limit]
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(names))
	for _, name := range names {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		log.Error().Err(err).Msg("notes: autocomplete respond failed")
	}
}
