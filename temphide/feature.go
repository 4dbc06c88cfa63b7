package temphide

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dopamine-bot/bot"
	"dopamine-bot/cache"
	"dopamine-bot/config"
	"dopamine-bot/database"
	"dopamine-bot/reconcile"
	"dopamine-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	customIDPrefix  = "temphide:reveal:"
	cooldownTTL     = time.Minute
	cleanupInterval = 5 * time.Minute
	maxWords        = 1000
)

// Feature posts ROT13-hidden messages that only their author can reveal.
type Feature struct {
	pool   *database.Pool
	store  *Store
	runner *reconcile.Runner

	cooldowns *cache.TTL[string, struct{}]

	ctx context.Context
}

func New() (*Feature, error) {
	db := config.DatabaseFor("temphide")
	pool, err := database.Open(db.Path, db.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("opening temphide database: %w", err)
	}
	return &Feature{
		pool:      pool,
		store:     NewStore(pool),
		runner:    reconcile.NewRunner(),
		cooldowns: cache.NewTTL[string, struct{}](cooldownTTL),
		ctx:       context.Background(),
	}, nil
}

func (f *Feature) Name() string { return "temphide" }

func (f *Feature) Commands() []bot.Command {
	return []bot.Command{&HideCommand{feature: f}}
}

func (f *Feature) Register(s *discordgo.Session) {}

func (f *Feature) Start(ctx context.Context) error {
	f.ctx = ctx
	if err := f.store.Init(ctx); err != nil {
		return err
	}
	if err := f.runner.Add("temphide-cooldown-cleanup", cleanupInterval, func() error {
		f.cooldowns.EvictExpired(time.Now())
		return nil
	}); err != nil {
		return err
	}
	f.runner.Start()
	return nil
}

func (f *Feature) Stop() {
	f.runner.Stop()
	f.pool.Close()
}

// Matches reports whether a component custom ID belongs to this feature.
func (f *Feature) Matches(customID string) bool {
	return strings.HasPrefix(customID, customIDPrefix)
}

// HandleComponent reveals the hidden message when its author presses the
// button. The row is dropped even when the message itself is already gone.
func (f *Feature) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	messageID := strings.TrimPrefix(i.MessageComponentData().CustomID, customIDPrefix)

	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}

	hidden, err := f.store.Get(f.ctx, messageID)
	if err != nil {
		log.Error().Err(err).Msg("temphide: lookup failed")
		utils.RespondEphemeral(s, i, "Something went wrong revealing the message.")
		return
	}
	if hidden == nil {
		utils.RespondEphemeral(s, i, "This message was already revealed.")
		return
	}
	if hidden.UserID != userID {
		utils.RespondEphemeral(s, i, "Only the author can reveal this message.")
		return
	}

	content := hidden.Text
	_, err = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    i.ChannelID,
		ID:         messageID,
		Content:    &content,
		Components: &[]discordgo.MessageComponent{},
	})
	if err != nil && !utils.IsNotFound(err) {
		log.Error().Err(err).Msg("temphide: reveal edit failed")
		utils.RespondEphemeral(s, i, "Could not edit the message.")
		return
	}

	if err := f.store.Delete(f.ctx, messageID); err != nil {
		log.Error().Err(err).Msg("temphide: row cleanup failed")
	}
	utils.RespondEphemeral(s, i, "Message revealed.")
}

// HideCommand defines the /temphide command.
type HideCommand struct {
	feature *Feature
}

func (c *HideCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "temphide",
		Description: "Post a scrambled message only you can reveal",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "text",
				Description: "The message to hide",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
		},
	}
}

func (c *HideCommand) Handler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}

	if _, onCooldown := c.feature.cooldowns.Get(userID); onCooldown {
		utils.RespondEphemeral(s, i, "You just hid a message, wait a minute before the next one.")
		return
	}

	text := i.ApplicationCommandData().Options[0].StringValue()
	if len(strings.Fields(text)) > maxWords {
		utils.RespondEphemeral(s, i, fmt.Sprintf("Hidden messages are limited to %d words.", maxWords))
		return
	}

	sent, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Content: ROT13(text),
	})
	if err != nil {
		log.Error().Err(err).Msg("temphide: post failed")
		utils.RespondEphemeral(s, i, "Could not post the hidden message.")
		return
	}

	// Attach the button now that the message ID is known.
	_, err = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: i.ChannelID,
		ID:      sent.ID,
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Reveal",
						Style:    discordgo.SecondaryButton,
						CustomID: customIDPrefix + sent.ID,
					},
				},
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("temphide: button attach failed")
	}

	if err := c.feature.store.Put(c.feature.ctx, sent.ID, userID, text); err != nil {
		log.Error().Err(err).Msg("temphide: store failed")
		utils.RespondEphemeral(s, i, "Could not store the hidden message.")
		return
	}
	c.feature.cooldowns.Put(userID, struct{}{})
	utils.RespondEphemeral(s, i, "Your hidden message is posted.")
}
