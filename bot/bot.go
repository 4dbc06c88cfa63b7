package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dopamine-bot/config"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Command defines the interface for a slash command.
type Command interface {
	Definition() *discordgo.ApplicationCommand
	Handler(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// Autocompleter is implemented by commands that serve autocomplete queries.
type Autocompleter interface {
	Autocomplete(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// ComponentHandler is implemented by features that respond to message
// component interactions. Matches reports whether the custom ID belongs to
// the feature.
type ComponentHandler interface {
	Matches(customID string) bool
	HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// Feature is a long-running bot subsystem. Register attaches gateway event
// handlers before the session opens; Start launches background loops after
// the session is ready.
type Feature interface {
	Name() string
	Commands() []Command
	Register(s *discordgo.Session)
	Start(ctx context.Context) error
	Stop()
}

// Bot encapsulates the bot's state.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]Command
	Features []Feature

	cancel context.CancelFunc
}

// NewBot creates and initializes a new Bot instance.
func NewBot() (*Bot, error) {
	config.Load()
	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	return &Bot{
		Session:  dg,
		Commands: make(map[string]Command),
	}, nil
}

// AddFeatures registers the features and their slash commands.
func (b *Bot) AddFeatures(features []Feature) {
	for _, f := range features {
		b.Features = append(b.Features, f)
		for _, cmd := range f.Commands() {
			b.Commands[cmd.Definition().Name] = cmd
		}
	}
}

// Component finds the feature that owns a component custom ID, if any.
func (b *Bot) Component(customID string) (ComponentHandler, bool) {
	for _, f := range b.Features {
		if h, ok := f.(ComponentHandler); ok && h.Matches(customID) {
			return h, true
		}
	}
	return nil, false
}

// Start opens the bot's session, registers handlers and slash commands, and
// launches every feature's background loops.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)
	for _, f := range b.Features {
		f.Register(b.Session)
	}

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	for _, cmd := range b.Commands {
		_, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd.Definition())
		if err != nil {
			log.Error().Str("command", cmd.Definition().Name).Err(err).Msg("cannot create command")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	for _, f := range b.Features {
		if err := f.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("starting feature %s: %w", f.Name(), err)
		}
		log.Info().Str("feature", f.Name()).Msg("feature started")
	}

	log.Info().Msg("bot is now running, press CTRL-C to exit")
	return nil
}

// Stop gracefully shuts down the bot. The session closes before any feature
// stops so that no gateway handler can deliver an event into a feature that
// has already torn down its queues.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.Session != nil {
		b.Session.Close()
	}
	// Stop in reverse start order so dependents go first.
	for i := len(b.Features) - 1; i >= 0; i-- {
		b.Features[i].Stop()
	}
	log.Info().Msg("bot stopped gracefully")
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), features []Feature) {
	bot, err := NewBot()
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing bot")
	}

	bot.AddFeatures(features)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatal().Err(err).Msg("error starting bot")
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
