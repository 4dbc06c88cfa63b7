package main

import (
	"dopamine-bot/alerts"
	"dopamine-bot/bot"
	"dopamine-bot/config"
	"dopamine-bot/handlers"
	"dopamine-bot/haiku"
	"dopamine-bot/notes"
	"dopamine-bot/scheduled"
	"dopamine-bot/starboard"
	"dopamine-bot/sticky"
	"dopamine-bot/temphide"
	"dopamine-bot/tracker"
	"dopamine-bot/welcome"

	"github.com/rs/zerolog/log"
)

func main() {
	// Features read their database paths from the config during
	// construction, so the config must be loaded first.
	config.Load()
	features := buildFeatures()
	bot.Run(handlers.Register, features)
}

// buildFeatures constructs every subsystem. A feature that cannot open its
// storage is fatal at startup rather than silently absent.
func buildFeatures() []bot.Feature {
	type constructor struct {
		name string
		make func() (bot.Feature, error)
	}
	constructors := []constructor{
		{"alerts", func() (bot.Feature, error) { return alerts.New() }},
		{"scheduled", func() (bot.Feature, error) { return scheduled.New() }},
		{"sticky", func() (bot.Feature, error) { return sticky.New() }},
		{"starboard", func() (bot.Feature, error) { return starboard.New() }},
		{"haiku", func() (bot.Feature, error) { return haiku.New() }},
		{"tracker", func() (bot.Feature, error) { return tracker.New() }},
		{"notes", func() (bot.Feature, error) { return notes.New() }},
		{"temphide", func() (bot.Feature, error) { return temphide.New() }},
		{"welcome", func() (bot.Feature, error) { return welcome.New() }},
	}

	features := make([]bot.Feature, 0, len(constructors))
	for _, c := range constructors {
		f, err := c.make()
		if err != nil {
			log.Fatal().Str("feature", c.name).Err(err).Msg("feature construction failed")
		}
		features = append(features, f)
	}
	return features
}
