package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Database describes one feature's SQLite file and pool sizing.
type Database struct {
	Path     string `mapstructure:"path"`
	PoolSize int    `mapstructure:"pool_size"`
}

var loadOnce sync.Once

// Load reads configuration from a .env file, config.yaml and environment
// variables. Environment variables override same-named file settings.
// Idempotent; later calls are no-ops so both main and the bot constructor
// can call it.
func Load() {
	loadOnce.Do(load)
}

func load() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, skipping")
	}

	viper.SetConfigName("config") // config file name (no extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Info().Msg("config.yaml not found, using environment variables and defaults")
		} else {
			panic(fmt.Errorf("fatal error reading config file: %w", err))
		}
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("data.dir", "data")

	viper.SetDefault("starboard.emoji", "⭐")
	viper.SetDefault("starboard.writeQueueSize", 256)
	viper.SetDefault("haiku.workers", 5)
	viper.SetDefault("haiku.queueSize", 512)
}

// DatabaseFor resolves the database settings for a feature, falling back to
// <data.dir>/<feature>.db with a pool of five connections. Overrides live
// under databases.<feature> and are decoded with mapstructure, since viper
// hands back untyped maps for nested sections.
func DatabaseFor(feature string) Database {
	db := Database{
		Path:     filepath.Join(viper.GetString("data.dir"), feature+".db"),
		PoolSize: 5,
	}

	raw := viper.Get("databases." + feature)
	if raw == nil {
		return db
	}
	if err := mapstructure.Decode(raw, &db); err != nil {
		log.Warn().Str("feature", feature).Err(err).Msg("could not decode database config, using defaults")
	}
	if db.PoolSize < 1 {
		db.PoolSize = 5
	}
	return db
}
