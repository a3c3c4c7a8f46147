// Package config loads application settings from defaults, an optional
// YAML file, a .env file and WORDWINDOW_* environment variables.
package config

import (
	"time"

	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/spaced_repetition"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Study    StudyConfig    `mapstructure:"study" validate:"required"`
	Sessions SessionsConfig `mapstructure:"sessions" validate:"required"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// StorageConfig selects where pools are kept
type StorageConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=csv sqlite postgres badger"`
	DataDir     string `mapstructure:"data_dir" validate:"required"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	// SeedFromTemplate copies Template_<language> to learners without a pool
	SeedFromTemplate bool `mapstructure:"seed_from_template"`
}

// StudyConfig holds the default study parameters. The window may be
// narrower than the stock 30 words, down to a single word.
type StudyConfig struct {
	WindowSize     int    `mapstructure:"window_size" validate:"gte=1,lte=50"`
	SRSCapacity    int    `mapstructure:"srs_capacity" validate:"gte=1,lte=15"`
	KnownThreshold int    `mapstructure:"known_threshold" validate:"gte=1,lte=20"`
	KnownDelta     int    `mapstructure:"known_delta" validate:"gte=0,lte=10"`
	Direction      string `mapstructure:"direction" validate:"oneof=foreign_to_english english_to_foreign"`
	Language       string `mapstructure:"language" validate:"oneof=Spanish French Arabic Japanese Mandarin Hieroglyphic TokiPona"`
}

// SessionsConfig controls eviction of idle sessions
type SessionsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// TelegramConfig contains the chat front end settings
type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Token         string `mapstructure:"token" validate:"required_if=Enabled true"`
	ChoiceOptions int    `mapstructure:"choice_options" validate:"gte=2,lte=8"`
}

// Settings converts the study section into session settings
func (c StudyConfig) Settings() session.Settings {
	return session.Settings{
		WindowSize:     c.WindowSize,
		SRSCapacity:    c.SRSCapacity,
		KnownThreshold: c.KnownThreshold,
		KnownDelta:     c.KnownDelta,
		Direction:      spaced_repetition.Direction(c.Direction),
	}
}
