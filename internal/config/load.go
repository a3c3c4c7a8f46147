package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("storage.backend", "csv")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.seed_from_template", true)

	// Значения по умолчанию из настроек исходного приложения
	v.SetDefault("study.window_size", 30)
	v.SetDefault("study.srs_capacity", 5)
	v.SetDefault("study.known_threshold", 5)
	v.SetDefault("study.known_delta", 3)
	v.SetDefault("study.direction", "foreign_to_english")
	v.SetDefault("study.language", "Spanish")

	v.SetDefault("sessions.idle_timeout", "30m")
	v.SetDefault("sessions.sweep_interval", "5m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.choice_options", 4)
}

// Load builds the configuration. configPath may be empty; a missing .env
// file is not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("WORDWINDOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("telegram.token", "WORDWINDOW_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("error binding environment variable: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
