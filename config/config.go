// Package config provides application configuration loading.
package config

import (
	"errors"
	"log"

	"github.com/spf13/viper"
)

// Config holds settings loaded from config file or environment.
type Config struct {
	Port   int    `mapstructure:"PORT"`
	DBPath string `mapstructure:"DB_PATH"`

	// Digest scheduling. DigestAt is a cron expression in local time;
	// the default fires once daily at 18:00.
	DigestEnabled bool   `mapstructure:"DIGEST_ENABLED"`
	DigestAt      string `mapstructure:"DIGEST_AT"`
	DigestWorkers int    `mapstructure:"DIGEST_WORKERS"`

	// Mail relay. With an empty host, messages are logged instead of
	// sent (dev mode).
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

// Load reads configuration from config.yml and the environment.
func Load() *Config {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &notFoundErr) {
			log.Println("Config file not found; using environment variables and defaults")
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_PATH", "absence.db")
	viper.SetDefault("DIGEST_ENABLED", true)
	viper.SetDefault("DIGEST_AT", "0 18 * * *")
	viper.SetDefault("DIGEST_WORKERS", 4)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_FROM", "no-reply@college.example")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config into struct, %v", err)
	}
	return &cfg
}
