package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	JWTSecret              string `env:"JWT_SECRET,required"`
	GoogleClientID         string `env:"GOOGLE_CLIENT_ID"`
	SMSAPIKey              string `env:"SMS_API_KEY"`
	SMSAPIURL              string `env:"SMS_API_URL" envDefault:"https://www.fast2sms.com/dev/bulkV2"`
	DetectorBaseURL        string `env:"DETECTOR_BASE_URL" envDefault:"http://localhost:8000"`
	DetectorTimeoutSeconds int    `env:"DETECTOR_TIMEOUT_SECONDS" envDefault:"30"`
	StaleSessionHours      int    `env:"STALE_SESSION_HOURS" envDefault:"24"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.DetectorTimeoutSeconds) * time.Second
}

func (c *Config) StaleSessionAge() time.Duration {
	return time.Duration(c.StaleSessionHours) * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if c.GoogleClientID == "" {
			log.Warn().Msg("GOOGLE_CLIENT_ID is empty in production: identity token audience will not be checked")
		}
		if c.SMSAPIKey == "" {
			log.Warn().Msg("SMS_API_KEY is empty in production: SOS relay will fail")
		}
	}
	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
