package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process-level configuration. Runtime-tunable settings
// (reserved names, captcha secret, invite requirement) are seeded from here
// into the settings store on first boot and edited through the admin API
// afterwards.
type Config struct {
	Addr            string        `env:"PROVISIO_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RedisURL string `env:"REDIS_URL"`

	SessionSigningKey string        `env:"SESSION_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// Directory endpoints default to the Microsoft Graph shape but stay
	// configurable so tests and alternative deployments can point elsewhere.
	DirectoryBaseURL  string `env:"DIRECTORY_BASE_URL" envDefault:"https://graph.microsoft.com/v1.0"`
	DirectoryLoginURL string `env:"DIRECTORY_LOGIN_URL" envDefault:"https://login.microsoftonline.com"`
	DirectoryScope    string `env:"DIRECTORY_SCOPE" envDefault:"https://graph.microsoft.com/.default"`

	CaptchaSecret    string `env:"CAPTCHA_SECRET"`
	CaptchaSiteKey   string `env:"CAPTCHA_SITE_KEY"`
	CaptchaVerifyURL string `env:"CAPTCHA_VERIFY_URL" envDefault:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`

	RequireInvite bool   `env:"REQUIRE_INVITE" envDefault:"false"`
	UsageLocation string `env:"USAGE_LOCATION" envDefault:"CN"`

	ReservedNames     []string `env:"RESERVED_NAMES" envSeparator:","`
	ReservedAddresses []string `env:"RESERVED_ADDRESSES" envSeparator:","`
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
