package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultInviteTTLHours = 7 * 24

type InviteConfig struct {
	// TokenHashPolicy is "sha256" (plain digest) or "hmac" (keyed digest).
	// The policy is a deployment contract: it must not silently vary, and
	// the keyed variant refuses to start without a secret.
	TokenHashPolicy string `mapstructure:"token_hash_policy"`
	TokenHashSecret string `mapstructure:"token_hash_secret"`
	TTLHours        int    `mapstructure:"ttl_hours"`
}

// TTL converts the configured lifetime into a duration.
func (c InviteConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type Config struct {
	DatabaseURL string       `mapstructure:"database_url"`
	ServerPort  string       `mapstructure:"server_port"`
	JWTSecret   string       `mapstructure:"jwt_secret"`
	BaseURL     string       `mapstructure:"base_url"`
	Invite      InviteConfig `mapstructure:"invite"`
}

// Load reads the configuration from a YAML file, with AGENCYHUB_* environment
// variables taking precedence, and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("AGENCYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when the environment supplies everything.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:3000"
	}
	if config.Invite.TokenHashPolicy == "" {
		config.Invite.TokenHashPolicy = "sha256"
	}
	if config.Invite.TTLHours == 0 {
		config.Invite.TTLHours = defaultInviteTTLHours
	}
}

// Validate enforces the configuration contracts that must fail at startup
// rather than surface as runtime behavior.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be set")
	}

	switch c.Invite.TokenHashPolicy {
	case "sha256":
	case "hmac":
		if c.Invite.TokenHashSecret == "" {
			return errors.New("invite.token_hash_secret must be set when invite.token_hash_policy is hmac")
		}
	default:
		return errors.Errorf("invite.token_hash_policy must be sha256 or hmac, got %q", c.Invite.TokenHashPolicy)
	}

	if c.Invite.TTLHours < 0 {
		return errors.New("invite.ttl_hours must be positive")
	}

	return nil
}
