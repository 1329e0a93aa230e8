package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the daemon configuration, read from agenthub.toml plus
// AGENTHUB_* environment overrides.
type Settings struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	SharedSecret      string        `mapstructure:"shared_secret"`
	LogLevel          string        `mapstructure:"log_level"`
	CatalogCacheTTL   time.Duration `mapstructure:"catalog_cache_ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	TicketTTL         time.Duration `mapstructure:"ticket_ttl"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// Heartbeat floor: subscribers below this would spend more time on
// liveness frames than on events.
const minHeartbeatInterval = 5 * time.Second

// LoadSettings reads daemon settings for the given paths. A missing
// settings file yields defaults; a malformed one is an error.
func LoadSettings(paths *Paths) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(paths.SettingsFile())
	v.SetConfigType("toml")

	v.SetDefault("listen_addr", "127.0.0.1:7850")
	// Declared so env-only overrides are visible to Unmarshal.
	v.SetDefault("shared_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("catalog_cache_ttl", "5m")
	v.SetDefault("heartbeat_interval", "15s")
	v.SetDefault("ticket_ttl", "30s")
	v.SetDefault("allowed_origins", []string{"http://localhost", "http://127.0.0.1"})

	v.SetEnvPrefix("AGENTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(paths.SettingsFile()); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if s.HeartbeatInterval < minHeartbeatInterval {
		s.HeartbeatInterval = minHeartbeatInterval
	}
	if s.TicketTTL <= 0 {
		s.TicketTTL = 30 * time.Second
	}

	return &s, nil
}

// ValidateForServe checks settings the daemon cannot run without.
func (s *Settings) ValidateForServe() error {
	if s.SharedSecret == "" {
		return fmt.Errorf("shared_secret is not configured: set it in agenthub.toml or AGENTHUB_SHARED_SECRET")
	}
	return nil
}
