package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the chat client.
type Config struct {
	// Chat proxy endpoints. The proxy wraps a Mattermost-style API and
	// handles session minting; this client only holds the resulting cookie.
	ProxyBaseURL string `env:"CHAT_PROXY_URL" envDefault:"https://ecency.com/api/mattermost"`
	SocketURL    string `env:"CHAT_SOCKET_URL" envDefault:"wss://ecency.com/api/mattermost/ws"`

	// Community channel discovery. The tag is matched against channel
	// names, the title against display names.
	CommunityTag   string `env:"CHAT_COMMUNITY_TAG" envDefault:"hive-178315"`
	CommunityTitle string `env:"CHAT_COMMUNITY_TITLE" envDefault:"Snapie"`

	// Identity used for bootstrap. The access token is the signed proof
	// produced externally; it is never persisted.
	Username    string `env:"CHAT_USERNAME"`
	AccessToken string `env:"CHAT_ACCESS_TOKEN"`

	// Pull feed interval once the push transport has been given up on.
	PollInterval time.Duration `env:"CHAT_POLL_INTERVAL" envDefault:"5s"`

	// Push reconnect policy: delay = min(base * 2^attempt, cap), giving
	// up after Ceiling failed attempts and degrading to polling.
	ReconnectBase    time.Duration `env:"CHAT_RECONNECT_BASE" envDefault:"1s"`
	ReconnectCap     time.Duration `env:"CHAT_RECONNECT_CAP" envDefault:"30s"`
	ReconnectCeiling int           `env:"CHAT_RECONNECT_CEILING" envDefault:"3"`

	// Whether the pull feed may retry the push transport on its own, and
	// after how many poll ticks. Off by default: once degraded, the
	// session stays on polling until the channel is re-selected.
	RepromotePush  bool `env:"CHAT_REPROMOTE_PUSH" envDefault:"false"`
	RepromoteAfter int  `env:"CHAT_REPROMOTE_AFTER" envDefault:"12"`

	// Local cache for channel metadata and read cursors. Defaults to
	// ~/.snapie-chat/state.db. Messages are never stored here.
	StatePath string `env:"CHAT_STATE_PATH"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory for state path: %w", err)
		}

		cfg.StatePath = filepath.Join(home, ".snapie-chat", "state.db")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProxyBaseURL == "" {
		return fmt.Errorf("CHAT_PROXY_URL must not be empty")
	}

	if _, err := url.Parse(c.ProxyBaseURL); err != nil {
		return fmt.Errorf("CHAT_PROXY_URL %q is not a valid URL: %w", c.ProxyBaseURL, err)
	}

	u, err := url.Parse(c.SocketURL)
	if err != nil || c.SocketURL == "" {
		return fmt.Errorf("CHAT_SOCKET_URL %q is not a valid URL", c.SocketURL)
	}

	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("CHAT_SOCKET_URL must use ws or wss, got %q", u.Scheme)
	}

	if c.CommunityTag == "" {
		return fmt.Errorf("CHAT_COMMUNITY_TAG must not be empty")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("CHAT_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	if c.ReconnectBase <= 0 || c.ReconnectCap < c.ReconnectBase {
		return fmt.Errorf("reconnect backoff window %s..%s is invalid", c.ReconnectBase, c.ReconnectCap)
	}

	if c.ReconnectCeiling < 1 {
		return fmt.Errorf("CHAT_RECONNECT_CEILING must be at least 1, got %d", c.ReconnectCeiling)
	}

	if c.RepromotePush && c.RepromoteAfter < 1 {
		return fmt.Errorf("CHAT_REPROMOTE_AFTER must be at least 1 when repromotion is enabled")
	}

	return nil
}
