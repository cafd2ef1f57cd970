package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"CHAT_PROXY_URL",
		"CHAT_SOCKET_URL",
		"CHAT_COMMUNITY_TAG",
		"CHAT_COMMUNITY_TITLE",
		"CHAT_USERNAME",
		"CHAT_ACCESS_TOKEN",
		"CHAT_POLL_INTERVAL",
		"CHAT_RECONNECT_BASE",
		"CHAT_RECONNECT_CAP",
		"CHAT_RECONNECT_CEILING",
		"CHAT_REPROMOTE_PUSH",
		"CHAT_REPROMOTE_AFTER",
		"CHAT_STATE_PATH",
		"ENVIRONMENT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// --- Load: defaults ---

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://ecency.com/api/mattermost", cfg.ProxyBaseURL)
	assert.Equal(t, "wss://ecency.com/api/mattermost/ws", cfg.SocketURL)
	assert.Equal(t, "hive-178315", cfg.CommunityTag)
	assert.Equal(t, "Snapie", cfg.CommunityTitle)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.ReconnectBase)
	assert.Equal(t, 30*time.Second, cfg.ReconnectCap)
	assert.Equal(t, 3, cfg.ReconnectCeiling)
	assert.False(t, cfg.RepromotePush)
	assert.Equal(t, 12, cfg.RepromoteAfter)
	assert.Equal(t, "development", cfg.Environment)
	assert.Contains(t, cfg.StatePath, ".snapie-chat")
}

func TestLoad_Overrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_PROXY_URL", "https://proxy.test/api")
	t.Setenv("CHAT_SOCKET_URL", "ws://proxy.test/ws")
	t.Setenv("CHAT_COMMUNITY_TAG", "hive-999")
	t.Setenv("CHAT_POLL_INTERVAL", "2s")
	t.Setenv("CHAT_RECONNECT_CEILING", "5")
	t.Setenv("CHAT_REPROMOTE_PUSH", "true")
	t.Setenv("CHAT_STATE_PATH", "/tmp/chat-state.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.test/api", cfg.ProxyBaseURL)
	assert.Equal(t, "ws://proxy.test/ws", cfg.SocketURL)
	assert.Equal(t, "hive-999", cfg.CommunityTag)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.ReconnectCeiling)
	assert.True(t, cfg.RepromotePush)
	assert.Equal(t, "/tmp/chat-state.db", cfg.StatePath)
}

// --- Load: validation failures ---

func TestLoad_SocketURLMustBeWebSocket(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_SOCKET_URL", "https://proxy.test/ws")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws or wss")
}

// validConfig returns a Config that passes validation; tests blank out one
// field at a time. The empty-field cases go through validate() directly
// because env applies envDefault even to a variable set to "".
func validConfig() *Config {
	return &Config{
		ProxyBaseURL:     "https://proxy.test/api",
		SocketURL:        "wss://proxy.test/ws",
		CommunityTag:     "hive-178315",
		PollInterval:     5 * time.Second,
		ReconnectBase:    time.Second,
		ReconnectCap:     30 * time.Second,
		ReconnectCeiling: 3,
		RepromoteAfter:   12,
	}
}

func TestValidate_EmptyProxyURL(t *testing.T) {
	cfg := validConfig()
	cfg.ProxyBaseURL = ""

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_PROXY_URL")
}

func TestValidate_EmptyCommunityTag(t *testing.T) {
	cfg := validConfig()
	cfg.CommunityTag = ""

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_COMMUNITY_TAG")
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	require.NoError(t, validConfig().validate())
}

func TestLoad_NonPositivePollInterval(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_POLL_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_POLL_INTERVAL")
}

func TestLoad_BackoffWindowInverted(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_RECONNECT_BASE", "10s")
	t.Setenv("CHAT_RECONNECT_CAP", "1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoff window")
}

func TestLoad_CeilingBelowOne(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_RECONNECT_CEILING", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_RECONNECT_CEILING")
}

func TestLoad_RepromoteAfterRequiredWhenEnabled(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_REPROMOTE_PUSH", "true")
	t.Setenv("CHAT_REPROMOTE_AFTER", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_REPROMOTE_AFTER")
}

func TestLoad_RepromoteAfterIgnoredWhenDisabled(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CHAT_REPROMOTE_PUSH", "false")
	t.Setenv("CHAT_REPROMOTE_AFTER", "0")

	_, err := Load()
	require.NoError(t, err)
}
