package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.ChatHistoryLimit)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("PING_INTERVAL", "5s")
	t.Setenv("ALLOWED_ORIGINS", "localhost:*,example.com")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"PORT":               "70000",
		"OUTBOX_SIZE":        "0",
		"CHAT_HISTORY_LIMIT": "-1",
		"WRITE_TIMEOUT":      "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Parse()
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nPORT=4000\n"), 0o600))
	// godotenv never overrides variables that are already set
	t.Setenv("PORT", "5000")
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5000, cfg.Port)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}
