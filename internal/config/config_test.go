package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("GROUP_ID", "-1001")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("DB_DSN", "postgres://localhost/relay")
}

func TestLoadFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_JWT_SECRET", "jwt")
	t.Setenv("RELAY_BACKOFF", "250ms")

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, int64(-1001), cfg.GroupID)
	assert.Equal(t, int64(42), cfg.OwnerID)
	assert.Equal(t, "jwt", cfg.Admin.JWTSecret)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.Backoff)
}

func TestDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, ":9527", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Second, cfg.Relay.Backoff)
	assert.Equal(t, 2*time.Minute, cfg.Relay.RateLimitCap)
	assert.Equal(t, 500*time.Millisecond, cfg.Album.PollInterval)
	assert.Equal(t, 3, cfg.Album.StablePolls)
	assert.Equal(t, 30*time.Second, cfg.Album.MaxWait)
	assert.Equal(t, 5*time.Minute, cfg.Edit.Timeout)
	assert.Equal(t, 25.0, cfg.API.RPS)
	assert.False(t, cfg.AdminEnabled())
}

func TestMissingRequiredKeys(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("GROUP_ID", "")
	t.Setenv("OWNER_ID", "")
	t.Setenv("DB_DSN", "")

	_, err := Load(New(), "", "")
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "bot_token, group_id, owner_id, db_dsn")
}

func TestConfigFileAndEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(file, []byte("bot_token: from-file\ngroup_id: -5\nowner_id: 9\ndb_dsn: x\nalbum:\n  stable_polls: 5\n"), 0o600))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WEBHOOK_URL=https://relay.example.com/webhook\n"), 0o600))
	t.Setenv("WEBHOOK_URL", "")
	os.Unsetenv("WEBHOOK_URL")

	cfg, err := Load(New(), file, envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.BotToken)
	assert.Equal(t, 5, cfg.Album.StablePolls)
	assert.Equal(t, "https://relay.example.com/webhook", cfg.WebhookURL)
}

func TestMissingEnvFileIsFine(t *testing.T) {
	setRequired(t)
	_, err := Load(New(), "", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
