package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "techlib.db", cfg.Database.Path)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Storage.AutoCreate)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadBytes())
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL())
	assert.Empty(t, cfg.Auth.AdminEmails)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Equal(t, 600, cfg.Server.UploadTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("PUBLIC_URL", "https://books.example.com/")
	t.Setenv("ADMIN_EMAILS", " admin@example.com, ,root@example.com")
	t.Setenv("STORAGE_AUTO_CREATE", "false")
	t.Setenv("SIGNIN_RPS", "0.5")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("TRUST_PROXY", "true")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://books.example.com", cfg.Server.PublicURL)
	assert.Equal(t, []string{"admin@example.com", "root@example.com"}, cfg.Auth.AdminEmails)
	assert.False(t, cfg.Storage.AutoCreate)
	assert.InDelta(t, 0.5, cfg.Auth.SignInRPS, 1e-9)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Server.TrustProxy)
}
