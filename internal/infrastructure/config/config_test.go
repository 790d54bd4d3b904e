package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/arca-scheduler/internal/infrastructure/crypto"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://backend.arca.dk", cfg.ArcaBaseURL)
	assert.Equal(t, 13, cfg.MaxDaysAhead)
	assert.Equal(t, 2, cfg.UserConcurrency)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, time.Duration(0), cfg.PollInterval)
	assert.Equal(t, "Europe/Copenhagen", cfg.Zone.String())
	assert.Equal(t, crypto.DeriveKey("s3cret"), cfg.CredKey)
	assert.Nil(t, cfg.TriggerKey)
	assert.False(t, cfg.Production())
}

func TestFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_RejectsBlankSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "   ")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestFromEnv_PostgresNeedsURL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "x")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestFromEnv_TriggerKey(t *testing.T) {
	t.Setenv("SESSION_SECRET", "x")
	t.Setenv("STORE_DRIVER", "sqlite")
	key := []byte(strings.Repeat("k", 32))
	t.Setenv("TRIGGER_HASH_KEY", base64.StdEncoding.EncodeToString(key))
	t.Setenv("APP_ENV", "Production")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, key, cfg.TriggerKey)
	assert.True(t, cfg.Production())

	t.Setenv("TRIGGER_HASH_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_BadZone(t *testing.T) {
	t.Setenv("SESSION_SECRET", "x")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("REFERENCE_TZ", "Mars/Olympus")

	_, err := FromEnv()
	assert.Error(t, err)
}
