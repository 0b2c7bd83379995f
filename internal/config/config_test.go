// apps/go-server/internal/config/config_test.go
//
// Tests for environment configuration and logger setup.

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "STORE_DRIVER", "DATABASE_PATH", "POSTGRES_URL",
	"CLIENT_ORIGIN", "JWT_SECRET", "JWT_EXPIRES_DAYS", "COOKIE_NAME", "NODE_ENV",
	"SETTLE_DELAY", "WRONG_GUESS_POLICY", "DAILY_SALT", "CATALOG_TANKS_FILE",
	"CATALOG_MAPS_FILE", "ACTION_RATE", "ACTION_BURST",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5175", c.Addr())
	assert.Equal(t, store.DriverSQLite, c.StoreDriver)
	assert.Equal(t, "./data/tankguess.db", c.DatabasePath)
	assert.Equal(t, 600*time.Millisecond, c.SettleDelay)
	assert.Equal(t, 30*time.Minute, c.ScreenIdle)
	assert.Equal(t, game.PolicyInstantLoss, c.Policy)
	assert.Equal(t, 14, c.JWTExpiresDays)
	assert.Equal(t, DefaultCookieName, c.CookieName)
	assert.Equal(t, 5.0, c.ActionRate)
	assert.False(t, c.Production)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("SETTLE_DELAY", "250")
	t.Setenv("WRONG_GUESS_POLICY", "spend_attempt")
	t.Setenv("JWT_EXPIRES_DAYS", "nope")
	t.Setenv("NODE_ENV", "production")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr())
	assert.Equal(t, store.DriverMemory, c.StoreOptions().Driver)
	assert.Equal(t, 250*time.Millisecond, c.SettleDelay)
	assert.Equal(t, game.PolicySpendAttempt, c.Policy)
	assert.Equal(t, 14, c.JWTExpiresDays)
	assert.True(t, c.Production)

	t.Setenv("SETTLE_DELAY", "1s")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.SettleDelay)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad policy", map[string]string{"WRONG_GUESS_POLICY": "forgive"}},
		{"bad driver", map[string]string{"STORE_DRIVER": "redis"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	prev := log.Logger
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	var buf bytes.Buffer
	SetupLogger("warn", "json", &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	buf.Reset()
	SetupLogger("bogus", "console", &buf)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	log.Info().Msg("pretty")
	assert.Contains(t, buf.String(), "pretty")
}
