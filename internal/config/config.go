// apps/go-server/internal/config/config.go
//
// Environment configuration for the tankguess server and CLI.
// Responsibilities:
//   - Read every setting from the environment (after .env is loaded by the
//     CLI root) with the defaults used in development.
//   - Configure the global zerolog logger (level + console/json output).
//
// Notes:
//   - Invalid numeric or duration values fall back to the default with a
//     warning; an unknown wrong-guess policy or store driver is an error.

package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

const (
	DefaultPort         = "5175"
	DefaultClientOrigin = "http://localhost:5173"
	DefaultJWTSecret    = "dev_secret_change_me"
	DefaultCookieName   = "tankguess_token"
	DefaultDailySalt    = "tankguess_daily"
)

// Config is the full runtime configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // "console" | "json"

	StoreDriver  string
	DatabasePath string
	PostgresURL  string

	ClientOrigin   string
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	Production     bool

	SettleDelay time.Duration
	Policy      game.WrongGuessPolicy
	DailySalt   string
	ScreenIdle  time.Duration // evict play screens untouched this long

	CatalogTanksFile string
	CatalogMapsFile  string

	ActionRate  float64 // actions per second per player, 0 disables limiting
	ActionBurst int
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	c := Config{
		Port:      getEnv("PORT", DefaultPort),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreDriver:  strings.ToLower(getEnv("STORE_DRIVER", store.DriverSQLite)),
		DatabasePath: getEnv("DATABASE_PATH", "./data/tankguess.db"),
		PostgresURL:  os.Getenv("POSTGRES_URL"),

		ClientOrigin:   getEnv("CLIENT_ORIGIN", DefaultClientOrigin),
		JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTExpiresDays: envInt("JWT_EXPIRES_DAYS", 14),
		CookieName:     getEnv("COOKIE_NAME", DefaultCookieName),
		Production:     os.Getenv("NODE_ENV") == "production",

		SettleDelay: envDuration("SETTLE_DELAY", 600*time.Millisecond),
		DailySalt:   getEnv("DAILY_SALT", DefaultDailySalt),
		ScreenIdle:  envDuration("SCREEN_IDLE_TTL", 30*time.Minute),

		CatalogTanksFile: os.Getenv("CATALOG_TANKS_FILE"),
		CatalogMapsFile:  os.Getenv("CATALOG_MAPS_FILE"),

		ActionRate:  envFloat("ACTION_RATE", 5),
		ActionBurst: envInt("ACTION_BURST", 10),
	}

	p, err := game.ParsePolicy(os.Getenv("WRONG_GUESS_POLICY"))
	if err != nil {
		return c, err
	}
	c.Policy = p

	switch c.StoreDriver {
	case store.DriverMemory, store.DriverSQLite:
	case store.DriverPostgres:
		if c.PostgresURL == "" {
			return c, fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_URL")
		}
	default:
		return c, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Production && c.JWTSecret == DefaultJWTSecret {
		log.Warn().Msg("JWT_SECRET is the development default")
	}
	return c, nil
}

// StoreOptions converts the store settings for store.Open.
func (c Config) StoreOptions() store.Options {
	return store.Options{Driver: c.StoreDriver, SQLitePath: c.DatabasePath, PostgresURL: c.PostgresURL}
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// SetupLogger configures the global zerolog logger.
func SetupLogger(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("invalid number, using default")
	}
	return def
}

// envDuration accepts Go durations ("600ms") or a bare number of milliseconds.
func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	log.Warn().Str("key", k).Str("value", v).Msg("invalid duration, using default")
	return def
}
