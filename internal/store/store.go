// apps/go-server/internal/store/store.go
//
// Persistence contracts shared by every backend.
// Responsibilities:
//   - Backend: the full record set (all players, both catalogs), accounts,
//     finished-round results, per-player stats and the daily leaderboard.
//   - Scope(): narrows a Backend to the game.RecordStore one round uses.
//   - Open(): picks memory / sqlite / postgres from configuration.
//
// Records are keyed by (player, category, item id) and follow last-write-wins.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username taken")
)

// User is an account row.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Result is one finished round.
type Result struct {
	PlayerID    string        `json:"playerId"`
	Category    game.Category `json:"category"`
	ItemID      string        `json:"itemId"`
	Won         bool          `json:"won"`
	GuessesUsed int           `json:"guessesUsed"`
	Date        string        `json:"date"` // YYYY-MM-DD, UTC
}

// Stats are the lifetime counters of a player.
type Stats struct {
	PlayerID string `json:"playerId"`
	Played   int    `json:"played"`
	Wins     int    `json:"wins"`
	Streak   int    `json:"streak"`
}

// LBRow is one leaderboard line.
type LBRow struct {
	PlayerID    string `json:"playerId"`
	Username    string `json:"username,omitempty"`
	Wins        int    `json:"wins"`
	GuessesUsed int    `json:"guessesUsed"`
}

// Backend is implemented by Memory, SQLite and Postgres.
type Backend interface {
	// Scope returns the record store for one player's catalog.
	Scope(player string, category game.Category) game.RecordStore
	// List returns every record of a player's catalog ordered by item id.
	List(ctx context.Context, player string, category game.Category) ([]game.Record, error)
	// ClaimPlayer moves records, results and stats from one player id to
	// another. Records already owned by the target win on conflict.
	ClaimPlayer(ctx context.Context, from, to string) error

	CreateUser(ctx context.Context, u User) error
	UserByName(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	// InsertResult stores r and bumps the player's stats.
	InsertResult(ctx context.Context, r Result) error
	Stats(ctx context.Context, player string) (Stats, error)
	Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error)

	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresURL string
}

// Open returns the backend named by opts.Driver (sqlite when empty).
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case "", DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

// bumpStats applies one finished round to s, the way the daily stats work:
// a win extends the streak, a loss resets it.
func bumpStats(s Stats, won bool) Stats {
	s.Played++
	if won {
		s.Wins++
		s.Streak++
	} else {
		s.Streak = 0
	}
	return s
}
