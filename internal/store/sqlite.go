// apps/go-server/internal/store/sqlite.go
//
// SQLite implementation of Backend.
// Responsibilities:
//   - Opening the database file with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying embedded goose migrations.
//   - Record upserts (last write wins), account rows, results + stats, leaderboard.
//
// Timestamps are stored as RFC3339 text.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

// SQLite is a Backend over a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path and
// migrates it. The parent directory is created for relative paths like
// ./data/tankguess.db.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "./data/tankguess.db"
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type sqliteScope struct {
	s        *SQLite
	player   string
	category game.Category
}

func (s *SQLite) Scope(player string, category game.Category) game.RecordStore {
	return &sqliteScope{s: s, player: player, category: category}
}

func (sc *sqliteScope) Get(ctx context.Context, itemID string) (game.Record, bool, error) {
	var (
		r       game.Record
		updated string
	)
	err := sc.s.db.QueryRowContext(ctx, `
        SELECT item_id, guesses_remaining, solved_name, updated_at
        FROM guess_records
        WHERE player_id=? AND category=? AND item_id=?`,
		sc.player, string(sc.category), itemID,
	).Scan(&r.ItemID, &r.GuessesRemaining, &r.SolvedName, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Record{}, false, nil
	}
	if err != nil {
		return game.Record{}, false, err
	}
	r.UpdatedAt = parseTime(updated)
	return r, true, nil
}

func (sc *sqliteScope) Put(ctx context.Context, r game.Record) error {
	_, err := sc.s.db.ExecContext(ctx, `
        INSERT INTO guess_records (player_id, category, item_id, guesses_remaining, solved_name, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(player_id, category, item_id) DO UPDATE SET
            guesses_remaining = excluded.guesses_remaining,
            solved_name       = excluded.solved_name,
            updated_at        = excluded.updated_at`,
		sc.player, string(sc.category), r.ItemID, r.GuessesRemaining, r.SolvedName, formatTime(r.UpdatedAt),
	)
	return err
}

func (s *SQLite) List(ctx context.Context, player string, category game.Category) ([]game.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT item_id, guesses_remaining, solved_name, updated_at
        FROM guess_records
        WHERE player_id=? AND category=?
        ORDER BY item_id ASC`, player, string(category),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []game.Record{}
	for rows.Next() {
		var (
			r       game.Record
			updated string
		)
		if err := rows.Scan(&r.ItemID, &r.GuessesRemaining, &r.SolvedName, &updated); err != nil {
			return nil, err
		}
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) ClaimPlayer(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		q    string
		args []any
	}{
		{`UPDATE OR IGNORE guess_records SET player_id=? WHERE player_id=?`, []any{to, from}},
		{`DELETE FROM guess_records WHERE player_id=?`, []any{from}},
		{`UPDATE round_results SET player_id=? WHERE player_id=?`, []any{to, from}},
		{`INSERT INTO player_stats (player_id, played, wins, streak)
            SELECT ?, played, wins, 0 FROM player_stats WHERE player_id=?
            ON CONFLICT(player_id) DO UPDATE SET
                played = player_stats.played + excluded.played,
                wins   = player_stats.wins + excluded.wins`, []any{to, from}},
		{`DELETE FROM player_stats WHERE player_id=?`, []any{from}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.q, st.args...); err != nil {
			return fmt.Errorf("claim %s -> %s: %w", from, to, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, formatTime(u.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrUsernameTaken
	}
	return err
}

func (s *SQLite) UserByName(ctx context.Context, username string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE lower(username)=lower(?)`, username))
}

func (s *SQLite) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id=?`, id))
}

func (s *SQLite) scanUser(row *sql.Row) (User, error) {
	var (
		u       User
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// InsertResult records a finished round and bumps stats in one transaction.
func (s *SQLite) InsertResult(ctx context.Context, r Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO round_results (player_id, category, item_id, won, guesses_used, date)
        VALUES (?, ?, ?, ?, ?, ?)`,
		r.PlayerID, string(r.Category), r.ItemID, r.Won, r.GuessesUsed, r.Date,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO player_stats (player_id) VALUES (?)`, r.PlayerID); err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}

	st := Stats{PlayerID: r.PlayerID}
	if err := tx.QueryRowContext(ctx,
		`SELECT played, wins, streak FROM player_stats WHERE player_id=?`, r.PlayerID,
	).Scan(&st.Played, &st.Wins, &st.Streak); err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	st = bumpStats(st, r.Won)
	if _, err := tx.ExecContext(ctx,
		`UPDATE player_stats SET played=?, wins=?, streak=? WHERE player_id=?`,
		st.Played, st.Wins, st.Streak, r.PlayerID,
	); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Stats(ctx context.Context, player string) (Stats, error) {
	st := Stats{PlayerID: player}
	err := s.db.QueryRowContext(ctx,
		`SELECT played, wins, streak FROM player_stats WHERE player_id=?`, player,
	).Scan(&st.Played, &st.Wins, &st.Streak)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, err
}

// Leaderboard ranks players for a date by wins, then fewest guesses used.
func (s *SQLite) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.player_id, COALESCE(u.username, ''), SUM(r.won), SUM(r.guesses_used)
        FROM round_results r
        LEFT JOIN users u ON u.id = r.player_id
        WHERE r.date=?
        GROUP BY r.player_id
        ORDER BY SUM(r.won) DESC, SUM(r.guesses_used) ASC, MIN(r.id) ASC
        LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LBRow, 0, limit)
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.PlayerID, &r.Username, &r.Wins, &r.GuessesUsed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses RFC3339 timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
