// apps/go-server/internal/store/postgres.go
//
// Postgres implementation of Backend on a pgx pool.
// Unique violations (23505) on users map to ErrUsernameTaken.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

// Postgres is a Backend over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres migrates the database at connString and opens a pool on it.
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	if connString == "" {
		return nil, errors.New("postgres: empty connection string")
	}

	migrationDB, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open migration db: %w", err)
	}
	if err := migrate(ctx, migrationDB, goose.DialectPostgres, "migrations/postgres"); err != nil {
		_ = migrationDB.Close()
		return nil, err
	}
	if err := migrationDB.Close(); err != nil {
		return nil, fmt.Errorf("close migration db: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type pgScope struct {
	p        *Postgres
	player   string
	category game.Category
}

func (p *Postgres) Scope(player string, category game.Category) game.RecordStore {
	return &pgScope{p: p, player: player, category: category}
}

func (sc *pgScope) Get(ctx context.Context, itemID string) (game.Record, bool, error) {
	var r game.Record
	err := sc.p.pool.QueryRow(ctx, `
        SELECT item_id, guesses_remaining, solved_name, updated_at
        FROM guess_records
        WHERE player_id=$1 AND category=$2 AND item_id=$3`,
		sc.player, string(sc.category), itemID,
	).Scan(&r.ItemID, &r.GuessesRemaining, &r.SolvedName, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Record{}, false, nil
	}
	if err != nil {
		return game.Record{}, false, err
	}
	return r, true, nil
}

func (sc *pgScope) Put(ctx context.Context, r game.Record) error {
	_, err := sc.p.pool.Exec(ctx, `
        INSERT INTO guess_records (player_id, category, item_id, guesses_remaining, solved_name, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (player_id, category, item_id) DO UPDATE SET
            guesses_remaining = EXCLUDED.guesses_remaining,
            solved_name       = EXCLUDED.solved_name,
            updated_at        = EXCLUDED.updated_at`,
		sc.player, string(sc.category), r.ItemID, r.GuessesRemaining, r.SolvedName, r.UpdatedAt.UTC(),
	)
	return err
}

func (p *Postgres) List(ctx context.Context, player string, category game.Category) ([]game.Record, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT item_id, guesses_remaining, solved_name, updated_at
        FROM guess_records
        WHERE player_id=$1 AND category=$2
        ORDER BY item_id ASC`, player, string(category),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []game.Record{}
	for rows.Next() {
		var r game.Record
		if err := rows.Scan(&r.ItemID, &r.GuessesRemaining, &r.SolvedName, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) ClaimPlayer(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO guess_records (player_id, category, item_id, guesses_remaining, solved_name, updated_at)
            SELECT $1, category, item_id, guesses_remaining, solved_name, updated_at
            FROM guess_records WHERE player_id=$2
            ON CONFLICT (player_id, category, item_id) DO NOTHING`, []any{to, from}},
		{`DELETE FROM guess_records WHERE player_id=$1`, []any{from}},
		{`UPDATE round_results SET player_id=$1 WHERE player_id=$2`, []any{to, from}},
		{`INSERT INTO player_stats (player_id, played, wins, streak)
            SELECT $1, played, wins, 0 FROM player_stats WHERE player_id=$2
            ON CONFLICT (player_id) DO UPDATE SET
                played = player_stats.played + EXCLUDED.played,
                wins   = player_stats.wins + EXCLUDED.wins`, []any{to, from}},
		{`DELETE FROM player_stats WHERE player_id=$1`, []any{from}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.q, st.args...); err != nil {
			return fmt.Errorf("claim %s -> %s: %w", from, to, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) CreateUser(ctx context.Context, u User) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.UTC(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUsernameTaken
	}
	return err
}

func (p *Postgres) UserByName(ctx context.Context, username string) (User, error) {
	return scanPgUser(p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE lower(username)=lower($1)`, username))
}

func (p *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	return scanPgUser(p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id=$1`, id))
}

func scanPgUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (p *Postgres) InsertResult(ctx context.Context, r Result) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        INSERT INTO round_results (player_id, category, item_id, won, guesses_used, date)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		r.PlayerID, string(r.Category), r.ItemID, r.Won, r.GuessesUsed, r.Date,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	st := Stats{PlayerID: r.PlayerID}
	err = tx.QueryRow(ctx, `
        INSERT INTO player_stats (player_id) VALUES ($1)
        ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
        RETURNING played, wins, streak`, r.PlayerID,
	).Scan(&st.Played, &st.Wins, &st.Streak)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	st = bumpStats(st, r.Won)
	if _, err := tx.Exec(ctx,
		`UPDATE player_stats SET played=$1, wins=$2, streak=$3 WHERE player_id=$4`,
		st.Played, st.Wins, st.Streak, r.PlayerID,
	); err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Stats(ctx context.Context, player string) (Stats, error) {
	st := Stats{PlayerID: player}
	err := p.pool.QueryRow(ctx,
		`SELECT played, wins, streak FROM player_stats WHERE player_id=$1`, player,
	).Scan(&st.Played, &st.Wins, &st.Streak)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	return st, err
}

func (p *Postgres) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, `
        SELECT r.player_id, COALESCE(MAX(u.username), ''),
               COUNT(*) FILTER (WHERE r.won)::int, SUM(r.guesses_used)::int
        FROM round_results r
        LEFT JOIN users u ON u.id = r.player_id
        WHERE r.date=$1
        GROUP BY r.player_id
        ORDER BY 3 DESC, 4 ASC, MIN(r.id) ASC
        LIMIT $2`, date, limit,
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
