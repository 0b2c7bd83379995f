// apps/go-server/internal/score/tally.go
//
// Scoring collaborator for play screens.
// Responsibilities:
//   - Count points for the current session (AwardPoint, once per won round).
//   - Persist one result row per finished round and bump player stats
//     (best effort: failures are logged, the round is already committed).

package score

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/daily"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

// ResultStore receives finished rounds. store.Backend satisfies it.
type ResultStore interface {
	InsertResult(ctx context.Context, r store.Result) error
}

// Tally is a per-session score counter.
type Tally struct {
	mu       sync.Mutex
	points   int
	rounds   int
	player   string
	category game.Category
	results  ResultStore // optional
	now      func() time.Time
}

// NewTally returns a counter for player's session in category. results may be nil.
func NewTally(player string, category game.Category, results ResultStore) *Tally {
	return &Tally{player: player, category: category, results: results, now: time.Now}
}

// WithNow sets the clock used to date results.
func (t *Tally) WithNow(now func() time.Time) *Tally {
	if now != nil {
		t.now = now
	}
	return t
}

// AwardPoint implements game.Scorer.
func (t *Tally) AwardPoint() {
	t.mu.Lock()
	t.points++
	t.mu.Unlock()
}

// Points returns the points earned in this session.
func (t *Tally) Points() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.points
}

// Rounds returns the number of finished rounds recorded in this session.
func (t *Tally) Rounds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rounds
}

// RecordRound stores the outcome of a finished round. guessesUsed is the
// number of attempts spent before the round ended.
func (t *Tally) RecordRound(ctx context.Context, item game.Item, status game.Status, guessesUsed int) {
	t.mu.Lock()
	t.rounds++
	t.mu.Unlock()

	if t.results == nil {
		return
	}
	r := store.Result{
		PlayerID:    t.player,
		Category:    t.category,
		ItemID:      item.ID,
		Won:         status == game.StatusWon,
		GuessesUsed: guessesUsed,
		Date:        daily.DateKey(t.now()),
	}
	if err := t.results.InsertResult(ctx, r); err != nil {
		log.Warn().Err(err).Str("player", t.player).Str("item", item.ID).Msg("record round result")
	}
}
