// apps/go-server/internal/game/engine.go
//
// Guess engine for a single round.
// Responsibilities:
//   - Start a round from an item and its persisted record (fresh or resumed).
//   - Compute transitions for skip / submit / selectImage without side effects.
//   - Commit transitions: write the record through the store, then notify
//     the scorer (on win), the observer and the round-end notifier.
//
// Notes:
//   - The engine is synchronous and delay-free. Any settle delay between
//     Compute and Commit is owned by the caller (see internal/session).
//   - A Round is not safe for concurrent use; callers serialize actions.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Deps bundles the collaborators of a round. Store is required.
type Deps struct {
	Store    RecordStore
	Scorer   Scorer
	OnEnd    RoundEndNotifier
	Observer Observer
	Policy   WrongGuessPolicy
	Now      func() time.Time
}

// Round owns the attempt budget and reveal index for the item being guessed.
type Round struct {
	id         string
	item       Item
	deps       Deps
	reveal     int
	remaining  int
	status     Status
	solvedName string
	seq        uint64
}

// Start opens a round for item. A missing record starts fresh at
// (revealIndex 0, budget len(images)); an unfinished record resumes with its
// budget on the first image, the spent images still selectable. Finished
// records are refused.
func Start(ctx context.Context, item Item, deps Deps) (*Round, error) {
	if item.ID == "" {
		return nil, ErrNoActiveRound
	}
	if len(item.Images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidItem, item.ID)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("start round %s: nil record store", item.ID)
	}
	if deps.Policy == "" {
		deps.Policy = PolicyInstantLoss
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	n := len(item.Images)
	r := &Round{
		id:        uuid.NewString(),
		item:      item,
		deps:      deps,
		remaining: n,
		status:    StatusActive,
	}

	rec, ok, err := deps.Store.Get(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", item.ID, err)
	}
	if ok {
		if rec.Finished() {
			return nil, fmt.Errorf("%w: %s", ErrItemFinished, item.ID)
		}
		r.remaining = clamp(rec.GuessesRemaining, 1, n)
	}
	return r, nil
}

// ID returns the round identifier.
func (r *Round) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// Item returns the item being guessed.
func (r *Round) Item() Item {
	if r == nil {
		return Item{}
	}
	return r.item
}

// Status returns the current round status.
func (r *Round) Status() Status {
	if r == nil {
		return ""
	}
	return r.status
}

// Snapshot returns the current state for rendering.
func (r *Round) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		RoundID:          r.id,
		ItemID:           r.item.ID,
		Images:           r.item.Images,
		RevealIndex:      r.reveal,
		MaxSelectable:    r.maxSelectable(),
		GuessesRemaining: r.remaining,
		Status:           r.status,
		SolvedName:       r.solvedName,
	}
}

// Compute evaluates a against the current state without mutating anything.
func (r *Round) Compute(a Action) (Transition, error) {
	if r == nil || r.item.ID == "" {
		return Transition{}, ErrNoActiveRound
	}
	if r.status.Terminal() {
		return Transition{}, ErrRoundOver
	}

	t := Transition{
		RoundID:          r.id,
		Action:           a.Kind,
		RevealIndex:      r.reveal,
		GuessesRemaining: r.remaining,
		Status:           r.status,
		seq:              r.seq,
	}

	switch a.Kind {
	case ActionSelect:
		if a.Index < 0 || a.Index > r.maxSelectable() {
			return Transition{}, fmt.Errorf("%w: %d", ErrInvalidIndex, a.Index)
		}
		t.RevealIndex = a.Index
		return t, nil

	case ActionSkip:
		r.spend(&t)
		return t, nil

	case ActionSubmit:
		if a.Guess == "" {
			return Transition{}, ErrEmptyGuess
		}
		t.InputCleared = true
		if a.Guess == r.item.Name {
			t.Status = StatusWon
			t.SolvedName = a.Guess
			t.persist = true
			return t, nil
		}
		if r.deps.Policy == PolicySpendAttempt {
			r.spend(&t)
			return t, nil
		}
		t.GuessesRemaining = 0
		t.Status = StatusLost
		t.persist = true
		return t, nil
	}
	return Transition{}, fmt.Errorf("unknown action %q", a.Kind)
}

// spend applies one skip to t: the next image is revealed if there is one and
// one attempt is used. Dropping below 1 loses the round.
func (r *Round) spend(t *Transition) {
	n := len(r.item.Images)
	if t.RevealIndex < n-1 {
		t.RevealIndex++
	}
	t.GuessesRemaining = clamp(t.GuessesRemaining-1, 0, n)
	if t.GuessesRemaining < 1 {
		t.Status = StatusLost
	}
	t.persist = true
}

// Commit applies t. The record is written before any observer is notified; a
// store failure leaves the round unchanged and is returned to the caller.
func (r *Round) Commit(ctx context.Context, t Transition) error {
	if r == nil || r.item.ID == "" {
		return ErrNoActiveRound
	}
	if r.status.Terminal() {
		return ErrRoundOver
	}
	if t.RoundID != r.id || t.seq != r.seq {
		return ErrStaleTransition
	}

	if t.persist {
		rec := Record{
			ItemID:           r.item.ID,
			GuessesRemaining: t.GuessesRemaining,
			SolvedName:       t.SolvedName,
			UpdatedAt:        r.deps.Now().UTC(),
		}
		if err := r.deps.Store.Put(ctx, rec); err != nil {
			return fmt.Errorf("persist record %s: %w", r.item.ID, err)
		}
	}

	r.reveal = clamp(t.RevealIndex, 0, len(r.item.Images)-1)
	r.remaining = clamp(t.GuessesRemaining, 0, len(r.item.Images))
	r.status = t.Status
	r.solvedName = t.SolvedName
	r.seq++

	if r.status == StatusWon && r.deps.Scorer != nil {
		r.deps.Scorer.AwardPoint()
	}
	if r.deps.Observer != nil {
		r.deps.Observer.Observe(r.Snapshot())
	}
	if r.status.Terminal() && r.deps.OnEnd != nil {
		r.deps.OnEnd.OnRoundEnd(r.item, r.status)
	}
	return nil
}

// Apply computes and commits a in one step.
func (r *Round) Apply(ctx context.Context, a Action) (Transition, error) {
	t, err := r.Compute(a)
	if err != nil {
		return Transition{}, err
	}
	if err := r.Commit(ctx, t); err != nil {
		return Transition{}, err
	}
	return t, nil
}

// maxSelectable is the highest image index the player may look at: one more
// image unlocks for every attempt spent.
func (r *Round) maxSelectable() int {
	n := len(r.item.Images)
	return clamp(n-r.remaining, 0, n-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
