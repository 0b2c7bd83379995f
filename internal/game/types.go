// apps/go-server/internal/game/types.go
//
// Core type definitions for the guess engine.
// Defines:
//   - Category, Item: the catalog entry being guessed.
//   - Record: per-item persisted progress (attempt budget + solved name).
//   - Status, Action, Transition, Snapshot: round state machine vocabulary.
//   - RecordStore, Scorer, RoundEndNotifier, Observer: collaborator contracts.

package game

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Category selects one of the independent catalogs.
type Category string

const (
	CategoryTank Category = "tank"
	CategoryMap  Category = "map"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryTank, CategoryMap}

// ParseCategory accepts "tank"/"tanks" and "map"/"maps" (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tank", "tanks":
		return CategoryTank, nil
	case "map", "maps":
		return CategoryMap, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Item is one guessable catalog entry. Name is the exact answer.
type Item struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

// Record is the persisted progress for one item.
type Record struct {
	ItemID           string    `json:"itemId"`
	GuessesRemaining int       `json:"guessesRemaining"`
	SolvedName       string    `json:"solvedName,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Solved reports whether the record was closed by a correct guess.
func (r Record) Solved() bool { return r.SolvedName != "" }

// Finished reports whether no further round can be played for the item.
func (r Record) Finished() bool { return r.Solved() || r.GuessesRemaining <= 0 }

// Status is the coarse round state.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	StatusLost   Status = "lost"
)

// Terminal reports whether no action can change the round any more.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

// ActionKind names a user action.
type ActionKind string

const (
	ActionSkip   ActionKind = "skip"
	ActionSubmit ActionKind = "submit"
	ActionSelect ActionKind = "select"
)

// Action is one discrete user input.
type Action struct {
	Kind  ActionKind
	Guess string // submit only
	Index int    // select only
}

func Skip() Action                 { return Action{Kind: ActionSkip} }
func Submit(text string) Action    { return Action{Kind: ActionSubmit, Guess: text} }
func SelectImage(index int) Action { return Action{Kind: ActionSelect, Index: index} }

// WrongGuessPolicy decides what an incorrect submission costs.
type WrongGuessPolicy string

const (
	// PolicyInstantLoss ends the round on the first incorrect submission.
	PolicyInstantLoss WrongGuessPolicy = "instant_loss"
	// PolicySpendAttempt treats an incorrect submission exactly like a skip.
	PolicySpendAttempt WrongGuessPolicy = "spend_attempt"
)

// ParsePolicy maps a config string to a policy. Empty means PolicyInstantLoss.
func ParsePolicy(s string) (WrongGuessPolicy, error) {
	switch WrongGuessPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyInstantLoss:
		return PolicyInstantLoss, nil
	case PolicySpendAttempt:
		return PolicySpendAttempt, nil
	}
	return "", fmt.Errorf("unknown wrong guess policy %q", s)
}

// Transition is the pure result of computing an action against a round.
// It is applied by Round.Commit.
type Transition struct {
	RoundID          string     `json:"roundId"`
	Action           ActionKind `json:"action"`
	RevealIndex      int        `json:"revealIndex"`
	GuessesRemaining int        `json:"guessesRemaining"`
	Status           Status     `json:"status"`
	SolvedName       string     `json:"solvedName,omitempty"`
	InputCleared     bool       `json:"inputCleared"`

	persist bool   // record fields changed
	seq     uint64 // round version the transition was computed against
}

// Snapshot is a read-only view of a round, used for rendering.
type Snapshot struct {
	RoundID          string   `json:"roundId"`
	Category         Category `json:"category,omitempty"`
	ItemID           string   `json:"itemId"`
	Images           []string `json:"images"`
	RevealIndex      int      `json:"revealIndex"`
	MaxSelectable    int      `json:"maxSelectable"`
	GuessesRemaining int      `json:"guessesRemaining"`
	Status           Status   `json:"status"`
	SolvedName       string   `json:"solvedName,omitempty"`
}

// RecordStore persists Records for one catalog, keyed by item id.
// Implementations must survive a process restart to be useful outside tests.
type RecordStore interface {
	// Get returns the record for itemID; ok is false when none exists.
	Get(ctx context.Context, itemID string) (rec Record, ok bool, err error)
	// Put writes r (last write wins).
	Put(ctx context.Context, r Record) error
}

// Scorer is called exactly once per won round.
type Scorer interface {
	AwardPoint()
}

// RoundEndNotifier is told when a round becomes won or lost.
type RoundEndNotifier interface {
	OnRoundEnd(item Item, status Status)
}

// Observer receives every committed snapshot.
type Observer interface {
	Observe(s Snapshot)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func()

func (f ScorerFunc) AwardPoint() { f() }

// RoundEndFunc adapts a function to RoundEndNotifier.
type RoundEndFunc func(item Item, status Status)

func (f RoundEndFunc) OnRoundEnd(item Item, status Status) { f(item, status) }

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }
