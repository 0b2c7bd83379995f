// apps/go-server/internal/session/screen.go
//
// Play screen: the caller-owned half of a round.
// Responsibilities:
//   - Pick the item to play (explicit id, next unfinished, or today's featured).
//   - Serialize actions on the active round behind one mutex.
//   - Own the settle delay between a submit's Compute and its Commit, with a
//     reentrancy guard and a round-generation check on the timer callback.
//   - Record finished rounds through the score tally and advance to the next
//     unfinished item when the round was started in "next" mode.
//   - Publish state and round_end events for subscribers.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/daily"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/score"
)

// ErrSettling is returned while a submitted guess waits for its commit.
var ErrSettling = errors.New("previous guess is still settling")

// DailyItem is the Start argument that selects today's featured item.
const DailyItem = "daily"

// DefaultSettleDelay is the pause between a submit and its commit.
const DefaultSettleDelay = 600 * time.Millisecond

// settleTimeout bounds the store write done from the timer goroutine.
const settleTimeout = 5 * time.Second

// Key identifies a screen.
type Key struct {
	Player   string
	Category game.Category
}

// EventKind names a published event.
type EventKind string

const (
	EventState    EventKind = "state"
	EventRoundEnd EventKind = "round_end"
	EventError    EventKind = "error"
)

// Event is what a screen publishes after every change.
type Event struct {
	Kind  EventKind `json:"kind"`
	View  View      `json:"view"`
	End   *RoundEnd `json:"end,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Publisher fans events out to subscribers. Publish must not block.
type Publisher interface {
	Publish(key Key, ev Event)
}

// RoundEnd describes the last finished or cancelled round. Answer stays
// empty for a cancelled round since its item can still be played.
type RoundEnd struct {
	ItemID      string      `json:"itemId"`
	Answer      string      `json:"answer"`
	Status      game.Status `json:"status"`
	Cancelled   bool        `json:"cancelled,omitempty"`
	GuessesUsed int         `json:"guessesUsed"`
}

// View is the state a client renders.
type View struct {
	Category  game.Category    `json:"category"`
	Round     *game.Snapshot   `json:"round,omitempty"`
	Settling  bool             `json:"settling"`
	Pending   *game.Transition `json:"pending,omitempty"`
	Points    int              `json:"points"`
	Exhausted bool             `json:"exhausted"`
	LastEnded *RoundEnd        `json:"lastEnded,omitempty"`
}

// Config wires a screen to its collaborators. Catalog and Store are required.
type Config struct {
	Player      string
	Category    game.Category
	Catalog     *catalog.Catalog
	Store       game.RecordStore
	Tally       *score.Tally
	Publisher   Publisher
	Policy      game.WrongGuessPolicy
	SettleDelay time.Duration
	Clock       Clock
	DailySalt   string
}

type startMode int

const (
	modeItem startMode = iota
	modeNext
	modeDaily
)

// Screen owns at most one active round for a player and category.
type Screen struct {
	mu  sync.Mutex
	cfg Config

	round     *game.Round
	mode      startMode
	gen       uint64 // bumped whenever the active round is replaced or dropped
	settling  bool
	pending   *game.Transition
	timer     Timer
	exhausted bool
	lastEnded *RoundEnd
}

// NewScreen returns an idle screen.
func NewScreen(cfg Config) *Screen {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Tally == nil {
		cfg.Tally = score.NewTally(cfg.Player, cfg.Category, nil)
	}
	if cfg.Category == "" && cfg.Catalog != nil {
		cfg.Category = cfg.Catalog.Category()
	}
	return &Screen{cfg: cfg}
}

// Start opens a round, replacing any active one. itemID selects the item;
// "" picks the next unfinished item in catalog order and DailyItem picks
// today's featured item.
func (s *Screen) Start(ctx context.Context, itemID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := modeItem
	var (
		item game.Item
		err  error
	)
	switch itemID {
	case "":
		mode = modeNext
		item, err = s.nextUnfinishedLocked(ctx)
	case DailyItem:
		mode = modeDaily
		item = s.dailyItem()
	default:
		item, err = s.cfg.Catalog.Item(itemID)
	}
	if err != nil {
		if errors.Is(err, game.ErrCatalogExhausted) {
			s.dropRoundLocked()
			s.exhausted = true
			s.publishLocked(EventState, nil)
		}
		return s.viewLocked(), err
	}

	if err := s.openLocked(ctx, item, mode); err != nil {
		return s.viewLocked(), err
	}
	s.publishLocked(EventState, nil)
	return s.viewLocked(), nil
}

// Skip reveals the next image and spends one attempt.
func (s *Screen) Skip(ctx context.Context) (View, error) {
	return s.applyNow(ctx, game.Skip())
}

// SelectImage shows an already unlocked image.
func (s *Screen) SelectImage(ctx context.Context, index int) (View, error) {
	return s.applyNow(ctx, game.SelectImage(index))
}

// Submit computes the guess and commits it after the settle delay. The
// returned view carries the pending transition.
func (s *Screen) Submit(ctx context.Context, guess string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == nil {
		return s.viewLocked(), game.ErrNoActiveRound
	}
	if s.settling {
		return s.viewLocked(), ErrSettling
	}
	t, err := s.round.Compute(game.Submit(guess))
	if err != nil {
		return s.viewLocked(), err
	}

	if s.cfg.SettleDelay <= 0 {
		if err := s.commitLocked(ctx, t); err != nil {
			return s.viewLocked(), err
		}
		return s.viewLocked(), nil
	}

	gen := s.gen
	s.settling = true
	s.pending = &t
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.SettleDelay, func() { s.settle(gen, t) })
	s.publishLocked(EventState, nil)
	return s.viewLocked(), nil
}

// Cancel gives up the active round without writing its record.
func (s *Screen) Cancel(_ context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == nil {
		return s.viewLocked(), game.ErrNoActiveRound
	}
	item := s.round.Item()
	snap := s.round.Snapshot()
	s.dropRoundLocked()
	if snap.Status.Terminal() {
		s.publishLocked(EventState, nil)
		return s.viewLocked(), nil
	}
	s.lastEnded = &RoundEnd{
		ItemID:      item.ID,
		Status:      snap.Status,
		Cancelled:   true,
		GuessesUsed: len(item.Images) - snap.GuessesRemaining,
	}
	log.Debug().Str("player", s.cfg.Player).Str("item", item.ID).Msg("round cancelled")
	s.publishLocked(EventRoundEnd, s.lastEnded)
	return s.viewLocked(), nil
}

// State returns the current view.
func (s *Screen) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close stops a pending settle timer. The pending transition is dropped.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropRoundLocked()
}

func (s *Screen) applyNow(ctx context.Context, a game.Action) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == nil {
		return s.viewLocked(), game.ErrNoActiveRound
	}
	if s.settling {
		return s.viewLocked(), ErrSettling
	}
	t, err := s.round.Compute(a)
	if err != nil {
		return s.viewLocked(), err
	}
	if err := s.commitLocked(ctx, t); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// settle runs on the timer goroutine. The guard armed for gen is cleared in
// every case; the transition is committed only if gen is still the active
// round, otherwise it is dropped without a write.
func (s *Screen) settle(gen uint64, t game.Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		log.Debug().Str("player", s.cfg.Player).Str("round", t.RoundID).Msg("settle dropped: round replaced")
		return
	}
	s.settling = false
	s.pending = nil
	s.timer = nil
	if s.round == nil || s.round.Status().Terminal() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := s.commitLocked(ctx, t); err != nil {
		log.Error().Err(err).Str("player", s.cfg.Player).Str("round", t.RoundID).Msg("settle commit failed")
		s.publishLocked(EventError, nil, err)
	}
}

// commitLocked commits t on the active round. A store failure is fatal to
// the round: it is dropped and the error returned.
func (s *Screen) commitLocked(ctx context.Context, t game.Transition) error {
	err := s.round.Commit(ctx, t)
	if err == nil {
		return nil
	}
	if errors.Is(err, game.ErrRoundOver) || errors.Is(err, game.ErrStaleTransition) {
		return err
	}
	s.dropRoundLocked()
	return err
}

func (s *Screen) openLocked(ctx context.Context, item game.Item, mode startMode) error {
	s.dropRoundLocked()
	r, err := game.Start(ctx, item, game.Deps{
		Store:    s.cfg.Store,
		Scorer:   s.cfg.Tally,
		OnEnd:    game.RoundEndFunc(s.onRoundEndLocked),
		Observer: game.ObserverFunc(func(game.Snapshot) { s.publishLocked(EventState, nil) }),
		Policy:   s.cfg.Policy,
		Now:      s.cfg.Clock.Now,
	})
	if err != nil {
		return err
	}
	s.round = r
	s.mode = mode
	s.exhausted = false
	log.Debug().Str("player", s.cfg.Player).Str("category", string(s.cfg.Category)).
		Str("item", item.ID).Str("round", r.ID()).Msg("round started")
	return nil
}

// dropRoundLocked forgets the active round and disarms any settle timer.
func (s *Screen) dropRoundLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = nil
	s.settling = false
	s.pending = nil
	s.round = nil
	s.gen++
}

// onRoundEndLocked runs inside Round.Commit with s.mu held.
func (s *Screen) onRoundEndLocked(item game.Item, status game.Status) {
	snap := s.round.Snapshot()
	used := len(item.Images) - snap.GuessesRemaining
	if status == game.StatusLost {
		used = len(item.Images)
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	s.cfg.Tally.RecordRound(ctx, item, status, used)

	s.lastEnded = &RoundEnd{ItemID: item.ID, Answer: item.Name, Status: status, GuessesUsed: used}
	s.publishLocked(EventRoundEnd, s.lastEnded)

	if s.mode != modeNext {
		return
	}
	next, err := s.nextUnfinishedLocked(ctx)
	if err != nil {
		if !errors.Is(err, game.ErrCatalogExhausted) {
			log.Error().Err(err).Str("player", s.cfg.Player).Msg("advance to next item")
		}
		s.dropRoundLocked()
		s.exhausted = errors.Is(err, game.ErrCatalogExhausted)
		return
	}
	if err := s.openLocked(ctx, next, modeNext); err != nil {
		log.Error().Err(err).Str("player", s.cfg.Player).Str("item", next.ID).Msg("advance to next item")
		return
	}
	s.publishLocked(EventState, nil)
}

func (s *Screen) nextUnfinishedLocked(ctx context.Context) (game.Item, error) {
	for _, it := range s.cfg.Catalog.Items() {
		rec, ok, err := s.cfg.Store.Get(ctx, it.ID)
		if err != nil {
			return game.Item{}, fmt.Errorf("load record %s: %w", it.ID, err)
		}
		if !ok || !rec.Finished() {
			return it, nil
		}
	}
	return game.Item{}, game.ErrCatalogExhausted
}

func (s *Screen) dailyItem() game.Item {
	c := s.cfg.Catalog
	i := daily.ItemIndex(s.cfg.Clock.Now(), s.cfg.DailySalt, string(c.Category()), c.Len())
	return c.At(i)
}

func (s *Screen) viewLocked() View {
	v := View{
		Category:  s.cfg.Category,
		Settling:  s.settling,
		Points:    s.cfg.Tally.Points(),
		Exhausted: s.exhausted,
		LastEnded: s.lastEnded,
	}
	if s.round != nil {
		snap := s.round.Snapshot()
		snap.Category = s.cfg.Category
		v.Round = &snap
	}
	if s.pending != nil {
		p := *s.pending
		v.Pending = &p
	}
	return v
}

func (s *Screen) publishLocked(kind EventKind, end *RoundEnd, errs ...error) {
	if s.cfg.Publisher == nil {
		return
	}
	ev := Event{Kind: kind, View: s.viewLocked(), End: end}
	if len(errs) > 0 && errs[0] != nil {
		ev.Error = errs[0].Error()
	}
	s.cfg.Publisher.Publish(Key{Player: s.cfg.Player, Category: s.cfg.Category}, ev)
}
