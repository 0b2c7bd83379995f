// apps/go-server/internal/session/manager.go
//
// Screen registry for the HTTP server.
// Responsibilities:
//   - One Screen per (player, category), created on the first action.
//   - Peek for read-only callers, which never creates a screen.
//   - Evict screens nobody touched for the idle TTL (Sweep / Run).
//   - Forget a player's screens after its progress moved to an account.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/score"
)

// DefaultIdleTTL is how long an untouched screen stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// Backend is the part of store.Backend a manager needs.
type Backend interface {
	Scope(player string, category game.Category) game.RecordStore
	score.ResultStore
}

// Options configure every screen a Manager creates.
type Options struct {
	Catalogs    catalog.Provider
	Backend     Backend
	Publisher   Publisher
	Policy      game.WrongGuessPolicy
	SettleDelay time.Duration
	Clock       Clock
	DailySalt   string
	IdleTTL     time.Duration
}

type entry struct {
	screen  *Screen
	touched time.Time
}

// Manager owns one Screen per (player, category).
type Manager struct {
	opts Options

	mu      sync.Mutex
	screens map[Key]*entry
}

func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Manager{opts: opts, screens: make(map[Key]*entry)}
}

// Screen returns the screen for player and category, creating it on first use.
func (m *Manager) Screen(player string, category game.Category) (*Screen, error) {
	key := Key{Player: player, Category: category}
	now := m.opts.Clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.screens[key]; ok {
		e.touched = now
		return e.screen, nil
	}
	c, err := m.opts.Catalogs.Catalog(category)
	if err != nil {
		return nil, err
	}
	s := NewScreen(Config{
		Player:      player,
		Category:    category,
		Catalog:     c,
		Store:       m.opts.Backend.Scope(player, category),
		Tally:       score.NewTally(player, category, m.opts.Backend).WithNow(m.opts.Clock.Now),
		Publisher:   m.opts.Publisher,
		Policy:      m.opts.Policy,
		SettleDelay: m.opts.SettleDelay,
		Clock:       m.opts.Clock,
		DailySalt:   m.opts.DailySalt,
	})
	m.screens[key] = &entry{screen: s, touched: now}
	return s, nil
}

// Peek returns the existing screen for player and category without creating
// one.
func (m *Manager) Peek(player string, category game.Category) (*Screen, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.screens[Key{Player: player, Category: category}]
	if !ok {
		return nil, false
	}
	e.touched = m.opts.Clock.Now()
	return e.screen, true
}

// IdleView is the view of a category nobody has played on this server yet.
func (m *Manager) IdleView(category game.Category) (View, error) {
	if _, err := m.opts.Catalogs.Catalog(category); err != nil {
		return View{}, err
	}
	return View{Category: category}, nil
}

// Sweep closes and removes screens untouched for longer than the idle TTL.
// Screens with a pending submit are kept until it settles.
func (m *Manager) Sweep() int {
	cutoff := m.opts.Clock.Now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var closing []*Screen
	for k, e := range m.screens {
		if e.touched.After(cutoff) || e.screen.State().Settling {
			continue
		}
		closing = append(closing, e.screen)
		delete(m.screens, k)
	}
	m.mu.Unlock()

	for _, s := range closing {
		s.Close()
	}
	return len(closing)
}

// Run sweeps every half idle TTL until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	tick := time.NewTicker(m.opts.IdleTTL / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := m.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("live", m.Len()).Msg("idle screens swept")
			}
		}
	}
}

// Forget closes and removes every screen of player, e.g. after its records
// moved to another id on login.
func (m *Manager) Forget(player string) {
	m.mu.Lock()
	var closing []*Screen
	for k, e := range m.screens {
		if k.Player == player {
			closing = append(closing, e.screen)
			delete(m.screens, k)
		}
	}
	m.mu.Unlock()
	for _, s := range closing {
		s.Close()
	}
}

// Len returns the number of live screens.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.screens)
}

// Close stops every screen.
func (m *Manager) Close() {
	m.mu.Lock()
	screens := m.screens
	m.screens = make(map[Key]*entry)
	m.mu.Unlock()
	for _, e := range screens {
		e.screen.Close()
	}
}
