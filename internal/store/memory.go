// apps/go-server/internal/store/memory.go
//
// In-memory implementation of Backend.
// Used for tests, the terminal `play --store memory` mode, and deployments
// where durability is not required.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

type recordKey struct {
	player   string
	category game.Category
	itemID   string
}

// Memory is a map-based Backend.
type Memory struct {
	mu      sync.RWMutex
	records map[recordKey]game.Record
	users   map[string]User // keyed by id
	results []Result
	stats   map[string]Stats
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[recordKey]game.Record),
		users:   make(map[string]User),
		stats:   make(map[string]Stats),
	}
}

type memoryScope struct {
	m        *Memory
	player   string
	category game.Category
}

func (m *Memory) Scope(player string, category game.Category) game.RecordStore {
	return &memoryScope{m: m, player: player, category: category}
}

func (s *memoryScope) Get(_ context.Context, itemID string) (game.Record, bool, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	r, ok := s.m.records[recordKey{s.player, s.category, itemID}]
	return r, ok, nil
}

func (s *memoryScope) Put(_ context.Context, r game.Record) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.records[recordKey{s.player, s.category, r.ItemID}] = r
	return nil
}

func (m *Memory) List(_ context.Context, player string, category game.Category) ([]game.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []game.Record{}
	for k, r := range m.records {
		if k.player == player && k.category == category {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (m *Memory) ClaimPlayer(_ context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.records {
		if k.player != from {
			continue
		}
		delete(m.records, k)
		target := recordKey{to, k.category, k.itemID}
		if _, exists := m.records[target]; !exists {
			m.records[target] = r
		}
	}
	for i := range m.results {
		if m.results[i].PlayerID == from {
			m.results[i].PlayerID = to
		}
	}
	if s, ok := m.stats[from]; ok {
		t := m.stats[to]
		t.PlayerID = to
		t.Played += s.Played
		t.Wins += s.Wins
		m.stats[to] = t
		delete(m.stats, from)
	}
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrUsernameTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *Memory) UserByName(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (m *Memory) InsertResult(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	s := m.stats[r.PlayerID]
	s.PlayerID = r.PlayerID
	m.stats[r.PlayerID] = bumpStats(s, r.Won)
	return nil
}

func (m *Memory) Stats(_ context.Context, player string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[player]
	if !ok {
		return Stats{PlayerID: player}, nil
	}
	return s, nil
}

func (m *Memory) Leaderboard(_ context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byPlayer := map[string]*LBRow{}
	var order []string
	for _, r := range m.results {
		if r.Date != date {
			continue
		}
		row, ok := byPlayer[r.PlayerID]
		if !ok {
			row = &LBRow{PlayerID: r.PlayerID, Username: m.users[r.PlayerID].Username}
			byPlayer[r.PlayerID] = row
			order = append(order, r.PlayerID)
		}
		if r.Won {
			row.Wins++
		}
		row.GuessesUsed += r.GuessesUsed
	}

	out := make([]LBRow, 0, len(order))
	for _, id := range order {
		out = append(out, *byPlayer[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].GuessesUsed < out[j].GuessesUsed
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
