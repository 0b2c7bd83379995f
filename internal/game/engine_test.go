// apps/go-server/internal/game/engine_test.go
//
// Tests for the guess engine.

package game

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
	puts    []Record
	failPut error
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[string]Record{}} }

func (f *fakeStore) Get(_ context.Context, id string) (Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeStore) Put(_ context.Context, r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut != nil {
		return f.failPut
	}
	f.records[r.ItemID] = r
	f.puts = append(f.puts, r)
	return nil
}

type MockScorer struct{ mock.Mock }

func (m *MockScorer) AwardPoint() { m.Called() }

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) OnRoundEnd(item Item, status Status) { m.Called(item, status) }

func tank(n int) Item {
	imgs := make([]string, n)
	for i := range imgs {
		imgs[i] = "img" + string(rune('a'+i)) + ".jpg"
	}
	return Item{ID: "t34", Name: "T-34", Images: imgs}
}

func startRound(t *testing.T, item Item, st RecordStore, policy WrongGuessPolicy) *Round {
	t.Helper()
	r, err := Start(context.Background(), item, Deps{Store: st, Policy: policy})
	require.NoError(t, err)
	return r
}

// --- tests ---

func TestStart_FreshRound(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		r := startRound(t, tank(n), newFakeStore(), "")
		s := r.Snapshot()
		assert.Equal(t, n, s.GuessesRemaining)
		assert.Equal(t, 0, s.RevealIndex)
		assert.Equal(t, StatusActive, s.Status)
		assert.Equal(t, 0, s.MaxSelectable)
	}
}

func TestStart_ResumesUnfinishedRecord(t *testing.T) {
	st := newFakeStore()
	st.records["t34"] = Record{ItemID: "t34", GuessesRemaining: 2}

	r := startRound(t, tank(4), st, "")
	s := r.Snapshot()
	assert.Equal(t, 2, s.GuessesRemaining)
	assert.Equal(t, 0, s.RevealIndex)
	assert.Equal(t, 2, s.MaxSelectable)

	tr, err := r.Apply(context.Background(), SelectImage(2))
	require.NoError(t, err)
	assert.Equal(t, 2, tr.RevealIndex)

	tr, err = r.Apply(context.Background(), Skip())
	require.NoError(t, err)
	assert.Equal(t, 3, tr.RevealIndex)
	assert.Equal(t, 1, tr.GuessesRemaining)
}

func TestStart_RefusesFinishedAndInvalid(t *testing.T) {
	st := newFakeStore()
	st.records["t34"] = Record{ItemID: "t34", GuessesRemaining: 3, SolvedName: "T-34"}
	_, err := Start(context.Background(), tank(3), Deps{Store: st})
	assert.ErrorIs(t, err, ErrItemFinished)

	st.records["t34"] = Record{ItemID: "t34", GuessesRemaining: 0}
	_, err = Start(context.Background(), tank(3), Deps{Store: st})
	assert.ErrorIs(t, err, ErrItemFinished)

	_, err = Start(context.Background(), Item{ID: "x", Name: "x"}, Deps{Store: st})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = Start(context.Background(), Item{}, Deps{Store: st})
	assert.ErrorIs(t, err, ErrNoActiveRound)
}

func TestSkip_DecreasesUntilLost(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(4), st, "")
	ctx := context.Background()

	prev := r.Snapshot().GuessesRemaining
	for r.Status() == StatusActive {
		_, err := r.Apply(ctx, Skip())
		require.NoError(t, err)
		cur := r.Snapshot().GuessesRemaining
		assert.Less(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, StatusLost, r.Status())
	assert.Equal(t, 0, r.Snapshot().GuessesRemaining)
	assert.Equal(t, 0, st.records["t34"].GuessesRemaining)

	_, err := r.Apply(ctx, Skip())
	assert.ErrorIs(t, err, ErrRoundOver)
	_, err = r.Apply(ctx, Submit("T-34"))
	assert.ErrorIs(t, err, ErrRoundOver)
}

func TestSkip_AdvancesRevealIndex(t *testing.T) {
	r := startRound(t, tank(3), newFakeStore(), "")
	_, err := r.Apply(context.Background(), Skip())
	require.NoError(t, err)
	s := r.Snapshot()
	assert.Equal(t, 1, s.RevealIndex)
	assert.Equal(t, 2, s.GuessesRemaining)
	assert.Equal(t, 1, s.MaxSelectable)
}

func TestSelectImage(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(4), st, "")
	ctx := context.Background()

	_, err := r.Apply(ctx, SelectImage(1))
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = r.Apply(ctx, Skip())
	require.NoError(t, err)
	_, err = r.Apply(ctx, Skip())
	require.NoError(t, err)
	putsBefore := len(st.puts)

	tests := []struct {
		index int
		ok    bool
	}{
		{0, true}, {1, true}, {2, true}, {3, false}, {-1, false}, {99, false},
	}
	for _, tt := range tests {
		before := r.Snapshot()
		_, err := r.Apply(ctx, SelectImage(tt.index))
		after := r.Snapshot()
		assert.Equal(t, before.GuessesRemaining, after.GuessesRemaining, "select never spends budget")
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, tt.index, after.RevealIndex)
		} else {
			assert.ErrorIs(t, err, ErrInvalidIndex)
			assert.Equal(t, before.RevealIndex, after.RevealIndex)
		}
	}
	assert.Len(t, st.puts, putsBefore, "select never writes the record")
}

func TestSubmit_CorrectWins(t *testing.T) {
	st := newFakeStore()
	scorer := &MockScorer{}
	scorer.On("AwardPoint").Return().Once()
	notifier := &MockNotifier{}
	item := Item{ID: "alamein", Name: "El Alamein", Images: []string{"a", "b"}}
	notifier.On("OnRoundEnd", item, StatusWon).Return().Once()

	r, err := Start(context.Background(), item, Deps{Store: st, Scorer: scorer, OnEnd: notifier})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Snapshot().GuessesRemaining)

	tr, err := r.Apply(context.Background(), Submit("El Alamein"))
	require.NoError(t, err)
	assert.True(t, tr.InputCleared)
	assert.Equal(t, StatusWon, r.Status())

	require.Len(t, st.puts, 1)
	assert.Equal(t, "El Alamein", st.puts[0].SolvedName)
	assert.Equal(t, 2, st.puts[0].GuessesRemaining)

	_, err = r.Apply(context.Background(), Submit("El Alamein"))
	assert.ErrorIs(t, err, ErrRoundOver)
	assert.Len(t, st.puts, 1)

	scorer.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSubmit_ExactMatchOnly(t *testing.T) {
	for _, guess := range []string{"t-34", "T-34 ", " T-34", "T34", "Tiger"} {
		r := startRound(t, tank(3), newFakeStore(), PolicySpendAttempt)
		_, err := r.Apply(context.Background(), Submit(guess))
		require.NoError(t, err)
		assert.NotEqual(t, StatusWon, r.Status(), guess)
	}
}

func TestSubmit_EmptyIsNoop(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(3), st, "")
	before := r.Snapshot()
	_, err := r.Apply(context.Background(), Submit(""))
	assert.ErrorIs(t, err, ErrEmptyGuess)
	assert.Equal(t, before, r.Snapshot())
	assert.Empty(t, st.puts)
}

func TestSubmit_WrongInstantLoss(t *testing.T) {
	st := newFakeStore()
	notifier := &MockNotifier{}
	item := tank(3)
	notifier.On("OnRoundEnd", item, StatusLost).Return().Once()
	scorer := &MockScorer{}

	r, err := Start(context.Background(), item, Deps{Store: st, OnEnd: notifier, Scorer: scorer})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Apply(ctx, Skip())
	require.NoError(t, err)
	s := r.Snapshot()
	assert.Equal(t, 1, s.RevealIndex)
	assert.Equal(t, 2, s.GuessesRemaining)

	tr, err := r.Apply(ctx, Submit("Tiger"))
	require.NoError(t, err)
	assert.True(t, tr.InputCleared)
	assert.Equal(t, StatusLost, r.Status())
	assert.Equal(t, 0, st.records["t34"].GuessesRemaining)
	assert.Empty(t, st.records["t34"].SolvedName)

	_, err = r.Apply(ctx, SelectImage(0))
	assert.ErrorIs(t, err, ErrRoundOver)

	notifier.AssertExpectations(t)
	scorer.AssertNotCalled(t, "AwardPoint")
}

func TestSubmit_WrongSpendAttempt(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(3), st, PolicySpendAttempt)
	ctx := context.Background()

	_, err := r.Apply(ctx, Submit("Tiger"))
	require.NoError(t, err)
	s := r.Snapshot()
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 1, s.RevealIndex)
	assert.Equal(t, 2, s.GuessesRemaining)

	_, err = r.Apply(ctx, Submit("Panther"))
	require.NoError(t, err)
	_, err = r.Apply(ctx, Submit("Sherman"))
	require.NoError(t, err)
	assert.Equal(t, StatusLost, r.Status())
	assert.Equal(t, 0, st.records["t34"].GuessesRemaining)
}

func TestTerminalActionsLeaveRecordUnchanged(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(2), st, "")
	ctx := context.Background()
	_, err := r.Apply(ctx, Submit("T-34"))
	require.NoError(t, err)
	rec := st.records["t34"]

	for _, a := range []Action{Skip(), Submit("x"), Submit("T-34"), SelectImage(0)} {
		_, err := r.Apply(ctx, a)
		assert.ErrorIs(t, err, ErrRoundOver)
	}
	assert.Equal(t, rec, st.records["t34"])
	assert.Len(t, st.puts, 1)
}

func TestCommit_PersistFailureLeavesRoundUnchanged(t *testing.T) {
	st := newFakeStore()
	r := startRound(t, tank(3), st, "")
	boom := errors.New("disk full")
	st.failPut = boom

	before := r.Snapshot()
	_, err := r.Apply(context.Background(), Skip())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, r.Snapshot())
}

func TestCommit_RecordWrittenBeforeObservers(t *testing.T) {
	st := newFakeStore()
	var seen []Record
	obs := ObserverFunc(func(s Snapshot) {
		seen = append(seen, st.records["t34"])
	})
	r, err := Start(context.Background(), tank(3), Deps{Store: st, Observer: obs})
	require.NoError(t, err)

	_, err = r.Apply(context.Background(), Skip())
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 2, seen[0].GuessesRemaining)
}

func TestCommit_ScorerRunsBeforeObserver(t *testing.T) {
	var order []string
	scorer := ScorerFunc(func() { order = append(order, "score") })
	obs := ObserverFunc(func(s Snapshot) { order = append(order, "observe:"+string(s.Status)) })
	r, err := Start(context.Background(), tank(3), Deps{Store: newFakeStore(), Scorer: scorer, Observer: obs})
	require.NoError(t, err)

	_, err = r.Apply(context.Background(), Submit("T-34"))
	require.NoError(t, err)
	assert.Equal(t, []string{"score", "observe:won"}, order)
}

func TestCommit_RejectsStaleTransition(t *testing.T) {
	r := startRound(t, tank(3), newFakeStore(), "")
	ctx := context.Background()

	first, err := r.Compute(Skip())
	require.NoError(t, err)
	second, err := r.Compute(SelectImage(0))
	require.NoError(t, err)

	require.NoError(t, r.Commit(ctx, first))
	assert.ErrorIs(t, r.Commit(ctx, second), ErrStaleTransition)
	assert.ErrorIs(t, r.Commit(ctx, first), ErrStaleTransition)
}

func TestNilRound(t *testing.T) {
	var r *Round
	_, err := r.Compute(Skip())
	assert.ErrorIs(t, err, ErrNoActiveRound)
	assert.ErrorIs(t, r.Commit(context.Background(), Transition{}), ErrNoActiveRound)
	assert.Equal(t, Snapshot{}, r.Snapshot())
}

func TestParsePolicyAndCategory(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyInstantLoss, p)
	p, err = ParsePolicy("SPEND_ATTEMPT")
	require.NoError(t, err)
	assert.Equal(t, PolicySpendAttempt, p)
	_, err = ParsePolicy("nope")
	assert.Error(t, err)

	c, err := ParseCategory("Maps")
	require.NoError(t, err)
	assert.Equal(t, CategoryMap, c)
	_, err = ParseCategory("planes")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
