// apps/go-server/internal/terminal/render_test.go
//
// Tests for the terminal renderer.

package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

func TestRender(t *testing.T) {
	v := session.View{
		Category: game.CategoryTank,
		Points:   2,
		Round: &game.Snapshot{
			ItemID:           "is-2",
			Images:           []string{"a.webp", "b.webp", "c.webp"},
			RevealIndex:      1,
			MaxSelectable:    1,
			GuessesRemaining: 2,
			Status:           game.StatusActive,
		},
	}
	out := Render(v)
	assert.Contains(t, out, "tankguess · tank")
	assert.Contains(t, out, "points 2")
	assert.Contains(t, out, "a.webp")
	assert.Contains(t, out, "b.webp")
	assert.NotContains(t, out, "c.webp", "locked images stay hidden")
	assert.Contains(t, out, "2/3")

	v.Round = nil
	v.LastEnded = &session.RoundEnd{ItemID: "is-2", Answer: "IS-2", Status: game.StatusLost}
	out = Render(v)
	assert.Contains(t, out, "it was IS-2")
	assert.Contains(t, out, "No active round.")

	v.Exhausted = true
	assert.Contains(t, Render(v), "finished")
}

func TestAttemptsClamps(t *testing.T) {
	assert.Contains(t, Attempts(-1, 3), "0/3")
	assert.Contains(t, Attempts(9, 3), "3/3")
}

func TestSuggest(t *testing.T) {
	names := []string{"T-34-85", "Tiger H1", "M4A3 (76) W", "T-54"}
	assert.Equal(t, []string{"T-34-85", "Tiger H1", "T-54"}, Suggest(names, "t", 0))
	assert.Equal(t, []string{"T-34-85"}, Suggest(names, "t-3", 5))
	assert.Equal(t, []string{"T-34-85", "Tiger H1"}, Suggest(names, "T", 2))
	assert.Empty(t, Suggest(names, "panther", 0))
}
