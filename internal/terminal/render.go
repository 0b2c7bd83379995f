// apps/go-server/internal/terminal/render.go
//
// Terminal rendering of play views (lipgloss).

// Package terminal renders play screen views for the CLI.
package terminal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

var (
	clrBorder = lipgloss.Color("#30363d")
	clrSubtle = lipgloss.Color("#8b949e")
	clrGold   = lipgloss.Color("#e3b341")
	clrGreen  = lipgloss.Color("#3fb950")
	clrRed    = lipgloss.Color("#f85149")
	clrTitle  = lipgloss.Color("#58a6ff")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrBorder).
			Padding(0, 1)
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func bold(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

// Render draws v as a boxed frame.
func Render(v session.View) string {
	var b strings.Builder
	b.WriteString(bold(clrTitle).Render(fmt.Sprintf("tankguess · %s", v.Category)))
	b.WriteString(fg(clrSubtle).Render(fmt.Sprintf("   points %d", v.Points)))
	b.WriteString("\n")

	if v.LastEnded != nil {
		b.WriteString(lastEnded(*v.LastEnded))
		b.WriteString("\n")
	}

	switch {
	case v.Round != nil:
		b.WriteString(round(*v.Round, v.Settling))
	case v.Exhausted:
		b.WriteString(bold(clrGold).Render("Every item in this catalog is finished."))
	default:
		b.WriteString(fg(clrSubtle).Render("No active round."))
	}
	return boxStyle.Render(b.String())
}

func round(s game.Snapshot, settling bool) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("item %s\n", s.ItemID))
	for i, img := range s.Images {
		marker, style := "·", fg(clrSubtle)
		switch {
		case i == s.RevealIndex:
			marker, style = "●", bold(clrGold)
		case i <= s.MaxSelectable:
			marker, style = "○", lipgloss.NewStyle()
		}
		label := img
		if i > s.MaxSelectable {
			label = "locked"
		}
		b.WriteString(style.Render(fmt.Sprintf(" %s %d  %s", marker, i+1, label)))
		b.WriteString("\n")
	}
	b.WriteString(Attempts(s.GuessesRemaining, len(s.Images)))
	switch {
	case settling:
		b.WriteString(fg(clrSubtle).Render("   checking…"))
	case s.Status == game.StatusWon:
		b.WriteString(bold(clrGreen).Render("   won: " + s.SolvedName))
	case s.Status == game.StatusLost:
		b.WriteString(bold(clrRed).Render("   lost"))
	}
	return b.String()
}

// Attempts draws the remaining budget as filled and spent pips.
func Attempts(remaining, total int) string {
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}
	return fmt.Sprintf("attempts %s%s %d/%d",
		fg(clrGreen).Render(strings.Repeat("■", remaining)),
		fg(clrSubtle).Render(strings.Repeat("□", total-remaining)),
		remaining, total)
}

func lastEnded(e session.RoundEnd) string {
	switch {
	case e.Cancelled:
		return fg(clrSubtle).Render(fmt.Sprintf("gave up on %s", e.ItemID))
	case e.Status == game.StatusWon:
		return bold(clrGreen).Render(fmt.Sprintf("✔ %s in %d", e.Answer, e.GuessesUsed))
	default:
		return bold(clrRed).Render(fmt.Sprintf("✘ it was %s", e.Answer))
	}
}

// Suggest returns up to limit names starting with prefix (case-insensitive),
// in autocomplete order.
func Suggest(names []string, prefix string, limit int) []string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	var out []string
	for _, n := range names {
		if limit > 0 && len(out) == limit {
			break
		}
		if strings.HasPrefix(strings.ToLower(n), p) {
			out = append(out, n)
		}
	}
	return out
}
