// apps/go-server/cmd/play.go
//
// `tankguess play`: play a category in the terminal.
// Commands: /skip, /view N, /hint, /next, /daily, /cancel, /help, /quit.
// Any other line is a guess.

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/score"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
	"github.com/robalobadob/tankguess/apps/go-server/internal/terminal"
)

const playHelp = `commands:
  <text>       guess (exact name)
  /skip        reveal the next image, spends an attempt
  /view N      look at unlocked image N
  /hint PREFIX list matching names
  /next        start the next unfinished item
  /daily       start today's featured item
  /cancel      give up this round
  /quit        leave`

// feed is a session.Publisher that keeps the latest view for the CLI.
type feed chan session.View

func (f feed) Publish(_ session.Key, ev session.Event) {
	select {
	case f <- ev.View:
	default:
	}
}

func newPlayCmd() *cobra.Command {
	var (
		category string
		player   string
		driver   string
		item     string
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a category in the terminal",
		Example: `  # Play tanks with progress kept in the SQLite store
  tankguess play --category tank

  # Play a single map without keeping progress
  tankguess play --category map --store memory --item kursk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := game.ParseCategory(category)
			if err != nil {
				return err
			}
			e, err := bootstrap(cmd.Context(), driver)
			if err != nil {
				return err
			}
			defer e.backend.Close()

			c, err := e.catalogs.Catalog(cat)
			if err != nil {
				return err
			}
			f := make(feed, 8)
			screen := session.NewScreen(session.Config{
				Player:      player,
				Category:    cat,
				Catalog:     c,
				Store:       e.backend.Scope(player, cat),
				Tally:       score.NewTally(player, cat, e.backend),
				Publisher:   f,
				Policy:      e.cfg.Policy,
				SettleDelay: e.cfg.SettleDelay,
				DailySalt:   e.cfg.DailySalt,
			})
			defer screen.Close()

			return playLoop(cmd.Context(), screen, c, f, cmd.InOrStdin(), cmd.OutOrStdout(), item)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(game.CategoryTank), "Catalog to play (tank or map)")
	cmd.Flags().StringVar(&player, "player", "cli", "Player id the records are kept under")
	cmd.Flags().StringVar(&driver, "store", "", "Store driver (memory, sqlite, postgres); defaults to STORE_DRIVER")
	cmd.Flags().StringVar(&item, "item", "", "Item id to start with (default: next unfinished)")

	return cmd
}

func playLoop(ctx context.Context, screen *session.Screen, c *catalog.Catalog, f feed, in io.Reader, out io.Writer, item string) error {
	show := func(v session.View) { fmt.Fprintln(out, terminal.Render(v)) }
	report := func(err error) {
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	}

	v, err := screen.Start(ctx, item)
	if errors.Is(err, game.ErrCatalogExhausted) {
		show(v)
		return nil
	}
	if err != nil {
		return err
	}
	drain(f)
	show(v)
	fmt.Fprintln(out, playHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")

		switch {
		case line == "":
			v = screen.State()
		case cmd == "/quit":
			return nil
		case cmd == "/help":
			fmt.Fprintln(out, playHelp)
			continue
		case cmd == "/hint":
			fmt.Fprintln(out, strings.Join(terminal.Suggest(c.Names(), arg, 10), "\n"))
			continue
		case cmd == "/skip":
			v, err = screen.Skip(ctx)
		case cmd == "/view":
			n, convErr := strconv.Atoi(strings.TrimSpace(arg))
			if convErr != nil {
				report(fmt.Errorf("usage: /view N"))
				continue
			}
			v, err = screen.SelectImage(ctx, n-1)
		case cmd == "/next":
			v, err = screen.Start(ctx, "")
		case cmd == "/daily":
			v, err = screen.Start(ctx, session.DailyItem)
		case cmd == "/cancel":
			v, err = screen.Cancel(ctx)
		default:
			v, err = screen.Submit(ctx, line)
			if err == nil && v.Settling {
				show(v)
				v = awaitSettled(ctx, screen, f)
			}
		}
		report(err)
		drain(f)
		show(v)
		if v.Exhausted {
			return nil
		}
	}
}

// awaitSettled waits for the pending submit to commit.
func awaitSettled(ctx context.Context, screen *session.Screen, f feed) session.View {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case v := <-f:
			if !v.Settling {
				return screen.State()
			}
		case <-timeout:
			return screen.State()
		case <-ctx.Done():
			return screen.State()
		}
	}
}

func drain(f feed) {
	for {
		select {
		case <-f:
		default:
			return
		}
	}
}
