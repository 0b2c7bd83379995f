// apps/go-server/cmd/root.go
//
// Root command and shared bootstrap.
// Responsibilities:
//   - Load .env before any subcommand runs.
//   - Register serve, play and catalog.
//   - bootstrap: config, logger, catalogs and store for a subcommand.

package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/config"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tankguess",
		Short: "Guess the tank or map from progressively revealed images",
		Long: `tankguess serves the guessing game over HTTP and lets you play it from the terminal.

Each round shows the images of one catalog item, hardest first. Skipping reveals
the next image and spends an attempt; a wrong guess ends the round.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPlayCmd())
	cmd.AddCommand(newCatalogCmd())

	return cmd
}

// env is what every command needs after startup.
type env struct {
	cfg      config.Config
	catalogs *catalog.Set
	backend  store.Backend
}

// bootstrap loads configuration, sets up logging and opens the catalogs and
// the store. The caller closes env.backend.
func bootstrap(ctx context.Context, driver string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.LogLevel, cfg.LogFormat, nil)
	if driver != "" {
		cfg.StoreDriver = driver
	}

	set, err := catalog.Load(catalog.Files{Tanks: cfg.CatalogTanksFile, Maps: cfg.CatalogMapsFile})
	if err != nil {
		return nil, err
	}
	backend, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	log.Debug().Str("driver", cfg.StoreDriver).Interface("catalogs", set.Stats()).Msg("bootstrapped")
	return &env{cfg: cfg, catalogs: set, backend: backend}, nil
}
