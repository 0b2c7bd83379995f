// apps/go-server/cmd/serve.go
//
// `tankguess serve`: HTTP API with graceful shutdown.

package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/tankguess/apps/go-server/internal/events"
	"github.com/robalobadob/tankguess/apps/go-server/internal/httpserver"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the tankguess HTTP API and the play event stream.

Settings come from the environment (or a .env file): PORT, STORE_DRIVER,
DATABASE_PATH, POSTGRES_URL, CLIENT_ORIGIN, JWT_SECRET, SETTLE_DELAY,
WRONG_GUESS_POLICY, SCREEN_IDLE_TTL and friends.`,
		Example: `  # Start on the default port with the SQLite store
  tankguess serve

  # In-memory store on a custom port
  STORE_DRIVER=memory tankguess serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer e.backend.Close()
			if port != "" {
				e.cfg.Port = port
			}

			hub := events.NewHub(e.cfg.ClientOrigin)
			screens := session.NewManager(session.Options{
				Catalogs:    e.catalogs,
				Backend:     e.backend,
				Publisher:   hub,
				Policy:      e.cfg.Policy,
				SettleDelay: e.cfg.SettleDelay,
				DailySalt:   e.cfg.DailySalt,
				IdleTTL:     e.cfg.ScreenIdle,
			})
			defer screens.Close()
			go screens.Run(cmd.Context())

			srv := httpserver.New(httpserver.Options{
				Backend:        e.backend,
				Catalogs:       e.catalogs,
				Screens:        screens,
				Hub:            hub,
				ClientOrigin:   e.cfg.ClientOrigin,
				JWTSecret:      e.cfg.JWTSecret,
				JWTExpiresDays: e.cfg.JWTExpiresDays,
				CookieName:     e.cfg.CookieName,
				Production:     e.cfg.Production,
				ActionRate:     e.cfg.ActionRate,
				ActionBurst:    e.cfg.ActionBurst,
			})

			server := &http.Server{
				Addr:              e.cfg.Addr(),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info().Str("addr", server.Addr).Str("store", e.cfg.StoreDriver).
					Str("policy", string(e.cfg.Policy)).Dur("settle", e.cfg.SettleDelay).Msg("starting go-server")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				log.Info().Msg("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("server shutdown failed")
					return err
				}
				log.Info().Msg("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
