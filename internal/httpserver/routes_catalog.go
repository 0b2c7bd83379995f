// apps/go-server/internal/httpserver/routes_catalog.go
//
// Read-only routes:
//   - GET /catalog/{category}        → item ids and image counts (no answers)
//   - GET /catalog/{category}/names  → autocomplete source, catalog order
//   - GET /records/{category}        → the caller's persisted records
//   - GET /stats/me                  → the caller's lifetime stats
//   - GET /leaderboard?date=YYYY-MM-DD&limit=N → daily leaderboard (today by default)

package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/daily"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

type catalogEntry struct {
	ID         string `json:"id"`
	ImageCount int    `json:"imageCount"`
}

func (s *Server) mountCatalog(r chi.Router) {
	r.Get("/catalog/{category}", func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.catalog(w, r)
		if !ok {
			return
		}
		items := c.Items()
		out := make([]catalogEntry, len(items))
		for i, it := range items {
			out[i] = catalogEntry{ID: it.ID, ImageCount: len(it.Images)}
		}
		writeJSON(w, http.StatusOK, map[string]any{"category": c.Category(), "items": out})
	})
	r.Get("/catalog/{category}/names", func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.catalog(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, c.Names())
	})
}

func (s *Server) catalog(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	cat, err := game.ParseCategory(chi.URLParam(r, "category"))
	if err == nil {
		var c *catalog.Catalog
		if c, err = s.opts.Catalogs.Catalog(cat); err == nil {
			return c, true
		}
	}
	writeErr(w, r, err)
	return nil, false
}

func (s *Server) mountRecords(r chi.Router) {
	r.Get("/records/{category}", func(w http.ResponseWriter, r *http.Request) {
		cat, err := game.ParseCategory(chi.URLParam(r, "category"))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		recs, err := s.opts.Backend.List(r.Context(), playerFrom(r.Context()), cat)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if recs == nil {
			recs = []game.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	})

	r.Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		st, err := s.opts.Backend.Stats(r.Context(), playerFrom(r.Context()))
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = daily.DateKey(s.opts.Now())
		} else if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, http.StatusBadRequest, "bad_date")
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		rows, err := s.opts.Backend.Leaderboard(r.Context(), date, limit)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "rows": rows})
	})
}
