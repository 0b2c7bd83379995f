// apps/go-server/internal/httpserver/routes_play.go
//
// HTTP routes for playing a category.
// Exposes, under /play/{category}:
//   - POST /start   {itemId?} → start or resume a round ("" = next unfinished,
//     "daily" = today's featured item)
//   - POST /skip              → reveal the next image, spend one attempt
//   - POST /submit  {guess}   → submit a guess (committed after the settle delay)
//   - POST /select  {index}   → show an already unlocked image
//   - POST /cancel            → give up without writing the record
//   - GET  /state             → current view
//   - GET  /events            → WebSocket stream of views and round ends
//
// Every action answers with the screen's view after the action. The GET
// routes never create a screen; a player without one sees the idle view.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
)

type startReq struct {
	ItemID string `json:"itemId"`
}

type submitReq struct {
	Guess string `json:"guess"`
}

type selectReq struct {
	Index *int `json:"index"`
}

func (s *Server) mountPlay(r chi.Router) {
	r.Route("/play/{category}", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/start", s.handleStart)
			r.Post("/skip", s.handleSkip)
			r.Post("/submit", s.handleSubmit)
			r.Post("/select", s.handleSelect)
			r.Post("/cancel", s.handleCancel)
		})
	})
}

// screen resolves the caller's screen for the {category} URL param. It
// writes the error response and returns nil on failure.
func (s *Server) screen(w http.ResponseWriter, r *http.Request) *session.Screen {
	cat, err := game.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeErr(w, r, err)
		return nil
	}
	sc, err := s.opts.Screens.Screen(playerFrom(r.Context()), cat)
	if err != nil {
		writeErr(w, r, err)
		return nil
	}
	return sc
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respond(w http.ResponseWriter, r *http.Request, v session.View, err error) {
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sc := s.screen(w, r)
	if sc == nil {
		return
	}
	v, err := sc.Start(r.Context(), req.ItemID)
	respond(w, r, v, err)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	sc := s.screen(w, r)
	if sc == nil {
		return
	}
	v, err := sc.Skip(r.Context())
	respond(w, r, v, err)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sc := s.screen(w, r)
	if sc == nil {
		return
	}
	v, err := sc.Submit(r.Context(), req.Guess)
	respond(w, r, v, err)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sc := s.screen(w, r)
	if sc == nil {
		return
	}
	v, err := sc.SelectImage(r.Context(), *req.Index)
	respond(w, r, v, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sc := s.screen(w, r)
	if sc == nil {
		return
	}
	v, err := sc.Cancel(r.Context())
	respond(w, r, v, err)
}

// peekView returns the caller's current view without creating a screen.
func (s *Server) peekView(w http.ResponseWriter, r *http.Request) (game.Category, session.View, bool) {
	cat, err := game.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeErr(w, r, err)
		return "", session.View{}, false
	}
	if sc, ok := s.opts.Screens.Peek(playerFrom(r.Context()), cat); ok {
		return cat, sc.State(), true
	}
	v, err := s.opts.Screens.IdleView(cat)
	if err != nil {
		writeErr(w, r, err)
		return "", session.View{}, false
	}
	return cat, v, true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if _, v, ok := s.peekView(w, r); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	cat, v, ok := s.peekView(w, r)
	if !ok {
		return
	}
	key := session.Key{Player: playerFrom(r.Context()), Category: cat}
	s.opts.Hub.Serve(w, r, key, v)
}
