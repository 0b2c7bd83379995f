// apps/go-server/internal/httpserver/server_test.go
//
// Tests for the HTTP routes, auth and rate limiting.

package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/events"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
	"github.com/robalobadob/tankguess/apps/go-server/internal/session"
	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) AfterFunc(d time.Duration, f func()) session.Timer { return time.AfterFunc(d, f) }
func (fixedClock) Now() time.Time                                    { return testNow }

func newTestServer(t *testing.T, rate float64) (*Server, *store.Memory) {
	t.Helper()
	set, err := catalog.Load(catalog.Files{})
	require.NoError(t, err)
	backend := store.NewMemory()
	hub := events.NewHub("")
	screens := session.NewManager(session.Options{
		Catalogs:  set,
		Backend:   backend,
		Publisher: hub,
		Policy:    game.PolicyInstantLoss,
		Clock:     fixedClock{},
		DailySalt: "test",
	})
	t.Cleanup(screens.Close)
	srv := New(Options{
		Backend:     backend,
		Catalogs:    set,
		Screens:     screens,
		Hub:         hub,
		JWTSecret:   "test_secret",
		CookieName:  "tg_token",
		ActionRate:  rate,
		ActionBurst: 1,
		Now:         func() time.Time { return testNow },
	})
	return srv, backend
}

// client keeps cookies between requests.
type client struct {
	t       *testing.T
	srv     *Server
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, srv *Server) *client {
	return &client{t: t, srv: srv, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["error"]
}

func TestHealthAndCatalog(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	c := newClient(t, srv)

	rec := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	rec = c.do(http.MethodGet, "/catalog/tanks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "T-34-85", "answers are not listed")
	assert.Contains(t, rec.Body.String(), `"id":"t-34-85"`)

	rec = c.do(http.MethodGet, "/catalog/tank/names", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := decode[[]string](t, rec)
	assert.Equal(t, "T-34-85", names[0])

	rec = c.do(http.MethodGet, "/catalog/plane", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_category", errorCode(t, rec))

	rec = c.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlayFlow(t *testing.T) {
	srv, backend := newTestServer(t, 0)
	c := newClient(t, srv)

	rec := c.do(http.MethodPost, "/play/tank/skip", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_active_round", errorCode(t, rec))

	rec = c.do(http.MethodPost, "/play/tank/start", map[string]string{"itemId": "t-34-85"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[session.View](t, rec)
	require.NotNil(t, v.Round)
	assert.Equal(t, "t-34-85", v.Round.ItemID)
	assert.Equal(t, 4, v.Round.GuessesRemaining)
	require.Contains(t, c.cookies, "tg_token_anon")

	rec = c.do(http.MethodPost, "/play/tank/skip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decode[session.View](t, rec)
	assert.Equal(t, 1, v.Round.RevealIndex)
	assert.Equal(t, 3, v.Round.GuessesRemaining)

	rec = c.do(http.MethodPost, "/play/tank/select", map[string]int{"index": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_index", errorCode(t, rec))

	rec = c.do(http.MethodPost, "/play/tank/select", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[session.View](t, rec).Round.RevealIndex)

	rec = c.do(http.MethodPost, "/play/tank/submit", map[string]string{"guess": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.do(http.MethodPost, "/play/tank/submit", map[string]string{"guess": "T-34-85"})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decode[session.View](t, rec)
	assert.Equal(t, game.StatusWon, v.Round.Status)
	assert.Equal(t, 1, v.Points)
	require.NotNil(t, v.LastEnded)
	assert.Equal(t, "T-34-85", v.LastEnded.Answer)

	rec = c.do(http.MethodPost, "/play/tank/skip", nil)
	assert.Equal(t, "round_over", errorCode(t, rec))

	rec = c.do(http.MethodPost, "/play/tank/start", map[string]string{"itemId": "t-34-85"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "item_finished", errorCode(t, rec))

	rec = c.do(http.MethodGet, "/records/tank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]game.Record](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "T-34-85", recs[0].SolvedName)
	assert.Equal(t, 3, recs[0].GuessesRemaining)

	rec = c.do(http.MethodGet, "/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lb := decode[struct {
		Date string        `json:"date"`
		Rows []store.LBRow `json:"rows"`
	}](t, rec)
	assert.Equal(t, "2026-03-01", lb.Date)
	require.Len(t, lb.Rows, 1)
	assert.Equal(t, 1, lb.Rows[0].Wins)

	rec = c.do(http.MethodGet, "/leaderboard?date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st, err := backend.Stats(t.Context(), c.cookies["tg_token_anon"].Value)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Wins)
}

func TestStartNextAndCancel(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	c := newClient(t, srv)

	rec := c.do(http.MethodPost, "/play/map/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[session.View](t, rec)
	first := v.Round.ItemID

	rec = c.do(http.MethodPost, "/play/map/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decode[session.View](t, rec)
	assert.Nil(t, v.Round)
	assert.True(t, v.LastEnded.Cancelled)

	rec = c.do(http.MethodGet, "/play/map/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[session.View](t, rec).Round)

	rec = c.do(http.MethodPost, "/play/map/start", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decode[session.View](t, rec).Round.ItemID, "cancel wrote nothing")

	rec = c.do(http.MethodPost, "/play/map/start", map[string]string{"itemId": "daily"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/play/map/start", map[string]string{"itemId": "atlantis"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_item", errorCode(t, rec))
}

func TestAuthClaimsAnonymousProgress(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	c := newClient(t, srv)

	rec := c.do(http.MethodPost, "/play/tank/start", map[string]string{"itemId": "is-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/play/tank/submit", map[string]string{"guess": "KV-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.StatusLost, decode[session.View](t, rec).Round.Status)

	rec = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodPost, "/auth/signup", credentials{Username: "ab", Password: "longenough"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/auth/signup", credentials{Username: "gunner", Password: "hunter2hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, c.cookies, "tg_token")

	rec = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[map[string]any](t, rec)
	assert.Equal(t, "gunner", me["username"])
	assert.EqualValues(t, 1, me["gamesPlayed"])

	rec = c.do(http.MethodGet, "/records/tank", nil)
	recs := decode[[]game.Record](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "is-2", recs[0].ItemID)
	assert.Equal(t, 0, recs[0].GuessesRemaining)

	other := newClient(t, srv)
	rec = other.do(http.MethodPost, "/auth/signup", credentials{Username: "gunner", Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username_taken", errorCode(t, rec))

	rec = other.do(http.MethodPost, "/auth/login", credentials{Username: "gunner", Password: "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = other.do(http.MethodPost, "/auth/login", credentials{Username: "gunner", Password: "hunter2hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = other.do(http.MethodGet, "/records/tank", nil)
	assert.Len(t, decode[[]game.Record](t, rec), 1)

	rec = other.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, other.cookies, "tg_token")
	rec = other.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 0.001)
	c := newClient(t, srv)

	rec := c.do(http.MethodPost, "/play/tank/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.do(http.MethodPost, "/play/tank/skip", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = c.do(http.MethodGet, "/play/tank/state", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestStateWithoutCookieCreatesNoScreen(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	for i := 0; i < 200; i++ {
		rec := newClient(t, srv).do(http.MethodGet, "/play/tank/state", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		v := decode[session.View](t, rec)
		assert.Equal(t, game.CategoryTank, v.Category)
		assert.Nil(t, v.Round)
	}
	assert.Equal(t, 0, srv.opts.Screens.Len())

	rec := newClient(t, srv).do(http.MethodGet, "/play/plane/state", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c := newClient(t, srv)
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/play/tank/start", nil).Code)
	rec = c.do(http.MethodGet, "/play/tank/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[session.View](t, rec).Round)
	assert.Equal(t, 1, srv.opts.Screens.Len())
}

func TestRateLimit_AnonymousSharesClientIP(t *testing.T) {
	srv, _ := newTestServer(t, 0.001)

	rec := newClient(t, srv).do(http.MethodPost, "/play/tank/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = newClient(t, srv).do(http.MethodPost, "/play/tank/start", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "a fresh cookie does not reset the bucket")
	assert.Equal(t, 1, srv.opts.Screens.Len())
}

func TestPlayerLimiter_DropsIdleBuckets(t *testing.T) {
	now := testNow
	l := newPlayerLimiter(1, 2, func() time.Time { return now })

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow(fmt.Sprintf("ip:10.0.0.%d", i)))
	}
	assert.Equal(t, 100, l.len())

	assert.True(t, l.allow("ip:10.0.0.0"))
	assert.False(t, l.allow("ip:10.0.0.0"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("ip:10.0.0.0"))
	assert.Equal(t, 1, l.len())

	var nilLimiter *playerLimiter
	assert.True(t, nilLimiter.allow("anyone"))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/play/tank/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
