// apps/go-server/internal/httpserver/auth.go
//
// Accounts and player identity.
// Responsibilities:
//   - POST /auth/signup, /auth/login, /auth/logout and GET /auth/me.
//   - HS256 JWT issued into an HttpOnly cookie (or read from a bearer header).
//   - Anonymous player cookie for guests; its records, results and stats are
//     claimed by the account on signup/login.
//   - withPlayer middleware: resolves the player id for every play request.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/tankguess/apps/go-server/internal/store"
)

// credentials is the signup/login body.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authUser is placed into request context when a valid token is present.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ctxUserKey struct{}
type ctxPlayerKey struct{}

func (s *Server) mountAuthRoutes(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.With(s.requireAuth).Get("/auth/me", s.handleMe)
}

// handleSignup creates a user, signs a JWT, sets the auth cookie and claims
// the anonymous player's progress.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	username := normalizeUsername(body.Username)
	if err := validateSignup(username, body.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	u := store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.opts.Now().UTC(),
	}
	if err := s.opts.Backend.CreateUser(r.Context(), u); err != nil {
		writeErr(w, r, err)
		return
	}
	if !s.issueToken(w, r, u) {
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates, sets the cookie and claims anonymous progress.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.opts.Backend.UserByName(r.Context(), normalizeUsername(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("login lookup")
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !s.issueToken(w, r, u) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogout clears the auth cookie. The anonymous cookie is kept.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	st, err := s.opts.Backend.Stats(r.Context(), me.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          me.ID,
		"username":    me.Username,
		"gamesPlayed": st.Played,
		"wins":        st.Wins,
		"streak":      st.Streak,
	})
}

// issueToken signs and sets the JWT, then moves the anonymous player's
// progress to u. It writes the error response and returns false on failure.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request, u store.User) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return false
	}
	s.setAuthCookie(w, tok, exp)

	if c, err := r.Cookie(s.anonCookieName()); err == nil && c.Value != "" && c.Value != u.ID {
		if err := s.opts.Backend.ClaimPlayer(r.Context(), c.Value, u.ID); err != nil {
			log.Warn().Err(err).Str("user", u.ID).Msg("claim anonymous progress")
		} else if s.opts.Screens != nil {
			s.opts.Screens.Forget(c.Value)
		}
	}
	return true
}

// --------------------------- identity middleware ---------------------------

// withPlayer decorates requests with the authenticated user (if any) and the
// player id. Guests get an anonymous cookie id. It never 401s.
func (s *Server) withPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		player := ""
		if me := s.userFromToken(r); me != nil {
			ctx = context.WithValue(ctx, ctxUserKey{}, me)
			player = me.ID
		} else {
			player = s.ensureAnonID(w, r)
		}
		ctx = context.WithValue(ctx, ctxPlayerKey{}, player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth enforces a valid JWT for an existing user.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerOrCookie(r, s.opts.CookieName) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		me := s.userFromToken(r)
		if me == nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, me)))
	})
}

// userFromToken validates the request's token and checks the user still exists.
func (s *Server) userFromToken(r *http.Request) *authUser {
	tok := bearerOrCookie(r, s.opts.CookieName)
	if tok == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil
	}
	if _, err := s.opts.Backend.UserByID(r.Context(), id); err != nil {
		return nil
	}
	return &authUser{ID: id, Username: username}
}

func userFrom(ctx context.Context) *authUser {
	u, _ := ctx.Value(ctxUserKey{}).(*authUser)
	return u
}

func playerFrom(ctx context.Context) string {
	p, _ := ctx.Value(ctxPlayerKey{}).(string)
	return p
}

func (s *Server) anonCookieName() string { return s.opts.CookieName + "_anon" }

// ensureAnonID returns an existing anon cookie or sets a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.anonCookieName()); err == nil && c.Value != "" {
		return c.Value
	}
	id := "anon-" + uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     s.anonCookieName(),
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Production,
		SameSite: s.sameSite(),
		Expires:  s.opts.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := s.opts.Now()
	exp := now.Add(time.Duration(s.opts.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

func (s *Server) sameSite() http.SameSite {
	if s.opts.Production {
		return http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return http.SameSiteLaxMode
}

// setAuthCookie writes the auth token cookie.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Production,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Production,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from the Authorization header or the
// auth cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}

// ------------------------------- validation --------------------------------

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3-24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8-100 chars")
	}
	return nil
}
