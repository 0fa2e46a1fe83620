// internal/httpserver/server.go
//
// HTTP server wiring for the songdle backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Catalog + game endpoints (optional auth): GET /songs/{levelID},
//     POST /game/validate, GET /game/song/{songID}/reveal.
//   - Gated endpoints: POST /game/submit-score, POST /game/daily/complete,
//     /auth/me, /auth/provider-token.
//   - Auth: /auth/register, /auth/login. JWT bearer tokens, bcrypt hashes.
//
// Notes:
//   - Guests never need a token: local levels and validation work anonymously.
//     Score submission is members-only; guests keep their ledger client-side.
//   - Optional auth decorates requests with user context when a valid token is
//     present. A present-but-invalid token on a members-only resource is a 401,
//     which is a different remediation than having no account at all (403).

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/davidgrc/songdle/internal/catalog"
	"github.com/davidgrc/songdle/internal/judge"
	"github.com/davidgrc/songdle/internal/store"
)

// Config carries the server's runtime knobs; main fills it from flags/env.
type Config struct {
	JWTSecret    string
	JWTExpiry    time.Duration
	ClientOrigin string
}

func (c Config) withDefaults() Config {
	if c.JWTSecret == "" {
		c.JWTSecret = "dev_secret_change_me"
	}
	if c.JWTExpiry <= 0 {
		c.JWTExpiry = 14 * 24 * time.Hour
	}
	if c.ClientOrigin == "" {
		c.ClientOrigin = "http://localhost:5173"
	}
	return c
}

// Server bundles router, store, catalog service, and the title judge.
type Server struct {
	r       *chi.Mux
	store   *store.Store
	catalog *catalog.Service
	judge   *judge.Judge
	cfg     Config
}

// New constructs a Server, installs middleware, and registers routes.
func New(st *store.Store, cat *catalog.Service, cfg Config) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		store:   st,
		catalog: cat,
		judge:   judge.New(),
		cfg:     cfg.withDefaults(),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(s.cors)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"songdle","endpoints":["/health","/api/v1/songs/{levelID}","POST /api/v1/game/validate","/api/v1/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)
		api.With(s.requireAuth()).Get("/auth/me", s.handleMe)
		api.With(s.requireAuth()).Post("/auth/provider-token", s.handleProviderToken)

		// Catalog + validation work for guests; auth decorates when present.
		api.With(s.withOptionalAuth()).Get("/songs/{levelID}", s.handleSong)
		api.Post("/game/validate", s.handleValidate)
		api.Get("/game/song/{songID}/reveal", s.handleReveal)

		api.With(s.requireAuth()).Post("/game/submit-score", s.handleSubmitScore)
		api.With(s.requireAuth()).Post("/game/daily/complete", s.handleDailyComplete)

		api.Get("/ranking", s.handleRanking)
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- AUTH --------------------------------------

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authRes struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	TotalScore  int    `json:"total_score"`
	GamesPlayed int    `json:"games_played"`
	Linked      bool   `json:"linked"`
}

func viewOf(u *store.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		TotalScore:  u.TotalScore,
		GamesPlayed: u.GamesPlayed,
		Linked:      u.ProviderToken != "",
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if err := validateRegister(body.Username, body.Email, body.Password); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	taken, err := s.store.UserExists(r.Context(), body.Username, body.Email)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, `{"error":"username or email taken"}`, http.StatusConflict)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error":"hash_failed"}`, http.StatusInternalServerError)
		return
	}
	u, err := s.store.CreateUser(r.Context(), body.Username, body.Email, string(hash))
	if err != nil {
		log.Error().Err(err).Msg("create user")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	tok, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(authRes{Token: tok, User: viewOf(u)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.store.UserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(body.Email)))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)) != nil {
		http.Error(w, `{"error":"invalid email or password"}`, http.StatusUnauthorized)
		return
	}
	tok, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(authRes{Token: tok, User: viewOf(u)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	if me == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	view := viewOf(me)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id": view.ID, "username": view.Username, "email": view.Email,
		"total_score": view.TotalScore, "games_played": view.GamesPlayed,
		"linked":                view.Linked,
		"daily_completed_today": me.DailyCompletedToday(time.Now()),
	})
}

// handleProviderToken links (or with an empty token, unlinks) the caller's
// music account.
func (s *Server) handleProviderToken(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	if me == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if err := s.store.SetProviderToken(r.Context(), me.ID, strings.TrimSpace(body.Token)); err != nil {
		log.Error().Err(err).Str("user", me.ID).Msg("set provider token")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func validateRegister(username, email, password string) error {
	switch {
	case len(username) < 3 || len(username) > 24:
		return errBadField("username must be 3-24 chars")
	case !strings.Contains(email, "@"):
		return errBadField("invalid email")
	case len(password) < 8 || len(password) > 100:
		return errBadField("password must be 8-100 chars")
	}
	for _, r := range username {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errBadField("username: letters, numbers, underscore only")
		}
	}
	return nil
}

type errBadField string

func (e errBadField) Error() string { return string(e) }

// ------------------------------ JWT ----------------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      now.Add(s.cfg.JWTExpiry).Unix(),
		"iat":      now.Unix(),
	})
	return t.SignedString([]byte(s.cfg.JWTSecret))
}

// bearer extracts a bearer token from the Authorization header.
func bearer(r *http.Request) string {
	a := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}

// parseToken validates a JWT and loads the user it names.
func (s *Server) parseToken(ctx context.Context, tokenStr string) (*store.User, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errBadField("invalid token")
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil, errBadField("invalid token")
	}
	return s.store.UserByID(ctx, id)
}

// ---------------------------- auth middleware ------------------------------

// ctxUserKey is the context key type for the authenticated user.
type ctxUserKey struct{}

func userFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(ctxUserKey{}).(*store.User)
	return u
}

// withOptionalAuth decorates requests with user context if a valid JWT is
// present. It never 401s on its own; handlers that need the distinction
// between "no token" and "bad token" look at the Authorization header.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearer(r); tok != "" {
				if u, err := s.parseToken(r.Context(), tok); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth enforces a valid JWT and injects the user into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			u, err := s.parseToken(r.Context(), tok)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, u)))
		})
	}
}
