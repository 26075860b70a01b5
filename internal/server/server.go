package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/DDDDDaryl/question-bank/internal/audit"
	"github.com/DDDDDaryl/question-bank/internal/auth"
	"github.com/DDDDDaryl/question-bank/internal/store"
)

// Stores bundles the persistence dependencies. They are constructed by
// the caller (the process entry point owns the database client) and
// injected here.
type Stores struct {
	Users     auth.UserStore
	Questions store.QuestionStore
	Mistakes  store.MistakeStore
	Settings  store.SettingsStore
}

type Server struct {
	cfg Config

	mux       *http.ServeMux
	signer    *auth.Signer
	users     auth.UserStore
	questions store.QuestionStore
	mistakes  store.MistakeStore
	settings  store.SettingsStore
	audit     *audit.Log
	logger    *log.Logger

	rlLoginIP    *multiLimiter
	rlLoginID    *multiLimiter
	rlRegisterIP *multiLimiter
}

func New(ctx context.Context, cfg Config, st Stores) (*Server, error) {
	cfg.setDefaults()
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("server: JWTSecret required")
	}
	if st.Users == nil || st.Questions == nil || st.Mistakes == nil || st.Settings == nil {
		return nil, errors.New("server: all stores required")
	}

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		signer:    auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
		users:     st.Users,
		questions: st.Questions,
		mistakes:  st.Mistakes,
		settings:  st.Settings,
		audit:     audit.New(),
		logger:    log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile),
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }
	s.rlLoginIP = newMultiLimiter(rate.Limit(perWindow(10, time.Minute)), 10, 1*time.Hour)
	s.rlLoginID = newMultiLimiter(rate.Limit(perWindow(5, time.Minute)), 5, 1*time.Hour)
	s.rlRegisterIP = newMultiLimiter(rate.Limit(perWindow(5, time.Minute)), 5, 1*time.Hour)

	if err := s.ensureSeedUsers(ctx); err != nil {
		return nil, err
	}

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rid := r.Header.Get("X-Request-ID")
	if rid == "" {
		rid = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", rid)

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("rid=%s panic: %v", rid, rec)
			respondError(w, http.StatusInternalServerError, "internal error")
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := time.Now()
	defer func() {
		s.logger.Printf("rid=%s %s %s %s", rid, r.Method, r.URL.Path, time.Since(start))
	}()

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") && !s.isPublic(path) {
		// Every non-public API route sits behind the authentication
		// gate; admin routes add their role check on top.
		auth.RequireAuth(s.signer)(s.mux).ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health",
		"/api/auth/login", "/api/auth/register", "/api/auth/logout":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}

func (s *Server) ensureSeedUsers(ctx context.Context) error {
	for _, seed := range s.cfg.SeedUsers {
		if strings.TrimSpace(seed.Username) == "" || strings.TrimSpace(seed.Password) == "" {
			continue
		}
		if _, err := s.users.FindByUsername(ctx, seed.Username); err == nil {
			continue
		}
		hash, err := auth.HashPassword(auth.DefaultArgon, seed.Password)
		if err != nil {
			return err
		}
		role := seed.Role
		if role == "" {
			role = auth.RoleUser
		}
		u := &auth.User{
			Username: seed.Username,
			Email:    strings.TrimSpace(strings.ToLower(seed.Email)),
			PassHash: hash,
			Role:     role,
			IsActive: true,
		}
		if err := s.users.Add(ctx, u); err != nil {
			return err
		}
		s.logger.Printf("seeded user %s (%s)", u.Username, u.Role)
	}
	return nil
}
