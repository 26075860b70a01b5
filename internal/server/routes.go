package server

import (
	"net/http"

	"github.com/DDDDDaryl/question-bank/internal/auth"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	s.mux.HandleFunc("/api/questions", s.handleQuestions)
	s.mux.HandleFunc("/api/questions/random", s.handleRandomQuestions)
	s.mux.HandleFunc("/api/questions/tags", s.handleQuestionTags)
	s.mux.HandleFunc("/api/questions/", s.handleQuestionByID)

	s.mux.HandleFunc("/api/mistakes", s.handleMistakes)

	s.mux.HandleFunc("/api/user/profile", s.handleProfile)
	s.mux.HandleFunc("/api/user/tags", s.handleUserTags)

	adminOnly := auth.RequireAdmin()
	s.mux.Handle("/api/admin/check", adminOnly(http.HandlerFunc(s.handleAdminCheck)))
	s.mux.Handle("/api/admin/users", adminOnly(http.HandlerFunc(s.handleAdminUsers)))
	s.mux.Handle("/api/admin/settings", adminOnly(http.HandlerFunc(s.handleAdminSettings)))
	s.mux.Handle("/api/admin/audit", adminOnly(http.HandlerFunc(s.handleAdminAudit)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
