package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DDDDDaryl/question-bank/internal/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.rlRegisterIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}

	settings, err := s.settings.Get(r.Context())
	if err != nil {
		s.logger.Printf("settings load: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if !settings.AllowNewRegistrations {
		respondError(w, http.StatusForbidden, "new registrations are currently disabled")
		return
	}

	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if !isValidEmail(req.Email) {
		respondError(w, http.StatusBadRequest, "valid email required")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, "weak password: "+err.Error())
		return
	}

	role := auth.RoleUser
	if s.cfg.AdminRegistrationCode != "" && req.RegistrationCode == s.cfg.AdminRegistrationCode {
		role = auth.RoleAdmin
	}

	hash, err := auth.HashPassword(auth.DefaultArgon, req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash password failed")
		return
	}

	now := time.Now()
	user := &auth.User{
		Username:       req.Username,
		Email:          req.Email,
		PassHash:       hash,
		Role:           role,
		IsActive:       true,
		SubscribedTags: []string{},
		LastLoginAt:    &now,
	}
	if err := s.users.Add(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			respondError(w, http.StatusBadRequest, "username or email already registered")
			return
		}
		s.logger.Printf("register: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	tok, _, err := s.signer.Issue(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	auth.SetSessionCookie(w, tok, s.cfg.SecureCookies)

	respondStatusData(w, http.StatusCreated, "registered", map[string]any{
		"user": user.Profile(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.rlLoginIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if !s.rlLoginID.allow(email) {
		tooMany(w, 60)
		return
	}

	// Unknown account and wrong password share one message.
	user, err := s.users.FindByEmail(r.Context(), email)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.IsActive {
		respondError(w, http.StatusForbidden, "account disabled, contact an administrator")
		return
	}
	ok, err := auth.VerifyPassword(req.Password, user.PassHash)
	if err != nil || !ok {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(r.Context(), user.ID, now); err != nil {
		s.logger.Printf("update last login for %s: %v", user.Username, err)
	}
	user.LastLoginAt = &now

	tok, _, err := s.signer.Issue(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	auth.SetSessionCookie(w, tok, s.cfg.SecureCookies)

	respondData(w, "login successful", map[string]any{
		"user": user.Profile(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	auth.ClearSessionCookie(w, s.cfg.SecureCookies)
	writeJSON(w, apiResponse{Success: true})
}
