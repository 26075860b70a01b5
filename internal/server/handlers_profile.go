package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DDDDDaryl/question-bank/internal/auth"
)

type updateProfileReq struct {
	Username       *string   `json:"username"`
	Email          *string   `json:"email"`
	Password       *string   `json:"password"`
	SubscribedTags *[]string `json:"subscribedTags"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.users.FindByID(r.Context(), claims.UserID)
		if err != nil {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondData(w, "", map[string]any{"user": user.Profile()})

	case http.MethodPatch:
		var req updateProfileReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}

		upd := auth.ProfileUpdate{SubscribedTags: req.SubscribedTags}
		if req.Username != nil {
			name := strings.TrimSpace(*req.Username)
			if name == "" {
				respondError(w, http.StatusBadRequest, "username must not be empty")
				return
			}
			upd.Username = &name
		}
		if req.Email != nil {
			email := strings.TrimSpace(strings.ToLower(*req.Email))
			if !isValidEmail(email) {
				respondError(w, http.StatusBadRequest, "valid email required")
				return
			}
			upd.Email = &email
		}

		user, err := s.users.UpdateProfile(r.Context(), claims.UserID, upd)
		if err != nil {
			if errors.Is(err, auth.ErrDuplicateUser) {
				respondError(w, http.StatusBadRequest, "username or email already in use")
				return
			}
			if errors.Is(err, auth.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, "user not found")
				return
			}
			s.logger.Printf("update profile: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}

		if req.Password != nil {
			if err := validatePassword(*req.Password); err != nil {
				respondError(w, http.StatusBadRequest, "weak password: "+err.Error())
				return
			}
			hash, err := auth.HashPassword(auth.DefaultArgon, *req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "hash password failed")
				return
			}
			if err := s.users.UpdatePassword(r.Context(), claims.UserID, hash); err != nil {
				s.logger.Printf("update password: %v", err)
				respondError(w, http.StatusInternalServerError, "failed to update password")
				return
			}
		}

		respondData(w, "profile updated", map[string]any{"user": user.Profile()})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUserTags(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, err := s.users.FindByID(r.Context(), claims.UserID)
		if err != nil {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		tags := user.SubscribedTags
		if tags == nil {
			tags = []string{}
		}
		respondData(w, "", map[string]any{"tags": tags})

	case http.MethodPut:
		var req struct {
			Tags []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tags == nil {
			respondError(w, http.StatusBadRequest, "request body must contain tags")
			return
		}
		user, err := s.users.UpdateProfile(r.Context(), claims.UserID, auth.ProfileUpdate{
			SubscribedTags: &req.Tags,
		})
		if err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, "user not found")
				return
			}
			s.logger.Printf("update tags: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to update tags")
			return
		}
		respondData(w, "tags updated", map[string]any{"tags": user.SubscribedTags})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
