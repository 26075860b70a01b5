package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DDDDDaryl/question-bank/internal/auth"
)

func (s *Server) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondData(w, "", map[string]any{"isAdmin": true})
}

type userStats struct {
	TotalUsers         int     `json:"totalUsers"`
	ActiveUsers        int64   `json:"activeUsers"`
	AverageTagsPerUser float64 `json:"averageTagsPerUser"`
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		users, err := s.users.List(r.Context())
		if err != nil {
			s.logger.Printf("list users: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch users")
			return
		}

		sevenDaysAgo := time.Now().Add(-7 * 24 * time.Hour)
		active, err := s.users.CountActiveSince(r.Context(), sevenDaysAgo)
		if err != nil {
			s.logger.Printf("count active users: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch users")
			return
		}

		profiles := make([]auth.Profile, 0, len(users))
		totalTags := 0
		for _, u := range users {
			profiles = append(profiles, u.Profile())
			totalTags += len(u.SubscribedTags)
		}
		stats := userStats{TotalUsers: len(users), ActiveUsers: active}
		if len(users) > 0 {
			stats.AverageTagsPerUser = float64(totalTags) / float64(len(users))
		}

		respondData(w, "", map[string]any{"users": profiles, "stats": stats})

	case http.MethodPatch:
		var req struct {
			UserID   string `json:"userId"`
			IsActive *bool  `json:"isActive"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.UserID == "" || req.IsActive == nil {
			respondError(w, http.StatusBadRequest, "userId and isActive are required")
			return
		}
		if err := s.users.SetActive(r.Context(), req.UserID, *req.IsActive); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				respondError(w, http.StatusNotFound, "user not found")
				return
			}
			s.logger.Printf("set active: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		s.audit.Append(claims.Username, fmt.Sprintf("set user %s active=%t", req.UserID, *req.IsActive))

		user, err := s.users.FindByID(r.Context(), req.UserID)
		if err != nil {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondData(w, "user updated", map[string]any{"user": user.Profile()})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAdminSettings(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.Get(r.Context())
		if err != nil {
			s.logger.Printf("get settings: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch settings")
			return
		}
		respondData(w, "", map[string]any{"settings": settings})

	case http.MethodPatch:
		var req struct {
			AllowNewRegistrations *bool `json:"allowNewRegistrations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.AllowNewRegistrations == nil {
			respondError(w, http.StatusBadRequest, "allowNewRegistrations is required")
			return
		}
		settings, err := s.settings.Update(r.Context(), *req.AllowNewRegistrations)
		if err != nil {
			s.logger.Printf("update settings: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}
		s.audit.Append(claims.Username, fmt.Sprintf("set allowNewRegistrations=%t", *req.AllowNewRegistrations))
		respondData(w, "settings updated", map[string]any{"settings": settings})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.audit.Verify(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(w, "", map[string]any{"entries": s.audit.Entries()})
}
