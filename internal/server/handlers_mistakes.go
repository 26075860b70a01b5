package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DDDDDaryl/question-bank/internal/auth"
	"github.com/DDDDDaryl/question-bank/internal/store"
)

type mistakeView struct {
	ID         string          `json:"_id"`
	QuestionID string          `json:"questionId"`
	Question   *store.Question `json:"question,omitempty"`
	CreatedAt  any             `json:"createdAt"`
}

func (s *Server) handleMistakes(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.MustClaims(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		mistakes, err := s.mistakes.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			s.logger.Printf("list mistakes: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch mistakes")
			return
		}
		out := make([]mistakeView, 0, len(mistakes))
		for _, m := range mistakes {
			v := mistakeView{ID: m.ID, QuestionID: m.QuestionID, CreatedAt: m.CreatedAt}
			// Resolve the question; a since-deleted one still lists.
			if q, err := s.questions.Get(r.Context(), m.QuestionID); err == nil {
				v.Question = q
			}
			out = append(out, v)
		}
		respondData(w, "", map[string]any{"mistakes": out})

	case http.MethodPost:
		var req struct {
			QuestionIDs []string `json:"questionIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionIDs == nil {
			respondError(w, http.StatusBadRequest, "request body must contain questionIds")
			return
		}
		saved := make([]*store.Mistake, 0, len(req.QuestionIDs))
		for _, qid := range req.QuestionIDs {
			if _, err := s.questions.Get(r.Context(), qid); err != nil {
				if errors.Is(err, store.ErrQuestionNotFound) {
					respondError(w, http.StatusBadRequest, "question not found: "+qid)
					return
				}
				s.logger.Printf("resolve question %s: %v", qid, err)
				respondError(w, http.StatusInternalServerError, "failed to save mistakes")
				return
			}
			m, err := s.mistakes.Add(r.Context(), claims.UserID, qid)
			if err != nil {
				s.logger.Printf("add mistake: %v", err)
				respondError(w, http.StatusInternalServerError, "failed to save mistakes")
				return
			}
			saved = append(saved, m)
		}
		respondData(w, "mistakes saved", map[string]any{"mistakes": saved})

	case http.MethodDelete:
		var req struct {
			QuestionIDs []string `json:"questionIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionIDs == nil {
			respondError(w, http.StatusBadRequest, "request body must contain questionIds")
			return
		}
		removed, err := s.mistakes.Remove(r.Context(), claims.UserID, req.QuestionIDs)
		if err != nil {
			s.logger.Printf("remove mistakes: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to remove mistakes")
			return
		}
		respondData(w, "mistakes removed", map[string]any{"removed": removed})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
