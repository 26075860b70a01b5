package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DDDDDaryl/question-bank/internal/auth"
	"github.com/DDDDDaryl/question-bank/internal/store"
)

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		filter := store.ListFilter{
			Type:       store.QuestionType(q.Get("type")),
			Difficulty: store.Difficulty(q.Get("difficulty")),
			Tag:        q.Get("tag"),
			Search:     q.Get("search"),
		}
		questions, err := s.questions.List(r.Context(), filter)
		if err != nil {
			s.logger.Printf("list questions: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to fetch questions")
			return
		}
		if questions == nil {
			questions = []*store.Question{}
		}
		respondData(w, "", map[string]any{"questions": questions})

	case http.MethodPost:
		claims, err := auth.MustClaims(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var q store.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}
		if errs := store.ValidateQuestion(&q); errs != nil {
			respondValidation(w, errs)
			return
		}
		q.CreatedBy = claims.Username
		if err := s.questions.Create(r.Context(), &q); err != nil {
			s.logger.Printf("create question: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to create question")
			return
		}
		respondStatusData(w, http.StatusCreated, "question created", map[string]any{"question": q})

	case http.MethodPut:
		var req struct {
			Questions []*store.Question `json:"questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Questions == nil {
			respondError(w, http.StatusBadRequest, "request body must contain a questions array")
			return
		}
		res, err := s.questions.BulkUpsert(r.Context(), req.Questions)
		if err != nil {
			s.logger.Printf("bulk upsert: %v", err)
			respondError(w, http.StatusBadRequest, "bulk update failed")
			return
		}
		respondData(w, "questions updated", res)

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRandomQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count := 10
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			count = n
		}
	}
	if count < 1 {
		count = 1
	}
	if count > 50 {
		count = 50
	}
	questions, err := s.questions.Random(r.Context(), count)
	if err != nil {
		s.logger.Printf("random questions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch random questions")
		return
	}
	if questions == nil {
		questions = []*store.Question{}
	}
	respondData(w, "", map[string]any{"questions": questions})
}

func (s *Server) handleQuestionTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tags, err := s.questions.Tags(r.Context())
	if err != nil {
		s.logger.Printf("question tags: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	respondData(w, "", map[string]any{"tags": tags})
}

func (s *Server) handleQuestionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/questions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		q, err := s.questions.Get(r.Context(), id)
		if err != nil {
			s.respondQuestionErr(w, err)
			return
		}
		respondData(w, "", map[string]any{"question": q})

	case http.MethodPatch:
		var q store.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			respondError(w, http.StatusBadRequest, "bad json")
			return
		}
		if errs := store.ValidateQuestion(&q); errs != nil {
			respondValidation(w, errs)
			return
		}
		updated, err := s.questions.Update(r.Context(), id, &q)
		if err != nil {
			s.respondQuestionErr(w, err)
			return
		}
		respondData(w, "question updated", map[string]any{"question": updated})

	case http.MethodDelete:
		q, err := s.questions.Delete(r.Context(), id)
		if err != nil {
			s.respondQuestionErr(w, err)
			return
		}
		if claims, ok := auth.FromContext(r.Context()); ok {
			s.audit.Append(claims.Username, "deleted question "+id)
		}
		respondData(w, "question deleted", map[string]any{"question": q})

	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) respondQuestionErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrQuestionNotFound) {
		respondError(w, http.StatusNotFound, "question not found")
		return
	}
	s.logger.Printf("question store: %v", err)
	respondError(w, http.StatusInternalServerError, "question store error")
}
