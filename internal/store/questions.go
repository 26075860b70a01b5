// Package store holds the persisted question-bank records: questions,
// per-user mistakes, and system settings. Each store has a Mongo-backed
// implementation and an in-memory one for tests.
package store

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrQuestionNotFound = errors.New("question not found")

type QuestionType string

const (
	SingleChoice   QuestionType = "SINGLE_CHOICE"
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Option is the canonical answer-option shape. Legacy records that store
// options as plain strings with a separate answer field are repaired into
// this form on read; see repair.go.
type Option struct {
	Content   string `json:"content" bson:"content"`
	IsCorrect bool   `json:"isCorrect" bson:"isCorrect"`
}

type Question struct {
	ID          string       `json:"_id,omitempty"`
	Title       string       `json:"title"`
	Type        QuestionType `json:"type"`
	Content     string       `json:"content"`
	Options     []Option     `json:"options"`
	Explanation string       `json:"explanation,omitempty"`
	Difficulty  Difficulty   `json:"difficulty"`
	Tags        []string     `json:"tags"`
	Source      string       `json:"source,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	Type       QuestionType
	Difficulty Difficulty
	Tag        string
	Search     string // case-insensitive match on title or content
}

// BulkResult reports the outcome of a bulk upsert.
type BulkResult struct {
	Matched  int64 `json:"matched"`
	Upserted int64 `json:"upserted"`
}

type QuestionStore interface {
	List(ctx context.Context, f ListFilter) ([]*Question, error)
	Get(ctx context.Context, id string) (*Question, error)
	Create(ctx context.Context, q *Question) error
	Update(ctx context.Context, id string, q *Question) (*Question, error)
	Delete(ctx context.Context, id string) (*Question, error)
	BulkUpsert(ctx context.Context, qs []*Question) (BulkResult, error)
	Random(ctx context.Context, n int) ([]*Question, error)
	Tags(ctx context.Context) ([]string, error)
}

// ValidateQuestion returns per-field errors, or nil when the question is
// well formed.
func ValidateQuestion(q *Question) map[string][]string {
	errs := map[string][]string{}

	if strings.TrimSpace(q.Title) == "" {
		errs["title"] = append(errs["title"], "title is required")
	}
	switch q.Type {
	case SingleChoice, MultipleChoice:
	case "":
		errs["type"] = append(errs["type"], "type is required")
	default:
		errs["type"] = append(errs["type"], "invalid question type")
	}
	if strings.TrimSpace(q.Content) == "" {
		errs["content"] = append(errs["content"], "content is required")
	}

	if len(q.Options) < 2 {
		errs["options"] = append(errs["options"], "at least two options are required")
	} else {
		correct := 0
		for _, o := range q.Options {
			if strings.TrimSpace(o.Content) == "" {
				errs["options"] = append(errs["options"], "option content must not be empty")
				break
			}
		}
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			errs["answer"] = append(errs["answer"], "at least one option must be correct")
		} else if q.Type == SingleChoice && correct > 1 {
			errs["answer"] = append(errs["answer"], "single-choice questions must have exactly one correct option")
		}
	}

	switch q.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	case "":
		errs["difficulty"] = append(errs["difficulty"], "difficulty is required")
	default:
		errs["difficulty"] = append(errs["difficulty"], "invalid difficulty")
	}

	if len(q.Tags) == 0 {
		errs["tags"] = append(errs["tags"], "at least one tag is required")
	} else {
		for _, t := range q.Tags {
			if strings.TrimSpace(t) == "" {
				errs["tags"] = append(errs["tags"], "tags must not be empty")
				break
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func matchesFilter(q *Question, f ListFilter) bool {
	if f.Type != "" && q.Type != f.Type {
		return false
	}
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range q.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(q.Title), needle) &&
			!strings.Contains(strings.ToLower(q.Content), needle) {
			return false
		}
	}
	return true
}

// MemoryQuestionStore keeps questions in process memory.
type MemoryQuestionStore struct {
	mu   sync.Mutex
	byID map[string]*Question
}

func NewMemoryQuestionStore() *MemoryQuestionStore {
	return &MemoryQuestionStore{byID: map[string]*Question{}}
}

func cloneQuestion(q *Question) *Question {
	clone := *q
	clone.Options = append([]Option(nil), q.Options...)
	clone.Tags = append([]string(nil), q.Tags...)
	return &clone
}

func (s *MemoryQuestionStore) List(ctx context.Context, f ListFilter) ([]*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Question
	for _, q := range s.byID {
		if matchesFilter(q, f) {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryQuestionStore) Get(ctx context.Context, id string) (*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (s *MemoryQuestionStore) Create(ctx context.Context, q *Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	clone := cloneQuestion(q)
	if clone.ID == "" {
		clone.ID = primitive.NewObjectID().Hex()
	}
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.byID[clone.ID] = clone
	*q = *cloneQuestion(clone)
	return nil
}

func (s *MemoryQuestionStore) Update(ctx context.Context, id string, q *Question) (*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	clone := cloneQuestion(q)
	clone.ID = id
	clone.CreatedAt = old.CreatedAt
	clone.UpdatedAt = time.Now()
	s.byID[id] = clone
	return cloneQuestion(clone), nil
}

func (s *MemoryQuestionStore) Delete(ctx context.Context, id string) (*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	delete(s.byID, id)
	return cloneQuestion(q), nil
}

func (s *MemoryQuestionStore) BulkUpsert(ctx context.Context, qs []*Question) (BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res BulkResult
	now := time.Now()
	for _, q := range qs {
		clone := cloneQuestion(q)
		if clone.ID == "" {
			clone.ID = primitive.NewObjectID().Hex()
		}
		if old, ok := s.byID[clone.ID]; ok {
			clone.CreatedAt = old.CreatedAt
			res.Matched++
		} else {
			clone.CreatedAt = now
			res.Upserted++
		}
		clone.UpdatedAt = now
		s.byID[clone.ID] = clone
	}
	return res, nil
}

func (s *MemoryQuestionStore) Random(ctx context.Context, n int) ([]*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*Question, 0, len(s.byID))
	for _, q := range s.byID {
		all = append(all, cloneQuestion(q))
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (s *MemoryQuestionStore) Tags(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, q := range s.byID {
		for _, t := range q.Tags {
			seen[t] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
