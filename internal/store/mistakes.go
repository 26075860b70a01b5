package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mistake records that a user answered a question incorrectly. One record
// per (user, question) pair; re-missing a question refreshes the
// timestamp instead of duplicating it.
type Mistake struct {
	ID         string    `json:"_id"`
	UserID     string    `json:"userId"`
	QuestionID string    `json:"questionId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type MistakeStore interface {
	Add(ctx context.Context, userID, questionID string) (*Mistake, error)
	ListByUser(ctx context.Context, userID string) ([]*Mistake, error)
	Remove(ctx context.Context, userID string, questionIDs []string) (int64, error)
}

type MemoryMistakeStore struct {
	mu      sync.Mutex
	entries map[string]*Mistake // keyed by userID+"/"+questionID
}

func NewMemoryMistakeStore() *MemoryMistakeStore {
	return &MemoryMistakeStore{entries: map[string]*Mistake{}}
}

func (s *MemoryMistakeStore) Add(ctx context.Context, userID, questionID string) (*Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + questionID
	m := &Mistake{
		ID:         primitive.NewObjectID().Hex(),
		UserID:     userID,
		QuestionID: questionID,
		CreatedAt:  time.Now(),
	}
	if old, ok := s.entries[key]; ok {
		m.ID = old.ID
	}
	s.entries[key] = m
	clone := *m
	return &clone, nil
}

func (s *MemoryMistakeStore) ListByUser(ctx context.Context, userID string) ([]*Mistake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Mistake
	for _, m := range s.entries {
		if m.UserID == userID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryMistakeStore) Remove(ctx context.Context, userID string, questionIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, qid := range questionIDs {
		key := userID + "/" + qid
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}
