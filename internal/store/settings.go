package store

import (
	"context"
	"sync"
	"time"
)

// Settings is the single system-settings document.
type Settings struct {
	AllowNewRegistrations bool      `json:"allowNewRegistrations"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

type SettingsStore interface {
	// Get returns the current settings, creating the default document
	// when none exists yet.
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, allowNewRegistrations bool) (*Settings, error)
}

type MemorySettingsStore struct {
	mu       sync.Mutex
	settings Settings
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{
		settings: Settings{AllowNewRegistrations: true, UpdatedAt: time.Now()},
	}
}

func (s *MemorySettingsStore) Get(ctx context.Context) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.settings
	return &clone, nil
}

func (s *MemorySettingsStore) Update(ctx context.Context, allow bool) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AllowNewRegistrations = allow
	s.settings.UpdatedAt = time.Now()
	clone := s.settings
	return &clone, nil
}
