package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
)

// User is a persisted account record. Accounts are deactivated, never
// physically deleted.
type User struct {
	ID             string
	Username       string
	Email          string
	PassHash       string // argon2id encoded string
	Role           Role
	IsActive       bool
	SubscribedTags []string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile returns the client-safe view of the account.
func (u *User) Profile() Profile {
	tags := u.SubscribedTags
	if tags == nil {
		tags = []string{}
	}
	return Profile{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		IsAdmin:        u.Role == RoleAdmin,
		IsActive:       u.IsActive,
		SubscribedTags: tags,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// ProfileUpdate carries optional field changes; nil means unchanged.
type ProfileUpdate struct {
	Username       *string
	Email          *string
	SubscribedTags *[]string
}

type UserStore interface {
	Add(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)
	UpdatePassword(ctx context.Context, id, newHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// MemoryUserStore keeps accounts in process memory. Used in tests and as
// a stand-in when no database is configured.
type MemoryUserStore struct {
	mu   sync.Mutex
	byID map[string]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byID: map[string]*User{}}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryUserStore) Add(ctx context.Context, u *User) error {
	if u == nil {
		return errors.New("user is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(u.Email)
	for _, ex := range s.byID {
		if ex.Username == u.Username || ex.Email == email {
			return ErrDuplicateUser
		}
	}
	clone := *u
	clone.Email = email
	if clone.ID == "" {
		clone.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	s.byID[clone.ID] = &clone
	*u = clone
	return nil
}

func (s *MemoryUserStore) find(match func(*User) bool) (*User, error) {
	for _, u := range s.byID {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *User) bool { return u.ID == id })
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *User) bool { return u.Username == username })
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	want := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(u *User) bool { return u.Email == want })
}

func (s *MemoryUserStore) List(ctx context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryUserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	t := at
	u.LastLoginAt = &t
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryUserStore) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if upd.Username != nil {
		for oid, ex := range s.byID {
			if oid != id && ex.Username == *upd.Username {
				return nil, ErrDuplicateUser
			}
		}
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		for oid, ex := range s.byID {
			if oid != id && ex.Email == email {
				return nil, ErrDuplicateUser
			}
		}
		u.Email = email
	}
	if upd.SubscribedTags != nil {
		u.SubscribedTags = append([]string(nil), (*upd.SubscribedTags)...)
	}
	u.UpdatedAt = time.Now()
	clone := *u
	return &clone, nil
}

func (s *MemoryUserStore) UpdatePassword(ctx context.Context, id, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PassHash = newHash
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryUserStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryUserStore) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.byID {
		if u.LastLoginAt != nil && !u.LastLoginAt.Before(since) {
			n++
		}
	}
	return n, nil
}
