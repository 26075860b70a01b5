package auth

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Claims is the decoded, verified payload of a session token. Only the
// token codec builds these; handlers receive them through the request
// context and must never hand-assemble one.
type Claims struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

func (c *Claims) IsAdmin() bool { return c.Role == RoleAdmin }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	RegistrationCode string `json:"registrationCode"`
}

// Profile is the sanitized view of an account returned to clients.
// The password hash never leaves the store boundary.
type Profile struct {
	ID             string     `json:"_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	IsAdmin        bool       `json:"isAdmin"`
	IsActive       bool       `json:"isActive"`
	SubscribedTags []string   `json:"subscribedTags"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
