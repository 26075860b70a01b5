package server

import (
	"time"

	"github.com/DDDDDaryl/question-bank/internal/auth"
)

type SeedUser struct {
	Username string
	Email    string
	Password string
	Role     auth.Role
}

type Config struct {
	JWTSecret             []byte
	JWTIssuer             string
	TokenTTL              time.Duration
	AdminRegistrationCode string
	SecureCookies         bool
	SeedUsers             []SeedUser
}

func (c *Config) setDefaults() {
	if c.JWTIssuer == "" {
		c.JWTIssuer = "question-bank"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = auth.DefaultTokenTTL
	}
}
