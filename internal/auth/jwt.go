package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Signer issues and verifies HS256 session tokens. It holds no mutable
// state and is safe for concurrent use.
type Signer struct {
	secret []byte
	iss    string
	ttl    time.Duration
}

// DefaultTokenTTL is the fixed validity window of a session token.
const DefaultTokenTTL = 7 * 24 * time.Hour

func NewSigner(secret []byte, iss string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{secret: secret, iss: iss, ttl: ttl}
}

// Issue produces a signed token for the account. The isAdmin claim is
// written alongside role for clients that still read the legacy flag.
func (s *Signer) Issue(u *User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"iss":      s.iss,
		"sub":      u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     string(u.Role),
		"isAdmin":  u.Role == RoleAdmin,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := tok.SignedString(s.secret)
	return ss, exp, err
}

// ParseAndValidate checks signature and expiry and decodes the claims.
// It fails closed: any structural, signature, or expiry failure returns
// a nil claim. ErrExpiredToken is distinguished for internal logging
// only; callers must surface both identically.
func (s *Signer) ParseAndValidate(tokenStr string) (*Claims, error) {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}

	tok, err := jwt.Parse(tokenStr, keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	std, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	getString := func(k string) string {
		if v, ok := std[k].(string); ok {
			return v
		}
		return ""
	}
	getInt64 := func(k string) int64 {
		switch v := std[k].(type) {
		case float64:
			return int64(v)
		case int64:
			return v
		default:
			return 0
		}
	}

	sub := getString("sub")
	if sub == "" {
		// Legacy tokens carried the account id under _id.
		sub = getString("_id")
	}
	if sub == "" {
		return nil, ErrInvalidToken
	}

	role := Role(getString("role"))
	if isAdmin, ok := std["isAdmin"].(bool); ok && isAdmin {
		// Legacy flag and role claim are equivalent truth sources;
		// reconcile them here so nothing downstream has to.
		role = RoleAdmin
	}
	if role != RoleAdmin {
		role = RoleUser
	}

	return &Claims{
		UserID:    sub,
		Username:  getString("username"),
		Email:     getString("email"),
		Role:      role,
		IssuedAt:  getInt64("iat"),
		ExpiresAt: getInt64("exp"),
	}, nil
}
