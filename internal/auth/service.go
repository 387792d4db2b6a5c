// Package auth issues and validates dashboard sessions.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-radar/internal/model"

	"github.com/google/uuid"
)

// Store provides user and session persistence.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
}

// Config tunes session lifetime.
type Config struct {
	SessionTTL string `yaml:"session_ttl" json:"session_ttl"`
}

// ErrInvalidCredentials is returned for unknown users or bad passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service implements login and session lookup. Session tokens are random
// UUIDs; the role list is snapshotted onto the session at login.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService builds the Service with a default 24 hour session lifetime.
func NewService(store Store, cfg Config) *Service {
	ttl := 24 * time.Hour
	if cfg.SessionTTL != "" {
		if d, err := time.ParseDuration(cfg.SessionTTL); err == nil && d > 0 {
			ttl = d
		}
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// HashPassword returns the stored form of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Login verifies credentials and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash := HashPassword(password)
	if subtle.ConstantTimeCompare([]byte(hash), []byte(user.PasswordHash)) != 1 {
		return nil, ErrInvalidCredentials
	}

	sess := &model.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Roles:     user.Roles,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Session returns the session for a token, or nil when the token is unknown
// or expired.
func (s *Service) Session(ctx context.Context, token string) (*model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	sess, err := s.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if s.now().After(sess.ExpiresAt) {
		return nil, nil
	}
	return sess, nil
}

// HasRole reports whether the session carries the given role.
func HasRole(sess *model.Session, role string) bool {
	if sess == nil {
		return false
	}
	for _, r := range sess.Roles {
		if r == role {
			return true
		}
	}
	return false
}
