// Package session persists issued login tokens and resolves them back to a user.
//
// Stores key sessions by the SHA-256 hash of the token; the plaintext token is
// never written. Get returns expired sessions unchanged so callers can decide
// validity; use Session.Valid.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Session is an issued login.
type Session struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// Valid reports whether the session is still usable at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Store is the session persistence contract shared by the SQL and Redis backends.
type Store interface {
	// Create inserts a new session for token. It never overwrites.
	Create(ctx context.Context, token string, sess Session) error
	// Get resolves token; ErrNotFound when absent.
	Get(ctx context.Context, token string) (*Session, error)
	// Delete revokes token. Unknown tokens are ignored.
	Delete(ctx context.Context, token string) error
	// DeleteByUser revokes every session of userID except keepToken.
	DeleteByUser(ctx context.Context, userID uint, keepToken string) (int64, error)
	// DeleteExpired removes sessions that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
