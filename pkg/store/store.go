package store

import (
	"context"
	"errors"
	"time"

	"askmynotes/pkg/domain"
)

// ErrSessionNotFound is returned when a session token has no live record.
var ErrSessionNotFound = errors.New("session not found")

// SessionKeyPrefix is the fixed key namespace for reload-surviving session records.
const SessionKeyPrefix = "askmynotes:session:"

// SessionRecord is the server-side half of a browser session.
type SessionRecord struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"accessToken,omitempty"`
	Guest       bool        `json:"guest,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SessionStore persists session records keyed by an opaque token.
type SessionStore interface {
	Save(ctx context.Context, token string, rec SessionRecord) error
	Get(ctx context.Context, token string) (SessionRecord, error)
	Delete(ctx context.Context, token string) error
}
