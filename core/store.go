package core

import (
	"context"
	"errors"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

// SessionStore is the durable key/value home of the Strava session. It
// survives restarts; the auth manager only caches the access token for
// rendering decisions. Save and Clear are atomic across all three keys.
type SessionStore interface {
	// Load returns the persisted session, or ErrNoSession when none of
	// the keys are present.
	Load(ctx context.Context) (*Session, error)

	// Save persists all three fields in one transaction. Returns
	// ErrInvalidSession if RefreshToken and ExpiresAt are not both
	// present or both absent.
	Save(ctx context.Context, session *Session) error

	// Clear removes every persisted key in one transaction.
	Clear(ctx context.Context) error
}
