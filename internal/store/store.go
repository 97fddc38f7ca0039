package store

import (
	"context"
	"errors"

	"github.com/cinetaste/authkit/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
)

// Keys under which state is persisted. The session record and the raw
// bearer token are stored independently so a session can be re-derived
// from the token alone after the cached record is evicted or expires.
const (
	KeySession = "session"
	KeyToken   = "auth_token"
)

// Store is durable key-value persistence surviving process restarts.
// Memory is authoritative at runtime; the store exists purely for
// cross-restart recovery, so persisted state may be stale between writes.
type Store interface {
	Session(ctx context.Context) (*model.Session, error)
	PutSession(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context) error

	Token(ctx context.Context) (string, error)
	PutToken(ctx context.Context, token string) error

	// Clear removes both the session record and the token.
	Clear(ctx context.Context) error
}
