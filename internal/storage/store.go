package storage

import (
	"context"
	"errors"

	"github.com/agentcore/core/pkg/types"
)

// ErrSessionNotFound is returned by GetSession when no session with the
// given ID has been saved.
var ErrSessionNotFound = errors.New("storage: session not found")

// ErrMessageNotFound is returned by GetMessage when no message with the
// given ID exists in the given session.
var ErrMessageNotFound = errors.New("storage: message not found")

// Store is the persistence capability the session service depends on.
// Implementations may durably persist writes asynchronously (Memory does
// not persist at all; File and SQLite queue writes on a background
// goroutine) -- Flush blocks until any queued writes have been applied and
// returns the most recent write error, if any.
type Store interface {
	SaveSession(ctx context.Context, session *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	ListSessions(ctx context.Context) ([]*types.Session, error)
	DeleteSession(ctx context.Context, id string) error

	SaveMessage(ctx context.Context, message *types.Message) error
	GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error)
	GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error)
	DeleteMessages(ctx context.Context, sessionID string) error

	// Flush blocks until any queued asynchronous writes have completed and
	// returns the most recent write error encountered, if any.
	Flush(ctx context.Context) error

	// Clear removes all sessions and messages. Intended for tests.
	Clear(ctx context.Context) error

	Close() error
}
