// Package checkpoint persists session snapshots. The engine writes a
// snapshot on every state mutation; a store must round-trip the full
// state and keep unknown fields from newer writers harmless.
package checkpoint

import (
	"context"
	"time"

	"github.com/senga07/xAgentic/internal/engine"
)

// Store is the full persistence surface. Get returns
// engine.ErrNoSuchSession for unknown ids and engine.ErrSerialization
// for payloads that fail to decode.
type Store interface {
	Get(ctx context.Context, sessionID string) (*engine.ExecutionState, error)
	Put(ctx context.Context, sessionID string, st *engine.ExecutionState) error
	List(ctx context.Context) ([]*engine.ExecutionState, error)
	Delete(ctx context.Context, sessionID string) error

	// PurgeTerminalBefore removes completed and failed sessions last
	// updated before cutoff and reports how many were removed.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
