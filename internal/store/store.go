// Package store persists Device Registry records. Grounded on the teacher's
// pluggable storage idiom (internal/store/store.go's Store interface) and
// internal/store/sqlite.go's WAL/single-writer/migration pattern, rewritten
// against wavecast's own schema: devices only, no node/invite/OAuth tables.
package store

import (
	"context"
	"time"
)

// DeviceRecord is the persisted shape of a Device + its hashed token half.
type DeviceRecord struct {
	DeviceID    string
	Name        string
	UserAgent   string
	TokenHash   string
	Status      string // "active" or "revoked"
	IssuedAt    time.Time
	LastSeenAt  time.Time
	ExpiresAt   *time.Time // nil = never
}

// DeviceStore is the persistence interface the Device Registry depends on.
// A default SQLite-backed implementation lives in sqlite.go; callers are
// expected to depend on this interface, not the concrete type, matching the
// teacher's store.Store layering.
type DeviceStore interface {
	Insert(ctx context.Context, rec DeviceRecord) error
	Get(ctx context.Context, deviceID string) (*DeviceRecord, error)
	UpdateTokenHash(ctx context.Context, deviceID, tokenHash string) error
	UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error
	Revoke(ctx context.Context, deviceID string) error
	RevokeAll(ctx context.Context) (int, error)
	List(ctx context.Context) ([]DeviceRecord, error)
	Close() error
}
