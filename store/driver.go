package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database driver.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Tenant model related methods.
	CreateTenant(ctx context.Context, create *Tenant) (*Tenant, error)
	ListTenants(ctx context.Context, find *FindTenant) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, update *UpdateTenant) (*Tenant, error)
	DeleteTenant(ctx context.Context, id string) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	// ContextRecord model related methods. CreateContextRecord writes the
	// initial version row; UpdateContextRecord appends the next version in
	// the same transaction.
	CreateContextRecord(ctx context.Context, create *ContextRecord) (*ContextRecord, error)
	ListContextRecords(ctx context.Context, find *FindContextRecord) ([]*ContextRecord, error)
	UpdateContextRecord(ctx context.Context, update *UpdateContextRecord) (*ContextRecord, error)
	DeleteContextRecord(ctx context.Context, delete *DeleteContextRecord) error
	DeleteExpiredContextRecords(ctx context.Context, nowTs int64) (int, error)
	// DecayContextRecords multiplies confidence by factor (floored) for
	// active short-term records not updated since cutoffTs and marks them
	// stale. Confidence-only, so no version rows are appended.
	DecayContextRecords(ctx context.Context, cutoffTs int64, factor, floor float64) (int, error)
	// SetContextDriftStatus writes a drift transition. Status is derived
	// state, so no version row is appended.
	SetContextDriftStatus(ctx context.Context, id string, status DriftStatus, updatedTs int64) error

	// ContextVersion model related methods. Versions are written by the
	// record methods above; reads are exposed for history and rollback.
	ListContextVersions(ctx context.Context, find *FindContextVersion) ([]*ContextVersion, error)

	// ContextSession model related methods.
	CreateContextSession(ctx context.Context, create *ContextSession) (*ContextSession, error)
	ListContextSessions(ctx context.Context, find *FindContextSession) ([]*ContextSession, error)
	UpdateContextSession(ctx context.Context, update *UpdateContextSession) (*ContextSession, error)

	// ContextSnapshot model related methods.
	CreateContextSnapshot(ctx context.Context, create *ContextSnapshot) (*ContextSnapshot, error)
	ListContextSnapshots(ctx context.Context, find *FindContextSnapshot) ([]*ContextSnapshot, error)
	// PruneContextSnapshots keeps the newest keep snapshots for a user and
	// deletes the rest, returning the number removed.
	PruneContextSnapshots(ctx context.Context, userID string, keep int) (int, error)
}
