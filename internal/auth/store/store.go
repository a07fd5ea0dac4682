package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tabgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop people from accidentally doing
// transactions within transactions.
type Store interface {
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// RefreshTokens is the refresh-token record repository. The store
// exclusively owns refresh-token state; no other component mutates it.
type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record. Inserts are
	// atomic single-record writes, so concurrent logins cannot lose
	// records and a completed insert is visible to subsequent lookups.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at. Revoking an
	// already-revoked token is a no-op, not an error.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllSubjectRefreshTokens bulk revocation for a subject
	// (e.g., credential compromise).
	RevokeAllSubjectRefreshTokens(ctx context.Context, subject string) error

	// DeleteExpiredRefreshTokens removes records past their expiry so the
	// table never grows without bound. Invoked by the housekeeping sweep.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
