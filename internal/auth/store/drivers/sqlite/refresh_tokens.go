package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/auth/domain"
	"github.com/aussiebroadwan/tabgate/internal/auth/store"
	sqlite3 "modernc.org/sqlite"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, subject, token_hash, expires_at)
		VALUES (?, ?, ?, ?)`,
		t.ID, t.Subject, t.TokenHash, t.ExpiresAt.UTC(),
	)
	return mapConflict(err)
}

// mapConflict translates a UNIQUE violation on token_hash into the store's
// sentinel so callers don't have to know driver error codes.
func mapConflict(err error) error {
	var se *sqlite3.Error
	if errors.As(err, &se) && se.Code() == 2067 { // SQLITE_CONSTRAINT_UNIQUE
		return store.ErrAlreadyExists
	}
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject, token_hash, expires_at, revoked, created_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = ?`,
		hash,
	)

	var t domain.RefreshToken
	err := row.Scan(
		&t.ID,
		&t.Subject,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.Revoked,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	// Revoking an already-revoked token is a no-op, not an error.
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE token_hash = ?`,
		hash,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllSubjectRefreshTokens(ctx context.Context, subject string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE subject = ? AND revoked = 0`,
		subject,
	)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < ?`,
		time.Now().UTC(),
	)
	return err
}
