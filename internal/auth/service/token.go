package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/auth/domain"
	"github.com/aussiebroadwan/tabgate/internal/auth/store"
	"github.com/aussiebroadwan/tabgate/pkg/cryptox"
	"github.com/aussiebroadwan/tabgate/pkg/idx"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
)

var (
	ErrMissingSubject = errors.New("missing_subject")
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
)

// TokenService issues and rotates session tokens. Both token kinds are JWTs
// sharing the same claims shape; they differ in lifetime and signing key, so
// a refresh token can never be replayed as an access token.
type TokenService struct {
	Store store.Store

	AccessSigner    jwtx.Signer
	RefreshSigner   jwtx.Signer
	RefreshVerifier jwtx.Verifier

	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Login issues a fresh token pair for the given subject. The caller is
// trusted to have already established who the subject is; an empty subject
// is the only rejection.
func (s *TokenService) Login(ctx context.Context, subject string, scopes []string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, ErrMissingSubject
	}

	pair, rec, err := s.issuePair(subject, scopes, now)
	if err != nil {
		return nil, err
	}

	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rec); err != nil {
		return nil, err
	}

	l.Info("session issued",
		slog.String("subject", subject),
		slog.Int("scopes", len(scopes)),
	)
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The old
// refresh token is revoked and a rotated replacement returned in the same
// transaction, so a stolen refresh token stops working the moment the
// legitimate holder uses it.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	// 1. The token itself must be a well-formed refresh JWT: signed with
	// the refresh key, unexpired, from us.
	claims, err := s.RefreshVerifier.Verify(refreshToken)
	if err != nil {
		l.Info("refresh rejected", slog.String("reason", err.Error()))
		return nil, ErrInvalidRefresh
	}

	// 2. It must also still be live in the store. Lookup is by fingerprint;
	// the raw token is never persisted.
	fp := cryptox.FingerprintToken(refreshToken)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	// The SQL query could filter these out, but we double-check here for
	// defense in depth.
	if rt.Revoked {
		return nil, ErrInvalidRefresh
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	pair, newRec, err := s.issuePair(claims.Subject, claims.Scopes, now)
	if err != nil {
		return nil, err
	}

	// Atomically: revoke old token and create the rotated replacement.
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRec)
	}); err != nil {
		return nil, err
	}

	l.Info("session refreshed", slog.String("subject", claims.Subject))
	return pair, nil
}

// RevokeRefreshToken revokes a single refresh token (by its raw value).
// Revoking an unknown or already-revoked token succeeds quietly.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	fp := cryptox.FingerprintToken(refreshToken)
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
}

// RevokeAllSubjectTokens revokes every live refresh token for a subject.
func (s *TokenService) RevokeAllSubjectTokens(ctx context.Context, subject string) error {
	return s.Store.RefreshTokens().RevokeAllSubjectRefreshTokens(ctx, subject)
}

// issuePair signs an access/refresh pair for the subject and builds the
// store record for the refresh half. The record is NOT persisted here; the
// caller decides whether that happens standalone or inside a rotation tx.
func (s *TokenService) issuePair(
	subject string,
	scopes []string,
	now time.Time,
) (*domain.TokenPair, domain.RefreshToken, error) {
	accessToken, err := s.AccessSigner.Sign(
		jwtx.NewSessionClaims(subject, scopes, s.AccessTTL, s.Issuer, now),
	)
	if err != nil {
		return nil, domain.RefreshToken{}, err
	}

	refreshToken, err := s.RefreshSigner.Sign(
		jwtx.NewSessionClaims(subject, scopes, s.RefreshTTL, s.Issuer, now),
	)
	if err != nil {
		return nil, domain.RefreshToken{}, err
	}

	rec := domain.RefreshToken{
		ID:        idx.New().String(),
		Subject:   subject,
		TokenHash: cryptox.FingerprintToken(refreshToken),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}

	pair := &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}
	return pair, rec, nil
}
