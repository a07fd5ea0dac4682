package domain

import "time"

// TokenPair represents what the login and refresh endpoints return: the
// short-lived access token and the long-lived refresh token, both JWTs
// signed with kind-specific keys. The HTTP layer owns the wire shape
// (gatesdk.TokenResponse); this type never marshals directly.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string // typically "Bearer"
	ExpiresIn    time.Duration
}

// RefreshToken models the stored refresh token record in the DB. Only the
// fingerprint of the token is persisted, never the token itself.
type RefreshToken struct {
	ID        string
	Subject   string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
