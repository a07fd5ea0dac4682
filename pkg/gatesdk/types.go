package gatesdk

// ErrorResponse is the {error, error_description} JSON body written for
// every failure. Used internally for parsing HTTP error responses; client
// code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is the machine-readable error code (e.g. "missing_subject")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// LoginRequest is the POST /login body. The subject identifier is trusted
// as presented: this service assumes a prior authentication step (an
// upstream identity provider) already validated it.
type LoginRequest struct {
	// SubjectID identifies the caller. Required, non-empty.
	SubjectID string `json:"subjectId"`

	// Scopes optionally requested for the session, consumed by the
	// gateway's per-route authorization checks.
	Scopes []string `json:"scopes,omitempty"`
}

// RefreshRequest is the POST /refresh body.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest is the POST /logout body.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by both the login and refresh endpoints.
//
// Refresh responses include a rotated refresh token: the token that was
// exchanged is revoked in the same transaction, so callers must store the
// returned one.
type TokenResponse struct {
	// AccessToken is the short-lived JWT presented on protected routes
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived JWT exchangeable for a new access token
	RefreshToken string `json:"refreshToken,omitempty"`

	// TokenType is always "Bearer"
	TokenType string `json:"tokenType"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expiresIn"`
}

// HealthResponse is returned by the /livez and /readyz endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	// Checks is only populated by readiness responses.
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency status in readiness responses.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
}
