package gatesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the tabgate auth surface. It provides the
// unauthenticated token lifecycle operations and can create authenticated
// Sessions.
type Client struct {
	// BaseURL is where Session requests go: the gateway, or the auth
	// service itself when talking to it directly.
	BaseURL string

	// AuthBase is where the token lifecycle endpoints live. Equal to
	// BaseURL for a direct connection; BaseURL+"/auth" behind a gateway.
	AuthBase string

	HTTPClient *http.Client
}

// NewClient creates a client talking to the auth service directly.
func NewClient(baseURL string) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	return &Client{
		BaseURL:  base,
		AuthBase: base,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewGatewayClient creates a client talking through a gateway that fronts
// the auth service under its auth prefix.
func NewGatewayClient(gatewayURL string) *Client {
	base := strings.TrimSuffix(gatewayURL, "/")
	return &Client{
		BaseURL:  base,
		AuthBase: base + "/auth",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login exchanges a subject identifier for a token pair and wraps it in a
// Session with automatic refresh.
func (c *Client) Login(ctx context.Context, subjectID string, scopes []string) (*Session, error) {
	tokenResp, err := c.LoginTokens(ctx, subjectID, scopes)
	if err != nil {
		return nil, err
	}

	return newSession(c, tokenResp), nil
}

// LoginTokens performs the login call and returns the raw token response.
func (c *Client) LoginTokens(ctx context.Context, subjectID string, scopes []string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.postJSON(ctx, "/login", LoginRequest{SubjectID: subjectID, Scopes: scopes}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked server-side; callers must keep the rotated one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.postJSON(ctx, "/refresh", RefreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes a refresh token. Revoking an already-revoked or unknown
// token is not an error.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.postJSON(ctx, "/logout", LogoutRequest{RefreshToken: refreshToken}, nil)
}

// GetLiveness checks the service's liveness probe.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL("/livez"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &health, nil
}

// authURL builds a complete URL for a token lifecycle endpoint.
func (c *Client) authURL(path string) string {
	if c.AuthBase != "" {
		return c.AuthBase + path
	}
	return c.BaseURL + path
}

// postJSON sends a JSON body and decodes a JSON response into out (out may
// be nil for endpoints with empty success bodies).
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
