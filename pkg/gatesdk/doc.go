/*
Package gatesdk provides a client SDK for the tabgate session auth service
and the error vocabulary shared with the server-side handlers.

# Client vs Session

The package is organized around two main types:

  - Client: unauthenticated operations (login, refresh, logout, health)
  - Session: authenticated requests through the gateway with automatic
    token refresh

Create a Client to initiate the token lifecycle:

	client := gatesdk.NewClient("https://gateway.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Authenticate to create a session
	session, err := client.Login(ctx, "u1", []string{"orders:read"})

Use a Session for requests to protected routes. Sessions transparently
exchange the refresh token for a new access token when the current one is
about to expire, and track the rotated refresh token returned by each
exchange:

	resp, err := session.Do(ctx, http.MethodGet, "/orders/today", nil)

	// Invalidate the session's refresh token on the server
	err = session.Logout(ctx)

# Error Handling

Server error responses carry an {error, error_description} JSON body and
unmarshal into *APIError, so callers can branch on the machine-readable
code:

	if apiErr, ok := gatesdk.AsAPIError(err); ok && apiErr.Code == gatesdk.ErrorCodeInvalidRefresh {
		// re-authenticate from scratch
	}
*/
package gatesdk
