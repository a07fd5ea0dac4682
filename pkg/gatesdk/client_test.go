package gatesdk

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_LoginAndRefresh(t *testing.T) {
	var refreshCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"at-1","refreshToken":"rt-1","tokenType":"Bearer","expiresIn":300}`))
	})
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"at-2","refreshToken":"rt-2","tokenType":"Bearer","expiresIn":300}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	ctx := t.Context()

	session, err := client.Login(ctx, "u1", nil)
	require.NoError(t, err)
	require.Equal(t, "at-1", session.AccessToken())
	require.Equal(t, "rt-1", session.RefreshToken())

	resp, err := client.Refresh(ctx, session.RefreshToken())
	require.NoError(t, err)
	require.Equal(t, "at-2", resp.AccessToken)
	require.Equal(t, "rt-2", resp.RefreshToken)
	require.EqualValues(t, 1, refreshCalls.Load())
}

func TestClient_ErrorsSurfaceAsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"invalid_refresh_token","error_description":"nope"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	_, err := client.Refresh(t.Context(), "whatever")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "invalid_refresh_token", apiErr.Code)
	require.Equal(t, "nope", apiErr.Description)
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	_, err := client.LoginTokens(t.Context(), "u1", nil)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestSession_AutoRefreshOnExpiry(t *testing.T) {
	var refreshCalls atomic.Int64
	var sawToken atomic.Value

	mux := http.NewServeMux()
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"fresh","refreshToken":"rt-next","tokenType":"Bearer","expiresIn":300}`))
	})
	mux.HandleFunc("GET /orders/1", func(w http.ResponseWriter, r *http.Request) {
		sawToken.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	// expiresIn 0: already inside the refresh buffer, so the first Do
	// must refresh before sending.
	session := client.NewSessionFromTokens("stale", "rt-old", 0)

	resp, err := session.Do(t.Context(), http.MethodGet, "/orders/1", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.EqualValues(t, 1, refreshCalls.Load())
	require.Equal(t, "Bearer fresh", sawToken.Load())

	// The rotated refresh token was adopted
	require.Equal(t, "rt-next", session.RefreshToken())

	// A second request inside the fresh window does not refresh again
	resp, err = session.Do(t.Context(), http.MethodGet, "/orders/1", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.EqualValues(t, 1, refreshCalls.Load())
}
