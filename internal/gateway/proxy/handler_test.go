package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/gateway/metrics"
	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/httpx"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testIssuer = "tabgate-test"

var testAccessSecret = []byte("access-secret-0123456789abcdef!!")

// upstream is a recording httptest server used as a proxy target.
type upstream struct {
	srv   *httptest.Server
	calls atomic.Int64

	lastPath   atomic.Value // string
	lastQuery  atomic.Value // string
	lastBody   atomic.Value // []byte
	lastHeader atomic.Value // http.Header
}

func newUpstream(t *testing.T, status int, respBody string) *upstream {
	t.Helper()

	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.lastPath.Store(r.URL.Path)
		u.lastQuery.Store(r.URL.RawQuery)
		u.lastHeader.Store(r.Header.Clone())

		body, _ := io.ReadAll(r.Body)
		u.lastBody.Store(body)

		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) url(t *testing.T) *url.URL {
	t.Helper()
	parsed, err := url.Parse(u.srv.URL)
	require.NoError(t, err)
	return parsed
}

func newGateway(t *testing.T, entries []RouteEntry) *httptest.Server {
	t.Helper()

	table, err := NewRouteTable(entries)
	require.NoError(t, err)

	verifier := jwtx.NewCommonHS256(testAccessSecret, testIssuer)
	handler := NewHandler(table, NewForwarder(5*time.Second), verifier, nil)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func signAccessToken(t *testing.T, subject string, scopes []string, ttl time.Duration) string {
	t.Helper()

	signer, err := jwtx.NewSignerHS256(testAccessSecret)
	require.NoError(t, err)

	token, err := signer.Sign(jwtx.NewSessionClaims(subject, scopes, ttl, testIssuer, time.Now()))
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGateway_RouteNotFound(t *testing.T) {
	users := newUpstream(t, http.StatusOK, `{}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/users/", Upstream: users.url(t), StripPrefix: true},
	})

	resp, err := http.Get(gw.URL + "/payments/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp gatesdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	require.Equal(t, "route_not_found", errResp.Error)

	// No upstream was contacted
	require.EqualValues(t, 0, users.calls.Load())
}

func TestGateway_BypassRouteNeedsNoToken(t *testing.T) {
	auth := newUpstream(t, http.StatusOK, `{"ok":true}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/auth/", Upstream: auth.url(t), StripPrefix: true},
	})

	resp, err := http.Post(gw.URL+"/auth/login", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, auth.calls.Load())
	require.Equal(t, "/login", auth.lastPath.Load())
}

func TestGateway_ProtectedRouteEnforcement(t *testing.T) {
	orders := newUpstream(t, http.StatusOK, `{"items":[]}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/orders/", Upstream: orders.url(t), StripPrefix: true, RequiresAuth: true},
	})

	t.Run("missing token is a 401 and never reaches the upstream", func(t *testing.T) {
		resp, err := http.Get(gw.URL + "/orders/42")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.EqualValues(t, 0, orders.calls.Load())
	})

	t.Run("garbage token is a 403", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/orders/42", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp := doRequest(t, req)

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.EqualValues(t, 0, orders.calls.Load())
	})

	t.Run("expired token is a 403", func(t *testing.T) {
		token := signAccessToken(t, "u1", nil, -time.Minute)
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/orders/42", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := doRequest(t, req)

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.EqualValues(t, 0, orders.calls.Load())
	})

	t.Run("valid token forwards with prefix stripped", func(t *testing.T) {
		token := signAccessToken(t, "u1", nil, time.Minute)
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/orders/42?limit=10", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := doRequest(t, req)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 1, orders.calls.Load())
		require.Equal(t, "/42", orders.lastPath.Load())
		require.Equal(t, "limit=10", orders.lastQuery.Load())

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"items":[]}`, string(body))
	})
}

func TestGateway_ScopePredicate(t *testing.T) {
	admin := newUpstream(t, http.StatusOK, `{}`)
	gw := newGateway(t, []RouteEntry{
		{
			Prefix:         "/admin/",
			Upstream:       admin.url(t),
			StripPrefix:    true,
			RequiresAuth:   true,
			RequiredScopes: []string{"admin"},
		},
	})

	t.Run("token without the scope is denied", func(t *testing.T) {
		token := signAccessToken(t, "u1", []string{"orders:read"}, time.Minute)
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := doRequest(t, req)

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.EqualValues(t, 0, admin.calls.Load())
	})

	t.Run("token with the scope passes", func(t *testing.T) {
		token := signAccessToken(t, "u1", []string{"admin"}, time.Minute)
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := doRequest(t, req)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.EqualValues(t, 1, admin.calls.Load())
	})
}

func TestGateway_PerSubjectRateLimit(t *testing.T) {
	orders := newUpstream(t, http.StatusOK, `{}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/orders/", Upstream: orders.url(t), StripPrefix: true, RequiresAuth: true},
	})

	token := signAccessToken(t, "hammer", nil, time.Minute)

	// Burst past the lenient per-subject budget; the limiter has to trip
	// before the loop runs out.
	var limited *http.Response
	for range httpx.LenientLimit.Burst + 20 {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+"/orders/42", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := doRequest(t, req)

		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			break
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	require.NotNil(t, limited, "rate limiter never tripped")
	require.NotEmpty(t, limited.Header.Get("Retry-After"))
	require.LessOrEqual(t, orders.calls.Load(), int64(httpx.LenientLimit.Burst+5))
}

func TestGateway_JSONBodyReserialized(t *testing.T) {
	auth := newUpstream(t, http.StatusOK, `{}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/auth/", Upstream: auth.url(t), StripPrefix: true},
	})

	// Whitespace-heavy but valid JSON: the upstream must receive one
	// compact serialization with a matching Content-Length.
	raw := "{\n  \"subjectId\" :  \"u1\" \n}"
	req, _ := http.NewRequest(http.MethodPost, gw.URL+"/auth/login", strings.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := doRequest(t, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	forwarded := auth.lastBody.Load().([]byte)
	require.JSONEq(t, `{"subjectId":"u1"}`, string(forwarded))
	require.NotEqual(t, raw, string(forwarded))

	hdr := auth.lastHeader.Load().(http.Header)
	require.Equal(t, strconv.Itoa(len(forwarded)), hdr.Get("Content-Length"))
}

func TestGateway_MalformedJSONBodyRejected(t *testing.T) {
	auth := newUpstream(t, http.StatusOK, `{}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/auth/", Upstream: auth.url(t), StripPrefix: true},
	})

	req, _ := http.NewRequest(http.MethodPost, gw.URL+"/auth/login", strings.NewReader(`{"broken`))
	req.Header.Set("Content-Type", "application/json")
	resp := doRequest(t, req)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.EqualValues(t, 0, auth.calls.Load())
}

func TestGateway_NonJSONBodyPassedVerbatim(t *testing.T) {
	auth := newUpstream(t, http.StatusOK, ``)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/auth/", Upstream: auth.url(t), StripPrefix: true},
	})

	payload := "plain text, not json"
	req, _ := http.NewRequest(http.MethodPost, gw.URL+"/auth/echo", strings.NewReader(payload))
	req.Header.Set("Content-Type", "text/plain")
	resp := doRequest(t, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, payload, string(auth.lastBody.Load().([]byte)))
}

func TestGateway_UpstreamErrorsPassThrough(t *testing.T) {
	broken := newUpstream(t, http.StatusInternalServerError, `{"error":"upstream_detail"}`)
	gw := newGateway(t, []RouteEntry{
		{Prefix: "/users/", Upstream: broken.url(t), StripPrefix: true},
	})

	resp, err := http.Get(gw.URL + "/users/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The upstream's own status and body, not a synthesized gateway error
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "yes", resp.Header.Get("X-Upstream"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"error":"upstream_detail"}`, string(body))
}

func TestGateway_UnreachableUpstreamIs502(t *testing.T) {
	// A closed server: connection refused
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL, err := url.Parse(dead.URL)
	require.NoError(t, err)
	dead.Close()

	gw := newGateway(t, []RouteEntry{
		{Prefix: "/users/", Upstream: deadURL, StripPrefix: true},
	})

	resp, err := http.Get(gw.URL + "/users/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errResp gatesdk.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	require.Equal(t, "upstream_unavailable", errResp.Error)
}

func TestGateway_MetricsObserved(t *testing.T) {
	users := newUpstream(t, http.StatusOK, `{}`)

	table, err := NewRouteTable([]RouteEntry{
		{Prefix: "/users/", Upstream: users.url(t), StripPrefix: true},
	})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.Config{Registry: registry})

	verifier := jwtx.NewCommonHS256(testAccessSecret, testIssuer)
	handler := NewHandler(table, NewForwarder(5*time.Second), verifier, m)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/users/1")
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["tabgate_requests_total"])
	require.True(t, names["tabgate_request_duration_seconds"])
}
