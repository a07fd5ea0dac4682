package e2e_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	authhttp "github.com/aussiebroadwan/tabgate/internal/auth/http"
	"github.com/aussiebroadwan/tabgate/internal/auth/service"
	"github.com/aussiebroadwan/tabgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tabgate/internal/gateway/proxy"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

/*
 * Full-stack helpers: a real auth service and a real gateway, wired
 * in-process over httptest, driven through the public SDK the way a
 * front-end would.
 */

const (
	testIssuer = "tabgate-e2e"

	accessTTL  = 5 * time.Minute
	refreshTTL = time.Hour
)

var (
	accessSecret  = []byte("e2e-access-secret-0123456789abcd")
	refreshSecret = []byte("e2e-refresh-secret-0123456789abc")
)

// stack is the assembled system under test.
type stack struct {
	Gateway *httptest.Server
	Auth    *httptest.Server

	OrdersCalls atomic.Int64
	AdminCalls  atomic.Int64
}

func startStack(t *testing.T) *stack {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	accessSigner, err := jwtx.NewSignerHS256(accessSecret)
	require.NoError(t, err)
	refreshSigner, err := jwtx.NewSignerHS256(refreshSecret)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := authhttp.NewRouter("e2e", st, logger)
	router.TokenService = &service.TokenService{
		Store:           st,
		AccessSigner:    accessSigner,
		RefreshSigner:   refreshSigner,
		RefreshVerifier: jwtx.NewCommonHS256(refreshSecret, testIssuer),
		Issuer:          testIssuer,
		AccessTTL:       accessTTL,
		RefreshTTL:      refreshTTL,
	}
	router.ApplyRoutes()

	s := &stack{}
	s.Auth = httptest.NewServer(router)
	t.Cleanup(s.Auth.Close)

	orders := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.OrdersCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orders":[],"path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(orders.Close)

	admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.AdminCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(admin.Close)

	table, err := proxy.NewRouteTable([]proxy.RouteEntry{
		{Prefix: "/auth/", Upstream: mustParse(t, s.Auth.URL), StripPrefix: true},
		{Prefix: "/orders/", Upstream: mustParse(t, orders.URL), StripPrefix: true, RequiresAuth: true},
		{
			Prefix:         "/admin/",
			Upstream:       mustParse(t, admin.URL),
			StripPrefix:    true,
			RequiresAuth:   true,
			RequiredScopes: []string{"admin"},
		},
	})
	require.NoError(t, err)

	handler := proxy.NewHandler(
		table,
		proxy.NewForwarder(5*time.Second),
		jwtx.NewCommonHS256(accessSecret, testIssuer),
		nil,
	)

	s.Gateway = httptest.NewServer(handler)
	t.Cleanup(s.Gateway.Close)

	return s
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
