package proxy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRouteTable_LongestPrefixWins(t *testing.T) {
	t.Parallel()

	table, err := NewRouteTable([]RouteEntry{
		{Prefix: "/orders/", Upstream: mustURL(t, "http://orders:9002"), StripPrefix: true},
		{Prefix: "/orders/admin/", Upstream: mustURL(t, "http://orders-admin:9003"), StripPrefix: true},
		{Prefix: "/auth/", Upstream: mustURL(t, "http://auth:8080"), StripPrefix: true},
	})
	require.NoError(t, err)

	require.Equal(t, "/orders/admin/", table.Match("/orders/admin/users").Prefix)
	require.Equal(t, "/orders/", table.Match("/orders/42").Prefix)
	require.Equal(t, "/auth/", table.Match("/auth/login").Prefix)
	require.Nil(t, table.Match("/payments/1"))
}

func TestRouteTable_BarePrefixMatches(t *testing.T) {
	t.Parallel()

	table, err := NewRouteTable([]RouteEntry{
		{Prefix: "/orders/", Upstream: mustURL(t, "http://orders:9002")},
	})
	require.NoError(t, err)

	// "/orders" without the trailing slash still routes
	require.NotNil(t, table.Match("/orders"))
	// but "/ordersextra" must not
	require.Nil(t, table.Match("/ordersextra"))
}

func TestRouteTable_SlashlessPrefixMatchesSegments(t *testing.T) {
	t.Parallel()

	// Operators can configure prefixes without a trailing slash; matching
	// still happens on segment boundaries.
	table, err := NewRouteTable([]RouteEntry{
		{Prefix: "/orders", Upstream: mustURL(t, "http://orders:9002")},
	})
	require.NoError(t, err)

	require.NotNil(t, table.Match("/orders"))
	require.NotNil(t, table.Match("/orders/42"))
	require.Nil(t, table.Match("/ordersextra"))
	require.Nil(t, table.Match("/ordersextra/42"))
}

func TestRouteTable_EquivalentPrefixesCollide(t *testing.T) {
	t.Parallel()

	_, err := NewRouteTable([]RouteEntry{
		{Prefix: "/orders", Upstream: mustURL(t, "http://orders:9002")},
		{Prefix: "/orders/", Upstream: mustURL(t, "http://other:9004")},
	})
	require.Error(t, err)
}

func TestRouteTable_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRouteTable([]RouteEntry{
		{Prefix: "orders/", Upstream: mustURL(t, "http://orders:9002")},
	})
	require.Error(t, err)

	_, err = NewRouteTable([]RouteEntry{
		{Prefix: "/orders/", Upstream: mustURL(t, "http://orders:9002")},
		{Prefix: "/orders/", Upstream: mustURL(t, "http://other:9004")},
	})
	require.Error(t, err)

	_, err = NewRouteTable([]RouteEntry{
		{Prefix: "/orders/"},
	})
	require.Error(t, err)
}

func TestRouteEntry_Rewrite(t *testing.T) {
	t.Parallel()

	t.Run("strips the matched prefix", func(t *testing.T) {
		e := RouteEntry{
			Prefix:      "/orders/",
			Upstream:    mustURL(t, "http://orders:9002"),
			StripPrefix: true,
		}
		require.Equal(t, "/42", e.Rewrite("/orders/42"))
		require.Equal(t, "/", e.Rewrite("/orders/"))
	})

	t.Run("keeps the path when not stripping", func(t *testing.T) {
		e := RouteEntry{
			Prefix:   "/orders/",
			Upstream: mustURL(t, "http://orders:9002"),
		}
		require.Equal(t, "/orders/42", e.Rewrite("/orders/42"))
	})

	t.Run("preserves the upstream base path", func(t *testing.T) {
		e := RouteEntry{
			Prefix:      "/orders/",
			Upstream:    mustURL(t, "http://orders:9002/api/v2/"),
			StripPrefix: true,
		}
		require.Equal(t, "/api/v2/42", e.Rewrite("/orders/42"))
	})
}
