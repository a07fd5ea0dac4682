package proxy

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// RouteEntry binds a path prefix to an upstream service.
type RouteEntry struct {
	// Prefix is the inbound path prefix, e.g. "/orders/". Matching is
	// by string prefix; the longest configured prefix wins.
	Prefix string

	// Upstream is the parsed base URL requests are forwarded to.
	Upstream *url.URL

	// StripPrefix removes the matched prefix from the forwarded path.
	StripPrefix bool

	// RequiresAuth gates the route behind bearer-token verification.
	// The auth prefix itself runs with this false: login requests have
	// no token yet.
	RequiresAuth bool

	// RequiredScopes, when non-empty, is the per-route authorization
	// predicate: the verified token must carry at least one of these.
	RequiredScopes []string
}

// Rewrite returns the upstream path for an inbound path that matched this
// entry. The matched prefix is stripped when configured; the upstream's
// own base path is preserved.
func (e *RouteEntry) Rewrite(path string) string {
	rest := path
	if e.StripPrefix {
		rest = strings.TrimPrefix(path, strings.TrimSuffix(e.Prefix, "/"))
	}
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	base := strings.TrimSuffix(e.Upstream.Path, "/")
	return base + rest
}

// RouteTable is the static routing table. Entries are sorted once at
// construction so Match is a simple scan, longest prefix first.
type RouteTable struct {
	entries []RouteEntry
}

// NewRouteTable validates and sorts the entries.
func NewRouteTable(entries []RouteEntry) (*RouteTable, error) {
	seen := map[string]struct{}{}
	for i := range entries {
		e := &entries[i]
		if !strings.HasPrefix(e.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", e.Prefix)
		}
		if e.Upstream == nil || e.Upstream.Host == "" {
			return nil, fmt.Errorf("route %q has no upstream host", e.Prefix)
		}
		// "/orders" and "/orders/" route identically, so they collide.
		key := strings.TrimSuffix(e.Prefix, "/") + "/"
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate route prefix %q", e.Prefix)
		}
		seen[key] = struct{}{}
	}

	sorted := make([]RouteEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &RouteTable{entries: sorted}, nil
}

// Match returns the longest-prefix entry for the path, or nil when no
// route covers it.
func (t *RouteTable) Match(path string) *RouteEntry {
	for i := range t.entries {
		e := &t.entries[i]
		if matchesPrefix(path, e.Prefix) {
			return e
		}
	}
	return nil
}

// matchesPrefix matches on segment boundaries, so "/orders" covers
// "/orders" and "/orders/123" but never "/ordersextra". The trailing
// slash on a configured prefix is irrelevant.
func matchesPrefix(path, prefix string) bool {
	bare := strings.TrimSuffix(prefix, "/")
	return path == bare || strings.HasPrefix(path, bare+"/")
}

// Entries returns the sorted routes, longest prefix first.
func (t *RouteTable) Entries() []RouteEntry {
	return t.entries
}
