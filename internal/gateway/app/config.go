package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/gateway/proxy"
)

type Config struct {
	// MasterSecret / AccessSecret mirror the auth service: the gateway
	// only ever needs the ACCESS verification key, never the refresh one.
	MasterSecret string
	AccessSecret string

	Issuer string // Expected issuer claim on access tokens

	// Routes is the raw GATEWAY_ROUTES value; empty means defaults.
	Routes string

	UpstreamTimeout     time.Duration // Per-request upstream timeout (default: 30s)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8081)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	MetricsEnabled      bool          // Serve /metrics (default: true)
}

func LoadConfig() Config {
	return Config{
		MasterSecret:        os.Getenv("AUTH_MASTER_SECRET"),
		AccessSecret:        os.Getenv("AUTH_ACCESS_SECRET"),
		Issuer:              getEnvOrDefault("AUTH_ISSUER", "tabgate-auth"),
		Routes:              os.Getenv("GATEWAY_ROUTES"),
		UpstreamTimeout:     getEnvDurationOrDefault("GATEWAY_UPSTREAM_TIMEOUT", 30*time.Second),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8081),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		MetricsEnabled:      getEnvOrDefault("GATEWAY_METRICS", "true") == "true",
	}
}

// defaultRoutes is the compiled-in table used when GATEWAY_ROUTES is not
// set. The auth prefix is the only public route; everything else demands a
// bearer token, and the admin surface additionally demands the admin scope.
const defaultRoutes = "/auth/=http://localhost:8080|public," +
	"/users/=http://localhost:9001," +
	"/orders/=http://localhost:9002," +
	"/admin/=http://localhost:9003|scope=admin"

// BuildRouteTable parses the route config into a table. The format is
// comma-separated entries of
//
//	prefix=baseURL[|public][|scope=name[ name...]]
//
// "public" marks the route as bypassing token verification (the auth
// prefix needs this since login requests carry no token yet). "scope="
// adds a per-route required-scope predicate on top of verification.
func (c Config) BuildRouteTable() (*proxy.RouteTable, error) {
	raw := c.Routes
	if raw == "" {
		raw = defaultRoutes
	}

	var entries []proxy.RouteEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		entry, err := parseRoute(part)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return proxy.NewRouteTable(entries)
}

func parseRoute(raw string) (proxy.RouteEntry, error) {
	segments := strings.Split(raw, "|")

	prefix, base, ok := strings.Cut(segments[0], "=")
	if !ok {
		return proxy.RouteEntry{}, fmt.Errorf("route %q: want prefix=baseURL", raw)
	}

	upstream, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return proxy.RouteEntry{}, fmt.Errorf("route %q: bad upstream url: %w", raw, err)
	}

	entry := proxy.RouteEntry{
		Prefix:       strings.TrimSpace(prefix),
		Upstream:     upstream,
		StripPrefix:  true,
		RequiresAuth: true,
	}

	for _, flag := range segments[1:] {
		flag = strings.TrimSpace(flag)
		switch {
		case flag == "public":
			entry.RequiresAuth = false
		case strings.HasPrefix(flag, "scope="):
			entry.RequiredScopes = strings.Fields(strings.TrimPrefix(flag, "scope="))
		default:
			return proxy.RouteEntry{}, fmt.Errorf("route %q: unknown flag %q", raw, flag)
		}
	}

	return entry, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
