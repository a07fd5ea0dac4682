package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tabgate/internal/gateway/metrics"
	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/httpx"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
)

// Handler is the gateway's request entrypoint: match a route, enforce its
// auth policy, forward. The auth middleware chain for each route is built
// once up front, never per request.
type Handler struct {
	table     *RouteTable
	forwarder *Forwarder
	metrics   *metrics.Metrics

	// routeHandlers holds the fully-chained handler per route prefix.
	routeHandlers map[string]http.Handler
}

// NewHandler builds the per-route chains. verifier checks access tokens on
// routes with RequiresAuth; m may be nil to disable instrumentation.
func NewHandler(table *RouteTable, forwarder *Forwarder, verifier jwtx.Verifier, m *metrics.Metrics) *Handler {
	h := &Handler{
		table:         table,
		forwarder:     forwarder,
		metrics:       m,
		routeHandlers: make(map[string]http.Handler),
	}

	for i := range table.Entries() {
		entry := &table.Entries()[i]

		var chained http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			forwarder.Forward(w, r, entry)
		})

		if entry.RequiresAuth {
			// Rate limiting keys on the verified subject, so it sits
			// after authn in the chain.
			mws := []httpx.Middleware{
				httpx.AuthnMiddleware(verifier),
				httpx.RateLimitByUser(httpx.LenientLimit),
			}
			if len(entry.RequiredScopes) > 0 {
				mws = append(mws, httpx.RequireAnyScope(entry.RequiredScopes...))
			}
			chained = httpx.Chain(chained, mws...)
		}

		h.routeHandlers[entry.Prefix] = chained
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := slogx.FromContext(r.Context())

	entry := h.table.Match(r.URL.Path)
	if entry == nil {
		log.Info("no route for request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		gatesdk.ErrRouteNotFound.WriteError(w)
		if h.metrics != nil {
			h.metrics.ObserveRequest("unmatched", http.StatusNotFound, time.Since(start))
		}
		return
	}

	log.Info("route matched",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", entry.Prefix),
		slog.Bool("requires_auth", entry.RequiresAuth),
	)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.routeHandlers[entry.Prefix].ServeHTTP(rec, r)

	if h.metrics != nil {
		h.metrics.ObserveRequest(entry.Prefix, rec.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
