package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
)

// Forwarder relays a matched request to its upstream. It deliberately does
// not use httputil.ReverseProxy: the forwarding contract here is
// buffer-and-replay, with JSON bodies decoded and re-encoded so malformed
// JSON never reaches an upstream, and that needs ownership of the body
// handling.
type Forwarder struct {
	Client *http.Client
}

// NewForwarder builds a Forwarder with sane transport timeouts.
func NewForwarder(timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		Client: &http.Client{
			Timeout: timeout,
			// The gateway passes redirects through to the caller rather
			// than chasing them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// hop-by-hop headers per RFC 9110; these describe a single connection and
// must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forward relays the request to the entry's upstream and writes the
// upstream's response back verbatim. Connection-level failures synthesize
// a 502; upstream error statuses pass through untouched.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, entry *RouteEntry) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	body, contentType, err := prepareBody(r)
	if err != nil {
		log.Info("rejecting unparseable request body", "route", entry.Prefix, "err", err)
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	target := *entry.Upstream
	target.Path = entry.Rewrite(r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	// The caller's context flows through, so a client disconnect cancels
	// the pending upstream call.
	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		log.Error("failed to build upstream request", "route", entry.Prefix, "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	copyHeaders(req.Header, r.Header)
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.ContentLength = int64(len(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	appendForwardedFor(req, r)

	resp, err := f.Client.Do(req)
	if err != nil {
		log.Warn("upstream unreachable",
			slog.String("route", entry.Prefix),
			slog.String("upstream", entry.Upstream.Host),
			slog.String("err", err.Error()),
		)
		gatesdk.ErrUpstreamUnavailable.WriteError(w)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	log.Info("request forwarded",
		slog.String("route", entry.Prefix),
		slog.String("upstream", entry.Upstream.Host),
		slog.String("path", target.Path),
		slog.Int("status", resp.StatusCode),
	)

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// prepareBody buffers the inbound body. JSON bodies are decoded and
// re-encoded compact so the bytes an upstream sees are exactly one
// serialization, with Content-Length recomputed to match.
func prepareBody(r *http.Request) ([]byte, string, error) {
	if r.Body == nil {
		return nil, "", nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	_ = r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if len(raw) == 0 || !isJSON(contentType) {
		return raw, contentType, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, "", err
	}
	encoded, err := json.Marshal(decoded)
	if err != nil {
		return nil, "", err
	}
	return encoded, contentType, nil
}

func isJSON(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "application/json") || strings.HasSuffix(ct, "+json")
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopHeader(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func appendForwardedFor(req *http.Request, inbound *http.Request) {
	clientIP := inbound.RemoteAddr
	if ip, _, err := net.SplitHostPort(inbound.RemoteAddr); err == nil {
		clientIP = ip
	}
	if prior := inbound.Header.Get("X-Forwarded-For"); prior != "" {
		clientIP = prior + ", " + clientIP
	}
	req.Header.Set("X-Forwarded-For", clientIP)
}
