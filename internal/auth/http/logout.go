package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tabgate/internal/auth/service"
	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
)

// LogoutHandler serves POST /logout. Always returns 204, even for unknown
// or already-revoked tokens, so the endpoint leaks nothing about which
// refresh tokens exist.
type LogoutHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req gatesdk.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if strings.TrimSpace(req.RefreshToken) == "" {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TokenService.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		log.Error("logout failed", "err", err)
		gatesdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
