package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tabgate/internal/auth/service"
	"github.com/aussiebroadwan/tabgate/pkg/gatesdk"
	"github.com/aussiebroadwan/tabgate/pkg/httpx"
	"github.com/aussiebroadwan/tabgate/pkg/slogx"
)

// LoginHandler serves POST /auth/login.
//
// The subject is taken on trust: this service sits behind whatever actually
// authenticates callers, its job is only to mint session tokens.
type LoginHandler struct {
	TokenService *service.TokenService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req gatesdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		gatesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if strings.TrimSpace(req.SubjectID) == "" {
		gatesdk.ErrMissingSubject.WriteError(w)
		return
	}

	pair, err := h.TokenService.Login(ctx, req.SubjectID, req.Scopes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingSubject):
			gatesdk.ErrMissingSubject.WriteError(w)
		default:
			log.Error("login failed", "err", err)
			gatesdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, gatesdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}
