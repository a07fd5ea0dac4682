package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/tabgate/pkg/cryptox"
	"github.com/aussiebroadwan/tabgate/pkg/jwtx"
)

// signingKeys holds the two HMAC secrets. Access and refresh tokens carry
// the same claims shape, so keeping the keys separate is what stops a
// refresh token from being replayed as an access token.
type signingKeys struct {
	access  []byte
	refresh []byte
}

// initSigningKeys resolves the configured secrets in order of preference:
// explicit per-kind secrets, a master secret expanded via HKDF, or (dev
// only) an ephemeral random secret that won't survive a restart.
func initSigningKeys(cfg Config, logger *slog.Logger) (signingKeys, error) {
	if cfg.AccessSecret != "" || cfg.RefreshSecret != "" {
		if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
			return signingKeys{}, fmt.Errorf("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must be set together")
		}
		if cfg.AccessSecret == cfg.RefreshSecret {
			return signingKeys{}, fmt.Errorf("access and refresh secrets must differ")
		}
		return signingKeys{
			access:  []byte(cfg.AccessSecret),
			refresh: []byte(cfg.RefreshSecret),
		}, nil
	}

	master := cfg.MasterSecret
	if master == "" {
		if cfg.Env != "dev" {
			return signingKeys{}, fmt.Errorf("AUTH_MASTER_SECRET is required outside dev")
		}
		master = cryptox.MustGenerateToken(cryptox.TokenSize256)
		logger.Warn("no signing secret configured, generated an ephemeral one; sessions will not survive a restart")
	}

	access, err := cryptox.DeriveKey([]byte(master), "tabgate/access", jwtx.MinSecretBytes)
	if err != nil {
		return signingKeys{}, fmt.Errorf("derive access key: %w", err)
	}
	refresh, err := cryptox.DeriveKey([]byte(master), "tabgate/refresh", jwtx.MinSecretBytes)
	if err != nil {
		return signingKeys{}, fmt.Errorf("derive refresh key: %w", err)
	}

	return signingKeys{access: access, refresh: refresh}, nil
}
