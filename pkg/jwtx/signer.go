package jwtx

// Signer is our interface for anything that can sign session tokens.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
	Validate() error
}

// NewSignerHS256 creates an HS256 signer from raw secret bytes.
//
// Access and refresh tokens must be signed with different secrets so a
// leaked access-token key cannot be used to forge refresh tokens, and vice
// versa. Callers construct one Signer per token kind.
func NewSignerHS256(secret []byte) (Signer, error) {
	return newHS256Signer(secret)
}
