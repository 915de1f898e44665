// Package report turns a merged trust report into a signed attestation whose
// validity window is authoritative: the persisted report's timestamps are
// parsed back out of the signed artifact, never computed independently.
package report

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// DefaultValidity is how long a signed attestation remains current.
const DefaultValidity = 24 * time.Hour

// Signer produces a signed assertion string from a flat claim set. The
// assertion must embed a not-before/not-after validity window that
// ParseValidity can recover.
type Signer interface {
	Sign(claims map[string]string) (string, error)
}

// JWSSigner signs claim sets as EdDSA JWTs. The validity window is carried in
// the standard nbf/exp claims.
type JWSSigner struct {
	key      ed25519.PrivateKey
	issuer   string
	validity time.Duration
}

// NewJWSSigner creates a signer. A zero validity falls back to
// DefaultValidity.
func NewJWSSigner(key ed25519.PrivateKey, issuer string, validity time.Duration) *JWSSigner {
	if validity == 0 {
		validity = DefaultValidity
	}
	return &JWSSigner{key: key, issuer: issuer, validity: validity}
}

// Sign serializes the claim set as a signed JWT with an nbf/exp validity
// window starting now.
func (s *JWSSigner) Sign(claims map[string]string) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: s.key}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := time.Now()
	std := jwt.Claims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(s.validity)),
	}

	// go-jose's Claims only accepts map[string]interface{} or a struct.
	flat := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		flat[k] = v
	}

	assertion, err := jwt.Signed(signer).Claims(std).Claims(flat).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize assertion: %w", err)
	}
	return assertion, nil
}

// ParseValidity extracts the validity window embedded in a signed assertion.
// The signature is not verified here; consumers of the assertion verify it,
// the trust engine only needs the window it committed to.
func ParseValidity(assertion string) (notBefore, notAfter time.Time, err error) {
	tok, err := jwt.ParseSigned(assertion, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse assertion: %w", err)
	}

	var claims jwt.Claims
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to read assertion claims: %w", err)
	}
	if claims.NotBefore == nil || claims.Expiry == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("assertion carries no validity window")
	}
	return claims.NotBefore.Time(), claims.Expiry.Time(), nil
}
