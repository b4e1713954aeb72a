package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of JWT claims surfaced by token inspection.
type TokenClaims struct {
	Subject   string
	Issuer    string
	Scope     string
	ClientID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       jwt.MapClaims
}

// InspectToken decodes a JWT access token without verifying its signature,
// useful for inspecting claims. Gateway tokens are opaque to the client, so
// this is a debugging aid only, never an authorization check.
func InspectToken(raw string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	tc := &TokenClaims{Raw: claims}
	if v, ok := claims["sub"].(string); ok {
		tc.Subject = v
	}
	if v, ok := claims["iss"].(string); ok {
		tc.Issuer = v
	}
	if v, ok := claims["client_id"].(string); ok {
		tc.ClientID = v
	}
	tc.Scope = scopeClaim(claims)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	return tc, nil
}

// Expired reports whether the token's exp claim has passed. Tokens without
// an exp claim never expire.
func (c *TokenClaims) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt)
}

// scopeClaim handles both the space-separated "scope" string and the
// list-valued "scp" form some issuers emit.
func scopeClaim(claims jwt.MapClaims) string {
	if v, ok := claims["scope"].(string); ok {
		return v
	}
	if vs, ok := claims["scp"].([]any); ok {
		parts := make([]string, 0, len(vs))
		for _, v := range vs {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
