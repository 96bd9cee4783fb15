// Package identity supplies the acting viewer for workflow invocations and
// the token manager the reference server uses to mint and verify viewer
// credentials.
//
// Authentication itself is out of scope for the favour core: a viewer is
// treated as already-authenticated input, immutable for the duration of one
// workflow invocation.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/favourlabs/favour/pkg/favour"
)

// Provider supplies the current viewer.
type Provider interface {
	Current(ctx context.Context) (favour.Viewer, error)
}

// StaticProvider returns a fixed viewer; used in tests and single-user tools.
type StaticProvider struct {
	Viewer favour.Viewer
}

func (p StaticProvider) Current(ctx context.Context) (favour.Viewer, error) {
	if p.Viewer.ID == "" {
		return favour.Viewer{}, errors.New("no viewer configured")
	}
	return p.Viewer, nil
}

// ViewerClaims are the JWT claims carried by a viewer credential.
type ViewerClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// TokenManager mints and validates viewer credentials (HMAC-signed JWTs).
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a token manager with the given signing secret.
func NewTokenManager(secret []byte) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret must not be empty")
	}
	return &TokenManager{secret: secret}, nil
}

// Mint creates a signed credential for a viewer.
func (tm *TokenManager) Mint(viewerID, name string, duration time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := ViewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			Issuer:    "favour/identity",
			Audience:  jwt.ClaimStrings{"favour.internal"},
		},
		Name: name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate parses and validates a credential string.
func (tm *TokenManager) Validate(tokenString string) (*ViewerClaims, error) {
	claims := &ViewerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return claims, nil
}

// Viewer reconstructs the acting viewer from validated claims plus the raw
// credential, ready to hand to a workflow.
func (c *ViewerClaims) Viewer(credential string) favour.Viewer {
	return favour.Viewer{ID: c.Subject, Credential: credential}
}
