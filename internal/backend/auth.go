package backend

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator applies authentication to outgoing requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// TokenAuth is a static bearer token, for simple deployments.
type TokenAuth struct {
	Token string
}

// Apply sets the Authorization header.
func (a *TokenAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// ServiceTokenAuth mints a short-lived HS256 token per request. The hosted
// backend validates issuer and expiry; no token outlives its TTL.
type ServiceTokenAuth struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration

	// now is overridable for tests.
	now func() time.Time
}

// NewServiceTokenAuth creates a signed-token authenticator.
func NewServiceTokenAuth(signingKey []byte, issuer string, ttl time.Duration) *ServiceTokenAuth {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ServiceTokenAuth{
		SigningKey: signingKey,
		Issuer:     issuer,
		TTL:        ttl,
		now:        time.Now,
	}
}

// Apply signs and attaches a fresh token.
func (a *ServiceTokenAuth) Apply(req *http.Request) error {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    a.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
	})
	signed, err := token.SignedString(a.SigningKey)
	if err != nil {
		return fmt.Errorf("signing service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}
