package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenIssuer mints short-lived HS256 tokens identifying this
// service to internal collaborators (the stats collector).
type ServiceTokenIssuer struct {
	service string
	secret  []byte
}

// NewServiceTokenIssuer returns an issuer signing tokens with the shared
// secret. The service name becomes the token subject.
func NewServiceTokenIssuer(service, secret string) *ServiceTokenIssuer {
	return &ServiceTokenIssuer{service: service, secret: []byte(secret)}
}

// Issue returns a signed token valid for the given duration.
func (i *ServiceTokenIssuer) Issue(ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   i.service,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
