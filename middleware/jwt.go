package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthDisabled is returned when no signing secret is configured. Maintenance
// routes stay closed rather than open in that case.
var ErrAuthDisabled = errors.New("token validation disabled: no signing secret configured")

// tokenClaims is the JWT body accepted for maintenance calls
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 bearer tokens
type JWTValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTValidator creates a validator for tokens signed with secret. When issuer is
// non-empty the iss claim must match it.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTValidator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken implements TokenValidator
func (v *JWTValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrAuthDisabled
	}

	parsed := &tokenClaims{}
	_, err := v.parser.ParseWithClaims(token, parsed, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return &Claims{
		Subject: parsed.Subject,
		Issuer:  parsed.Issuer,
		Roles:   parsed.Roles,
	}, nil
}

// SignToken issues an HS256 token for subject with the given roles. Used by
// operators to mint maintenance tokens and by tests.
func SignToken(secret, issuer, subject string, roles []string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	if issuer != "" {
		claims.Issuer = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Roles:            roles,
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}
