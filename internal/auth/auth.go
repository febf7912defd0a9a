package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrForbidden     = errors.New("missing required role")
)

type Claims struct {
	Subject string
	Issuer  string
	Roles   []string
	Source  string
}

type Authenticator interface {
	Authenticate(r *http.Request) (Claims, error)
}

// MultiAuthenticator accepts a static dev token or an HS256 JWT.
type MultiAuthenticator struct {
	DevToken string
	JWT      *JWTAuthenticator
}

func (a *MultiAuthenticator) Authenticate(r *http.Request) (Claims, error) {
	bearer, err := extractBearer(r)
	if err != nil {
		return Claims{}, err
	}

	if a.DevToken != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(a.DevToken)) == 1 {
		return Claims{Subject: "dev", Issuer: "pdogate-dev", Source: "dev_token"}, nil
	}

	if a.JWT != nil {
		claims, err := a.JWT.AuthenticateBearer(bearer)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, ErrForbidden) {
			return Claims{}, err
		}
	}

	return Claims{}, ErrInvalidToken
}

type JWTAuthenticator struct {
	secret []byte
	// RequiredRole, when set, must appear in the token's roles claim.
	RequiredRole string
}

func NewJWTAuthenticator(secret, requiredRole string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), RequiredRole: requiredRole}
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func (a *JWTAuthenticator) AuthenticateBearer(token string) (Claims, error) {
	if len(a.secret) == 0 {
		return Claims{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("subject claim required")
	}
	if a.RequiredRole != "" && !slices.Contains(claims.Roles, a.RequiredRole) {
		return Claims{}, ErrForbidden
	}
	return Claims{Subject: claims.Subject, Issuer: claims.Issuer, Roles: claims.Roles, Source: "jwt"}, nil
}

// IssueHS256 signs a token for subject. It is used by operator tooling and
// tests.
func IssueHS256(secret, subject string, roles []string, registered jwt.RegisteredClaims) (string, error) {
	registered.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{RegisteredClaims: registered, Roles: roles})
	return token.SignedString([]byte(secret))
}

type claimsKey struct{}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
