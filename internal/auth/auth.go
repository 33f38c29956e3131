// Package auth resolves the caller's (user id, role) pair.
//
// Two sources are accepted: an HS256 bearer token whose subject is the user
// id and whose "role" claim is job_seeker or company, and, when the service
// sits behind a trusted gateway, the x-user-id / x-user-role headers the
// gateway forwards.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

const (
	HeaderAuthorization = "authorization"
	HeaderUserID        = "x-user-id"
	HeaderUserRole      = "x-user-role"

	issuer = "synapse"
)

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthenticator signs and verifies HS256 tokens.
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTAuthenticator(secret string, ttl time.Duration) (*JWTAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id.
func (a *JWTAuthenticator) Issue(id model.Identity) (string, error) {
	if id.UserID == "" {
		return "", errors.New("user id is required")
	}
	if _, err := model.ParseRole(string(id.Role)); err != nil {
		return "", err
	}
	now := a.now()
	claims := Claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies a raw token. Every failure is apperr.KindUnauthorized.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (model.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return model.Identity{}, apperr.Unauthorized("invalid token")
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Identity{}, apperr.Wrap(apperr.KindUnauthorized, "invalid token role", err)
	}
	return model.Identity{UserID: claims.Subject, Role: role}, nil
}

// Resolver picks the identity source for a request.
type Resolver struct {
	tokens       *JWTAuthenticator
	trustGateway bool
}

// NewResolver returns a Resolver. tokens may be nil when only gateway
// headers are trusted.
func NewResolver(tokens *JWTAuthenticator, trustGateway bool) *Resolver {
	return &Resolver{tokens: tokens, trustGateway: trustGateway}
}

// FromHeaders resolves the caller from the raw authorization, x-user-id and
// x-user-role values. A bearer token takes precedence over gateway headers.
func (r *Resolver) FromHeaders(ctx context.Context, authorization, userID, role string) (model.Identity, error) {
	if token, ok := bearer(authorization); ok && r.tokens != nil {
		return r.tokens.Authenticate(ctx, token)
	}
	if r.trustGateway && userID != "" {
		parsed, err := model.ParseRole(role)
		if err != nil {
			return model.Identity{}, apperr.Wrap(apperr.KindUnauthorized, "invalid x-user-role", err)
		}
		return model.Identity{UserID: userID, Role: parsed}, nil
	}
	return model.Identity{}, apperr.Unauthorized("missing credentials")
}

func bearer(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(model.Identity)
	return id, ok
}
