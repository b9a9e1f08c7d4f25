// Package identity resolves a connection's credentials to a canonical
// member ID. Resolution is best-effort: a connection that cannot be
// resolved spectates anonymously, it is never rejected.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

// Anonymous is the member ID reported when no strategy resolves.
const Anonymous = 0

const memberIDClaim = "memberId"

// Credentials is whatever the transport captured when the connection
// was opened. Either field may be empty.
type Credentials struct {
	// Claims from a verified bearer token, nil if the connection
	// carried no token or the token did not verify.
	Claims jwt.MapClaims

	// SessionEmail is the cookie-session principal's email, empty for
	// token-only connections.
	SessionEmail string
}

// Directory maps a session principal's email to a member record. It is
// implemented by the hosting deployment's membership store.
type Directory interface {
	MemberIDByEmail(ctx context.Context, email string) (int, error)
}

// Resolver produces a member ID from connection credentials, or
// reports that it cannot.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (int, bool)
}

// Chain tries each resolver in order and stops at the first success. A
// strategy's internal failure never aborts the chain.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, creds Credentials) (int, bool) {
	for _, r := range c {
		if id, ok := r.Resolve(ctx, creds); ok {
			return id, true
		}
	}
	return Anonymous, false
}

// NewChain builds the production resolution order: bearer claim first,
// session principal second. dir may be nil when the deployment has no
// session mechanism.
func NewChain(dir Directory, logger zerolog.Logger) Chain {
	return Chain{ClaimResolver{}, SessionResolver{Directory: dir, Log: logger}}
}

// ClaimResolver reads the "memberId" claim from verified bearer
// claims. Mobile clients send the claim as a string, web clients as a
// JSON number, so both shapes are accepted.
type ClaimResolver struct{}

func (ClaimResolver) Resolve(_ context.Context, creds Credentials) (int, bool) {
	if creds.Claims == nil {
		return Anonymous, false
	}
	raw, ok := creds.Claims[memberIDClaim]
	if !ok {
		return Anonymous, false
	}
	switch v := raw.(type) {
	case string:
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return Anonymous, false
		}
		return id, true
	case float64:
		if v != float64(int(v)) || int(v) <= 0 {
			return Anonymous, false
		}
		return int(v), true
	default:
		return Anonymous, false
	}
}

// SessionResolver maps a cookie-session principal to a member by
// email. Any directory failure collapses to "no identity"; the
// connection still gets to spectate.
type SessionResolver struct {
	Directory Directory
	Log       zerolog.Logger
}

func (r SessionResolver) Resolve(ctx context.Context, creds Credentials) (int, bool) {
	if r.Directory == nil || creds.SessionEmail == "" {
		return Anonymous, false
	}
	id, err := r.Directory.MemberIDByEmail(ctx, creds.SessionEmail)
	if err != nil {
		r.Log.Debug().Err(err).Msg("session principal did not resolve to a member")
		return Anonymous, false
	}
	if id <= 0 {
		return Anonymous, false
	}
	return id, true
}

// ParseBearerClaims verifies an HS256 bearer token and returns its
// claims. Callers treat any error as "no claims".
func ParseBearerClaims(tokenString string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token did not carry a claims map")
	}
	return claims, nil
}
