// Package auth authenticates users and decides whether a principal may act
// on a resource.
package auth

import (
	"context"

	apperrors "github.com/bond-service/internal/errors"
)

// Principal is the authenticated caller of a request
type Principal struct {
	UserID      string
	Username    string
	IsSuperuser bool
}

// Decision is the outcome of an authorization check
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Err converts a denial into a categorized error; Allowed yields nil.
func (d Decision) Err() error {
	switch d {
	case Allowed:
		return nil
	case Unauthenticated:
		return apperrors.NewUnauthorizedError("Authentication credentials were not provided.")
	default:
		return apperrors.NewForbiddenError("You do not have permission to perform this action.")
	}
}

// Authorize allows superusers and the owner of a resource.
func Authorize(p *Principal, ownerID string) Decision {
	if p == nil {
		return Unauthenticated
	}
	if p.IsSuperuser || p.UserID == ownerID {
		return Allowed
	}
	return Forbidden
}

// RequireAuthenticated allows any authenticated principal.
func RequireAuthenticated(p *Principal) Decision {
	if p == nil {
		return Unauthenticated
	}
	return Allowed
}

// RequireSuperuser allows superusers only.
func RequireSuperuser(p *Principal) Decision {
	if p == nil {
		return Unauthenticated
	}
	if !p.IsSuperuser {
		return Forbidden
	}
	return Allowed
}

type principalKey struct{}

// WithPrincipal stores p in the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal of the request, nil when anonymous
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
