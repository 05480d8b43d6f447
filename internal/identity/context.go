// Package identity carries the authenticated caller through a request context.
package identity

import (
	"context"

	"trustcore/internal/security"
	sessiondomain "trustcore/internal/session/domain"
)

type contextKey struct{ name string }

var (
	claimsKey    = contextKey{"claims"}
	sessionIDKey = contextKey{"session_id"}
	clientKey    = contextKey{"client"}
)

// WithClaims returns a context carrying verified token claims and the session id
// they belong to. The outer request middleware sets these after Authenticate.
func WithClaims(ctx context.Context, c *security.Claims, sessionID string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	}
	return ctx
}

// ClaimsFrom returns the claims set by WithClaims.
func ClaimsFrom(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.Claims)
	return c, ok && c != nil
}

// SubjectFrom returns the token subject from context and true if set; otherwise "", false.
func SubjectFrom(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return "", false
	}
	return c.Subject, true
}

// SessionIDFrom returns the session_id from context and true if set; otherwise "", false.
func SessionIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// WithClient returns a context carrying the caller's network metadata.
func WithClient(ctx context.Context, md sessiondomain.Metadata) context.Context {
	return context.WithValue(ctx, clientKey, md)
}

// ClientFrom returns the metadata set by WithClient, or the zero value.
func ClientFrom(ctx context.Context) sessiondomain.Metadata {
	md, _ := ctx.Value(clientKey).(sessiondomain.Metadata)
	return md
}
