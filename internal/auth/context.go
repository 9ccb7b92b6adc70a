/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"context"
	"time"
)

type sessionKey struct{}

// WithClaims attaches session claims to the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, sessionKey{}, claims)
}

// ClaimsFromContext returns the unlocked session, if the request carried one.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(sessionKey{}).(*Claims)
	return claims, ok && claims != nil
}

// SessionClient names the client that unlocked the editor, or "" for
// anonymous requests.
func SessionClient(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Client
	}
	return ""
}

// SessionExpiry reports when the current session stops being accepted.
func SessionExpiry(ctx context.Context) (time.Time, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
