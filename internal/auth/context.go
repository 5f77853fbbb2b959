package auth

import "context"

type contextKey struct{}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFrom returns the verified claims of the request, or nil when the
// route is not authenticated.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

// GroupAllowed is true for unauthenticated contexts and for tokens that
// cover group.
func GroupAllowed(ctx context.Context, group string) bool {
	claims := ClaimsFrom(ctx)
	return claims == nil || claims.AllowsGroup(group)
}
