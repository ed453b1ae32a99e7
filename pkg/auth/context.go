package auth

import "context"

// contextKey is an unexported type so that context values set by this
// package cannot be forged by other packages.
type contextKey struct{}

var claimsContextKey = contextKey{}

// ContextWithClaims returns a copy of ctx carrying the verified claim set.
func ContextWithClaims(ctx context.Context, claims *ClaimSet) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext retrieves the verified claim set from ctx. The second
// return value is false if no claim set is present, which means the
// request did not pass through the authorization gate. Callers must treat
// that as an authentication failure, never as an anonymous identity.
func ClaimsFromContext(ctx context.Context) (*ClaimSet, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*ClaimSet)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}
