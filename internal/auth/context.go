// ABOUTME: Caller identity carried through management API request contexts
// ABOUTME: Set by the guard, read by handlers for logging

package auth

import "context"

// Method names how a caller authenticated.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodJWT    Method = "jwt"
)

// Caller is the authenticated identity of a management request.
type Caller struct {
	// Subject is the JWT "sub" claim, or "api-key" for key callers.
	Subject string
	Method  Method
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller and whether one was attached.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
