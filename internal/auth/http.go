// ABOUTME: HTTP middleware accepting an API key or a JWT bearer token
// ABOUTME: Rejections are JSON error bodies with status 401

package auth

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// APIKeyHeader carries the management API key.
const APIKeyHeader = "X-API-Key"

// Guard authenticates management requests.
type Guard struct {
	apiKey   []byte
	verifier *JWTVerifier
	logger   *slog.Logger
}

// NewGuard returns a guard. An empty apiKey disables key authentication and
// a nil verifier disables bearer tokens.
func NewGuard(apiKey string, verifier *JWTVerifier, logger *slog.Logger) *Guard {
	return &Guard{
		apiKey:   []byte(apiKey),
		verifier: verifier,
		logger:   logger.With("component", "auth"),
	}
}

// Middleware rejects requests without a valid credential.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, errMsg := g.authenticate(r)
		if errMsg != "" {
			g.logger.Debug("request rejected", "path", r.URL.Path, "reason", errMsg)
			unauthorized(w, errMsg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (g *Guard) authenticate(r *http.Request) (Caller, string) {
	if key := apiKeyFrom(r); key != "" {
		if len(g.apiKey) == 0 || subtle.ConstantTimeCompare([]byte(key), g.apiKey) != 1 {
			return Caller{}, "Unauthorized: Invalid or missing API Key"
		}
		return Caller{Subject: "api-key", Method: MethodAPIKey}, ""
	}

	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return Caller{}, "Unauthorized: Invalid or missing API Key"
	}
	if g.verifier == nil {
		return Caller{}, "bearer tokens are not enabled"
	}
	subject, err := g.verifier.Verify(token)
	if err != nil {
		return Caller{}, "invalid token"
	}
	return Caller{Subject: subject, Method: MethodJWT}, ""
}

func apiKeyFrom(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}

// extractBearerToken returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", "invalid authorization header format"
	}
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
