// Package auth guards the management HTTP surface.
//
// Two credentials are accepted:
//
//   - API key: the configured key, sent in the X-API-Key header or the
//     api_key query parameter. Compared in constant time.
//
//   - JWT bearer token: HS256, signed with auth.jwt_secret, issued by
//     this gateway (see JWTVerifier.Generate and the "token" subcommand).
//     The "sub" claim names the operator.
//
// The guard attaches a Caller to the request context for handler logging.
package auth
