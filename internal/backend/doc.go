// Package backend is the REST client for the Afrikmoney payment backend.
//
// # Authentication
//
// Each WhatsApp user maps to one backend account, keyed by the normalized
// user id. Tokens obtained from login or registration are cached per user.
// Calls made on behalf of a user log in on demand when no token is cached,
// except for the auth endpoints themselves (login, register, check-phone).
//
// A 401 response drops the cached token and triggers exactly one
// re-authentication. The call that received the 401 is not replayed by
// request itself; the retry loop in requestWithRetry treats 401 as
// retryable, so the next attempt picks up the fresh token.
//
// # Retries
//
// Every endpoint goes through requestWithRetry: up to MaxRetries attempts,
// waiting RetryBaseDelay * 2^attempt between them. 4xx responses other than
// 401 are returned immediately.
//
// # Responses
//
// Failures are normalized into a Result carrying an *Error with the HTTP
// status (0 for transport failures) and the backend's message. Bodies
// wrapped as {"data": ...} are unwrapped before decoding.
package backend
