// Package auth verifies bearer tokens for the HTTP API.
//
// Tokens are JWTs signed with HS256 (shared secret) or RS256 (PEM public
// key) and must carry "sub" and "scopes" claims. The "read" scope allows
// listing instruments and reading properties; "control" allows writes,
// resets and draining the error queue.
package auth
