// Package auth supplies the bearer token attached to backend requests.
//
// # Token Sources
//
// Tokens are resolved from the first non-empty source, in order:
//
//   - A literal token from configuration
//   - A token file (e.g. ~/.config/atelier/token)
//   - The ATELIER_TOKEN environment variable
//
// # Claim Inspection
//
// Backend tokens are JWTs. The client never verifies signatures — it
// has no secret — but it decodes claims without verification so it can
// warn about an expired or soon-to-expire token before spending a
// request on a doomed turn.
package auth
