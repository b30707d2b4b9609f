// Package auth authenticates HTTP callers of the anreicher API.
//
// Authenticators vote Yes (identity established), No (credentials present
// but invalid) or Abstain (no credentials they understand). An AuthChain
// asks them in order and falls back to a default decision when all
// abstain. Middleware applies the chain and an optional per-tier rate
// limiter to every request except the probe endpoints.
package auth
