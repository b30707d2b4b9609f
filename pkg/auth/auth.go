package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision is the vote of an Authenticator.
type AuthDecision int

const (
	// Yes means the request carries valid credentials.
	Yes AuthDecision = iota
	// No means credentials were presented but are invalid.
	No
	// Abstain means the authenticator cannot judge the request.
	Abstain
)

// AuthResult is the outcome of one authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// Identity describes an authenticated caller.
type Identity struct {
	Subject string

	// ServiceTier selects the rate limit applied to the caller.
	ServiceTier string

	Scopes   []string
	Metadata map[string]string
}

// Tier returns the service tier, "default" when unset.
func (id *Identity) Tier() string {
	if id == nil || id.ServiceTier == "" {
		return "default"
	}
	return id.ServiceTier
}

// Authenticator inspects a request and votes on it.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain asks its authenticators in order; the first non-abstaining
// vote wins.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains. Yes admits
	// the caller as "anonymous" on the default tier.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}
