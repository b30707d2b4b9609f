package app

import (
	"fmt"
	"net/http"

	"github.com/rhuss/anreicher/pkg/auth"
	"github.com/rhuss/anreicher/pkg/auth/apikey"
	"github.com/rhuss/anreicher/pkg/auth/jwt"
	"github.com/rhuss/anreicher/pkg/config"
)

// buildAuth returns the middleware guarding the API routes, or nil when
// neither authentication nor rate limiting is configured.
func buildAuth(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var limiter auth.RateLimiter
	if cfg.RateLimits.Enabled() {
		limiter = auth.NewInProcessLimiter(cfg.RateLimits.Tiers, cfg.RateLimits.DefaultRPM)
	}

	chain := &auth.AuthChain{DefaultDecision: auth.No}
	switch cfg.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			keys = append(keys, apikey.Key{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
					Scopes:      k.Scopes,
				},
			})
		}
		a, err := apikey.New(keys)
		if err != nil {
			return nil, fmt.Errorf("configuring api keys: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{a}
	case "jwt":
		a, err := jwt.New(jwt.Config{
			Issuer:       cfg.JWT.Issuer,
			Audience:     cfg.JWT.Audience,
			Secret:       cfg.JWT.Secret,
			JWKSURL:      cfg.JWT.JWKSURL,
			SubjectClaim: cfg.JWT.SubjectClaim,
			TierClaim:    cfg.JWT.TierClaim,
			ScopesClaim:  cfg.JWT.ScopesClaim,
			CacheTTL:     cfg.JWT.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring jwt: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{a}
	default:
		if limiter == nil {
			return nil, nil
		}
		// Anonymous callers share the default tier's budget.
		chain.DefaultDecision = auth.Yes
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
