// Package jwt authenticates callers by JSON Web Tokens. Tokens are
// verified either with a shared HMAC secret or with RSA keys fetched from
// a JWKS endpoint; both may be configured at once.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/anreicher/pkg/auth"
	"github.com/rhuss/anreicher/pkg/debug"
)

// Config holds the JWT authenticator settings.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// Secret verifies HS256/HS384/HS512 tokens.
	Secret string

	// JWKSURL serves the RSA keys verifying RS256/RS384/RS512 tokens.
	JWKSURL string

	// SubjectClaim names the identity claim (default "sub").
	SubjectClaim string

	// TierClaim names the service tier claim (default "tier").
	TierClaim string

	// ScopesClaim names the scopes claim (default "scope"), given as a
	// space-separated string or a list.
	ScopesClaim string

	// CacheTTL bounds how long JWKS keys are reused (default 1h).
	CacheTTL time.Duration

	// HTTPClient fetches the JWKS (default http.DefaultClient).
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg  Config
	jwks *keySet
}

// New returns an authenticator. At least one of Secret and JWKSURL is
// required.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Secret == "" && cfg.JWKSURL == "" {
		return nil, errors.New("jwt: secret or jwks_url is required")
	}
	cfg.defaults()

	a := &Authenticator{cfg: cfg}
	if cfg.JWKSURL != "" {
		a.jwks = newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL)
	}
	return a, nil
}

// Authenticate abstains without a bearer token, votes No for any token
// that fails verification and Yes otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	var claims jwtlib.MapClaims
	token, err := jwtlib.ParseWithClaims(raw, &claims, func(t *jwtlib.Token) (any, error) {
		return a.key(ctx, t)
	}, a.parserOptions()...)
	if err != nil || !token.Valid {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	subject, _ := claims[a.cfg.SubjectClaim].(string)
	if subject == "" {
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("token lacks %q claim", a.cfg.SubjectClaim)}
	}
	tier, _ := claims[a.cfg.TierClaim].(string)

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: tier,
			Scopes:      scopes(claims[a.cfg.ScopesClaim]),
		},
	}
}

// key selects the verification key by signing method.
func (a *Authenticator) key(ctx context.Context, t *jwtlib.Token) (any, error) {
	switch t.Method.(type) {
	case *jwtlib.SigningMethodHMAC:
		if a.cfg.Secret == "" {
			return nil, errors.New("HMAC tokens are not accepted")
		}
		return []byte(a.cfg.Secret), nil
	case *jwtlib.SigningMethodRSA:
		if a.jwks == nil {
			return nil, errors.New("RSA tokens are not accepted")
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.jwks.key(ctx, kid)
	}
	return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	var methods []string
	if a.cfg.Secret != "" {
		methods = append(methods, "HS256", "HS384", "HS512")
	}
	if a.jwks != nil {
		methods = append(methods, "RS256", "RS384", "RS512")
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods), jwtlib.WithExpirationRequired()}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func scopes(v any) []string {
	switch s := v.(type) {
	case string:
		if f := strings.Fields(s); len(f) > 0 {
			return f
		}
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
