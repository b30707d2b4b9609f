// Package apikey authenticates callers by static API keys, presented as a
// bearer token or in the X-API-Key header. Only SHA-256 hashes of the keys
// are kept, compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rhuss/anreicher/pkg/auth"
)

// HeaderName is the alternative header carrying the key.
const HeaderName = "X-API-Key"

// Key is one configured API key and the identity it grants.
type Key struct {
	Key      string
	Identity auth.Identity
}

type entry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys.
type Authenticator struct {
	entries []entry
}

// New hashes keys and returns an authenticator for them. Empty keys and
// identities without a subject are rejected.
func New(keys []Key) (*Authenticator, error) {
	a := &Authenticator{}
	var errs []error
	for i, k := range keys {
		if k.Key == "" {
			errs = append(errs, fmt.Errorf("api key %d: key is empty", i))
			continue
		}
		if k.Identity.Subject == "" {
			errs = append(errs, fmt.Errorf("api key %d: subject is required", i))
			continue
		}
		a.entries = append(a.entries, entry{hash: sha256.Sum256([]byte(k.Key)), identity: k.Identity})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate abstains when no key is presented, votes No for an unknown
// key and Yes for a known one.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key, presented := credential(r)
	if !presented {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if key == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	sum := sha256.Sum256([]byte(key))
	for _, e := range a.entries {
		if subtle.ConstantTimeCompare(sum[:], e.hash[:]) == 1 {
			id := e.identity
			id.Scopes = slices.Clone(id.Scopes)
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func credential(r *http.Request) (string, bool) {
	if h := r.Header.Get(HeaderName); h != "" {
		return strings.TrimSpace(h), true
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
}
