package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/anreicher/pkg/api"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, path string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var got *Identity
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec, got
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	var body api.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Error
}

func TestMiddlewareBypass(t *testing.T) {
	mw := Middleware(&AuthChain{DefaultDecision: No}, nil, DefaultBypassEndpoints)
	for _, path := range DefaultBypassEndpoints {
		if rec, _ := serve(t, mw, path); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddlewareRejectsUnauthenticated(t *testing.T) {
	mw := Middleware(&AuthChain{DefaultDecision: No}, nil, DefaultBypassEndpoints)
	rec, _ := serve(t, mw, "/api/llm/generate")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if e := decodeError(t, rec); e.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q", e.Type)
	}
}

func TestMiddlewareStoresIdentity(t *testing.T) {
	chain := &AuthChain{Authenticators: []Authenticator{
		&stubAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice", ServiceTier: "premium"}}},
	}}
	rec, id := serve(t, Middleware(chain, nil, nil), "/api/llm/generate")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if id == nil || id.Subject != "alice" {
		t.Errorf("identity = %+v", id)
	}
}

func TestMiddlewareEmptySubject(t *testing.T) {
	chain := &AuthChain{Authenticators: []Authenticator{
		&stubAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{}}},
	}}
	rec, _ := serve(t, Middleware(chain, nil, nil), "/api/llm/generate")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddlewareRateLimit(t *testing.T) {
	chain := &AuthChain{DefaultDecision: Yes}
	mw := Middleware(chain, NewInProcessLimiter(nil, 1), nil)

	if rec, _ := serve(t, mw, "/api/llm/generate"); rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}
	rec, _ := serve(t, mw, "/api/llm/generate")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if e := decodeError(t, rec); e.Type != api.ErrorTypeTooManyRequests {
		t.Errorf("error type = %q", e.Type)
	}
}
