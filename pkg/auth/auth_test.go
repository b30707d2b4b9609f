package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubAuthn struct {
	result AuthResult
	calls  int
}

func (s *stubAuthn) Authenticate(context.Context, *http.Request) AuthResult {
	s.calls++
	return s.result
}

func TestAuthChain(t *testing.T) {
	yes := AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice"}}
	no := AuthResult{Decision: No, Err: ErrUnauthenticated}
	abstain := AuthResult{Decision: Abstain}

	tests := []struct {
		name        string
		votes       []AuthResult
		fallback    AuthDecision
		want        AuthDecision
		wantSubject string
	}{
		{"first yes wins", []AuthResult{yes, no}, No, Yes, "alice"},
		{"first no wins", []AuthResult{no, yes}, Yes, No, ""},
		{"abstain skips", []AuthResult{abstain, yes}, No, Yes, "alice"},
		{"all abstain rejects", []AuthResult{abstain, abstain}, No, No, ""},
		{"all abstain admits anonymous", []AuthResult{abstain}, Yes, Yes, "anonymous"},
		{"empty chain rejects", nil, No, No, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := &AuthChain{DefaultDecision: tt.fallback}
			for _, v := range tt.votes {
				chain.Authenticators = append(chain.Authenticators, &stubAuthn{result: v})
			}

			res := chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
			if res.Decision != tt.want {
				t.Fatalf("Decision = %d, want %d", res.Decision, tt.want)
			}
			if tt.wantSubject != "" && res.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
			}
			if tt.want == No && !errors.Is(res.Err, ErrUnauthenticated) {
				t.Errorf("Err = %v, want ErrUnauthenticated", res.Err)
			}
		})
	}
}

func TestChainStopsAtFirstVote(t *testing.T) {
	second := &stubAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{Subject: "x"}}}
	chain := &AuthChain{Authenticators: []Authenticator{
		&stubAuthn{result: AuthResult{Decision: No}},
		second,
	}}
	chain.Authenticate(context.Background(), httptest.NewRequest("GET", "/", nil))
	if second.calls != 0 {
		t.Error("authenticator after a No vote should not run")
	}
}

func TestIdentityTier(t *testing.T) {
	var nilID *Identity
	if nilID.Tier() != "default" {
		t.Error("nil identity should be on the default tier")
	}
	if (&Identity{ServiceTier: "premium"}).Tier() != "premium" {
		t.Error("explicit tier ignored")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil {
		t.Error("empty context should carry no identity")
	}
	id := &Identity{Subject: "alice"}
	if got := IdentityFromContext(SetIdentity(ctx, id)); got != id {
		t.Errorf("IdentityFromContext = %v", got)
	}
}

func TestInProcessLimiter(t *testing.T) {
	l := NewInProcessLimiter(map[string]int{"premium": 3, "free": 0}, 1)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	premium := &Identity{Subject: "alice", ServiceTier: "premium"}
	for i := range 3 {
		if err := l.Allow(ctx, premium); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, premium); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("4th request: err = %v, want ErrTooManyRequests", err)
	}

	other := &Identity{Subject: "bob", ServiceTier: "premium"}
	if err := l.Allow(ctx, other); err != nil {
		t.Errorf("limits must be per subject: %v", err)
	}

	free := &Identity{Subject: "carol", ServiceTier: "free"}
	for range 10 {
		if err := l.Allow(ctx, free); err != nil {
			t.Fatalf("unlimited tier rejected: %v", err)
		}
	}

	anon := &Identity{Subject: "anonymous"}
	l.Allow(ctx, anon)
	if err := l.Allow(ctx, anon); !errors.Is(err, ErrTooManyRequests) {
		t.Error("default tier limit not applied")
	}

	clock = clock.Add(time.Minute)
	if err := l.Allow(ctx, premium); err != nil {
		t.Errorf("new window should reset the count: %v", err)
	}
}
