package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/feihua/pkg/provider/llm"
	"github.com/MrWong99/feihua/pkg/provider/llm/mock"
)

var errBackend = errors.New("backend down")

func newTestBreaker(opts ...BreakerOption) (*Breaker, *time.Time) {
	b := NewBreaker("test", opts...)
	now := time.Unix(1000, 0)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_ClosedForwardsCalls(t *testing.T) {
	b, _ := newTestBreaker()

	called := false
	if err := b.Do(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithTripAfter(3))

	for range 3 {
		_ = b.Do(func() error { return errBackend })
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}

	err := b.Do(func() error {
		t.Fatal("fn called while open")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
}

func TestBreaker_SuccessClearsStreak(t *testing.T) {
	b, _ := newTestBreaker(WithTripAfter(3))

	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errBackend })
	_ = b.Do(func() error { return errBackend })

	if b.State() != Closed {
		t.Fatalf("state = %v, want closed (success should clear the streak)", b.State())
	}
}

func TestBreaker_CooldownLeadsToProbing(t *testing.T) {
	b, now := newTestBreaker(WithTripAfter(1), WithCooldown(time.Minute), WithProbes(2))

	_ = b.Do(func() error { return errBackend })
	if b.State() != Open {
		t.Fatal("expected open")
	}

	*now = now.Add(time.Minute)
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", b.State())
	}

	// Two successful probes close the breaker.
	for i := range 2 {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if b.State() != Closed {
		t.Fatalf("state = %v, want closed after probes", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, now := newTestBreaker(WithTripAfter(1), WithCooldown(time.Minute))

	_ = b.Do(func() error { return errBackend })
	*now = now.Add(time.Minute)

	if err := b.Do(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("probe err = %v, want backend error", err)
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open after failed probe", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b, _ := newTestBreaker(WithTripAfter(1))

	_ = b.Do(func() error { return errBackend })
	if b.State() != Open {
		t.Fatal("expected open")
	}

	b.Reset()
	if b.State() != Closed {
		t.Fatalf("state = %v, want closed after reset", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestGuard_FailsFastWhileOpen(t *testing.T) {
	p := mock.New(mock.Reply{Err: errBackend})
	b, _ := newTestBreaker(WithTripAfter(2), WithCooldown(time.Hour))
	g := Guard(p, b)

	req := llm.CompletionRequest{Messages: []llm.Message{{Role: "user", Content: "判断"}}}
	for range 2 {
		if _, err := g.Complete(context.Background(), req); !errors.Is(err, errBackend) {
			t.Fatalf("err = %v, want backend error", err)
		}
	}

	if _, err := g.Complete(context.Background(), req); !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if got := p.CallCount(); got != 2 {
		t.Errorf("backend called %d times, want 2 (open breaker must not call through)", got)
	}
}
