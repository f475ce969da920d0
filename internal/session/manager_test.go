package session

import (
	"sync"
	"testing"
)

func TestCurrentMintsOnceAndReuses(t *testing.T) {
	m := NewManager(PolicyNever)

	first := m.Current()
	if first.Value == "" {
		t.Fatal("expected a minted token")
	}
	for i := 0; i < 10; i++ {
		if got := m.Current(); got.Value != first.Value {
			t.Fatalf("token changed without rotation: %q != %q", got.Value, first.Value)
		}
	}
}

func TestRotateReplacesToken(t *testing.T) {
	m := NewManager(PolicyNever)
	before := m.Current()

	rotated := m.Rotate()
	if rotated.Value == before.Value {
		t.Fatal("expected a new token after Rotate")
	}
	if m.Current().Value != rotated.Value {
		t.Fatal("Current should return the rotated token")
	}
}

func TestAfterRouteHonoursPolicy(t *testing.T) {
	never := NewManager(PolicyNever)
	tok := never.Current()
	if got, rotated := never.AfterRoute(); rotated || got.Value != tok.Value {
		t.Fatalf("PolicyNever must not rotate, got rotated=%v", rotated)
	}

	after := NewManager(PolicyAfterRoute)
	tok = after.Current()
	got, rotated := after.AfterRoute()
	if !rotated || got.Value == tok.Value {
		t.Fatalf("PolicyAfterRoute must rotate, got rotated=%v", rotated)
	}
}

func TestConcurrentCurrentMintsSingleToken(t *testing.T) {
	m := NewManager(PolicyNever)

	var wg sync.WaitGroup
	values := make([]string, 32)
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			values[i] = m.Current().Value
		}(i)
	}
	wg.Wait()

	for _, v := range values {
		if v != values[0] {
			t.Fatalf("expected one token across goroutines, saw %q and %q", values[0], v)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{"": PolicyNever, "never": PolicyNever, "after_route": PolicyAfterRoute}
	for raw, want := range cases {
		got, err := ParsePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParsePolicy("per_keystroke"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
