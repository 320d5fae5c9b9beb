package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/radar/internal/scoring"
)

type mockNotifier struct {
	name       string
	calls      int
	last       Summary
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Notify(ctx context.Context, s Summary) error {
	m.calls++
	m.last = s
	if m.shouldFail {
		return errors.New("notify failed")
	}
	return nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	err := r.Register(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	err = r.Register(mock)
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "telegram"})

	n, err := r.Get("telegram")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "telegram" {
		t.Errorf("expected telegram, got %s", n.Name())
	}

	if _, err := r.Get("email"); err == nil {
		t.Error("expected error for unknown notifier")
	}
}

func TestRegistry_GetAll_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "email"})
	r.Register(&mockNotifier{name: "telegram"})

	all := r.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 notifiers, got %d", len(all))
	}
	if all[0].Name() != "email" || all[2].Name() != "webhook" {
		t.Errorf("expected name order, got %s..%s", all[0].Name(), all[2].Name())
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &mockNotifier{name: "ok"}
	bad := &mockNotifier{name: "bad", shouldFail: true}
	r.Register(ok)
	r.Register(bad)

	errs := r.NotifyAll(context.Background(), Summary{RunID: "run-1", Saved: 3})

	if ok.calls != 1 || bad.calls != 1 {
		t.Errorf("expected one call each, got ok=%d bad=%d", ok.calls, bad.calls)
	}
	if ok.last.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", ok.last.RunID)
	}
	if len(errs) != 1 || errs["bad"] == nil {
		t.Errorf("expected failure keyed by name, got %v", errs)
	}
}

func TestTickers(t *testing.T) {
	entries := []scoring.Entry{{Ticker: "PETR4"}, {Ticker: "VALE3"}, {Ticker: "ITUB4"}}

	if got := Tickers(entries, 2); len(got) != 2 || got[1] != "VALE3" {
		t.Errorf("unexpected tickers %v", got)
	}
	if got := Tickers(entries, 10); len(got) != 3 {
		t.Errorf("expected all 3, got %v", got)
	}
	if got := Tickers(nil, 5); len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}
