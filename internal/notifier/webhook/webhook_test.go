package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/radar/internal/notifier"
	"github.com/newthinker/radar/internal/scoring"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_Name(t *testing.T) {
	w := New("http://example.com/hook", nil)
	if w.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %s", w.Name())
	}
}

func TestWebhook_Init_RequiresURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notifier.Config{Params: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestWebhook_Init_WithURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notifier.Config{
		Params: map[string]any{
			"url":     "http://example.com/hook",
			"headers": map[string]any{"X-Token": "abc"},
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if w.url != "http://example.com/hook" {
		t.Errorf("expected url, got %s", w.url)
	}
	if w.headers["X-Token"] != "abc" {
		t.Errorf("expected header from untyped map, got %v", w.headers)
	}
}

func TestWebhook_Notify(t *testing.T) {
	var (
		received map[string]any
		token    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, map[string]string{"X-Token": "secret"})
	err := w.Notify(context.Background(), notifier.Summary{
		RunID:     "run-1",
		Date:      "2026-03-02",
		Saved:     9,
		Watchlist: []scoring.Entry{{Ticker: "PETR4", Score: 4}},
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if token != "secret" {
		t.Errorf("expected custom header, got %q", token)
	}
	if received["type"] != "cycle_summary" {
		t.Errorf("expected type cycle_summary, got %v", received["type"])
	}
	summary, ok := received["summary"].(map[string]any)
	if !ok {
		t.Fatalf("expected summary object, got %T", received["summary"])
	}
	if summary["run_id"] != "run-1" {
		t.Errorf("expected run_id run-1, got %v", summary["run_id"])
	}
	buys, ok := received["top_buys"].([]any)
	if !ok || len(buys) != 1 || buys[0] != "PETR4" {
		t.Errorf("unexpected top_buys %v", received["top_buys"])
	}
}

func TestWebhook_Notify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := New(server.URL, nil)
	if err := w.Notify(context.Background(), notifier.Summary{}); err == nil {
		t.Error("expected error for 500 response")
	}
}
