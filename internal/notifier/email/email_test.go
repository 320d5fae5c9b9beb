package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/newthinker/radar/internal/notifier"
	"github.com/newthinker/radar/internal/scoring"
)

func TestEmail_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Email)(nil)
}

func TestEmail_Name(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	if e.Name() != "email" {
		t.Errorf("expected 'email', got %s", e.Name())
	}
}

func TestEmail_Init_RequiredFields(t *testing.T) {
	e := &Email{}
	err := e.Init(notifier.Config{Params: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing required fields")
	}
}

func TestEmail_Init_WithConfig(t *testing.T) {
	e := &Email{}
	err := e.Init(notifier.Config{
		Params: map[string]any{
			"host": "smtp.example.com",
			"from": "radar@example.com",
			"to":   []any{"a@example.com", "b@example.com"},
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if e.host != "smtp.example.com" {
		t.Errorf("expected host smtp.example.com, got %s", e.host)
	}
	if e.port != 587 {
		t.Errorf("expected default port 587, got %d", e.port)
	}
	if len(e.to) != 2 {
		t.Errorf("expected 2 recipients, got %v", e.to)
	}
}

func testSummary() notifier.Summary {
	return notifier.Summary{
		Date:      "2026-03-02",
		Intended:  10,
		Saved:     10,
		FXRate:    5.4,
		Headline:  "Bancos lideram",
		Watchlist: []scoring.Entry{{Ticker: "ITUB4", Score: 3.5, Reasons: []string{"rsi_oversold"}}},
		AvoidList: []scoring.Entry{{Ticker: "<MGLU3>", Score: -2.5, RiskFlags: []string{"near_52w_high"}}},
	}
}

func TestEmail_FormatSummary(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})

	body, err := e.formatSummary(testSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Radar 2026-03-02", "Bancos lideram", "10/10", "ITUB4", "3.5", "rsi_oversold", "near_52w_high"} {
		if !strings.Contains(body, want) {
			t.Errorf("body should contain %q", want)
		}
	}
	if strings.Contains(body, "<MGLU3>") {
		t.Error("ticker should be escaped")
	}
	if strings.Contains(body, "com erro") {
		t.Error("error count should be omitted when zero")
	}
}

func TestEmail_Notify(t *testing.T) {
	e := New("smtp.example.com", 2525, "user", "pass", "from@example.com", []string{"to@example.com"})

	var (
		gotAddr string
		gotMsg  string
	)
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = string(msg)
		return nil
	}

	if err := e.Notify(context.Background(), testSummary()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Errorf("unexpected addr %s", gotAddr)
	}
	if !strings.Contains(gotMsg, "Subject: Radar 2026-03-02: 1 compra, 1 evitar") {
		t.Errorf("unexpected subject in:\n%s", gotMsg)
	}
	if !strings.Contains(gotMsg, "Content-Type: text/html") {
		t.Error("expected html content type")
	}
}

func TestEmail_Notify_SendError(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	if err := e.Notify(context.Background(), testSummary()); err == nil {
		t.Error("expected send error")
	}
}

func TestEmail_Notify_Cancelled(t *testing.T) {
	e := New("smtp.example.com", 587, "", "", "from@example.com", []string{"to@example.com"})
	called := false
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Notify(ctx, testSummary()); err == nil {
		t.Error("expected context error")
	}
	if called {
		t.Error("should not send after cancel")
	}
}
