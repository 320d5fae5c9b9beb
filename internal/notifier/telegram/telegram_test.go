package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/radar/internal/notifier"
	"github.com/newthinker/radar/internal/scoring"
)

func TestTelegram_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Telegram)(nil)
}

func TestTelegram_Name(t *testing.T) {
	tg := New("token", "chatid")
	if tg.Name() != "telegram" {
		t.Errorf("expected 'telegram', got '%s'", tg.Name())
	}
}

func TestTelegram_Init(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token": "test-token",
			"chat_id":   "test-chat",
		},
	}

	err := tg.Init(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tg.botToken != "test-token" {
		t.Errorf("expected bot_token 'test-token', got '%s'", tg.botToken)
	}
	if tg.chatID != "test-chat" {
		t.Errorf("expected chat_id 'test-chat', got '%s'", tg.chatID)
	}
	if tg.baseURL != defaultBaseURL {
		t.Errorf("expected default base url, got '%s'", tg.baseURL)
	}
}

func TestTelegram_Init_MissingToken(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"chat_id": "test-chat",
		},
	}

	err := tg.Init(cfg)
	if err == nil {
		t.Error("expected error for missing bot_token")
	}
}

func TestTelegram_Init_MissingChatID(t *testing.T) {
	tg := &Telegram{}

	cfg := notifier.Config{
		Params: map[string]any{
			"bot_token": "test-token",
		},
	}

	err := tg.Init(cfg)
	if err == nil {
		t.Error("expected error for missing chat_id")
	}
}

func testSummary() notifier.Summary {
	return notifier.Summary{
		RunID:    "run-1",
		Date:     "2026-03-02",
		Intended: 10,
		Saved:    9,
		Errors:   1,
		FXRate:   5.4321,
		Headline: "Ibovespa sobe com bancos",
		Watchlist: []scoring.Entry{
			{Ticker: "PETR4", Score: 4.5, Reasons: []string{"rsi_oversold", "golden_cross"}},
		},
		AvoidList: []scoring.Entry{
			{Ticker: "MGLU3", Score: -3},
		},
	}
}

func TestTelegram_Notify(t *testing.T) {
	var (
		path    string
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	tg := &Telegram{}
	err := tg.Init(notifier.Config{Params: map[string]any{
		"bot_token": "test-token",
		"chat_id":   "test-chat",
		"base_url":  server.URL,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tg.Notify(context.Background(), testSummary()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if path != "/bottest-token/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if payload["chat_id"] != "test-chat" {
		t.Errorf("unexpected chat_id %v", payload["chat_id"])
	}
	if payload["parse_mode"] != "Markdown" {
		t.Errorf("unexpected parse_mode %v", payload["parse_mode"])
	}
}

func TestTelegram_Notify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer server.Close()

	tg := New("token", "chat")
	tg.baseURL = server.URL

	err := tg.Notify(context.Background(), testSummary())
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestTelegram_FormatSummary(t *testing.T) {
	tg := New("token", "chat")
	formatted := tg.formatSummary(testSummary())

	for _, want := range []string{"2026-03-02", "Ibovespa sobe", "9/10", "1 erros", "5.4321", "PETR4 +4.5", "golden_cross", "MGLU3 -3.0"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted message should contain %q:\n%s", want, formatted)
		}
	}
}

func TestTelegram_FormatSummary_Truncates(t *testing.T) {
	tg := New("token", "chat")
	s := notifier.Summary{Date: "2026-03-02"}
	for _, tk := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		s.Watchlist = append(s.Watchlist, scoring.Entry{Ticker: tk, Score: 3})
	}

	formatted := tg.formatSummary(s)
	if strings.Contains(formatted, "• F") {
		t.Error("entries past the limit should be folded")
	}
	if !strings.Contains(formatted, "+2") {
		t.Error("expected remaining count")
	}
	if strings.Contains(formatted, "Evitar") {
		t.Error("empty avoid list should be omitted")
	}
}
