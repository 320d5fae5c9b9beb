package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/notifier"
	"github.com/newthinker/radar/internal/scoring"
)

const defaultBaseURL = "https://api.telegram.org"

// listed per side in one message
const maxEntries = 5

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}
	if base, ok := cfg.Params["base_url"].(string); ok && base != "" {
		t.baseURL = strings.TrimRight(base, "/")
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.baseURL == "" {
		t.baseURL = defaultBaseURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Notify(ctx context.Context, s notifier.Summary) error {
	return t.sendMessage(ctx, t.formatSummary(s))
}

func (t *Telegram) formatSummary(s notifier.Summary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📊 *Radar %s*\n", s.Date)
	if s.Headline != "" {
		fmt.Fprintf(&sb, "_%s_\n", s.Headline)
	}
	fmt.Fprintf(&sb, "\n✅ %d/%d ativos", s.Saved, s.Intended)
	if s.Errors > 0 {
		fmt.Fprintf(&sb, " (⚠️ %d erros)", s.Errors)
	}
	fmt.Fprintf(&sb, "\n💵 USD/BRL %.4f\n", s.FXRate)

	writeEntries(&sb, "📈 *Watchlist*", s.Watchlist)
	writeEntries(&sb, "📉 *Evitar*", s.AvoidList)

	return sb.String()
}

func writeEntries(sb *strings.Builder, title string, entries []scoring.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s\n", title)
	for i, e := range entries {
		if i == maxEntries {
			fmt.Fprintf(sb, "… +%d\n", len(entries)-maxEntries)
			break
		}
		fmt.Fprintf(sb, "• %s %+.1f", e.Ticker, e.Score)
		if len(e.Reasons) > 0 {
			fmt.Fprintf(sb, " (%s)", strings.Join(e.Reasons, ", "))
		}
		sb.WriteString("\n")
	}
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
