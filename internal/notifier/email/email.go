// Package email implements an SMTP-based email notifier
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/newthinker/radar/internal/notifier"
)

var bodyTmpl = template.Must(template.New("summary").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<html><body>
<h2>Radar {{.Date}}</h2>
{{if .Headline}}<p><em>{{.Headline}}</em></p>{{end}}
<p>{{.Saved}}/{{.Intended}} ativos atualizados{{if .Errors}}, {{.Errors}} com erro{{end}}. USD/BRL {{printf "%.4f" .FXRate}}.</p>
{{if .Watchlist}}<h3 style="color: #28a745;">Watchlist</h3>
<ul>{{range .Watchlist}}<li><strong>{{.Ticker}}</strong> {{printf "%+.1f" .Score}} {{join .Reasons ", "}}</li>{{end}}</ul>{{end}}
{{if .AvoidList}}<h3 style="color: #dc3545;">Evitar</h3>
<ul>{{range .AvoidList}}<li><strong>{{.Ticker}}</strong> {{printf "%+.1f" .Score}} {{join .RiskFlags ", "}}</li>{{end}}</ul>{{end}}
{{if .Report}}<p><small>{{.Report}}</small></p>{{end}}
</body></html>`))

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	switch port := cfg.Params["port"].(type) {
	case int:
		e.port = port
	case float64:
		e.port = int(port)
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	switch to := cfg.Params["to"].(type) {
	case []string:
		e.to = to
	case []any:
		e.to = e.to[:0]
		for _, v := range to {
			e.to = append(e.to, fmt.Sprint(v))
		}
	case string:
		e.to = strings.Split(to, ",")
	}

	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	if e.port == 0 {
		e.port = 587
	}
	if e.send == nil {
		e.send = smtp.SendMail
	}
	return nil
}

// Notify mails the summary. net/smtp has no context support; ctx is only
// checked before dialing.
func (e *Email) Notify(ctx context.Context, s notifier.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := e.formatSummary(s)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Radar %s: %d compra, %d evitar", s.Date, len(s.Watchlist), len(s.AvoidList))
	return e.sendEmail(subject, body)
}

func (e *Email) formatSummary(s notifier.Summary) (string, error) {
	var buf bytes.Buffer
	if err := bodyTmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("email: rendering body: %w", err)
	}
	return buf.String(), nil
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		body,
	)

	if err := e.send(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return fmt.Errorf("email: send failed: %w", err)
	}
	return nil
}
