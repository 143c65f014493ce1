package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"buildea/api/internal/logging"
	"go.uber.org/zap/zapcore"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "test@example.com"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.com", From: "test@example.com"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.com", Port: "587", From: "test@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestServiceSendBuildsMultipart(t *testing.T) {
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "noreply@buildea.dev", FromName: "Buildea"})
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	svc.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := svc.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Text: "plain", HTML: "<p>rich</p>"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "a@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{"From: Buildea <noreply@buildea.dev>", "Subject: Hi", "multipart/alternative", "plain", "<p>rich</p>"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestServiceSendNotConfigured(t *testing.T) {
	err := NewService(Config{}).Send(context.Background(), Message{To: []string{"a@example.com"}})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Send() error = %v, want ErrNotConfigured", err)
	}
}

func TestSendgridMailer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != sendgridEndpoint {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sg-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendgridMailer("sg-key", "Buildea", "noreply@buildea.dev")
	m.host = srv.URL
	if err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Text: "plain", HTML: "<p>x</p>"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if body["subject"] != "Hi" {
		t.Errorf("subject = %v", body["subject"])
	}
	if contents, _ := body["content"].([]any); len(contents) != 2 {
		t.Errorf("content parts = %d, want 2", len(contents))
	}
}

func TestSendgridMailerReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewSendgridMailer("bad", "Buildea", "noreply@buildea.dev")
	m.host = srv.URL
	if err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Text: "x"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestNewMailerSelection(t *testing.T) {
	smtpCfg := Config{Host: "smtp.example.com", Port: "587", From: "noreply@buildea.dev"}
	cases := []struct {
		name     string
		settings Settings
		want     string
	}{
		{"sendgrid wins", Settings{SMTP: smtpCfg, SendgridAPIKey: "k"}, "sendgrid"},
		{"smtp", Settings{SMTP: smtpCfg}, "smtp"},
		{"log fallback", Settings{}, "log"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewMailer(tc.settings, nil).Name(); got != tc.want {
				t.Fatalf("NewMailer().Name() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLogMailerLogs(t *testing.T) {
	tl := logging.NewTestLogger()
	m := NewLogMailer(tl.Logger)
	if err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	tl.AssertLogged(t, zapcore.InfoLevel, "email not sent")
}

func TestStatusChangeMessage(t *testing.T) {
	msg, err := StatusChangeMessage("a@example.com", StatusChangeData{
		UserName:    "Avery",
		IdeaTitle:   "Night market <3",
		StatusLabel: "Event planned",
		Details:     "Scheduled for June",
		IdeaURL:     "https://buildea.dev/ideas/idea_1",
	})
	if err != nil {
		t.Fatalf("StatusChangeMessage() error = %v", err)
	}
	if !strings.Contains(msg.Subject, "Event planned") {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{"Avery", "Night market &lt;3", "Scheduled for June", "https://buildea.dev/ideas/idea_1"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestContactMessage(t *testing.T) {
	msg, err := ContactMessage("team@buildea.dev", ContactData{Kind: "Business", Name: "Kim", Email: "kim@corp.example", Company: "Corp", Message: "Let's talk"})
	if err != nil {
		t.Fatalf("ContactMessage() error = %v", err)
	}
	if msg.ReplyTo != "kim@corp.example" || msg.To[0] != "team@buildea.dev" {
		t.Errorf("unexpected routing: %+v", msg)
	}
	if !strings.Contains(msg.HTML, "Company: Corp") {
		t.Error("html should include company")
	}
	if !strings.Contains(msg.Subject, "Business inquiry") {
		t.Errorf("subject = %q", msg.Subject)
	}
}
