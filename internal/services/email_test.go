package services

import (
	"context"
	"testing"

	"github.com/huangang/studyhub/internal/config"
)

func TestNewMailer(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MailConfig
		want string
	}{
		{"default", config.MailConfig{}, "log"},
		{"log", config.MailConfig{Provider: "log"}, "log"},
		{"smtp", config.MailConfig{Provider: "SMTP", SMTPHost: "mail.example.com", SMTPPort: 587}, "smtp"},
		{"smtp without host", config.MailConfig{Provider: "smtp"}, "log"},
		{"sendgrid", config.MailConfig{Provider: "sendgrid", SendgridAPIKey: "SG.key", From: "a@example.com"}, "sendgrid"},
		{"sendgrid without key", config.MailConfig{Provider: "sendgrid"}, "log"},
		{"unknown", config.MailConfig{Provider: "pigeon"}, "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if got := NewMailer(&cfg).Name(); got != tt.want {
				t.Errorf("NewMailer().Name() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestLogMailer_Send(t *testing.T) {
	if err := (LogMailer{}).Send(context.Background(), &EmailMessage{To: "a@example.com", Subject: "s", Text: "link"}); err != nil {
		t.Errorf("LogMailer.Send() error = %v", err)
	}
}

func TestSendGridMailer_Prepare(t *testing.T) {
	m := NewSendGridMailer("SG.key", "no-reply@example.com")
	v3 := m.prepare(&EmailMessage{To: "a@example.com", Subject: "Verify", Text: "plain", HTML: "<p>html</p>"})

	if v3.From == nil || v3.From.Address != "no-reply@example.com" {
		t.Errorf("From = %+v", v3.From)
	}
	if len(v3.Personalizations) != 1 || v3.Personalizations[0].Subject != "Verify" {
		t.Fatalf("Personalizations = %+v", v3.Personalizations)
	}
	if tos := v3.Personalizations[0].To; len(tos) != 1 || tos[0].Address != "a@example.com" {
		t.Errorf("To = %+v", tos)
	}
	if len(v3.Content) != 2 || v3.Content[0].Type != "text/plain" {
		t.Errorf("Content = %+v", v3.Content)
	}
}
