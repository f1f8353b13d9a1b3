package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailMessage is one outgoing email. HTML is optional.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers an email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
	Name() string
}

// NewMailer picks the provider configured in cfg.Provider. Unknown providers log only.
func NewMailer(cfg *config.MailConfig) Mailer {
	switch strings.ToLower(cfg.Provider) {
	case "smtp":
		if cfg.SMTPHost != "" {
			return &SMTPMailer{cfg: cfg}
		}
		logger.Warn().Msg("[Email] smtp provider without host, falling back to log mailer")
	case "sendgrid":
		if cfg.SendgridAPIKey != "" {
			return NewSendGridMailer(cfg.SendgridAPIKey, cfg.From)
		}
		logger.Warn().Msg("[Email] sendgrid provider without API key, falling back to log mailer")
	}
	return LogMailer{}
}

// LogMailer writes the message to the log instead of sending it. Development default.
type LogMailer struct{}

func (LogMailer) Name() string { return "log" }

func (LogMailer) Send(_ context.Context, msg *EmailMessage) error {
	logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg(msg.Text)
	return nil
}

type SMTPMailer struct {
	cfg *config.MailConfig
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) Send(_ context.Context, msg *EmailMessage) error {
	from := m.cfg.From
	if from == "" {
		from = m.cfg.SMTPUsername
	}
	body, contentType := msg.Text, "text/plain; charset=UTF-8"
	if msg.HTML != "" {
		body, contentType = msg.HTML, "text/html; charset=UTF-8"
	}

	var message strings.Builder
	for _, h := range [][2]string{
		{"From", from},
		{"To", msg.To},
		{"Subject", msg.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", contentType},
	} {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" && m.cfg.SMTPPassword != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	var err error
	if m.cfg.SMTPUseTLS {
		err = m.sendTLS(addr, auth, from, msg.To, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, []string{msg.To}, []byte(message.String()))
	}
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from, to, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.SMTPHost})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	return w.Close()
}

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendGridMailer struct {
	key  string
	from *sgmail.Email
}

func NewSendGridMailer(key, from string) *SendGridMailer {
	return &SendGridMailer{key: key, from: sgmail.NewEmail("StudyHub", from)}
}

func (m *SendGridMailer) Name() string { return "sendgrid" }

func (m *SendGridMailer) prepare(msg *EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return v3
}

func (m *SendGridMailer) Send(_ context.Context, msg *EmailMessage) error {
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
