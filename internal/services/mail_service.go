package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"researchblog/internal/config"
)

// ErrMailDisabled is returned by every send when no transport is configured.
var ErrMailDisabled = errors.New("email configuration missing")

// Notifier delivers account related emails.
type Notifier interface {
	SendVerification(ctx context.Context, to, url string) error
	SendPasswordReset(ctx context.Context, to, url string) error
}

// Message is a rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender is a mail transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

//go:embed templates/email/*.html
var emailFS embed.FS

var emailTemplates = template.Must(template.ParseFS(emailFS, "templates/email/*.html"))

type MailService struct {
	sender Sender
	log    logrus.FieldLogger
}

// NewMailService picks a transport from cfg. A service without credentials is
// still returned but fails every send with ErrMailDisabled.
func NewMailService(cfg config.Mail, log logrus.FieldLogger) *MailService {
	var sender Sender
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridAPIKey != "" && cfg.From != "" {
			sender = NewSendGridSender(cfg.SendGridAPIKey, cfg.From, cfg.FromName, "")
		}
	default:
		if cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPass != "" {
			from := cfg.From
			if from == "" {
				from = cfg.SMTPUser
			}
			sender = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, from, cfg.FromName)
		}
	}
	if sender == nil {
		log.WithField("provider", cfg.Provider).Warn("mail disabled: missing credentials")
	}
	return NewMailServiceWithSender(sender, log)
}

func NewMailServiceWithSender(sender Sender, log logrus.FieldLogger) *MailService {
	return &MailService{sender: sender, log: log}
}

func (s *MailService) Enabled() bool {
	return s.sender != nil
}

func (s *MailService) SendVerification(ctx context.Context, to, url string) error {
	return s.send(ctx, to, "Verify your account", "verify.html", url)
}

func (s *MailService) SendPasswordReset(ctx context.Context, to, url string) error {
	return s.send(ctx, to, "Password Reset", "reset.html", url)
}

func (s *MailService) send(ctx context.Context, to, subject, tmpl, url string) error {
	if s.sender == nil {
		return ErrMailDisabled
	}
	body, err := render(tmpl, map[string]string{"URL": url})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, Message{To: to, Subject: subject, HTML: body}); err != nil {
		s.log.WithError(err).WithField("to", to).Error("failed to send email")
		return fmt.Errorf("failed to send %q: %w", subject, err)
	}
	s.log.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email sent")
	return nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

type SMTPSender struct {
	host, port string
	username   string
	password   string
	from       string
	fromName   string
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, username, password, from, fromName string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.sendMail(addr, auth, s.from, []string{msg.To}, s.build(msg))
}

func (s *SMTPSender) build(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.fromName, s.from)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

const sendGridHost = "https://api.sendgrid.com"

type SendGridSender struct {
	key      string
	host     string
	from     string
	fromName string
}

// NewSendGridSender returns a sender for the SendGrid v3 API. An empty host
// means the public API.
func NewSendGridSender(key, from, fromName, host string) *SendGridSender {
	if host == "" {
		host = sendGridHost
	}
	return &SendGridSender{key: key, host: host, from: from, fromName: fromName}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		"",
		msg.HTML,
	)

	req := sendgrid.GetRequest(s.key, "/v3/mail/send", s.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
