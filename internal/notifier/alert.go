// Package notifier delivers moderation alerts and newsletter digests.
package notifier

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	"content-radar/internal/spam"
)

// LogAlerter prints blocked submissions, suitable during development.
type LogAlerter struct {
	logger *log.Logger
}

// NewLogAlerter creates a log alerter writing to stdout when no logger is
// given.
func NewLogAlerter(logger *log.Logger) *LogAlerter {
	if logger == nil {
		logger = log.New(os.Stdout, "[notify] ", log.LstdFlags)
	}
	return &LogAlerter{logger: logger}
}

// Alert prints one line per blocked submission.
func (n LogAlerter) Alert(ctx context.Context, alert spam.Alert) error {
	n.logger.Printf("spam blocked: %s (%s) score=%.2f reason=%s",
		alert.Email, alert.IPAddress, alert.Score, alert.Reason)
	return nil
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	Subject  string   `yaml:"subject" json:"subject"`
}

// EmailMessage represents one outgoing mail.
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// EmailSender abstracts delivery so tests can substitute a stub.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPClient wraps net/smtp delivery.
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	data := buildEmailData(msg)
	return smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(data))
}

// EmailAlerter mails moderators when a submission is blocked.
type EmailAlerter struct {
	cfg    EmailConfig
	sender EmailSender
}

// NewEmailAlerter creates an EmailAlerter. A nil sender falls back to SMTP.
func NewEmailAlerter(cfg EmailConfig, sender EmailSender) *EmailAlerter {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "Blocked comment submission"
	}
	return &EmailAlerter{cfg: cfg, sender: sender}
}

// Alert sends the blocked submission details to the configured moderators.
func (n EmailAlerter) Alert(ctx context.Context, alert spam.Alert) error {
	if len(n.cfg.To) == 0 {
		return nil
	}
	msg := EmailMessage{
		From:    n.cfg.From,
		To:      n.cfg.To,
		Subject: n.cfg.Subject,
		Body:    buildAlertBody(alert),
	}
	return n.sender.Send(ctx, msg)
}

func buildAlertBody(alert spam.Alert) string {
	var b strings.Builder
	b.WriteString("A comment submission was blocked as spam.\n\n")
	b.WriteString(fmt.Sprintf("Email: %s\n", alert.Email))
	b.WriteString(fmt.Sprintf("IP: %s\n", alert.IPAddress))
	b.WriteString(fmt.Sprintf("Score: %.2f\n", alert.Score))
	b.WriteString(fmt.Sprintf("Reason: %s\n", alert.Reason))
	return b.String()
}

func buildEmailData(msg EmailMessage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
