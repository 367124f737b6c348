package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/arklim/learnstore/internal/infra/config"
)

// SMTPClient sends plain-text mail over SMTP with STARTTLS when the server offers it.
type SMTPClient struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
}

// NewSMTPClient builds a client from mail settings.
func NewSMTPClient(cfg config.MailSettings) (*SMTPClient, error) {
	if cfg.SMTP.Host == "" || cfg.FromAddress == "" {
		return nil, fmt.Errorf("smtp: host and from address are required: %w", ErrNotConfigured)
	}
	port := cfg.SMTP.Port
	if port == 0 {
		port = 587
	}
	return &SMTPClient{
		host:      cfg.SMTP.Host,
		port:      port,
		username:  cfg.SMTP.Username,
		password:  cfg.SMTP.Password,
		fromEmail: cfg.FromAddress,
		fromName:  cfg.FromName,
	}, nil
}

// SendEmail delivers one message. The context deadline bounds the whole SMTP conversation.
func (c *SMTPClient) SendEmail(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp: starttls: %w", err)
		}
	}
	if c.username != "" {
		if err := client.Auth(smtp.PlainAuth("", c.username, c.password, c.host)); err != nil {
			return permanent(fmt.Errorf("smtp: auth: %w", err))
		}
	}

	if err := client.Mail(c.fromEmail); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return permanent(fmt.Errorf("smtp: rcpt to: %w", err))
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(c.compose(to, subject, body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: close body: %w", err)
	}

	return client.Quit()
}

func (c *SMTPClient) compose(to, subject, body string) []byte {
	from := c.fromEmail
	if c.fromName != "" {
		from = fmt.Sprintf("%q <%s>", c.fromName, c.fromEmail)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
