// Package mailer relays contact form submissions over SMTP with retry and
// exponential backoff, and sends the submitter a confirmation copy.
package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is a single outgoing email.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// Transport delivers individual messages. The production implementation
// speaks SMTP; tests substitute a fake.
type Transport interface {
	// Verify checks that the transport can reach its server without
	// sending anything.
	Verify(ctx context.Context) error
	// Send delivers one message and returns its Message-ID.
	Send(ctx context.Context, msg Message) (string, error)
}

// Config holds SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// SMTPTransport sends mail through a single SMTP server.
type SMTPTransport struct {
	cfg Config
	log *zap.Logger
}

// NewSMTPTransport creates a transport for the given server settings.
func NewSMTPTransport(cfg Config, log *zap.Logger) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, log: log}
}

func (t *SMTPTransport) addr() string {
	return fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
}

// Verify dials the SMTP server and exchanges a greeting. It does not
// authenticate or send.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		c, err := smtp.Dial(t.addr())
		if err != nil {
			done <- result{fmt.Errorf("smtp dial %s: %w", t.addr(), err)}
			return
		}
		defer c.Close()
		if err := c.Hello("localhost"); err != nil {
			done <- result{fmt.Errorf("smtp hello: %w", err)}
			return
		}
		done <- result{c.Quit()}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-done:
		return r.err
	}
}

// Send delivers msg and returns the generated Message-ID.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.cfg.Host)
	body := t.encode(msg, messageID)

	var auth smtp.Auth
	if t.cfg.User != "" && t.cfg.Pass != "" {
		auth = smtp.PlainAuth("", t.cfg.User, t.cfg.Pass, t.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(t.addr(), auth, t.cfg.From, []string{msg.To}, body)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("send to %s: %w", msg.To, err)
		}
	}

	t.log.Info("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("message_id", messageID))
	return messageID, nil
}

func (t *SMTPTransport) encode(msg Message, messageID string) []byte {
	from := t.cfg.From
	if t.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", t.cfg.FromName, t.cfg.From)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody != "" {
		boundary := randomBoundary()
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
		buf.WriteString("\r\n")

		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
		buf.WriteString("\r\n")

		fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	} else {
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
	}
	return buf.Bytes()
}

func randomBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	return "----=_Part_" + hex.EncodeToString(b)
}
