package mailsender

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// SMTPSender sends a message through a single configured SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPSender builds an SMTPSender for the given relay.
func NewSMTPSender(host string, port int, username, password string, timeout time.Duration) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password, timeout: timeout}
}

// Send delivers msg through the configured relay. msg carries exactly one
// recipient in one of To/CC/BCC (the envelope built by OutboundWorker).
func (s *SMTPSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	recipients := allAddresses(msg)
	if len(recipients) == 0 {
		return &domain.SendResult{Success: false, ESPType: domain.ESPSMTP, Error: "no recipient in envelope"}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	body := buildRFC822(msg)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, msg.FromEmail, recipients, body)
	}()

	select {
	case <-ctx.Done():
		return &domain.SendResult{Success: false, ESPType: domain.ESPSMTP, Error: ctx.Err().Error()}, nil
	case err := <-done:
		if err != nil {
			logger.Warn("smtp send failed", "to", logger.RedactEmail(recipients[0]), "error", err.Error())
			return &domain.SendResult{Success: false, ESPType: domain.ESPSMTP, Error: err.Error()}, nil
		}
	}

	return &domain.SendResult{
		Success:   true,
		MessageID: uuid.New().String(),
		ESPType:   domain.ESPSMTP,
		SentAt:    time.Now(),
	}, nil
}

func allAddresses(msg *domain.EmailMessage) []string {
	var out []string
	for _, a := range msg.To {
		out = append(out, a.Email)
	}
	for _, a := range msg.CC {
		out = append(out, a.Email)
	}
	for _, a := range msg.BCC {
		out = append(out, a.Email)
	}
	return out
}

func buildRFC822(msg *domain.EmailMessage) []byte {
	var buf bytes.Buffer

	from := msg.FromEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
	}
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(addressList(msg.To), ", ")))
	if len(msg.CC) > 0 {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(addressList(msg.CC), ", ")))
	}
	if msg.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@mail>\r\n", msg.MessageID))
	buf.WriteString("MIME-Version: 1.0\r\n")

	for k, v := range msg.Headers {
		buf.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}

	switch {
	case msg.HTMLContent != "" && msg.TextContent != "":
		boundary := "boundary-" + msg.MessageID
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary))
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextContent)
		buf.WriteString("\r\n")
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLContent)
		buf.WriteString("\r\n")
		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	case msg.HTMLContent != "":
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.HTMLContent)
	default:
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(msg.TextContent)
	}

	return buf.Bytes()
}

func addressList(addrs []domain.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		if a.Name != "" {
			out[i] = fmt.Sprintf("%s <%s>", a.Name, a.Email)
		} else {
			out[i] = a.Email
		}
	}
	return out
}
