// Package mailsender is the transport port OutboundWorker hands a
// fully-resolved, single-recipient EmailMessage to. Two implementations ship:
// an SMTP sender (the default per the non-goal that DKIM signing and
// delivery happen outside this process) and an AWS SES v2 sender, selected
// by config.Mailing.Sender.
package mailsender

import (
	"context"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// Sender is the MailSender port.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}
