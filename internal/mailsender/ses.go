package mailsender

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// SESSender sends through AWS SES v2, selected as the MailSender
// implementation when the Mailing.Sender config setting is "ses".
type SESSender struct {
	region string
	client *sesv2.Client
}

// NewSESSender builds an SES sender. The client is left nil if credentials
// are absent; Send then fails fast rather than calling out with a zero
// client.
func NewSESSender(accessKey, secretKey, region string) *SESSender {
	if region == "" {
		region = "us-east-1"
	}
	sender := &SESSender{region: region}

	if accessKey != "" && secretKey != "" {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
		if err != nil {
			logger.Warn("ses client init failed", "error", err.Error())
		} else {
			sender.client = sesv2.NewFromConfig(cfg)
		}
	}
	return sender
}

// Send delivers msg through SES. msg carries exactly one recipient.
func (s *SESSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if s.client == nil {
		return nil, fmt.Errorf("ses client not initialized - check credentials")
	}

	to := singleRecipient(msg)
	if to == "" {
		return &domain.SendResult{Success: false, ESPType: domain.ESPSES, Error: "no recipient in envelope"}, nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    &types.Body{},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("message_id"), Value: aws.String(msg.MessageID)},
		},
	}

	if msg.HTMLContent != "" {
		input.Content.Simple.Body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	if msg.TextContent != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses send failed", "to", logger.RedactEmail(to), "error", err.Error())
		return &domain.SendResult{Success: false, ESPType: domain.ESPSES, Error: err.Error()}, nil
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}

	return &domain.SendResult{
		Success:   true,
		MessageID: messageID,
		ESPType:   domain.ESPSES,
		SentAt:    time.Now(),
	}, nil
}

func singleRecipient(msg *domain.EmailMessage) string {
	switch {
	case len(msg.To) > 0:
		return msg.To[0].Email
	case len(msg.CC) > 0:
		return msg.CC[0].Email
	case len(msg.BCC) > 0:
		return msg.BCC[0].Email
	default:
		return ""
	}
}
