package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/propintel/worker-go/pkg/config"
)

// SQSMailer hands messages to the notification relay queue instead of
// delivering them directly. The relay owns templating, throttling and
// provider failover.
type SQSMailer struct {
	client   *sqs.Client
	queueURL string
	cfg      config.MailConfig
}

// NewSQSMailer creates a mailer publishing to the relay queue.
func NewSQSMailer(client *sqs.Client, queueURL string, cfg config.MailConfig) *SQSMailer {
	return &SQSMailer{client: client, queueURL: queueURL, cfg: cfg}
}

type relayMessage struct {
	From        string   `json:"from"`
	To          []string `json:"to"`
	Cc          []string `json:"cc,omitempty"`
	Bcc         []string `json:"bcc,omitempty"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ContentType string   `json:"contentType"`
}

// Send publishes the message to the relay queue.
func (m *SQSMailer) Send(ctx context.Context, msg *Message) error {
	applyDefaultFrom(msg, m.cfg)

	body, err := json.Marshal(relayMessage{
		From:        msg.From,
		To:          msg.To,
		Cc:          msg.Cc,
		Bcc:         msg.Bcc,
		Subject:     msg.Subject,
		Body:        msg.Body,
		ContentType: msg.ContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to encode relay message: %w", err)
	}

	_, err = m.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(m.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to relay queue: %w", err)
	}
	return nil
}
