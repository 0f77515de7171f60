package mail

import (
	"context"
	"fmt"

	"github.com/propintel/worker-go/pkg/config"
)

// NewMailer creates a Mailer based on the configured driver.
func NewMailer(ctx context.Context, mailCfg config.MailConfig, sqsCfg config.SQSConfig) (Mailer, error) {
	switch mailCfg.Driver {
	case "smtp":
		return NewSMTPMailer(mailCfg), nil
	case "sqs":
		client, err := config.LoadSQSClient(ctx, sqsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load SQS client: %w", err)
		}
		return NewSQSMailer(client, sqsCfg.QueueURL, mailCfg), nil
	case "log":
		return NewLogMailer(mailCfg), nil
	default:
		return nil, fmt.Errorf("unsupported mailer: %s", mailCfg.Driver)
	}
}
