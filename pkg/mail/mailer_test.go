package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/propintel/worker-go/pkg/config"
)

func TestFactory(t *testing.T) {
	tests := []struct {
		name      string
		config    config.MailConfig
		wantType  interface{}
		expectErr bool
	}{
		{
			name: "smtp",
			config: config.MailConfig{
				Driver: "smtp",
			},
			wantType:  &SMTPMailer{},
			expectErr: false,
		},
		{
			name: "log",
			config: config.MailConfig{
				Driver: "log",
			},
			wantType:  &LogMailer{},
			expectErr: false,
		},
		{
			name: "invalid",
			config: config.MailConfig{
				Driver: "invalid",
			},
			wantType:  nil,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewMailer(context.Background(), tt.config, config.SQSConfig{})
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.IsType(t, tt.wantType, got)
			}
		})
	}
}

func TestLogMailer_Send(t *testing.T) {
	// Capture log output
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	cfg := config.MailConfig{
		Driver:      "log",
		FromAddress: "alerts@propintel.app",
		FromName:    "PropIntel Alerts",
	}
	mailer := NewLogMailer(cfg)

	msg := &Message{
		To:      []string{"investor@example.com"},
		Subject: "Property Alert",
		Body:    "A new property matches your alerts",
	}

	err := mailer.Send(ctx, msg)
	assert.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Sending email")
	assert.Contains(t, output, "PropIntel Alerts <alerts@propintel.app>")
	assert.Contains(t, output, "investor@example.com")
	assert.Contains(t, output, "Property Alert")
	assert.Contains(t, output, "A new property matches your alerts")
}

func TestSMTPHelper_ParseEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"test@example.com", "test@example.com", false},
		{"Name <test@example.com>", "test@example.com", false},
		{"<test@example.com>", "test@example.com", false},
		{"Invalid <test@example.com", "", true}, // net/mail is strict
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseEmailAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestSMTPHelper_BuildBody(t *testing.T) {
	msg := &Message{
		From:        "sender@example.com",
		To:          []string{"to@example.com"},
		Subject:     "Test",
		Body:        "Body",
		ContentType: "text/html",
	}

	body, err := buildEmailBody(msg)
	assert.NoError(t, err)
	assert.Contains(t, body, "From: sender@example.com")
	assert.Contains(t, body, "To: to@example.com")
	assert.Contains(t, body, "Subject: Test")
	assert.Contains(t, body, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(body, "\r\n\r\nBody"))
}

func TestSMTPHelper_BuildBody_Sanitization(t *testing.T) {
	msg := &Message{
		From:    "sender@example.com",
		To:      []string{"to@example.com"},
		Subject: "Test\r\nInjected: Header",
		Body:    "Body",
	}

	body, err := buildEmailBody(msg)
	assert.NoError(t, err)
	assert.Contains(t, body, "Subject: TestInjected: Header")
	assert.NotContains(t, body, "Subject: Test\r\n")
}

func TestSMTPHelper_Recipients(t *testing.T) {
	msg := &Message{
		To:  []string{"to1@example.com", "to2@example.com"},
		Cc:  []string{"cc1@example.com"},
		Bcc: []string{"bcc1@example.com"},
	}

	recipients := getAllRecipients(msg)
	assert.Len(t, recipients, 4)
	assert.Contains(t, recipients, "to1@example.com")
	assert.Contains(t, recipients, "cc1@example.com")
	assert.Contains(t, recipients, "bcc1@example.com")
}
