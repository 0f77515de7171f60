package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/propintel/worker-go/pkg/config"
	"github.com/propintel/worker-go/pkg/property"
)

// Client scores listings through the AI backend's messages endpoint.
type Client struct {
	http  *resty.Client
	model string
}

var _ Scorer = (*Client)(nil)

// NewClient builds a Client from config.
func NewClient(cfg config.ScoringConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("content-type", "application/json")
	return &Client{http: http, model: cfg.Model}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Score sends the listing context to the backend and parses the JSON
// block out of its reply.
func (c *Client) Score(ctx context.Context, listing *property.Listing) (*Result, error) {
	prompt := fmt.Sprintf(
		"Score this real estate deal and provide investment analysis:\n\n%s\n\n"+
			`Provide response in JSON format: { "score": number, "summary": string, "strengths": string[], "weaknesses": string[] }`,
		BuildContext(listing))

	var response messageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(messageRequest{
			Model:     c.model,
			MaxTokens: 1024,
			Messages:  []message{{Role: "user", Content: prompt}},
		}).
		SetResult(&response).
		Post("/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("scoring backend: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scoring backend: status %d", resp.StatusCode())
	}

	text := firstText(response)
	result, err := ExtractResult(text)
	if err != nil {
		log.Ctx(ctx).Warn().Str("response", text).Msg("Failed to parse scoring response")
		return nil, err
	}
	return result, nil
}

func firstText(response messageResponse) string {
	for _, block := range response.Content {
		if block.Type == "text" {
			return block.Text
		}
	}
	return ""
}

// ExtractResult pulls the first JSON object out of a free-form reply
// and decodes it. Returns ErrUnparseable when no usable object exists.
func ExtractResult(text string) (*Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrUnparseable)
	}

	var result Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	result.Score = ClampScore(result.Score)
	if result.Summary == "" {
		result.Summary = "AI analysis complete"
	}
	return &result, nil
}
