package render

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/propintel/worker-go/pkg/config"
)

// HTTPRenderer renders PDFs through the headless-browser render
// service. One render can take tens of seconds on large reports, so the
// client timeout comes from config rather than a package default.
type HTTPRenderer struct {
	http *resty.Client
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer builds an HTTPRenderer from config.
func NewHTTPRenderer(cfg config.RenderConfig) *HTTPRenderer {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &HTTPRenderer{http: http}
}

type renderRequest struct {
	HTML    string        `json:"html"`
	Format  string        `json:"format"`
	Margins renderMargins `json:"margins"`
}

type renderMargins struct {
	Top    string `json:"top"`
	Right  string `json:"right"`
	Bottom string `json:"bottom"`
	Left   string `json:"left"`
}

// RenderPDF posts the HTML and returns the PDF bytes.
func (r *HTTPRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(renderRequest{
			HTML:   html,
			Format: "A4",
			Margins: renderMargins{
				Top:    "20mm",
				Right:  "15mm",
				Bottom: "20mm",
				Left:   "15mm",
			},
		}).
		Post("/render")
	if err != nil {
		return nil, fmt.Errorf("render service: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("render service: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
