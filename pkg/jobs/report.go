package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/propintel/worker-go/pkg/property"
	"github.com/propintel/worker-go/pkg/render"
	"github.com/propintel/worker-go/pkg/report"
)

// reportTTL is how long a generated report stays downloadable.
const reportTTL = 7 * 24 * time.Hour

// ReportHandler renders a listing's investment report to PDF and
// stores it.
type ReportHandler struct {
	store    property.Store
	renderer render.Renderer
	objects  render.ObjectStore
}

// NewReportHandler creates the generate-pdf handler.
func NewReportHandler(store property.Store, renderer render.Renderer, objects render.ObjectStore) *ReportHandler {
	return &ReportHandler{store: store, renderer: renderer, objects: objects}
}

// Handle generates the PDF. Any failure flips the report to failed
// before the error propagates, so polling clients never see a report
// stuck in generating while its job is gone.
func (h *ReportHandler) Handle(ctx context.Context, payload map[string]string) (any, error) {
	reportID := payload["reportId"]

	result, err := h.generate(ctx, payload)
	if err != nil {
		if statusErr := h.store.UpdateReportStatus(ctx, reportID, property.ReportFailed); statusErr != nil {
			log.Ctx(ctx).Error().Err(statusErr).Str("report_id", reportID).
				Msg("Failed to mark report failed")
		}
		return nil, err
	}
	return result, nil
}

func (h *ReportHandler) generate(ctx context.Context, payload map[string]string) (any, error) {
	reportID := payload["reportId"]
	listingID := payload["listingId"]
	userID := payload["userId"]

	logger := log.Ctx(ctx).With().Str("report_id", reportID).Str("listing_id", listingID).Logger()
	logger.Info().Msg("Processing PDF job")

	listing, err := h.store.FindListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.UserID != userID {
		return nil, fmt.Errorf("listing %s not found", listingID)
	}

	if err := h.store.UpdateReportStatus(ctx, reportID, property.ReportGenerating); err != nil {
		return nil, err
	}

	html, err := report.GenerateHTML(listing)
	if err != nil {
		return nil, err
	}

	pdf, err := h.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, err
	}

	key := "reports/" + uuid.NewString() + ".pdf"
	signedURL, err := h.objects.Put(ctx, key, pdf)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(reportTTL)
	if err := h.store.MarkReportReady(ctx, reportID, key, signedURL, expiresAt); err != nil {
		return nil, err
	}

	logger.Info().Int("size", len(pdf)).Msg("PDF generated")

	if err := h.store.LogUsage(ctx, userID, "report_generated", map[string]any{
		"reportId":  reportID,
		"listingId": listingID,
		"pdfSize":   len(pdf),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to log usage")
	}

	return map[string]any{"reportId": reportID, "signedUrl": signedURL}, nil
}
