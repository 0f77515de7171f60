// Package jobs implements the handlers behind each job type: scoring,
// report generation and alert matching.
package jobs

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/propintel/worker-go/pkg/property"
	"github.com/propintel/worker-go/pkg/scoring"
)

// ScoringHandler scores a listing and persists the result.
type ScoringHandler struct {
	store        property.Store
	scorer       scoring.Scorer
	modelVersion string
}

// NewScoringHandler creates the score-property handler.
func NewScoringHandler(store property.Store, scorer scoring.Scorer, modelVersion string) *ScoringHandler {
	return &ScoringHandler{store: store, scorer: scorer, modelVersion: modelVersion}
}

// Handle scores the listing. An unreachable scoring backend fails the
// attempt so it retries; a backend reply that cannot be parsed falls
// back to heuristic scoring instead, since a retry would not parse any
// better. The score upsert is keyed by listing, so repeated runs
// converge on the same row.
func (h *ScoringHandler) Handle(ctx context.Context, payload map[string]string) (any, error) {
	listingID := payload["listingId"]
	userID := payload["userId"]

	logger := log.Ctx(ctx).With().Str("listing_id", listingID).Logger()
	logger.Info().Msg("Processing scoring job")

	listing, err := h.store.FindListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	result, err := h.scorer.Score(ctx, listing)
	if errors.Is(err, scoring.ErrUnparseable) {
		logger.Warn().Msg("Falling back to heuristic scoring")
		result = scoring.Fallback(listing)
	} else if err != nil {
		return nil, err
	}

	score := &property.Score{
		ListingID:    listingID,
		UserID:       userID,
		Score:        scoring.ClampScore(result.Score),
		Summary:      result.Summary,
		Strengths:    result.Strengths,
		Weaknesses:   result.Weaknesses,
		ModelVersion: h.modelVersion,
	}
	if err := h.store.UpsertScore(ctx, score); err != nil {
		return nil, err
	}

	logger.Info().Int("score", score.Score).Msg("Score generated")

	if err := h.store.LogUsage(ctx, userID, "property_scored", map[string]any{
		"listingId": listingID,
		"score":     score.Score,
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to log usage")
	}

	return map[string]any{"listingId": listingID, "score": score.Score}, nil
}
