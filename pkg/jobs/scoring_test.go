package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/worker-go/pkg/property"
	"github.com/propintel/worker-go/pkg/scoring"
)

type stubScorer struct {
	result *scoring.Result
	err    error
	calls  int
}

func (s *stubScorer) Score(_ context.Context, _ *property.Listing) (*scoring.Result, error) {
	s.calls++
	return s.result, s.err
}

func seedScoringStore() *property.MemoryStore {
	store := property.NewMemoryStore()
	store.SeedListing(&property.Listing{
		ID:     "listing-1",
		UserID: "user-1",
		City:   "Austin",
		Price:  425000,
		Financials: &property.Financials{
			ROIPercent: 16,
			CapRate:    5.5,
		},
	})
	return store
}

func scoringPayload() map[string]string {
	return map[string]string{"listingId": "listing-1", "userId": "user-1"}
}

func TestScoringHandlerPersistsScore(t *testing.T) {
	store := seedScoringStore()
	scorer := &stubScorer{result: &scoring.Result{
		Score:     82,
		Summary:   "Strong deal",
		Strengths: []string{"High ROI"},
	}}
	handler := NewScoringHandler(store, scorer, "claude-3.5-sonnet-v1")

	result, err := handler.Handle(context.Background(), scoringPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"listingId": "listing-1", "score": 82}, result)

	score := store.ScoreFor("listing-1")
	require.NotNil(t, score)
	assert.Equal(t, 82, score.Score)
	assert.Equal(t, "user-1", score.UserID)
	assert.Equal(t, "claude-3.5-sonnet-v1", score.ModelVersion)

	usage := store.UsageEntries()
	require.Len(t, usage, 1)
	assert.Equal(t, "property_scored", usage[0].Action)
}

func TestScoringHandlerIsIdempotent(t *testing.T) {
	store := seedScoringStore()
	scorer := &stubScorer{result: &scoring.Result{Score: 75, Summary: "ok"}}
	handler := NewScoringHandler(store, scorer, "claude-3.5-sonnet-v1")

	_, err := handler.Handle(context.Background(), scoringPayload())
	require.NoError(t, err)
	first := store.ScoreFor("listing-1")

	// A redelivered job overwrites rather than duplicates.
	scorer.result = &scoring.Result{Score: 80, Summary: "better"}
	_, err = handler.Handle(context.Background(), scoringPayload())
	require.NoError(t, err)

	second := store.ScoreFor("listing-1")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 80, second.Score)
}

func TestScoringHandlerFallsBackOnUnparseableReply(t *testing.T) {
	store := seedScoringStore()
	scorer := &stubScorer{err: scoring.ErrUnparseable}
	handler := NewScoringHandler(store, scorer, "claude-3.5-sonnet-v1")

	_, err := handler.Handle(context.Background(), scoringPayload())
	require.NoError(t, err)

	score := store.ScoreFor("listing-1")
	require.NotNil(t, score)
	// Base 50, ROI 16 adds 15, cap rate 5.5 adds 5.
	assert.Equal(t, 70, score.Score)
	assert.Contains(t, score.Summary, "Fallback scoring")
}

func TestScoringHandlerPropagatesTransportError(t *testing.T) {
	store := seedScoringStore()
	scorer := &stubScorer{err: errors.New("connection refused")}
	handler := NewScoringHandler(store, scorer, "claude-3.5-sonnet-v1")

	_, err := handler.Handle(context.Background(), scoringPayload())
	require.Error(t, err)
	assert.Nil(t, store.ScoreFor("listing-1"), "no score must be written on a failed attempt")
}

func TestScoringHandlerUnknownListing(t *testing.T) {
	handler := NewScoringHandler(property.NewMemoryStore(), &stubScorer{}, "claude-3.5-sonnet-v1")

	_, err := handler.Handle(context.Background(), scoringPayload())
	assert.ErrorIs(t, err, property.ErrNotFound)
}
