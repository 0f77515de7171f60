package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/worker-go/pkg/mail"
	"github.com/propintel/worker-go/pkg/property"
)

type recordingMailer struct {
	sent []*mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func seedAlertStore() *property.MemoryStore {
	store := property.NewMemoryStore()
	store.SeedListing(&property.Listing{
		ID:          "listing-1",
		UserID:      "user-1",
		Address:     "12 Oak St",
		City:        "Austin",
		State:       "TX",
		Price:       425000,
		ListingType: "single_family",
		Financials:  &property.Financials{ROIPercent: 14.8},
	})
	store.SeedUser(&property.User{ID: "user-1", Email: "investor@example.com", Name: "Jordan"})
	return store
}

func alertPayload() map[string]string {
	return map[string]string{"listingId": "listing-1", "userId": "user-1"}
}

func TestAlertsHandlerSendsOnMatch(t *testing.T) {
	store := seedAlertStore()
	store.SeedAlert(property.Alert{
		ID: "alert-1", UserID: "user-1", Name: "Austin deals", IsActive: true,
		Criteria: property.AlertCriteria{MaxPrice: 500000, MinROI: 10, Cities: []string{"Austin"}},
	})
	mailer := &recordingMailer{}
	handler := NewAlertsHandler(store, mailer)

	result, err := handler.Handle(context.Background(), alertPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matchedAlerts": 1}, result)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"investor@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "12 Oak St")
	assert.Contains(t, msg.Body, "Austin deals")
	assert.Contains(t, msg.Body, "Jordan")

	deliveries := store.DeliveryEntries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "email", deliveries[0].Channel)
	assert.Equal(t, "sent", deliveries[0].Status)
}

func TestAlertsHandlerNoActiveAlerts(t *testing.T) {
	store := seedAlertStore()
	store.SeedAlert(property.Alert{
		ID: "alert-1", UserID: "user-1", Name: "Paused", IsActive: false,
		Criteria: property.AlertCriteria{MaxPrice: 500000},
	})
	mailer := &recordingMailer{}
	handler := NewAlertsHandler(store, mailer)

	result, err := handler.Handle(context.Background(), alertPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matchedAlerts": 0}, result)
	assert.Empty(t, mailer.sent)
}

func TestAlertsHandlerNoMatchSendsNothing(t *testing.T) {
	store := seedAlertStore()
	store.SeedAlert(property.Alert{
		ID: "alert-1", UserID: "user-1", Name: "Cheap only", IsActive: true,
		Criteria: property.AlertCriteria{MaxPrice: 400000},
	})
	mailer := &recordingMailer{}
	handler := NewAlertsHandler(store, mailer)

	result, err := handler.Handle(context.Background(), alertPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matchedAlerts": 0}, result)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, store.DeliveryEntries())
}

func TestAlertsHandlerMailFailureDoesNotFailJob(t *testing.T) {
	store := seedAlertStore()
	store.SeedAlert(property.Alert{
		ID: "alert-1", UserID: "user-1", Name: "Austin deals", IsActive: true,
		Criteria: property.AlertCriteria{MaxPrice: 500000},
	})
	handler := NewAlertsHandler(store, &recordingMailer{err: errors.New("smtp down")})

	result, err := handler.Handle(context.Background(), alertPayload())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"matchedAlerts": 1}, result)
	assert.Empty(t, store.DeliveryEntries(), "no delivery may be logged for a failed send")
}

func TestMatchesCriteria(t *testing.T) {
	listing := &property.Listing{
		City:        "Austin",
		Price:       425000,
		ListingType: "single_family",
		Score:       &property.Score{Score: 78},
		Financials:  &property.Financials{ROIPercent: 14.8},
	}

	tests := []struct {
		name     string
		criteria property.AlertCriteria
		want     bool
	}{
		{"all satisfied", property.AlertCriteria{MinScore: 70, MaxPrice: 500000, MinROI: 10, Cities: []string{"Austin"}}, true},
		{"price above cap", property.AlertCriteria{MaxPrice: 400000}, false},
		{"price within cap", property.AlertCriteria{MaxPrice: 500000}, true},
		{"score too low", property.AlertCriteria{MinScore: 85}, false},
		{"roi too low", property.AlertCriteria{MinROI: 20}, false},
		{"wrong city", property.AlertCriteria{Cities: []string{"Dallas"}}, false},
		{"empty city list is unrestricted", property.AlertCriteria{Cities: []string{}}, true},
		{"wrong listing type", property.AlertCriteria{ListingTypes: []string{"commercial"}}, false},
		{"empty type list is unrestricted", property.AlertCriteria{ListingTypes: nil}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesCriteria(listing, tt.criteria))
		})
	}
}

func TestMatchesCriteriaUnscoredListingPassesScoreCheck(t *testing.T) {
	listing := &property.Listing{City: "Austin", Price: 300000}
	assert.True(t, MatchesCriteria(listing, property.AlertCriteria{MinScore: 80, MaxPrice: 500000}))
}
