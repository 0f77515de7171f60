package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/propintel/worker-go/pkg/mail"
	"github.com/propintel/worker-go/pkg/property"
)

// AlertsHandler checks a listing against the user's active alerts and
// sends one notification covering all matches.
type AlertsHandler struct {
	store  property.Store
	mailer mail.Mailer
}

// NewAlertsHandler creates the check-alerts handler.
func NewAlertsHandler(store property.Store, mailer mail.Mailer) *AlertsHandler {
	return &AlertsHandler{store: store, mailer: mailer}
}

// Handle evaluates the alerts. A delivery failure is logged but does
// not fail the job: the match result stands and a retry would send
// duplicate mail for the matches that did go out.
func (h *AlertsHandler) Handle(ctx context.Context, payload map[string]string) (any, error) {
	listingID := payload["listingId"]
	userID := payload["userId"]

	logger := log.Ctx(ctx).With().Str("listing_id", listingID).Str("user_id", userID).Logger()
	logger.Info().Msg("Processing alert check")

	listing, err := h.store.FindListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	alerts, err := h.store.ActiveAlerts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		logger.Debug().Msg("No active alerts for user")
		return map[string]any{"matchedAlerts": 0}, nil
	}

	var matched []property.Alert
	for _, alert := range alerts {
		if MatchesCriteria(listing, alert.Criteria) {
			matched = append(matched, alert)
		}
	}

	if len(matched) > 0 {
		user, err := h.store.FindUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		h.notify(ctx, user, listing, matched)
	}

	logger.Info().Int("matched_alerts", len(matched)).Msg("Alert check completed")
	return map[string]any{"matchedAlerts": len(matched)}, nil
}

// MatchesCriteria reports whether a listing satisfies the alert
// criteria. Score and ROI are only checked when that data exists, and
// empty city or type lists place no restriction.
func MatchesCriteria(listing *property.Listing, criteria property.AlertCriteria) bool {
	if criteria.MaxPrice > 0 && listing.Price > criteria.MaxPrice {
		return false
	}
	if listing.Score != nil && listing.Score.Score < criteria.MinScore {
		return false
	}
	if listing.Financials != nil && listing.Financials.ROIPercent < criteria.MinROI {
		return false
	}
	if len(criteria.Cities) > 0 && !contains(criteria.Cities, listing.City) {
		return false
	}
	if len(criteria.ListingTypes) > 0 && !contains(criteria.ListingTypes, listing.ListingType) {
		return false
	}
	return true
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func (h *AlertsHandler) notify(ctx context.Context, user *property.User, listing *property.Listing, matched []property.Alert) {
	logger := log.Ctx(ctx)

	msg := &mail.Message{
		To:          []string{user.Email},
		Subject:     fmt.Sprintf("Property Alert: %s matches your criteria", listing.Address),
		Body:        buildAlertEmail(user, listing, matched),
		ContentType: "text/html",
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to send alert email")
		return
	}

	if err := h.store.LogDelivery(ctx, property.DeliveryEntry{
		UserID:    user.ID,
		Channel:   "email",
		Recipient: user.Email,
		Status:    "sent",
		Metadata: map[string]any{
			"listingId":  listing.ID,
			"alertCount": len(matched),
		},
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to log delivery")
	}

	logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("Alert email sent")
}

func buildAlertEmail(user *property.User, listing *property.Listing, matched []property.Alert) string {
	names := make([]string, len(matched))
	for i, alert := range matched {
		names[i] = alert.Name
	}

	var b strings.Builder
	b.WriteString("<h2>Property Alert Match!</h2>\n")
	fmt.Fprintf(&b, "<p>Hi %s,</p>\n", user.Name)
	fmt.Fprintf(&b, "<p>A new property matches your alerts: <strong>%s</strong></p>\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "<h3>%s</h3>\n<p>%s, %s</p>\n", listing.Address, listing.City, listing.State)
	fmt.Fprintf(&b, "<p><strong>Price:</strong> $%.0f</p>\n", listing.Price)
	fmt.Fprintf(&b, "<p><strong>Beds/Baths:</strong> %d/%.1f</p>\n", listing.Beds, listing.Baths)
	fmt.Fprintf(&b, "<p><strong>Sqft:</strong> %d</p>\n", listing.Sqft)
	if listing.Score != nil {
		fmt.Fprintf(&b, "<p><strong>Score:</strong> %d/100</p>\n", listing.Score.Score)
	}
	if listing.Financials != nil {
		fmt.Fprintf(&b, "<p><strong>Projected ROI:</strong> %.1f%%</p>\n", listing.Financials.ROIPercent)
	}
	fmt.Fprintf(&b, `<p><a href="https://propintel.app/listings/%s">View Property</a></p>`, listing.ID)
	return b.String()
}
