// Package scoring produces the 0-100 deal score for a listing, either
// from the AI scoring backend or from the financial heuristic fallback.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/propintel/worker-go/pkg/property"
)

// ErrUnparseable signals the backend answered but its reply held no
// usable score. The caller falls back to heuristic scoring instead of
// retrying; a retry would most likely fail the same way.
var ErrUnparseable = errors.New("unparseable scoring response")

// Result is one scoring outcome, regardless of origin.
type Result struct {
	Score      int      `json:"score"`
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Scorer scores one listing. Transport failures are returned as plain
// errors (retryable); a reachable backend with garbage output is
// reported as ErrUnparseable.
type Scorer interface {
	Score(ctx context.Context, listing *property.Listing) (*Result, error)
}

// ClampScore bounds a raw score to the 0-100 scale.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Fallback produces the heuristic score used when AI scoring is not
// available: a base of 50 adjusted by ROI and cap rate bands.
func Fallback(listing *property.Listing) *Result {
	score := 50

	if f := listing.Financials; f != nil {
		switch {
		case f.ROIPercent > 20:
			score += 20
		case f.ROIPercent > 15:
			score += 15
		case f.ROIPercent > 10:
			score += 10
		}
		switch {
		case f.CapRate > 6:
			score += 10
		case f.CapRate > 5:
			score += 5
		}
	}

	return &Result{
		Score:      ClampScore(score),
		Summary:    "Fallback scoring - AI analysis unavailable",
		Strengths:  []string{"Listed and available"},
		Weaknesses: []string{"Limited financial data"},
	}
}

// BuildContext renders the listing into the prompt sent to the scoring
// backend.
func BuildContext(listing *property.Listing) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Property Address: %s, %s, %s\n", listing.Address, listing.City, listing.State)
	fmt.Fprintf(&b, "Price: $%.0f\n", listing.Price)
	fmt.Fprintf(&b, "Beds: %d | Baths: %.1f | Sqft: %d\n", listing.Beds, listing.Baths, listing.Sqft)
	fmt.Fprintf(&b, "Type: %s\n\n", listing.ListingType)

	if f := listing.Financials; f != nil {
		b.WriteString("Financial Metrics:\n")
		fmt.Fprintf(&b, "- Monthly Payment: $%.0f\n", f.MonthlyPayment)
		fmt.Fprintf(&b, "- Rental Income: $%.0f\n", f.RentalIncome)
		fmt.Fprintf(&b, "- Monthly Profit: $%.0f\n", f.CashFlow)
		fmt.Fprintf(&b, "- Cap Rate: %.2f%%\n", f.CapRate)
		fmt.Fprintf(&b, "- ROI: %.2f%%\n", f.ROIPercent)
	} else {
		b.WriteString("No financial data available\n")
	}

	b.WriteString("\nBased on these metrics, provide a deal score from 0-100 and analysis.")
	return b.String()
}
