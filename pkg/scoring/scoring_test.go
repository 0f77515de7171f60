package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/worker-go/pkg/property"
)

func TestExtractResult(t *testing.T) {
	text := `Here is my analysis of the deal.

{"score": 78, "summary": "Solid cash flow", "strengths": ["Below market"], "weaknesses": ["Older roof"]}

Let me know if you need more detail.`

	result, err := ExtractResult(text)
	require.NoError(t, err)
	assert.Equal(t, 78, result.Score)
	assert.Equal(t, "Solid cash flow", result.Summary)
	assert.Equal(t, []string{"Below market"}, result.Strengths)
	assert.Equal(t, []string{"Older roof"}, result.Weaknesses)
}

func TestExtractResultClampsScore(t *testing.T) {
	result, err := ExtractResult(`{"score": 140, "summary": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Score)

	result, err = ExtractResult(`{"score": -5, "summary": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
}

func TestExtractResultNoJSON(t *testing.T) {
	_, err := ExtractResult("I cannot score this property.")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestExtractResultMalformedJSON(t *testing.T) {
	_, err := ExtractResult(`{"score": "high"}`)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestFallbackBands(t *testing.T) {
	tests := []struct {
		name     string
		roi      float64
		capRate  float64
		expected int
	}{
		{"no financials applied below", 0, 0, 50},
		{"modest roi", 12, 4, 60},
		{"good roi and cap rate", 16, 5.5, 70},
		{"excellent deal", 22, 7, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := &property.Listing{
				Financials: &property.Financials{ROIPercent: tt.roi, CapRate: tt.capRate},
			}
			assert.Equal(t, tt.expected, Fallback(listing).Score)
		})
	}
}

func TestFallbackWithoutFinancials(t *testing.T) {
	result := Fallback(&property.Listing{})
	assert.Equal(t, 50, result.Score)
	assert.NotEmpty(t, result.Summary)
}

func TestBuildContextIncludesFinancials(t *testing.T) {
	listing := &property.Listing{
		Address:     "12 Oak St",
		City:        "Austin",
		State:       "TX",
		Price:       425000,
		Beds:        3,
		Baths:       2,
		Sqft:        1850,
		ListingType: "single_family",
		Financials: &property.Financials{
			MonthlyPayment: 2150,
			RentalIncome:   2900,
			CashFlow:       300,
			CapRate:        6.2,
			ROIPercent:     14.8,
		},
	}

	prompt := BuildContext(listing)
	assert.Contains(t, prompt, "12 Oak St, Austin, TX")
	assert.Contains(t, prompt, "Cap Rate: 6.20%")
	assert.Contains(t, prompt, "ROI: 14.80%")
}

func TestBuildContextWithoutFinancials(t *testing.T) {
	prompt := BuildContext(&property.Listing{Address: "12 Oak St"})
	assert.Contains(t, prompt, "No financial data available")
}
