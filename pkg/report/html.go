// Package report renders the investment report HTML fed to the PDF
// renderer.
package report

import (
	"html/template"
	"strings"
	"time"

	"github.com/propintel/worker-go/pkg/property"
)

// scoreColor bands the 0-100 score into the badge color.
func scoreColor(score int) string {
	switch {
	case score >= 80:
		return "#10b981"
	case score >= 65:
		return "#06b6d4"
	case score >= 50:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

type reportData struct {
	Listing     *property.Listing
	Score       *property.Score
	Financials  *property.Financials
	ScoreColor  template.CSS
	GeneratedOn string
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; color: #1f2937; line-height: 1.6; }
    .header { background: linear-gradient(135deg, #0f172a 0%, #1e293b 100%); color: white; padding: 40px; border-radius: 8px; margin-bottom: 30px; }
    .header h1 { font-size: 28px; margin-bottom: 10px; }
    .header p { font-size: 14px; opacity: 0.9; }
    .score-badge { display: inline-flex; align-items: center; justify-content: center; width: 120px; height: 120px; border-radius: 50%; background: {{.ScoreColor}}; color: white; font-size: 48px; font-weight: bold; margin: 20px 0; }
    .section { margin: 30px 0; padding: 20px; border-left: 4px solid #06b6d4; background: #f9fafb; border-radius: 4px; }
    .section h2 { color: #0f172a; margin-bottom: 15px; font-size: 18px; }
    table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    th, td { padding: 12px; text-align: left; border-bottom: 1px solid #e5e7eb; }
    th { background: #f3f4f6; font-weight: 600; color: #374151; }
    .strength { color: #059669; }
    .weakness { color: #dc2626; }
    .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280; text-align: center; }
  </style>
</head>
<body>
  <div class="header">
    <h1>PropIntel Investment Report</h1>
    <p>Real Estate Deal Analysis</p>
  </div>

  <div class="section">
    <h2>Property Overview</h2>
    <h3 style="color: #374151; margin: 10px 0;">{{.Listing.Address}}</h3>
    <p style="color: #6b7280;">{{.Listing.City}}, {{.Listing.State}} {{.Listing.ZipCode}}</p>
    <table>
      <tr><th>Price</th><th>Beds</th><th>Baths</th><th>SqFt</th></tr>
      <tr>
        <td>${{printf "%.0f" .Listing.Price}}</td>
        <td>{{.Listing.Beds}}</td>
        <td>{{printf "%.1f" .Listing.Baths}}</td>
        <td>{{.Listing.Sqft}}</td>
      </tr>
    </table>
  </div>

{{if .Score}}
  <div class="section">
    <h2>Deal Score</h2>
    <div class="score-badge">{{.Score.Score}}</div>
    <p style="color: #374151; margin-bottom: 15px;">{{.Score.Summary}}</p>
    {{if .Score.Strengths}}
    <h4 class="strength">Strengths</h4>
    <ul style="margin-left: 20px;">
      {{range .Score.Strengths}}<li class="strength">{{.}}</li>{{end}}
    </ul>
    {{end}}
    {{if .Score.Weaknesses}}
    <h4 class="weakness">Weaknesses</h4>
    <ul style="margin-left: 20px;">
      {{range .Score.Weaknesses}}<li class="weakness">{{.}}</li>{{end}}
    </ul>
    {{end}}
  </div>
{{end}}

{{if .Financials}}
  <div class="section">
    <h2>Financial Analysis</h2>
    <table>
      <tr><th>Metric</th><th>Value</th></tr>
      <tr><td>Purchase Price</td><td>${{printf "%.0f" .Financials.PurchasePrice}}</td></tr>
      <tr><td>Loan Amount</td><td>${{printf "%.0f" .Financials.LoanAmount}}</td></tr>
      <tr><td>Monthly Payment</td><td>${{printf "%.0f" .Financials.MonthlyPayment}}</td></tr>
      <tr><td>Monthly Rental Income</td><td>${{printf "%.0f" .Financials.RentalIncome}}</td></tr>
      <tr><td>Monthly Expenses</td><td>${{printf "%.0f" .Financials.Expenses}}</td></tr>
      <tr style="background: #f0fdf4; font-weight: bold;"><td>Monthly Cash Flow</td><td class="strength">${{printf "%.0f" .Financials.CashFlow}}</td></tr>
      <tr><td>Cap Rate</td><td>{{printf "%.2f" .Financials.CapRate}}%</td></tr>
      <tr style="background: #eff6ff; font-weight: bold;"><td>Projected ROI</td><td>{{printf "%.2f" .Financials.ROIPercent}}%</td></tr>
    </table>
  </div>
{{end}}

  <div class="footer">
    <p>Generated by PropIntel on {{.GeneratedOn}}</p>
    <p>This report is for informational purposes only and should not be considered investment advice.</p>
  </div>
</body>
</html>
`))

// GenerateHTML renders the report for a listing. Score and financials
// sections are omitted when the data does not exist yet.
func GenerateHTML(listing *property.Listing) (string, error) {
	data := reportData{
		Listing:     listing,
		Score:       listing.Score,
		Financials:  listing.Financials,
		GeneratedOn: time.Now().Format("January 2, 2006"),
	}
	if listing.Score != nil {
		data.ScoreColor = template.CSS(scoreColor(listing.Score.Score))
	} else {
		data.ScoreColor = template.CSS(scoreColor(0))
	}

	var b strings.Builder
	if err := reportTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
