// Package property holds the investment-domain model and its
// persistence layer: listings, scores, financials, reports, alerts and
// the usage/delivery audit trail.
package property

import "time"

// User is the account owning listings, reports and alerts.
type User struct {
	ID       string
	Email    string
	Name     string
	Language string
	Timezone string
}

// Listing is a tracked property. Score and Financials are nil until the
// respective data exists.
type Listing struct {
	ID          string
	UserID      string
	Address     string
	City        string
	State       string
	ZipCode     string
	Price       float64
	Beds        int
	Baths       float64
	Sqft        int
	ListingType string
	ImageURL    string
	ExternalID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Score      *Score
	Financials *Financials
}

// Score is the 0-100 investment score for one listing. One score per
// listing; rescoring overwrites it.
type Score struct {
	ID           string
	ListingID    string
	UserID       string
	Score        int
	Summary      string
	Strengths    []string
	Weaknesses   []string
	ModelVersion string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Financials carries the underwriting metrics for one listing.
type Financials struct {
	ID                 string
	ListingID          string
	UserID             string
	PurchasePrice      float64
	DownPaymentPercent float64
	LoanAmount         float64
	InterestRate       float64
	LoanTermYears      int
	MonthlyPayment     float64
	RentalIncome       float64
	VacancyRate        float64
	Expenses           float64
	CashFlow           float64
	CapRate            float64
	ROIPercent         float64
}

// ReportStatus is the lifecycle of a PDF report.
type ReportStatus string

const (
	ReportDraft      ReportStatus = "draft"
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
	ReportFailed     ReportStatus = "failed"
	ReportExpired    ReportStatus = "expired"
)

// Report is a generated investment report. ObjectKey and SignedURL are
// set once the PDF is rendered and stored.
type Report struct {
	ID        string
	UserID    string
	ListingID string
	Title     string
	Status    ReportStatus
	ObjectKey string
	SignedURL string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Alert is a saved search a user wants to be notified about.
type Alert struct {
	ID       string
	UserID   string
	Name     string
	Criteria AlertCriteria
	IsActive bool
}

// AlertCriteria are the match conditions for an alert. Empty Cities or
// ListingTypes lists mean no restriction on that dimension.
type AlertCriteria struct {
	MinScore     int      `json:"minScore"`
	MaxPrice     float64  `json:"maxPrice"`
	MinROI       float64  `json:"minRoi"`
	Cities       []string `json:"cities"`
	ListingTypes []string `json:"listingTypes"`
}

// UsageEntry is one row of the per-user usage audit trail.
type UsageEntry struct {
	UserID    string
	Action    string
	Metadata  map[string]any
	CreatedAt time.Time
}

// DeliveryEntry records one outbound notification.
type DeliveryEntry struct {
	UserID    string
	Channel   string
	Recipient string
	Status    string
	Metadata  map[string]any
	CreatedAt time.Time
}
