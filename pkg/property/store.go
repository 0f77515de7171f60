package property

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist. Job
// handlers treat it as permanent: retrying cannot make the row appear.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary of the domain layer. Backed by
// Postgres in production and by an in-memory implementation in tests.
type Store interface {
	// FindListing loads a listing with its score and financials attached
	// when they exist. Returns ErrNotFound for an unknown id.
	FindListing(ctx context.Context, listingID string) (*Listing, error)

	// UpsertScore writes the score for a listing, overwriting any
	// previous one. Keyed by listing id, so rescoring is idempotent.
	UpsertScore(ctx context.Context, score *Score) error

	// FindReport loads a report row. Returns ErrNotFound for an unknown id.
	FindReport(ctx context.Context, reportID string) (*Report, error)

	// UpdateReportStatus moves a report through its lifecycle.
	UpdateReportStatus(ctx context.Context, reportID string, status ReportStatus) error

	// MarkReportReady records the stored PDF location and the signed URL
	// handed to the client, and flips the report to ready.
	MarkReportReady(ctx context.Context, reportID, objectKey, signedURL string, expiresAt time.Time) error

	// ExpireReports flips ready reports whose expiry time has passed to
	// expired, and returns how many were flipped. The stored PDF stays
	// in place; only the signed URL stops being handed out.
	ExpireReports(ctx context.Context) (int, error)

	// ActiveAlerts returns the user's active alerts.
	ActiveAlerts(ctx context.Context, userID string) ([]Alert, error)

	// FindUser loads a user. Returns ErrNotFound for an unknown id.
	FindUser(ctx context.Context, userID string) (*User, error)

	// LogUsage appends to the per-user usage audit trail.
	LogUsage(ctx context.Context, userID, action string, metadata map[string]any) error

	// LogDelivery records one outbound notification. Appending twice for
	// the same event is harmless; the log is an audit trail, not a ledger.
	LogDelivery(ctx context.Context, entry DeliveryEntry) error

	// Ping verifies the backing database connection.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
