package property

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLStore implements Store on Postgres.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a Store on an existing database connection. The
// Store owns the connection and releases it on Close.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const findListingQuery = `
	SELECT id, user_id, address, city, state, zip_code, price, beds, baths,
	       sqft, listing_type, image_url, external_id, created_at, updated_at
	FROM listings
	WHERE id = $1`

func (s *SQLStore) FindListing(ctx context.Context, listingID string) (*Listing, error) {
	var listing Listing
	var imageURL, externalID sql.NullString

	err := s.db.QueryRowContext(ctx, findListingQuery, listingID).Scan(
		&listing.ID, &listing.UserID, &listing.Address, &listing.City,
		&listing.State, &listing.ZipCode, &listing.Price, &listing.Beds,
		&listing.Baths, &listing.Sqft, &listing.ListingType,
		&imageURL, &externalID, &listing.CreatedAt, &listing.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	listing.ImageURL = imageURL.String
	listing.ExternalID = externalID.String

	score, err := s.findScore(ctx, listingID)
	if err != nil {
		return nil, err
	}
	listing.Score = score

	financials, err := s.findFinancials(ctx, listingID)
	if err != nil {
		return nil, err
	}
	listing.Financials = financials

	return &listing, nil
}

const findScoreQuery = `
	SELECT id, listing_id, user_id, score, summary, strengths, weaknesses,
	       model_version, created_at, updated_at
	FROM property_scores
	WHERE listing_id = $1`

func (s *SQLStore) findScore(ctx context.Context, listingID string) (*Score, error) {
	var score Score
	var strengths, weaknesses []byte

	err := s.db.QueryRowContext(ctx, findScoreQuery, listingID).Scan(
		&score.ID, &score.ListingID, &score.UserID, &score.Score,
		&score.Summary, &strengths, &weaknesses, &score.ModelVersion,
		&score.CreatedAt, &score.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(strengths, &score.Strengths); err != nil {
		return nil, fmt.Errorf("bad strengths for listing %s: %w", listingID, err)
	}
	if err := json.Unmarshal(weaknesses, &score.Weaknesses); err != nil {
		return nil, fmt.Errorf("bad weaknesses for listing %s: %w", listingID, err)
	}
	return &score, nil
}

const findFinancialsQuery = `
	SELECT id, listing_id, user_id, purchase_price, down_payment_percent,
	       loan_amount, interest_rate, loan_term_years, monthly_payment,
	       rental_income, vacancy_rate, expenses, cash_flow, cap_rate,
	       roi_percent
	FROM property_financials
	WHERE listing_id = $1`

func (s *SQLStore) findFinancials(ctx context.Context, listingID string) (*Financials, error) {
	var f Financials
	err := s.db.QueryRowContext(ctx, findFinancialsQuery, listingID).Scan(
		&f.ID, &f.ListingID, &f.UserID, &f.PurchasePrice,
		&f.DownPaymentPercent, &f.LoanAmount, &f.InterestRate,
		&f.LoanTermYears, &f.MonthlyPayment, &f.RentalIncome,
		&f.VacancyRate, &f.Expenses, &f.CashFlow, &f.CapRate, &f.ROIPercent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

const upsertScoreQuery = `
	INSERT INTO property_scores
		(id, listing_id, user_id, score, summary, strengths, weaknesses,
		 model_version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	ON CONFLICT (listing_id) DO UPDATE SET
		score = EXCLUDED.score,
		summary = EXCLUDED.summary,
		strengths = EXCLUDED.strengths,
		weaknesses = EXCLUDED.weaknesses,
		model_version = EXCLUDED.model_version,
		updated_at = now()`

func (s *SQLStore) UpsertScore(ctx context.Context, score *Score) error {
	strengths, err := json.Marshal(emptyIfNil(score.Strengths))
	if err != nil {
		return err
	}
	weaknesses, err := json.Marshal(emptyIfNil(score.Weaknesses))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, upsertScoreQuery,
		uuid.NewString(), score.ListingID, score.UserID, score.Score,
		score.Summary, strengths, weaknesses, score.ModelVersion,
	)
	return err
}

const findReportQuery = `
	SELECT id, user_id, listing_id, title, status, object_key, signed_url,
	       expires_at, created_at, updated_at
	FROM reports
	WHERE id = $1`

func (s *SQLStore) FindReport(ctx context.Context, reportID string) (*Report, error) {
	var report Report
	var objectKey, signedURL sql.NullString
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, findReportQuery, reportID).Scan(
		&report.ID, &report.UserID, &report.ListingID, &report.Title,
		&report.Status, &objectKey, &signedURL, &expiresAt,
		&report.CreatedAt, &report.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	report.ObjectKey = objectKey.String
	report.SignedURL = signedURL.String
	if expiresAt.Valid {
		report.ExpiresAt = &expiresAt.Time
	}
	return &report, nil
}

func (s *SQLStore) UpdateReportStatus(ctx context.Context, reportID string, status ReportStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = $2, updated_at = now() WHERE id = $1`,
		reportID, string(status))
	if err != nil {
		return err
	}
	return requireRow(result, "report", reportID)
}

func (s *SQLStore) MarkReportReady(ctx context.Context, reportID, objectKey, signedURL string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reports
		 SET status = $2, object_key = $3, signed_url = $4, expires_at = $5,
		     updated_at = now()
		 WHERE id = $1`,
		reportID, string(ReportReady), objectKey, signedURL, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(result, "report", reportID)
}

const expireReportsQuery = `
	UPDATE reports
	SET status = $1, updated_at = now()
	WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < now()`

func (s *SQLStore) ExpireReports(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, expireReportsQuery,
		string(ReportExpired), string(ReportReady))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

const activeAlertsQuery = `
	SELECT id, user_id, name, criteria, is_active
	FROM alerts
	WHERE user_id = $1 AND is_active = true`

func (s *SQLStore) ActiveAlerts(ctx context.Context, userID string) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx, activeAlertsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var alert Alert
		var criteria []byte
		if err := rows.Scan(&alert.ID, &alert.UserID, &alert.Name, &criteria, &alert.IsActive); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(criteria, &alert.Criteria); err != nil {
			return nil, fmt.Errorf("bad criteria for alert %s: %w", alert.ID, err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (s *SQLStore) FindUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, language, timezone FROM users WHERE id = $1`,
		userID).Scan(&user.ID, &user.Email, &user.Name, &user.Language, &user.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) LogUsage(ctx context.Context, userID, action string, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, user_id, action, metadata, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		uuid.NewString(), userID, action, raw)
	return err
}

func (s *SQLStore) LogDelivery(ctx context.Context, entry DeliveryEntry) error {
	raw, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO delivery_logs (id, user_id, channel, recipient, status, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuid.NewString(), entry.UserID, entry.Channel, entry.Recipient, entry.Status, raw)
	return err
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func requireRow(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
