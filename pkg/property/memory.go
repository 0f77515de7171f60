package property

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for unit tests and local
// development. Seed it with the Seed* methods before use.
type MemoryStore struct {
	mu         sync.Mutex
	listings   map[string]*Listing
	scores     map[string]*Score // keyed by listing id
	reports    map[string]*Report
	alerts     map[string][]Alert // keyed by user id
	users      map[string]*User
	usage      []UsageEntry
	deliveries []DeliveryEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*Listing),
		scores:   make(map[string]*Score),
		reports:  make(map[string]*Report),
		alerts:   make(map[string][]Alert),
		users:    make(map[string]*User),
	}
}

// SeedListing adds a listing.
func (s *MemoryStore) SeedListing(l *Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
}

// SeedReport adds a report.
func (s *MemoryStore) SeedReport(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
}

// SeedAlert adds an alert for its user.
func (s *MemoryStore) SeedAlert(a Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.UserID] = append(s.alerts[a.UserID], a)
}

// SeedUser adds a user.
func (s *MemoryStore) SeedUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// ScoreFor returns the stored score for a listing, or nil.
func (s *MemoryStore) ScoreFor(listingID string) *Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[listingID]
}

// UsageEntries returns a copy of the usage trail.
func (s *MemoryStore) UsageEntries() []UsageEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UsageEntry(nil), s.usage...)
}

// DeliveryEntries returns a copy of the delivery log.
func (s *MemoryStore) DeliveryEntries() []DeliveryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DeliveryEntry(nil), s.deliveries...)
}

func (s *MemoryStore) FindListing(_ context.Context, listingID string) (*Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *listing
	if score, ok := s.scores[listingID]; ok {
		scoreCp := *score
		cp.Score = &scoreCp
	}
	return &cp, nil
}

func (s *MemoryStore) UpsertScore(_ context.Context, score *Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.scores[score.ListingID]; ok {
		score.ID = existing.ID
		score.CreatedAt = existing.CreatedAt
	} else {
		score.ID = uuid.NewString()
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	cp := *score
	s.scores[score.ListingID] = &cp
	return nil
}

func (s *MemoryStore) FindReport(_ context.Context, reportID string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *report
	return &cp, nil
}

func (s *MemoryStore) UpdateReportStatus(_ context.Context, reportID string, status ReportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	report.Status = status
	report.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkReportReady(_ context.Context, reportID, objectKey, signedURL string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	report.Status = ReportReady
	report.ObjectKey = objectKey
	report.SignedURL = signedURL
	report.ExpiresAt = &expiresAt
	report.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ExpireReports(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	expired := 0
	for _, report := range s.reports {
		if report.Status == ReportReady && report.ExpiresAt != nil && report.ExpiresAt.Before(now) {
			report.Status = ReportExpired
			report.UpdatedAt = now
			expired++
		}
	}
	return expired, nil
}

func (s *MemoryStore) ActiveAlerts(_ context.Context, userID string) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []Alert
	for _, alert := range s.alerts[userID] {
		if alert.IsActive {
			active = append(active, alert)
		}
	}
	return active, nil
}

func (s *MemoryStore) FindUser(_ context.Context, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) LogUsage(_ context.Context, userID, action string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, UsageEntry{
		UserID:    userID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) LogDelivery(_ context.Context, entry DeliveryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = time.Now()
	s.deliveries = append(s.deliveries, entry)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
