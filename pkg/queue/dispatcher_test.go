package queue_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propintel/worker-go/pkg/queue"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Enqueue(ctx context.Context, queueName, jobType string, payload map[string]string, opts queue.Options) (string, error) {
	args := m.Called(ctx, queueName, jobType, payload, opts)
	return args.String(0), args.Error(1)
}

func (m *mockStore) ClaimNext(ctx context.Context, queueName string, lockDuration time.Duration) (*queue.Envelope, error) {
	args := m.Called(ctx, queueName, lockDuration)
	if env := args.Get(0); env != nil {
		return env.(*queue.Envelope), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	args := m.Called(ctx, jobID, result)
	return args.Error(0)
}

func (m *mockStore) MarkFailed(ctx context.Context, jobID string, jobErr error) error {
	args := m.Called(ctx, jobID, jobErr)
	return args.Error(0)
}

func (m *mockStore) GetJob(ctx context.Context, jobID string) (*queue.Envelope, error) {
	args := m.Called(ctx, jobID)
	if env := args.Get(0); env != nil {
		return env.(*queue.Envelope), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CountsByState(ctx context.Context, queueName string) (queue.Counts, error) {
	args := m.Called(ctx, queueName)
	return args.Get(0).(queue.Counts), args.Error(1)
}

func (m *mockStore) ReclaimStalled(ctx context.Context, queueName string) (int, error) {
	args := m.Called(ctx, queueName)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestDispatchAppliesPolicyDefaults(t *testing.T) {
	store := new(mockStore)
	store.On("Enqueue", mock.Anything, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "listing-1", "userId": "user-1"},
		queue.Options{
			MaxAttempts:      3,
			Backoff:          queue.BackoffPolicy{Kind: queue.BackoffExponential, BaseDelay: 2 * time.Second},
			RemoveOnComplete: true,
		}).Return("job-1", nil)

	dispatcher := queue.NewDispatcher(store)
	id, err := dispatcher.DispatchScoring(context.Background(), "listing-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	store.AssertExpectations(t)
}

func TestDispatchPDFPolicy(t *testing.T) {
	store := new(mockStore)
	store.On("Enqueue", mock.Anything, queue.QueueReports, queue.JobGeneratePDF,
		map[string]string{"reportId": "report-1", "listingId": "listing-1", "userId": "user-1"},
		queue.Options{
			MaxAttempts:      2,
			Backoff:          queue.BackoffPolicy{Kind: queue.BackoffFixed, BaseDelay: 5 * time.Second},
			RemoveOnComplete: true,
		}).Return("job-2", nil)

	dispatcher := queue.NewDispatcher(store)
	id, err := dispatcher.DispatchPDF(context.Background(), "report-1", "listing-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "job-2", id)
	store.AssertExpectations(t)
}

func TestDispatchUnknownJobType(t *testing.T) {
	store := new(mockStore)
	dispatcher := queue.NewDispatcher(store)

	_, err := dispatcher.Dispatch(context.Background(), queue.QueueScoring, "mint-nft", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job type")
	store.AssertNotCalled(t, "Enqueue")
}

func TestDispatchQueueMismatch(t *testing.T) {
	store := new(mockStore)
	dispatcher := queue.NewDispatcher(store)

	_, err := dispatcher.Dispatch(context.Background(), queue.QueueReports, queue.JobScoreProperty,
		map[string]string{"listingId": "l", "userId": "u"})

	require.Error(t, err)
	store.AssertNotCalled(t, "Enqueue")
}

func TestDispatchMissingPayloadKey(t *testing.T) {
	store := new(mockStore)
	dispatcher := queue.NewDispatcher(store)

	_, err := dispatcher.Dispatch(context.Background(), queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "listing-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "userId")
	store.AssertNotCalled(t, "Enqueue")
}

func TestDispatchSurfacesStoreFault(t *testing.T) {
	store := new(mockStore)
	store.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: connection refused", queue.ErrQueueUnavailable))

	dispatcher := queue.NewDispatcher(store)
	_, err := dispatcher.DispatchAlert(context.Background(), "listing-1", "user-1")

	require.ErrorIs(t, err, queue.ErrQueueUnavailable)
}
