package service_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"bitespeed-identity/internal/lock"
	"bitespeed-identity/internal/metrics"
	"bitespeed-identity/internal/models"
	"bitespeed-identity/internal/service"
	"bitespeed-identity/internal/service/mocks"
)

var errBoom = errors.New("connection reset by peer")

type failureFixture struct {
	store   *mocks.MockTxStore
	tx      *mocks.MockContactStore
	metrics *metrics.Metrics
	logs    *bytes.Buffer
	service *service.ReconciliationService
}

func newFailureFixture(t *testing.T, opts ...service.Option) *failureFixture {
	ctrl := gomock.NewController(t)
	f := &failureFixture{
		store:   mocks.NewMockTxStore(ctrl),
		tx:      mocks.NewMockContactStore(ctrl),
		metrics: metrics.New(prometheus.NewRegistry()),
		logs:    &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(f.logs, nil))
	opts = append([]service.Option{service.WithLogger(logger), service.WithMetrics(f.metrics)}, opts...)
	f.service = service.NewReconciliationService(f.store, opts...)
	return f
}

// passThrough makes Atomically run fn against the tx mock.
func (f *failureFixture) passThrough() {
	f.store.EXPECT().
		Atomically(gomock.Any(), []string{"email:doc@x.com", "phone:1955"}, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []string, fn func(context.Context, service.ContactStore) error) error {
			return fn(ctx, f.tx)
		})
}

func TestReconcileSurfacesFindFailure(t *testing.T) {
	f := newFailureFixture(t)
	f.passThrough()
	f.tx.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, errBoom)

	_, err := f.service.Reconcile(context.Background(), "doc@x.com", "1955")

	require.ErrorIs(t, err, service.ErrStorageFailure)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StorageFailures.WithLabelValues("reconcile")))
	assert.Contains(t, f.logs.String(), `"email":"doc@x.com"`)
	assert.Contains(t, f.logs.String(), `"action":"decide"`)
}

func TestReconcileSurfacesInsertFailure(t *testing.T) {
	f := newFailureFixture(t)
	f.passThrough()
	f.tx.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.tx.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errBoom)

	_, err := f.service.Reconcile(context.Background(), "doc@x.com", "1955")

	require.ErrorIs(t, err, service.ErrStorageFailure)
	assert.Contains(t, f.logs.String(), `"action":"created_primary"`)
	assert.Contains(t, f.logs.String(), `"phone_number":"1955"`)
}

func TestReconcileSurfacesMergeUpdateFailure(t *testing.T) {
	f := newFailureFixture(t)
	f.passThrough()

	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	x := &models.Contact{ID: 1, Email: models.StringPtr("doc@x.com"), PhoneNumber: models.StringPtr("1"), LinkPrecedence: models.LinkPrecedencePrimary, CreatedAt: t0}
	y := &models.Contact{ID: 2, Email: models.StringPtr("em@x.com"), PhoneNumber: models.StringPtr("1955"), LinkPrecedence: models.LinkPrecedencePrimary, CreatedAt: t0.Add(time.Hour)}

	f.tx.EXPECT().Find(gomock.Any(), models.ContactFilter{
		Email:       models.StringPtr("doc@x.com"),
		PhoneNumber: models.StringPtr("1955"),
	}).Return([]*models.Contact{x, y}, nil)
	f.tx.EXPECT().Find(gomock.Any(), models.ContactFilter{LinkedID: models.Int64Ptr(2)}).Return(nil, nil)
	f.tx.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *models.Contact) (*models.Contact, error) {
		assert.Equal(t, int64(2), c.ID)
		assert.Equal(t, models.LinkPrecedenceSecondary, c.LinkPrecedence)
		return nil, errBoom
	})

	_, err := f.service.Reconcile(context.Background(), "doc@x.com", "1955")

	require.ErrorIs(t, err, service.ErrStorageFailure)
	assert.Contains(t, f.logs.String(), `"action":"merged"`)
}

func TestReconcileWrapsCommitFailure(t *testing.T) {
	f := newFailureFixture(t)
	f.store.EXPECT().Atomically(gomock.Any(), gomock.Any(), gomock.Any()).Return(errBoom)

	_, err := f.service.Reconcile(context.Background(), "doc@x.com", "1955")

	require.ErrorIs(t, err, service.ErrStorageFailure)
	require.ErrorIs(t, err, errBoom)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, []string) (lock.Unlock, error) {
	return nil, lock.ErrNotAcquired
}

func TestReconcileSurfacesLockFailure(t *testing.T) {
	f := newFailureFixture(t, service.WithLocker(failingLocker{}))

	_, err := f.service.Reconcile(context.Background(), "doc@x.com", "1955")

	require.ErrorIs(t, err, service.ErrStorageFailure)
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StorageFailures.WithLabelValues("lock")))
}

func TestIdentifySurfacesStorageFailures(t *testing.T) {
	email := models.StringPtr("doc@x.com")

	t.Run("candidate lookup", func(t *testing.T) {
		f := newFailureFixture(t)
		f.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, errBoom)

		_, err := f.service.Identify(context.Background(), email, nil)
		require.ErrorIs(t, err, service.ErrStorageFailure)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StorageFailures.WithLabelValues("identify")))
	})

	t.Run("primary lookup", func(t *testing.T) {
		f := newFailureFixture(t)
		sec := &models.Contact{ID: 5, Email: email, LinkedID: models.Int64Ptr(1), LinkPrecedence: models.LinkPrecedenceSecondary}
		f.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return([]*models.Contact{sec}, nil)
		f.store.EXPECT().FindOne(gomock.Any(), int64(1)).Return(nil, errBoom)

		_, err := f.service.Identify(context.Background(), email, nil)
		require.ErrorIs(t, err, service.ErrStorageFailure)
	})

	t.Run("cluster lookup", func(t *testing.T) {
		f := newFailureFixture(t)
		p := &models.Contact{ID: 1, Email: email, LinkPrecedence: models.LinkPrecedencePrimary}
		gomock.InOrder(
			f.store.EXPECT().Find(gomock.Any(), models.ContactFilter{Email: email}).Return([]*models.Contact{p}, nil),
			f.store.EXPECT().Find(gomock.Any(), models.ContactFilter{ID: models.Int64Ptr(1), LinkedID: models.Int64Ptr(1)}).Return(nil, errBoom),
		)

		_, err := f.service.Identify(context.Background(), email, nil)
		require.ErrorIs(t, err, service.ErrStorageFailure)
	})
}

func TestIdentifyNotFoundIsNotLogged(t *testing.T) {
	f := newFailureFixture(t)
	f.store.EXPECT().Find(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := f.service.Identify(context.Background(), models.StringPtr("nobody@x.com"), nil)

	require.ErrorIs(t, err, service.ErrNotFound)
	assert.Empty(t, f.logs.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Identifies.WithLabelValues("not_found")))
}

func TestIdentifyRejectsEmptyIdentifiersBeforeQuerying(t *testing.T) {
	f := newFailureFixture(t)
	// No store expectations are set, so any query would fail the test.
	_, err := f.service.Identify(context.Background(), models.StringPtr(""), models.StringPtr(""))
	require.ErrorIs(t, err, service.ErrInvalidRequest)
}
