package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	mock_database "gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/foodtrack/internal/storage/mocks"
)

type sourceFunc func(ctx context.Context) ([]*storage.Donation, error)

func (f sourceFunc) PendingDonations(ctx context.Context) ([]*storage.Donation, error) {
	return f(ctx)
}

func TestPendingCache(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewPendingCache(zaptest.NewLogger(t))

	_, ok := c.Pending()
	assert.False(t, ok, "cache must report unloaded before LoadInitialData")

	err := c.LoadInitialData(context.Background(), sourceFunc(func(context.Context) ([]*storage.Donation, error) {
		return []*storage.Donation{
			{ID: 1, Status: storage.StatusPending, CreatedAt: base},
			{ID: 2, Status: storage.StatusPending, CreatedAt: base.Add(time.Minute)},
		}, nil
	}))
	require.NoError(t, err)

	c.Set(&storage.Donation{ID: 3, Status: storage.StatusPending, CreatedAt: base.Add(2 * time.Minute)})
	c.Set(&storage.Donation{ID: 1, Status: storage.StatusInTransit})
	c.Delete(2)

	pending, ok := c.Pending()
	require.True(t, ok)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(3), pending[0].ID)

	got, found := c.Get(3)
	require.True(t, found)
	got.FoodType = "mutated"
	again, _ := c.Get(3)
	assert.Empty(t, again.FoodType)
}

func TestPendingCache_LoadError(t *testing.T) {
	c := NewPendingCache(zaptest.NewLogger(t))
	loadErr := errors.New("db down")

	err := c.LoadInitialData(context.Background(), sourceFunc(func(context.Context) ([]*storage.Donation, error) {
		return nil, loadErr
	}))

	assert.ErrorIs(t, err, loadErr)
	_, ok := c.Pending()
	assert.False(t, ok)
}

func TestPendingCache_SetAfterDeleteIsIgnored(t *testing.T) {
	c := NewPendingCache(zaptest.NewLogger(t))
	require.NoError(t, c.LoadInitialData(context.Background(), sourceFunc(func(context.Context) ([]*storage.Donation, error) {
		return nil, nil
	})))

	c.Set(&storage.Donation{ID: 4, Status: storage.StatusPending})
	c.Delete(4)
	c.Set(&storage.Donation{ID: 4, Status: storage.StatusPending})

	_, found := c.Get(4)
	assert.False(t, found)
	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Empty(t, pending)
}

// An edit commits, an accept on the same donation commits and evicts it,
// and only then does the edit refresh the cache.
func TestPendingCache_EditRacingAccept(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	database := mock_database.NewMockDB(ctrl)
	editTx := mock_database.NewMockTx(ctrl)
	acceptTx := mock_database.NewMockTx(ctrl)
	donations := mock_storage.NewMockDonationRepository(ctrl)
	receptions := mock_storage.NewMockReceptionRepository(ctrl)
	tracking := mock_storage.NewMockTrackingRepository(ctrl)
	audit := mock_storage.NewMockAuditRepository(ctrl)

	pendingCache := NewPendingCache(zaptest.NewLogger(t))
	s := storage.NewStorage(database, storage.Repositories{
		Donations:  donations,
		Receptions: receptions,
		Tracking:   tracking,
		Audit:      audit,
	}, storage.WithCache(pendingCache))

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	donation := &storage.Donation{ID: 7, DonorID: 2, FoodType: "rice", Status: storage.StatusPending, CreatedAt: now}
	require.NoError(t, pendingCache.LoadInitialData(ctx, sourceFunc(func(context.Context) ([]*storage.Donation, error) {
		return []*storage.Donation{donation}, nil
	})))

	gomock.InOrder(
		database.EXPECT().BeginTx(ctx).Return(editTx, nil),
		donations.EXPECT().UpdatePendingTx(ctx, editTx, gomock.Any()).Return(nil),
		audit.EXPECT().CreateTx(ctx, editTx, gomock.Any()).Return(nil),
		editTx.EXPECT().Commit(ctx).DoAndReturn(func(context.Context) error {
			database.EXPECT().BeginTx(ctx).Return(acceptTx, nil)
			donations.EXPECT().TransitionStatusTx(ctx, acceptTx, int64(7), "pending", "in_transit", now).Return(nil)
			receptions.EXPECT().CreateTx(ctx, acceptTx, gomock.Any()).Return(nil)
			tracking.EXPECT().CreateTx(ctx, acceptTx, gomock.Any()).Return(nil)
			audit.EXPECT().CreateTx(ctx, acceptTx, gomock.Any()).Return(nil)
			acceptTx.EXPECT().Commit(ctx).Return(nil)

			return s.AcceptDonation(ctx, 7,
				&storage.Reception{OrganizationID: 3, ReceivedAt: now},
				&storage.TrackingEvent{OrganizationID: 3, Status: storage.TrackingInTransit, RecordedAt: now},
				storage.AuditEntry{Action: storage.ActionReceiveDonation},
			)
		}),
	)

	edited := *donation
	edited.FoodType = "brown rice"
	require.NoError(t, s.UpdatePendingDonation(ctx, &edited, storage.AuditEntry{Action: storage.ActionUpdateDonation}))

	available, err := s.PendingDonations(ctx)
	require.NoError(t, err)
	assert.Empty(t, available, "accepted donation must not be offered again")
}
