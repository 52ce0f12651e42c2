package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/synclock"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

func newIntegrationFixture(t *testing.T) (*memStore, synclock.Locker, *IntegrationUsecase) {
	t.Helper()
	store := newMemStore()
	lock := synclock.NewMemory()
	uc := NewIntegrationUsecase(store, lock, zap.NewNop())
	return store, lock, uc
}

func TestCreateValidatesInterval(t *testing.T) {
	_, _, uc := newIntegrationFixture(t)

	_, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 0,
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInterval)

	created, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SyncUnattempted, created.LastSyncStatus)
}

func TestReadsNeverExposeCredential(t *testing.T) {
	store, _, uc := newIntegrationFixture(t)

	created, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "super-secret", SyncIntervalMin: 15,
	})
	require.NoError(t, err)
	assert.Empty(t, created.APIToken)

	got, err := uc.Get(context.Background(), "shop-1", created.ID)
	require.NoError(t, err)
	assert.Empty(t, got.APIToken)

	list, err := uc.List(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].APIToken)

	// Internally the credential is intact.
	raw, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", raw.APIToken)
}

func TestUpdateReplacesTemplatesAndCredential(t *testing.T) {
	store, _, uc := newIntegrationFixture(t)

	created, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "old", SyncIntervalMin: 15,
	})
	require.NoError(t, err)

	token := "new-token"
	interval := 45
	updated, err := uc.Update(context.Background(), "shop-1", created.ID, UpdateIntegrationParams{
		APIToken:        &token,
		SyncIntervalMin: &interval,
		StatusTemplates: map[string]string{"ASSEMBLED": "packed, {customer_name}"},
	})
	require.NoError(t, err)
	assert.Empty(t, updated.APIToken)
	assert.Equal(t, 45, updated.SyncIntervalMin)

	raw, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-token", raw.APIToken)
	assert.Equal(t, "packed, {customer_name}", raw.StatusTemplates["ASSEMBLED"])

	bad := -1
	_, err = uc.Update(context.Background(), "shop-1", created.ID, UpdateIntegrationParams{SyncIntervalMin: &bad})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInterval)
}

func TestDeleteWithNoOrdersSucceeds(t *testing.T) {
	store, _, uc := newIntegrationFixture(t)

	created, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 15,
	})
	require.NoError(t, err)

	require.NoError(t, uc.Delete(context.Background(), "shop-1", created.ID))

	_, err = store.GetByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDeleteCascadesOrdersAndNotifications(t *testing.T) {
	store, _, uc := newIntegrationFixture(t)
	ctx := context.Background()

	created, err := uc.Create(ctx, "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 15,
	})
	require.NoError(t, err)

	res, err := store.UpsertBatch(ctx, created.ID, []*domain.Order{
		{Code: "KSP-1", Status: domain.StatusApprovedByBank, CustomerPhone: "+7701"},
		{Code: "KSP-2", Status: domain.StatusApprovedByBank, CustomerPhone: "+7702"},
	})
	require.NoError(t, err)

	for _, o := range res.StatusChanged {
		_, err := store.CreateNotification(ctx, &domain.Notification{
			OrderID:       o.ID,
			IntegrationID: created.ID,
			Phone:         o.CustomerPhone,
			Message:       "hi",
			Type:          domain.NotifOrderCreated,
			Status:        domain.DeliverySent,
		})
		require.NoError(t, err)
	}

	require.NoError(t, uc.Delete(ctx, "shop-1", created.ID))

	orders, err := store.ListByIntegration(ctx, created.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, orders, "no orphaned orders")

	for _, o := range res.StatusChanged {
		rows, err := store.ListByOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Empty(t, rows, "no orphaned notifications for order %d", o.ID)
	}
}

func TestDeleteRejectedWhileSyncRunning(t *testing.T) {
	_, lock, uc := newIntegrationFixture(t)
	ctx := context.Background()

	created, err := uc.Create(ctx, "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 15,
	})
	require.NoError(t, err)

	ok, err := lock.TryAcquire(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	err = uc.Delete(ctx, "shop-1", created.ID)
	assert.ErrorIs(t, err, xerrors.ErrSyncInProgress)

	require.NoError(t, lock.Release(ctx, created.ID))
	assert.NoError(t, uc.Delete(ctx, "shop-1", created.ID))
}

func TestDeleteForeignShopForbidden(t *testing.T) {
	_, _, uc := newIntegrationFixture(t)

	created, err := uc.Create(context.Background(), "shop-1", CreateIntegrationParams{
		MerchantID: "m-1", APIToken: "t", SyncIntervalMin: 15,
	})
	require.NoError(t, err)

	err = uc.Delete(context.Background(), "shop-2", created.ID)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}
