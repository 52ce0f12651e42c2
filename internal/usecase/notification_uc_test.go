package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/smsgateway"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

func newLedgerFixture(t *testing.T) (*memStore, *fakeGateway, *NotificationUsecase, *domain.Order) {
	t.Helper()
	store := newMemStore()
	gateway := &fakeGateway{}
	uc := NewNotificationUsecase(notificationRepoView{store}, store, gateway, zap.NewNop())

	integ, err := store.Create(context.Background(), &domain.Integration{
		ShopID:          "shop-1",
		MerchantID:      "m-1",
		APIToken:        "token",
		SyncIntervalMin: 30,
	})
	require.NoError(t, err)

	order := &domain.Order{
		ID:            1,
		IntegrationID: integ.ID,
		Code:          "KSP-1001",
		Status:        domain.StatusAssembled,
		CustomerName:  "Aigerim",
		CustomerPhone: "+77010000001",
		TotalPrice:    2500,
	}
	return store, gateway, uc, order
}

func TestSendRecordsAcceptedDelivery(t *testing.T) {
	_, gateway, uc, order := newLedgerFixture(t)

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger,
		"Order {order_code}: {status}, total {total_price}")
	require.NoError(t, err)

	assert.Equal(t, domain.DeliverySent, n.Status)
	assert.Equal(t, 0, n.RetryCount)
	assert.NotEmpty(t, n.ProviderRef)
	assert.Equal(t, "Order KSP-1001: ASSEMBLED, total 2500.00", gateway.sent[0])
}

func TestSendRecordsProviderFailure(t *testing.T) {
	_, gateway, uc, order := newLedgerFixture(t)
	gateway.sendErr = errors.New("number unreachable")

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "hi {customer_name}")
	require.NoError(t, err, "delivery failure is recorded on the row, not returned")

	assert.Equal(t, domain.DeliveryFailed, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	assert.Equal(t, "number unreachable", n.LastError)
}

func TestSendFailsOnUnknownPlaceholder(t *testing.T) {
	store, _, uc, order := newLedgerFixture(t)

	trigger := domain.StatusAssembled
	_, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "track at {tracking_url}")
	assert.ErrorIs(t, err, xerrors.ErrTemplateRender)

	// A render failure is a config defect: no ledger row at all.
	rows, lerr := store.ListByOrder(context.Background(), order.ID)
	require.NoError(t, lerr)
	assert.Empty(t, rows)
}

func TestRetryCountIsMonotonic(t *testing.T) {
	_, gateway, uc, order := newLedgerFixture(t)
	gateway.sendErr = errors.New("busy")

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "x")
	require.NoError(t, err)
	require.Equal(t, 1, n.RetryCount)

	prev := n.RetryCount
	for i := 0; i < 3; i++ {
		n, err = uc.Retry(context.Background(), "shop-1", n.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryFailed, n.Status)
		assert.Greater(t, n.RetryCount, prev, "retry count only ever grows")
		prev = n.RetryCount
	}

	// A retry that succeeds keeps the accumulated count.
	gateway.sendErr = nil
	n, err = uc.Retry(context.Background(), "shop-1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, n.Status)
	assert.Equal(t, prev, n.RetryCount)
}

func TestRetryForeignShopForbidden(t *testing.T) {
	store, gateway, uc, order := newLedgerFixture(t)
	gateway.sendErr = errors.New("busy")

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "x")
	require.NoError(t, err)

	_, err = uc.Retry(context.Background(), "shop-2", n.ID)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// Forbidden means untouched: no hidden send, no count bump.
	assert.Empty(t, gateway.sent)
	got, err := store.GetNotification(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
}

func TestDeliveryReportUpgradesToDelivered(t *testing.T) {
	store, _, uc, order := newLedgerFixture(t)

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "hi")
	require.NoError(t, err)
	require.Equal(t, domain.DeliverySent, n.Status)

	err = uc.HandleDeliveryReport(context.Background(), smsgateway.DeliveryReport{
		MessageID: n.ProviderRef,
		Status:    "delivered",
	})
	require.NoError(t, err)

	got, err := store.GetNotification(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryDelivered, got.Status)
	assert.NotNil(t, got.DeliveredAt)
}

func TestDeliveredRowIsImmutable(t *testing.T) {
	_, _, uc, order := newLedgerFixture(t)

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "hi")
	require.NoError(t, err)
	require.NoError(t, uc.HandleDeliveryReport(context.Background(), smsgateway.DeliveryReport{
		MessageID: n.ProviderRef,
		Status:    "delivered",
	}))

	_, err = uc.Retry(context.Background(), "shop-1", n.ID)
	assert.ErrorIs(t, err, xerrors.ErrNotificationImmutable)

	err = uc.HandleDeliveryReport(context.Background(), smsgateway.DeliveryReport{
		MessageID: n.ProviderRef,
		Status:    "failed",
		Error:     "late failure",
	})
	assert.ErrorIs(t, err, xerrors.ErrNotificationImmutable)
}

func TestDeliveryReportFailureKeepsErrorText(t *testing.T) {
	store, _, uc, order := newLedgerFixture(t)

	trigger := domain.StatusAssembled
	n, err := uc.Send(context.Background(), order, domain.NotifStatusChange, &trigger, "hi")
	require.NoError(t, err)

	err = uc.HandleDeliveryReport(context.Background(), smsgateway.DeliveryReport{
		MessageID: n.ProviderRef,
		Status:    "failed",
		Error:     "handset off",
	})
	require.NoError(t, err)

	got, err := store.GetNotification(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryFailed, got.Status)
	assert.Equal(t, "handset off", got.LastError)
	assert.Equal(t, 1, got.RetryCount)
}

func TestManualSendAlwaysCreatesNewRow(t *testing.T) {
	store, _, uc, order := newLedgerFixture(t)

	for i := 0; i < 2; i++ {
		n, err := uc.SendManual(context.Background(), order, "Hello {customer_name}, your parcel waits")
		require.NoError(t, err)
		assert.Equal(t, domain.NotifManual, n.Type)
		assert.Nil(t, n.TriggerStatus)
	}

	rows, err := store.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
