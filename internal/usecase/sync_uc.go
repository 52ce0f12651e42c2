package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/internal/events"
	"github.com/Farkhat1984/leema-react-sub002/internal/repository"
	"github.com/Farkhat1984/leema-react-sub002/pkg/kaspi"
	"github.com/Farkhat1984/leema-react-sub002/pkg/synclock"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

// syncTimeout bounds one whole sync attempt, fetch and reconcile included.
const syncTimeout = 180 * time.Second

// SyncUsecase runs one bounded marketplace sync per integration at a time.
// The job is a background task: it outlives the request (and the websocket
// session) that triggered it and reports through the event dispatcher.
type SyncUsecase struct {
	integrations repository.IntegrationRepository
	orders       repository.OrderRepository
	ledger       *NotificationUsecase
	market       Marketplace
	lock         synclock.Locker
	bus          *events.Dispatcher
	logger       *zap.Logger

	timeout time.Duration
	nowFn   func() time.Time
	jobs    sync.WaitGroup
}

func NewSyncUsecase(
	integrations repository.IntegrationRepository,
	orders repository.OrderRepository,
	ledger *NotificationUsecase,
	market Marketplace,
	lock synclock.Locker,
	bus *events.Dispatcher,
	logger *zap.Logger,
) *SyncUsecase {
	return &SyncUsecase{
		integrations: integrations,
		orders:       orders,
		ledger:       ledger,
		market:       market,
		lock:         lock,
		bus:          bus,
		logger:       logger,
		timeout:      syncTimeout,
		nowFn:        time.Now,
	}
}

// Trigger starts one sync attempt and returns as soon as the job is accepted.
// A second trigger while one is running fails fast with ErrAlreadySyncing; a
// non-forced trigger inside the interval fails with ErrTooSoon.
func (uc *SyncUsecase) Trigger(ctx context.Context, shopID string, integrationID int64, force bool) (string, error) {
	integ, err := uc.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return "", err
	}
	if shopID != "" && integ.ShopID != shopID {
		return "", xerrors.ErrForbidden
	}

	if !force && integ.LastSyncAt != nil && uc.nowFn().Before(integ.NextSyncDue()) {
		return "", xerrors.ErrTooSoon
	}

	ok, err := uc.lock.TryAcquire(ctx, integ.ID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", xerrors.ErrAlreadySyncing
	}

	runID := uuid.New().String()
	uc.jobs.Add(1)
	go func() {
		defer uc.jobs.Done()
		uc.run(integ, runID, force)
	}()
	return runID, nil
}

// Wait blocks until all in-flight jobs have reported; used on shutdown.
func (uc *SyncUsecase) Wait() {
	uc.jobs.Wait()
}

// run is the job body. The lock is released on every path, and always before
// the terminal event goes out, so a follow-up trigger is never blocked by a
// job that has already reported.
func (uc *SyncUsecase) run(integ *domain.Integration, runID string, force bool) {
	started := uc.nowFn()
	uc.logger.Info("sync started",
		zap.String("run_id", runID),
		zap.Int64("integration_id", integ.ID),
		zap.Bool("force", force))

	ctx, cancel := context.WithTimeout(context.Background(), uc.timeout)
	run, err := uc.reconcile(ctx, integ, runID, started)
	cancel()

	// The attempt context may already be dead; bookkeeping gets its own.
	bookCtx, bookCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer bookCancel()

	if err != nil {
		if rerr := uc.integrations.RecordSyncResult(bookCtx, integ.ID, domain.SyncError, err.Error(), uc.nowFn()); rerr != nil {
			uc.logger.Error("failed to record sync error", zap.Int64("integration_id", integ.ID), zap.Error(rerr))
		}
		if lerr := uc.lock.Release(bookCtx, integ.ID); lerr != nil {
			uc.logger.Error("failed to release sync lock", zap.Int64("integration_id", integ.ID), zap.Error(lerr))
		}
		uc.logger.Warn("sync failed", zap.String("run_id", runID), zap.Error(err))
		uc.bus.Dispatch(events.NewSyncError(integ.ShopID, err.Error()))
		return
	}

	if rerr := uc.integrations.RecordSyncResult(bookCtx, integ.ID, domain.SyncSuccess, "", uc.nowFn()); rerr != nil {
		uc.logger.Error("failed to record sync result", zap.Int64("integration_id", integ.ID), zap.Error(rerr))
	}
	if lerr := uc.lock.Release(bookCtx, integ.ID); lerr != nil {
		uc.logger.Error("failed to release sync lock", zap.Int64("integration_id", integ.ID), zap.Error(lerr))
	}

	uc.logger.Info("sync completed",
		zap.String("run_id", runID),
		zap.Int("new_orders", run.NewOrders),
		zap.Int("updated_orders", run.UpdatedOrders),
		zap.Int("notifications_sent", run.NotificationsSent))
	uc.bus.Dispatch(events.NewSyncCompleted(integ.ShopID, run.NewOrders, run.UpdatedOrders, run.NotificationsSent))
}

// reconcile fetches and applies one attempt's orders. The repository batch
// upsert commits all of them or none, so a timeout mid-attempt leaves no
// partially applied state.
func (uc *SyncUsecase) reconcile(ctx context.Context, integ *domain.Integration, runID string, started time.Time) (*domain.SyncRun, error) {
	entries, err := uc.market.FetchOrders(ctx, integ.APIToken, integ.LastSyncAt)
	if err != nil {
		return nil, err
	}

	mapped := make([]*domain.Order, 0, len(entries))
	for _, e := range entries {
		o, err := orderFromEntry(e)
		if err != nil {
			return nil, err
		}
		mapped = append(mapped, o)
	}

	res, err := uc.orders.UpsertBatch(ctx, integ.ID, mapped)
	if err != nil {
		return nil, err
	}

	run := &domain.SyncRun{
		ID:            runID,
		IntegrationID: integ.ID,
		StartedAt:     started,
		NewOrders:     res.Created,
		UpdatedOrders: res.Updated,
	}

	// At most one notification per (order, trigger status) within this run,
	// even if the marketplace echoed the same status twice.
	seen := make(map[string]struct{})
	for _, o := range res.StatusChanged {
		if res.NewCodes[o.Code] {
			uc.bus.Dispatch(orderCreatedEvent(integ.ShopID, o))
		} else {
			uc.bus.Dispatch(orderEvent(integ.ShopID, o))
		}

		tmpl, ok := integ.TemplateFor(o.Status)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d:%s", o.ID, o.Status)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		typ := domain.NotifStatusChange
		if res.NewCodes[o.Code] {
			typ = domain.NotifOrderCreated
		}
		trigger := o.Status
		n, err := uc.ledger.Send(ctx, o, typ, &trigger, tmpl)
		if err != nil {
			uc.logger.Warn("sync notification not sent",
				zap.Int64("order_id", o.ID),
				zap.Error(err))
			continue
		}
		if n.Status == domain.DeliverySent {
			run.NotificationsSent++
		}
	}

	return run, nil
}

// orderFromEntry maps a marketplace order onto the local model. The status
// comes straight from Kaspi: marketplace echoes are authoritative and bypass
// local transition guards.
func orderFromEntry(e kaspi.OrderEntry) (*domain.Order, error) {
	status := domain.OrderStatus(e.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: order %s has unknown status %q", xerrors.ErrInvalidRequest, e.Code, e.Status)
	}

	items := make([]domain.LineItem, 0, len(e.Entries))
	for _, it := range e.Entries {
		items = append(items, domain.LineItem{
			ProductRef: it.ProductCode,
			Quantity:   it.Quantity,
			UnitPrice:  it.BasePrice,
		})
	}

	o := &domain.Order{
		Code:            e.Code,
		Status:          status,
		CustomerName:    e.CustomerName,
		CustomerPhone:   e.CustomerPhone,
		DeliveryAddress: e.DeliveryAddress,
		Items:           items,
		TotalPrice:      e.TotalPrice,
		DeliveryCost:    e.DeliveryCost,
		DeliveryMode:    e.DeliveryMode,
		PaymentMode:     e.PaymentMode,
		KaspiCreatedAt:  time.UnixMilli(e.CreationDate).UTC(),
	}
	if e.PlannedDeliveryDate != nil {
		t := time.UnixMilli(*e.PlannedDeliveryDate).UTC()
		o.PlannedDeliveryDate = &t
	}
	return o, nil
}
