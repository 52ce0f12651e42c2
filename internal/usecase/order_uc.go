package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/internal/events"
	"github.com/Farkhat1984/leema-react-sub002/internal/repository"
	"github.com/Farkhat1984/leema-react-sub002/pkg/kaspi"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

// Marketplace is the Kaspi shop API as this service consumes it.
type Marketplace interface {
	FetchOrders(ctx context.Context, token string, since *time.Time) ([]kaspi.OrderEntry, error)
	PushStatus(ctx context.Context, token, orderCode, status string, payload map[string]string) error
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// OrderUsecase owns user-initiated order transitions: guard checks, the
// remote push, and the resulting notification plus event side effects.
type OrderUsecase struct {
	orders       repository.OrderRepository
	integrations repository.IntegrationRepository
	market       Marketplace
	ledger       *NotificationUsecase
	bus          *events.Dispatcher
	logger       *zap.Logger
}

func NewOrderUsecase(
	orders repository.OrderRepository,
	integrations repository.IntegrationRepository,
	market Marketplace,
	ledger *NotificationUsecase,
	bus *events.Dispatcher,
	logger *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		orders:       orders,
		integrations: integrations,
		market:       market,
		ledger:       ledger,
		bus:          bus,
		logger:       logger,
	}
}

// Advance moves one order along the lifecycle. The status write and the
// marketplace push commit or roll back together; only after both succeed do
// the notification and event side effects fire.
func (uc *OrderUsecase) Advance(
	ctx context.Context,
	shopID string,
	orderID int64,
	target domain.OrderStatus,
	p domain.TransitionPayload,
) (*domain.Order, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	integ, err := uc.integrations.GetByID(ctx, o.IntegrationID)
	if err != nil {
		return nil, err
	}
	if shopID != "" && integ.ShopID != shopID {
		return nil, xerrors.ErrForbidden
	}

	if err := domain.ValidateTransition(o.Status, target, p); err != nil {
		return nil, err
	}

	updated := *o
	updated.ApplyTransition(target, p)

	push := func(ctx context.Context) error {
		err := uc.market.PushStatus(ctx, integ.APIToken, o.Code, string(target), pushPayload(p))
		if err != nil {
			return fmt.Errorf("%w: %v", xerrors.ErrRemoteRejected, err)
		}
		return nil
	}
	if err := uc.orders.TransitionStatus(ctx, &updated, push); err != nil {
		return nil, err
	}

	if tmpl, ok := integ.TemplateFor(target); ok {
		trigger := target
		if _, err := uc.ledger.Send(ctx, &updated, domain.NotifStatusChange, &trigger, tmpl); err != nil {
			// Configuration defect; the transition itself already committed.
			uc.logger.Warn("status notification not sent",
				zap.Int64("order_id", updated.ID),
				zap.String("status", string(target)),
				zap.Error(err))
		}
	}

	uc.bus.Dispatch(orderEvent(integ.ShopID, &updated))
	return &updated, nil
}

func (uc *OrderUsecase) Get(ctx context.Context, shopID string, orderID int64) (*domain.Order, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if shopID != "" {
		integ, err := uc.integrations.GetByID(ctx, o.IntegrationID)
		if err != nil {
			return nil, err
		}
		if integ.ShopID != shopID {
			return nil, xerrors.ErrForbidden
		}
	}
	return o, nil
}

func (uc *OrderUsecase) ListByIntegration(ctx context.Context, shopID string, integrationID int64, limit, offset int) ([]*domain.Order, error) {
	integ, err := uc.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if shopID != "" && integ.ShopID != shopID {
		return nil, xerrors.ErrForbidden
	}
	return uc.orders.ListByIntegration(ctx, integrationID, limit, offset)
}

func pushPayload(p domain.TransitionPayload) map[string]string {
	out := map[string]string{}
	if p.NumberOfSpace > 0 {
		out["number_of_space"] = strconv.Itoa(p.NumberOfSpace)
	}
	if p.SecurityCode != "" {
		out["security_code"] = p.SecurityCode
	}
	if p.CancellationReason != "" {
		out["cancellation_reason"] = string(p.CancellationReason)
	}
	if p.CancellationComment != "" {
		out["cancellation_comment"] = p.CancellationComment
	}
	return out
}

// orderEvent maps an order's current status to its outbound event category.
func orderEvent(shopID string, o *domain.Order) events.Event {
	category := events.CatOrderUpdated
	action := "updated"
	switch o.Status {
	case domain.StatusCompleted:
		category, action = events.CatOrderCompleted, "completed"
	case domain.StatusCancelled:
		category, action = events.CatOrderCancelled, "cancelled"
	}
	return events.NewOrderEvent(category, events.OrderEventPayload{
		OrderID:     o.ID,
		OrderCode:   o.Code,
		ShopID:      shopID,
		TotalAmount: o.TotalPrice,
		Status:      string(o.Status),
		Action:      action,
	})
}

func orderCreatedEvent(shopID string, o *domain.Order) events.Event {
	return events.NewOrderEvent(events.CatOrderCreated, events.OrderEventPayload{
		OrderID:     o.ID,
		OrderCode:   o.Code,
		ShopID:      shopID,
		TotalAmount: o.TotalPrice,
		Status:      string(o.Status),
		Action:      "created",
	})
}
