package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/internal/repository"
	"github.com/Farkhat1984/leema-react-sub002/pkg/smsgateway"
	"github.com/Farkhat1984/leema-react-sub002/pkg/template"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

// SMSGateway is the delivery provider. Acceptance means queued, not
// delivered; delivery confirmation arrives later via callback.
type SMSGateway interface {
	Send(ctx context.Context, phone, text string) (providerRef string, err error)
}

// NotificationUsecase is the delivery ledger: one row per attempt to reach a
// customer, with retry and failure bookkeeping.
type NotificationUsecase struct {
	repo         repository.NotificationRepository
	integrations repository.IntegrationRepository
	gateway      SMSGateway
	logger       *zap.Logger
}

func NewNotificationUsecase(
	repo repository.NotificationRepository,
	integrations repository.IntegrationRepository,
	gateway SMSGateway,
	logger *zap.Logger,
) *NotificationUsecase {
	return &NotificationUsecase{repo: repo, integrations: integrations, gateway: gateway, logger: logger}
}

func templateVars(o *domain.Order) map[string]string {
	return map[string]string{
		"customer_name": o.CustomerName,
		"order_code":    o.Code,
		"total_price":   fmt.Sprintf("%.2f", o.TotalPrice),
		"status":        string(o.Status),
	}
}

// Send renders tmpl against the order, attempts delivery and records the
// attempt. A render failure (unknown placeholder) is a configuration defect
// and is returned without creating a ledger row; a provider failure is
// recorded on the row (status failed, retry_count bumped), not returned.
func (uc *NotificationUsecase) Send(
	ctx context.Context,
	order *domain.Order,
	typ domain.NotificationType,
	trigger *domain.OrderStatus,
	tmpl string,
) (*domain.Notification, error) {
	msg, err := template.Render(tmpl, templateVars(order))
	if err != nil {
		return nil, err
	}

	n := &domain.Notification{
		OrderID:       order.ID,
		IntegrationID: order.IntegrationID,
		Phone:         order.CustomerPhone,
		Message:       msg,
		Type:          typ,
		TriggerStatus: trigger,
	}

	ref, sendErr := uc.gateway.Send(ctx, order.CustomerPhone, msg)
	if sendErr != nil {
		n.Status = domain.DeliveryFailed
		n.RetryCount = 1
		n.LastError = sendErr.Error()
		uc.logger.Warn("SMS delivery failed",
			zap.Int64("order_id", order.ID),
			zap.Error(sendErr))
	} else {
		n.Status = domain.DeliverySent
		n.ProviderRef = ref
	}

	return uc.repo.Create(ctx, n)
}

// SendManual always creates a fresh ledger row and skips every trigger-status
// idempotency check. The message text is still rendered, so shop staff can
// use the same placeholders templates do.
func (uc *NotificationUsecase) SendManual(ctx context.Context, order *domain.Order, messageText string) (*domain.Notification, error) {
	return uc.Send(ctx, order, domain.NotifManual, nil, messageText)
}

// Retry re-attempts delivery of a failed row. The retry count only ever
// grows; delivered rows are immutable.
func (uc *NotificationUsecase) Retry(ctx context.Context, shopID string, id int64) (*domain.Notification, error) {
	n, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shopID != "" {
		integ, err := uc.integrations.GetByID(ctx, n.IntegrationID)
		if err != nil {
			return nil, err
		}
		if integ.ShopID != shopID {
			return nil, xerrors.ErrForbidden
		}
	}
	if n.Status == domain.DeliveryDelivered {
		return nil, xerrors.ErrNotificationImmutable
	}

	ref, sendErr := uc.gateway.Send(ctx, n.Phone, n.Message)
	if sendErr != nil {
		if err := uc.repo.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
			return nil, err
		}
	} else {
		if err := uc.repo.MarkSent(ctx, n.ID, ref); err != nil {
			return nil, err
		}
	}
	return uc.repo.GetByID(ctx, n.ID)
}

// HandleDeliveryReport applies the provider's asynchronous status callback.
func (uc *NotificationUsecase) HandleDeliveryReport(ctx context.Context, rep smsgateway.DeliveryReport) error {
	n, err := uc.repo.GetByProviderRef(ctx, rep.MessageID)
	if err != nil {
		return err
	}

	switch rep.Status {
	case "delivered":
		return uc.repo.MarkDelivered(ctx, n.ID, nowUTC())
	case "failed":
		errText := rep.Error
		if errText == "" {
			errText = "provider reported failure"
		}
		return uc.repo.MarkFailed(ctx, n.ID, errText)
	}
	return fmt.Errorf("%w: unknown delivery status %q", xerrors.ErrInvalidRequest, rep.Status)
}

func (uc *NotificationUsecase) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Notification, error) {
	return uc.repo.ListByOrder(ctx, orderID)
}
