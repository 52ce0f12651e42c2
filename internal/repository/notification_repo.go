package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	GetByProviderRef(ctx context.Context, ref string) (*domain.Notification, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*domain.Notification, error)
	// MarkSent records provider acceptance after a retry of a failed row.
	MarkSent(ctx context.Context, id int64, providerRef string) error
	// MarkDelivered upgrades sent -> delivered. Delivered rows are immutable.
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	// MarkFailed records the provider error and bumps retry_count.
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type pgNotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepo{db: db}
}

const notificationCols = `
	id, order_id, integration_id, request_id, phone, message, type,
	trigger_status, status, retry_count, last_error, provider_ref,
	sent_at, delivered_at
`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.OrderID,
		&n.IntegrationID,
		&n.RequestID,
		&n.Phone,
		&n.Message,
		&n.Type,
		&n.TriggerStatus,
		&n.Status,
		&n.RetryCount,
		&n.LastError,
		&n.ProviderRef,
		&n.SentAt,
		&n.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (p *pgNotificationRepo) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n.RequestID == "" {
		n.RequestID = uuid.New().String()
	}

	query := `
		INSERT INTO notifications (
			order_id, integration_id, request_id, phone, message, type,
			trigger_status, status, retry_count, last_error, provider_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + notificationCols

	row := p.db.QueryRow(ctx, query,
		n.OrderID,
		n.IntegrationID,
		n.RequestID,
		n.Phone,
		n.Message,
		n.Type,
		n.TriggerStatus,
		n.Status,
		n.RetryCount,
		n.LastError,
		n.ProviderRef,
	)
	return scanNotification(row)
}

func (p *pgNotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE id = $1`
	return scanNotification(p.db.QueryRow(ctx, query, id))
}

func (p *pgNotificationRepo) GetByProviderRef(ctx context.Context, ref string) (*domain.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE provider_ref = $1`
	return scanNotification(p.db.QueryRow(ctx, query, ref))
}

func (p *pgNotificationRepo) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationCols + `
		FROM notifications
		WHERE order_id = $1
		ORDER BY sent_at DESC
	`

	rows, err := p.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *pgNotificationRepo) MarkSent(ctx context.Context, id int64, providerRef string) error {
	query := `
		UPDATE notifications
		SET status = $1, provider_ref = $2, last_error = ''
		WHERE id = $3 AND status <> $4
	`

	ct, err := p.db.Exec(ctx, query, domain.DeliverySent, providerRef, id, domain.DeliveryDelivered)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.explainNoRows(ctx, id)
	}
	return nil
}

func (p *pgNotificationRepo) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, delivered_at = $2
		WHERE id = $3 AND status = $4
	`

	ct, err := p.db.Exec(ctx, query, domain.DeliveryDelivered, at, id, domain.DeliverySent)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.explainNoRows(ctx, id)
	}
	return nil
}

func (p *pgNotificationRepo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = $1, last_error = $2, retry_count = retry_count + 1
		WHERE id = $3 AND status <> $4
	`

	ct, err := p.db.Exec(ctx, query, domain.DeliveryFailed, errMsg, id, domain.DeliveryDelivered)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return p.explainNoRows(ctx, id)
	}
	return nil
}

// explainNoRows distinguishes "row gone" from "row already delivered" after
// a guarded update touched nothing.
func (p *pgNotificationRepo) explainNoRows(ctx context.Context, id int64) error {
	n, err := p.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.Status == domain.DeliveryDelivered {
		return xerrors.ErrNotificationImmutable
	}
	return xerrors.ErrNotFound
}
