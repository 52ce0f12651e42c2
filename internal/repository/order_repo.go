package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByIntegration(ctx context.Context, integrationID int64, limit, offset int) ([]*domain.Order, error)
	// TransitionStatus persists the order's status and guard fields, then
	// runs push (the marketplace forwarding) before committing. A push
	// failure rolls the whole change back: local and remote never diverge.
	TransitionStatus(ctx context.Context, o *domain.Order, push func(context.Context) error) error
	// UpsertBatch reconciles one sync attempt's fetched orders in a single
	// transaction, keyed by external order code. All or nothing.
	UpsertBatch(ctx context.Context, integrationID int64, orders []*domain.Order) (*domain.ReconcileResult, error)
}

type pgOrderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{db: db}
}

const orderCols = `
	id, integration_id, code, status, customer_name, customer_phone,
	delivery_address, items, total_price, delivery_cost, delivery_mode,
	payment_mode, number_of_space, security_code, cancellation_reason,
	cancellation_comment, kaspi_created_at, planned_delivery_date,
	created_at, updated_at
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var reason *string
	err := row.Scan(
		&o.ID,
		&o.IntegrationID,
		&o.Code,
		&o.Status,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.DeliveryAddress,
		&o.Items,
		&o.TotalPrice,
		&o.DeliveryCost,
		&o.DeliveryMode,
		&o.PaymentMode,
		&o.NumberOfSpace,
		&o.SecurityCode,
		&reason,
		&o.CancellationComment,
		&o.KaspiCreatedAt,
		&o.PlannedDeliveryDate,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	if reason != nil {
		o.CancellationReason = domain.CancellationReason(*reason)
	}
	return &o, nil
}

func (p *pgOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderCols + ` FROM orders WHERE id = $1`
	return scanOrder(p.db.QueryRow(ctx, query, id))
}

func (p *pgOrderRepo) ListByIntegration(ctx context.Context, integrationID int64, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + orderCols + `
		FROM orders
		WHERE integration_id = $1
		ORDER BY kaspi_created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, integrationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *pgOrderRepo) TransitionStatus(ctx context.Context, o *domain.Order, push func(context.Context) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $1,
		    number_of_space = $2,
		    security_code = $3,
		    cancellation_reason = NULLIF($4, ''),
		    cancellation_comment = $5,
		    updated_at = NOW()
		WHERE id = $6
	`
	ct, err := tx.Exec(ctx, query,
		o.Status,
		o.NumberOfSpace,
		o.SecurityCode,
		string(o.CancellationReason),
		o.CancellationComment,
		o.ID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	if push != nil {
		if err := push(ctx); err != nil {
			return err // rollback via defer
		}
	}
	return tx.Commit(ctx)
}

func (p *pgOrderRepo) UpsertBatch(ctx context.Context, integrationID int64, orders []*domain.Order) (*domain.ReconcileResult, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	res := &domain.ReconcileResult{NewCodes: make(map[string]bool)}

	for _, o := range orders {
		var existingID int64
		var existingStatus domain.OrderStatus
		err := tx.QueryRow(ctx, `
			SELECT id, status FROM orders
			WHERE integration_id = $1 AND code = $2
			FOR UPDATE
		`, integrationID, o.Code).Scan(&existingID, &existingStatus)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created, err := insertOrder(ctx, tx, integrationID, o)
			if err != nil {
				return nil, err
			}
			res.Created++
			res.NewCodes[created.Code] = true
			res.StatusChanged = append(res.StatusChanged, created)

		case err != nil:
			return nil, err

		default:
			o.ID = existingID
			o.IntegrationID = integrationID
			if err := updateOrder(ctx, tx, o); err != nil {
				return nil, err
			}
			res.Updated++
			if existingStatus != o.Status {
				res.StatusChanged = append(res.StatusChanged, o)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, integrationID int64, o *domain.Order) (*domain.Order, error) {
	query := `
		INSERT INTO orders (
			integration_id, code, status, customer_name, customer_phone,
			delivery_address, items, total_price, delivery_cost,
			delivery_mode, payment_mode, kaspi_created_at, planned_delivery_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + orderCols

	row := tx.QueryRow(ctx, query,
		integrationID,
		o.Code,
		o.Status,
		o.CustomerName,
		o.CustomerPhone,
		o.DeliveryAddress,
		o.Items,
		o.TotalPrice,
		o.DeliveryCost,
		o.DeliveryMode,
		o.PaymentMode,
		o.KaspiCreatedAt,
		o.PlannedDeliveryDate,
	)
	return scanOrder(row)
}

func updateOrder(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1,
		    customer_name = $2,
		    customer_phone = $3,
		    delivery_address = $4,
		    items = $5,
		    total_price = $6,
		    delivery_cost = $7,
		    delivery_mode = $8,
		    payment_mode = $9,
		    planned_delivery_date = $10,
		    updated_at = NOW()
		WHERE id = $11
	`
	_, err := tx.Exec(ctx, query,
		o.Status,
		o.CustomerName,
		o.CustomerPhone,
		o.DeliveryAddress,
		o.Items,
		o.TotalPrice,
		o.DeliveryCost,
		o.DeliveryMode,
		o.PaymentMode,
		o.PlannedDeliveryDate,
		o.ID,
	)
	return err
}
