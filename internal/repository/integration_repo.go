package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

type IntegrationRepository interface {
	Create(ctx context.Context, in *domain.Integration) (*domain.Integration, error)
	GetByID(ctx context.Context, id int64) (*domain.Integration, error)
	ListByShop(ctx context.Context, shopID string) ([]*domain.Integration, error)
	Update(ctx context.Context, in *domain.Integration) error
	RecordSyncResult(ctx context.Context, id int64, status domain.SyncStatus, errText string, at time.Time) error
	// DeleteCascade removes notifications, then orders, then the integration,
	// inside one transaction. Dependents are confirmed gone before the root
	// row goes.
	DeleteCascade(ctx context.Context, id int64) error
}

type pgIntegrationRepo struct {
	db *pgxpool.Pool
}

func NewIntegrationRepository(db *pgxpool.Pool) IntegrationRepository {
	return &pgIntegrationRepo{db: db}
}

const integrationCols = `
	id, shop_id, merchant_id, api_token, sync_interval_min,
	last_sync_at, last_sync_status, last_sync_error, status_templates,
	created_at, updated_at
`

func scanIntegration(row pgx.Row) (*domain.Integration, error) {
	var in domain.Integration
	err := row.Scan(
		&in.ID,
		&in.ShopID,
		&in.MerchantID,
		&in.APIToken,
		&in.SyncIntervalMin,
		&in.LastSyncAt,
		&in.LastSyncStatus,
		&in.LastSyncError,
		&in.StatusTemplates,
		&in.CreatedAt,
		&in.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &in, nil
}

func (p *pgIntegrationRepo) Create(ctx context.Context, in *domain.Integration) (*domain.Integration, error) {
	query := `
		INSERT INTO integrations (
			shop_id, merchant_id, api_token, sync_interval_min,
			last_sync_status, status_templates
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + integrationCols

	row := p.db.QueryRow(ctx, query,
		in.ShopID,
		in.MerchantID,
		in.APIToken,
		in.SyncIntervalMin,
		domain.SyncUnattempted,
		in.StatusTemplates,
	)
	return scanIntegration(row)
}

func (p *pgIntegrationRepo) GetByID(ctx context.Context, id int64) (*domain.Integration, error) {
	query := `SELECT ` + integrationCols + ` FROM integrations WHERE id = $1`
	return scanIntegration(p.db.QueryRow(ctx, query, id))
}

func (p *pgIntegrationRepo) ListByShop(ctx context.Context, shopID string) ([]*domain.Integration, error) {
	query := `SELECT ` + integrationCols + ` FROM integrations WHERE shop_id = $1 ORDER BY created_at`

	rows, err := p.db.Query(ctx, query, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (p *pgIntegrationRepo) Update(ctx context.Context, in *domain.Integration) error {
	query := `
		UPDATE integrations
		SET api_token = $1,
		    sync_interval_min = $2,
		    status_templates = $3,
		    updated_at = NOW()
		WHERE id = $4
	`

	ct, err := p.db.Exec(ctx, query, in.APIToken, in.SyncIntervalMin, in.StatusTemplates, in.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgIntegrationRepo) RecordSyncResult(ctx context.Context, id int64, status domain.SyncStatus, errText string, at time.Time) error {
	query := `
		UPDATE integrations
		SET last_sync_at = $1,
		    last_sync_status = $2,
		    last_sync_error = $3,
		    updated_at = NOW()
		WHERE id = $4
	`

	ct, err := p.db.Exec(ctx, query, at, status, errText, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgIntegrationRepo) DeleteCascade(ctx context.Context, id int64) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM notifications
		WHERE order_id IN (SELECT id FROM orders WHERE integration_id = $1)
	`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE integration_id = $1`, id); err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM integrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return tx.Commit(ctx)
}
