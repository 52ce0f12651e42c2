package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/internal/repository"
	"github.com/Farkhat1984/leema-react-sub002/pkg/synclock"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

// cascadeTimeout bounds the dependents-first delete of an integration.
const cascadeTimeout = 60 * time.Second

// IntegrationUsecase owns the external connection's lifecycle. Reads always
// go out with the credential blanked.
type IntegrationUsecase struct {
	repo   repository.IntegrationRepository
	lock   synclock.Locker
	logger *zap.Logger
}

func NewIntegrationUsecase(repo repository.IntegrationRepository, lock synclock.Locker, logger *zap.Logger) *IntegrationUsecase {
	return &IntegrationUsecase{repo: repo, lock: lock, logger: logger}
}

type CreateIntegrationParams struct {
	MerchantID      string            `json:"merchant_id"`
	APIToken        string            `json:"api_token"`
	SyncIntervalMin int               `json:"sync_interval_min"`
	StatusTemplates map[string]string `json:"status_templates"`
}

func (uc *IntegrationUsecase) Create(ctx context.Context, shopID string, p CreateIntegrationParams) (*domain.Integration, error) {
	if p.SyncIntervalMin <= 0 {
		return nil, xerrors.ErrInvalidInterval
	}
	if p.MerchantID == "" || p.APIToken == "" {
		return nil, xerrors.ErrInvalidRequest
	}

	created, err := uc.repo.Create(ctx, &domain.Integration{
		ShopID:          shopID,
		MerchantID:      p.MerchantID,
		APIToken:        p.APIToken,
		SyncIntervalMin: p.SyncIntervalMin,
		StatusTemplates: p.StatusTemplates,
	})
	if err != nil {
		return nil, err
	}
	return created.Sanitize(), nil
}

func (uc *IntegrationUsecase) Get(ctx context.Context, shopID string, id int64) (*domain.Integration, error) {
	integ, err := uc.owned(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	return integ.Sanitize(), nil
}

func (uc *IntegrationUsecase) List(ctx context.Context, shopID string) ([]*domain.Integration, error) {
	all, err := uc.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Integration, 0, len(all))
	for _, in := range all {
		out = append(out, in.Sanitize())
	}
	return out, nil
}

type UpdateIntegrationParams struct {
	APIToken        *string           `json:"api_token"`
	SyncIntervalMin *int              `json:"sync_interval_min"`
	StatusTemplates map[string]string `json:"status_templates"`
}

// Update replaces the credential, interval or template map; nothing else on
// an integration is mutable after creation.
func (uc *IntegrationUsecase) Update(ctx context.Context, shopID string, id int64, p UpdateIntegrationParams) (*domain.Integration, error) {
	integ, err := uc.owned(ctx, shopID, id)
	if err != nil {
		return nil, err
	}

	if p.APIToken != nil && *p.APIToken != "" {
		integ.APIToken = *p.APIToken
	}
	if p.SyncIntervalMin != nil {
		if *p.SyncIntervalMin <= 0 {
			return nil, xerrors.ErrInvalidInterval
		}
		integ.SyncIntervalMin = *p.SyncIntervalMin
	}
	if p.StatusTemplates != nil {
		integ.StatusTemplates = p.StatusTemplates
	}

	if err := uc.repo.Update(ctx, integ); err != nil {
		return nil, err
	}
	return integ.Sanitize(), nil
}

// Delete cascades orders and notifications before removing the integration
// itself. Refused while a sync job holds the running marker.
func (uc *IntegrationUsecase) Delete(ctx context.Context, shopID string, id int64) error {
	if _, err := uc.owned(ctx, shopID, id); err != nil {
		return err
	}

	held, err := uc.lock.Held(ctx, id)
	if err != nil {
		return err
	}
	if held {
		return xerrors.ErrSyncInProgress
	}

	cctx, cancel := context.WithTimeout(ctx, cascadeTimeout)
	defer cancel()

	if err := uc.repo.DeleteCascade(cctx, id); err != nil {
		return err
	}
	uc.logger.Info("integration deleted", zap.Int64("integration_id", id), zap.String("shop_id", shopID))
	return nil
}

func (uc *IntegrationUsecase) owned(ctx context.Context, shopID string, id int64) (*domain.Integration, error) {
	integ, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shopID != "" && integ.ShopID != shopID {
		return nil, xerrors.ErrForbidden
	}
	return integ, nil
}
