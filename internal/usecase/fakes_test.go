package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Farkhat1984/leema-react-sub002/internal/domain"
	"github.com/Farkhat1984/leema-react-sub002/pkg/kaspi"
	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

// memStore is an in-memory stand-in for all three repositories, close enough
// to the pg semantics to exercise the usecases: guarded updates, batch
// upserts keyed by (integration, code), and dependents-first cascade.
type memStore struct {
	mu            sync.Mutex
	integrations  map[int64]*domain.Integration
	orders        map[int64]*domain.Order
	notifications map[int64]*domain.Notification
	nextID        int64
}

func newMemStore() *memStore {
	return &memStore{
		integrations:  make(map[int64]*domain.Integration),
		orders:        make(map[int64]*domain.Order),
		notifications: make(map[int64]*domain.Notification),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

// --- IntegrationRepository ---

func (s *memStore) Create(ctx context.Context, in *domain.Integration) (*domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *in
	c.ID = s.id()
	c.LastSyncStatus = domain.SyncUnattempted
	c.CreatedAt = time.Now()
	s.integrations[c.ID] = &c
	out := c
	return &out, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.integrations[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c := *in
	return &c, nil
}

func (s *memStore) ListByShop(ctx context.Context, shopID string) ([]*domain.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Integration
	for _, in := range s.integrations {
		if in.ShopID == shopID {
			c := *in
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) Update(ctx context.Context, in *domain.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[in.ID]; !ok {
		return xerrors.ErrNotFound
	}
	c := *in
	s.integrations[in.ID] = &c
	return nil
}

func (s *memStore) RecordSyncResult(ctx context.Context, id int64, status domain.SyncStatus, errText string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.integrations[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	t := at
	in.LastSyncAt = &t
	in.LastSyncStatus = status
	in.LastSyncError = errText
	return nil
}

func (s *memStore) DeleteCascade(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.integrations[id]; !ok {
		return xerrors.ErrNotFound
	}
	for oid, o := range s.orders {
		if o.IntegrationID != id {
			continue
		}
		for nid, n := range s.notifications {
			if n.OrderID == oid {
				delete(s.notifications, nid)
			}
		}
		delete(s.orders, oid)
	}
	delete(s.integrations, id)
	return nil
}

// --- OrderRepository ---

func (s *memStore) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s *memStore) ListByIntegration(ctx context.Context, integrationID int64, limit, offset int) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Order
	for _, o := range s.orders {
		if o.IntegrationID == integrationID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) TransitionStatus(ctx context.Context, o *domain.Order, push func(context.Context) error) error {
	s.mu.Lock()
	if _, ok := s.orders[o.ID]; !ok {
		s.mu.Unlock()
		return xerrors.ErrNotFound
	}
	s.mu.Unlock()

	if push != nil {
		if err := push(ctx); err != nil {
			return err // nothing committed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	s.orders[o.ID] = &c
	return nil
}

func (s *memStore) UpsertBatch(ctx context.Context, integrationID int64, orders []*domain.Order) (*domain.ReconcileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &domain.ReconcileResult{NewCodes: make(map[string]bool)}
	for _, o := range orders {
		var existing *domain.Order
		for _, e := range s.orders {
			if e.IntegrationID == integrationID && e.Code == o.Code {
				existing = e
				break
			}
		}
		if existing == nil {
			c := *o
			c.ID = s.id()
			c.IntegrationID = integrationID
			c.CreatedAt = time.Now()
			s.orders[c.ID] = &c
			out := c
			res.Created++
			res.NewCodes[c.Code] = true
			res.StatusChanged = append(res.StatusChanged, &out)
			continue
		}

		changed := existing.Status != o.Status
		c := *o
		c.ID = existing.ID
		c.IntegrationID = integrationID
		s.orders[c.ID] = &c
		res.Updated++
		if changed {
			out := c
			res.StatusChanged = append(res.StatusChanged, &out)
		}
	}
	return res, nil
}

// --- NotificationRepository ---

func (s *memStore) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	c.ID = s.id()
	c.SentAt = time.Now()
	s.notifications[c.ID] = &c
	out := c
	return &out, nil
}

func (s *memStore) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	c := *n
	return &c, nil
}

func (s *memStore) GetByProviderRef(ctx context.Context, ref string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ProviderRef == ref {
			c := *n
			return &c, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (s *memStore) ListByOrder(ctx context.Context, orderID int64) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.OrderID == orderID {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memStore) MarkSent(ctx context.Context, id int64, providerRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if n.Status == domain.DeliveryDelivered {
		return xerrors.ErrNotificationImmutable
	}
	n.Status = domain.DeliverySent
	n.ProviderRef = providerRef
	n.LastError = ""
	return nil
}

func (s *memStore) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if n.Status == domain.DeliveryDelivered {
		return xerrors.ErrNotificationImmutable
	}
	if n.Status != domain.DeliverySent {
		return xerrors.ErrNotFound
	}
	n.Status = domain.DeliveryDelivered
	t := at
	n.DeliveredAt = &t
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if n.Status == domain.DeliveryDelivered {
		return xerrors.ErrNotificationImmutable
	}
	n.Status = domain.DeliveryFailed
	n.LastError = errMsg
	n.RetryCount++
	return nil
}

// orderRepoView / notificationRepoView adapt memStore's method names to the
// repository interfaces where they collide with the integration repo's.
type orderRepoView struct{ *memStore }

func (v orderRepoView) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return v.GetOrder(ctx, id)
}

type notificationRepoView struct{ *memStore }

func (v notificationRepoView) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	return v.CreateNotification(ctx, n)
}

func (v notificationRepoView) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	return v.GetNotification(ctx, id)
}

// --- Marketplace fake ---

type pushCall struct {
	Code   string
	Status string
}

type fakeMarket struct {
	mu       sync.Mutex
	entries  []kaspi.OrderEntry
	fetchErr error
	pushErr  error
	pushes   []pushCall
	// block, when non-nil, parks FetchOrders until closed.
	block chan struct{}
}

func (f *fakeMarket) FetchOrders(ctx context.Context, token string, since *time.Time) ([]kaspi.OrderEntry, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]kaspi.OrderEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeMarket) PushStatus(ctx context.Context, token, orderCode, status string, payload map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, pushCall{Code: orderCode, Status: status})
	return nil
}

// --- SMS gateway fake ---

type fakeGateway struct {
	mu      sync.Mutex
	sendErr error
	sent    []string
	nextRef int
}

func (f *fakeGateway) Send(ctx context.Context, phone, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextRef++
	f.sent = append(f.sent, text)
	return fmt.Sprintf("msg-%d", f.nextRef), nil
}
