package events

import (
	"strings"
	"time"
)

// Event categories. Domain CRUD events are dotted `<domain>.<action>`;
// operational Kaspi events use the `kaspi:` prefix; bare words are
// connection keepalives.
const (
	CatSyncCompleted = "kaspi:sync_completed"
	CatSyncError     = "kaspi:sync_error"

	CatOrderCreated   = "order.created"
	CatOrderUpdated   = "order.updated"
	CatOrderCompleted = "order.completed"
	CatOrderCancelled = "order.cancelled"

	CatPing      = "ping"
	CatPong      = "pong"
	CatConnected = "connected"
)

// Payload is the closed set of per-category payload shapes. Each category
// maps to exactly one variant; the marker method seals the union.
type Payload interface {
	isPayload()
}

type SyncCompletedPayload struct {
	NewOrders         int `json:"new_orders"`
	UpdatedOrders     int `json:"updated_orders"`
	NotificationsSent int `json:"notifications_sent"`
}

type SyncErrorPayload struct {
	Error string `json:"error"`
}

type OrderEventPayload struct {
	OrderID     int64   `json:"order_id"`
	OrderCode   string  `json:"order_code"`
	ShopID      string  `json:"shop_id"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
	Action      string  `json:"action"`
}

// KeepalivePayload covers ping/pong/connected; these carry no fields beyond
// their own shape.
type KeepalivePayload struct{}

func (SyncCompletedPayload) isPayload() {}
func (SyncErrorPayload) isPayload()     {}
func (OrderEventPayload) isPayload()    {}
func (KeepalivePayload) isPayload()     {}

// Event is a tagged value in transit from producer to subscribers. ShopID is
// routing metadata for the websocket layer, not part of the category payload.
type Event struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	ShopID    string  `json:"shop_id,omitempty"`
	Data      Payload `json:"data,omitempty"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func NewSyncCompleted(shopID string, newOrders, updatedOrders, notificationsSent int) Event {
	return Event{
		Type:      CatSyncCompleted,
		Timestamp: now(),
		ShopID:    shopID,
		Data: SyncCompletedPayload{
			NewOrders:         newOrders,
			UpdatedOrders:     updatedOrders,
			NotificationsSent: notificationsSent,
		},
	}
}

func NewSyncError(shopID, errText string) Event {
	return Event{
		Type:      CatSyncError,
		Timestamp: now(),
		ShopID:    shopID,
		Data:      SyncErrorPayload{Error: errText},
	}
}

func NewOrderEvent(category string, p OrderEventPayload) Event {
	return Event{
		Type:      category,
		Timestamp: now(),
		ShopID:    p.ShopID,
		Data:      p,
	}
}

func NewKeepalive(category string) Event {
	return Event{Type: category, Timestamp: now(), Data: KeepalivePayload{}}
}

// Category returns the coarse routing key: everything before the first `.` or
// `:`, or the whole tag for keepalives.
func Category(eventType string) string {
	if i := strings.IndexAny(eventType, ".:"); i >= 0 {
		return eventType[:i]
	}
	return eventType
}

// Action returns everything after the first delimiter, or "" for keepalives.
func Action(eventType string) string {
	if i := strings.IndexAny(eventType, ".:"); i >= 0 {
		return eventType[i+1:]
	}
	return ""
}
