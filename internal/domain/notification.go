package domain

import "time"

// NotificationType defines what produced a ledger entry.
type NotificationType string

const (
	NotifStatusChange NotificationType = "status_change"
	NotifOrderCreated NotificationType = "order_created"
	NotifManual       NotificationType = "manual"
)

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Notification is one delivery attempt of a templated SMS to a customer.
// RetryCount only grows; a failed row always carries LastError; a delivered
// row is immutable.
type Notification struct {
	ID            int64
	OrderID       int64
	IntegrationID int64
	RequestID     string
	Phone         string
	Message       string
	Type          NotificationType
	TriggerStatus *OrderStatus // nil for manual sends
	Status        DeliveryStatus
	RetryCount    int
	LastError     string
	ProviderRef   string // provider message id, correlates delivery reports
	SentAt        time.Time
	DeliveredAt   *time.Time
}
