package domain

import "time"

// SyncRun is the in-flight bookkeeping of one sync attempt. It is never
// persisted; its terminal outcome folds into Integration.LastSync* and is
// broadcast as an event.
type SyncRun struct {
	ID                string
	IntegrationID     int64
	Force             bool
	StartedAt         time.Time
	NewOrders         int
	UpdatedOrders     int
	NotificationsSent int
	Err               string
}
