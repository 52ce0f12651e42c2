package domain

import "time"

type SyncStatus string

const (
	SyncUnattempted SyncStatus = "unattempted"
	SyncSuccess     SyncStatus = "success"
	SyncError       SyncStatus = "error"
)

// Integration is one shop's credentialed connection to the Kaspi marketplace.
type Integration struct {
	ID              int64
	ShopID          string
	MerchantID      string
	APIToken        string // never returned to clients, see Sanitize
	SyncIntervalMin int
	LastSyncAt      *time.Time
	LastSyncStatus  SyncStatus
	LastSyncError   string
	// StatusTemplates maps an order status to the SMS template sent when an
	// order enters that status. Statuses without an entry send nothing.
	StatusTemplates map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sanitize blanks the credential for any outward-facing read.
func (i *Integration) Sanitize() *Integration {
	c := *i
	c.APIToken = ""
	return &c
}

// NextSyncDue is the earliest time a non-forced sync is allowed to start.
func (i *Integration) NextSyncDue() time.Time {
	if i.LastSyncAt == nil {
		return time.Time{}
	}
	return i.LastSyncAt.Add(time.Duration(i.SyncIntervalMin) * time.Minute)
}

func (i *Integration) TemplateFor(status OrderStatus) (string, bool) {
	if i.StatusTemplates == nil {
		return "", false
	}
	t, ok := i.StatusTemplates[string(status)]
	return t, ok
}
