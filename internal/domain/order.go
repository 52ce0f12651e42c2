package domain

import (
	"fmt"
	"time"

	"github.com/Farkhat1984/leema-react-sub002/pkg/xerrors"
)

type OrderStatus string

const (
	StatusApprovedByBank     OrderStatus = "APPROVED_BY_BANK"
	StatusAcceptedByMerchant OrderStatus = "ACCEPTED_BY_MERCHANT"
	StatusAssembled          OrderStatus = "ASSEMBLED"
	StatusCompleted          OrderStatus = "COMPLETED"
	StatusCancelling         OrderStatus = "CANCELLING"
	StatusCancelled          OrderStatus = "CANCELLED"
	StatusReturned           OrderStatus = "RETURNED"
)

// transitions is the full adjacency list of the order lifecycle. Any edge not
// listed here is rejected for user-initiated transitions; marketplace echoes
// bypass it (Kaspi is authoritative for its own status changes).
var transitions = map[OrderStatus][]OrderStatus{
	StatusApprovedByBank:     {StatusAcceptedByMerchant, StatusCancelling, StatusCancelled},
	StatusAcceptedByMerchant: {StatusAssembled, StatusCancelling, StatusCancelled},
	StatusAssembled:          {StatusCompleted, StatusCancelling, StatusCancelled},
	StatusCancelling:         {StatusCancelled},
	StatusCompleted:          {StatusReturned},
	StatusCancelled:          {},
	StatusReturned:           {},
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusReturned
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

type CancellationReason string

const (
	ReasonBuyerNotReachable  CancellationReason = "BUYER_NOT_REACHABLE"
	ReasonMerchantOutOfStock CancellationReason = "MERCHANT_OUT_OF_STOCK"
)

func (r CancellationReason) Valid() bool {
	return r == ReasonBuyerNotReachable || r == ReasonMerchantOutOfStock
}

const maxCancellationComment = 1000

type LineItem struct {
	ProductRef string  `json:"product_ref"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

// Order is one marketplace order owned by exactly one Integration. Code is
// the external order code and is the idempotency key for synchronization.
type Order struct {
	ID              int64
	IntegrationID   int64
	Code            string
	Status          OrderStatus
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Items           []LineItem
	TotalPrice      float64
	DeliveryCost    float64
	DeliveryMode    string
	PaymentMode     string

	// Guard payload fields, persisted by the transitions that require them.
	NumberOfSpace       int
	SecurityCode        string
	CancellationReason  CancellationReason
	CancellationComment string

	KaspiCreatedAt      time.Time
	PlannedDeliveryDate *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TransitionPayload carries the guard fields for a user-initiated transition.
type TransitionPayload struct {
	NumberOfSpace       int                `json:"number_of_space"`
	SecurityCode        string             `json:"security_code"`
	CancellationReason  CancellationReason `json:"cancellation_reason"`
	CancellationComment string             `json:"cancellation_comment"`
}

// ValidateTransition checks the adjacency list first, then the target's guard.
// Off-list edges fail with ErrIllegalStatusEdge regardless of payload; guard
// violations fail with ErrInvalidTransition.
func ValidateTransition(from, to OrderStatus, p TransitionPayload) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", xerrors.ErrIllegalStatusEdge, from, to)
	}
	switch to {
	case StatusAssembled:
		if p.NumberOfSpace < 1 {
			return fmt.Errorf("%w: number_of_space must be >= 1", xerrors.ErrInvalidTransition)
		}
	case StatusCompleted:
		if p.SecurityCode == "" {
			return fmt.Errorf("%w: security_code is required", xerrors.ErrInvalidTransition)
		}
	case StatusCancelled:
		if !p.CancellationReason.Valid() {
			return fmt.Errorf("%w: unknown cancellation_reason %q", xerrors.ErrInvalidTransition, p.CancellationReason)
		}
		if len(p.CancellationComment) > maxCancellationComment {
			return fmt.Errorf("%w: cancellation_comment exceeds %d characters", xerrors.ErrInvalidTransition, maxCancellationComment)
		}
	}
	return nil
}

// ApplyTransition mutates the order with the new status and whatever guard
// fields that status persists. Callers validate first.
func (o *Order) ApplyTransition(to OrderStatus, p TransitionPayload) {
	o.Status = to
	switch to {
	case StatusAssembled:
		o.NumberOfSpace = p.NumberOfSpace
	case StatusCompleted:
		o.SecurityCode = p.SecurityCode
	case StatusCancelled:
		o.CancellationReason = p.CancellationReason
		o.CancellationComment = p.CancellationComment
	}
}

// ReconcileResult summarizes one batch upsert inside a sync job.
type ReconcileResult struct {
	Created int
	Updated int
	// StatusChanged holds orders (post-upsert state) that are new or whose
	// status moved during the batch; these drive notification dispatch.
	StatusChanged []*Order
	// NewCodes marks which of StatusChanged were first seen in this batch.
	NewCodes map[string]bool
}
