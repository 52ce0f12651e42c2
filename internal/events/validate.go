package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRejected marks an inbound message that failed validation. Callers on a
// live connection drop these; they are never surfaced to other subscribers.
var ErrRejected = errors.New("event rejected")

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
)

type fieldSpec struct {
	name     string
	kind     fieldKind
	required bool
	// enum, when non-empty, restricts a string field to the listed values.
	enum []string
}

// registry fixes the payload shape per category. Keepalive categories are
// absent on purpose: they bypass payload validation beyond their own shape.
var registry = map[string][]fieldSpec{
	CatSyncCompleted: {
		{name: "new_orders", kind: kindNumber, required: true},
		{name: "updated_orders", kind: kindNumber, required: true},
		{name: "notifications_sent", kind: kindNumber, required: true},
	},
	CatSyncError: {
		{name: "error", kind: kindString, required: true},
	},
	CatOrderCreated:   orderFields,
	CatOrderUpdated:   orderFields,
	CatOrderCompleted: orderFields,
	CatOrderCancelled: orderFields,
}

var orderFields = []fieldSpec{
	{name: "order_id", kind: kindNumber, required: true},
	{name: "order_code", kind: kindString, required: true},
	{name: "shop_id", kind: kindString, required: true},
	{name: "total_amount", kind: kindNumber, required: true},
	{name: "status", kind: kindString, required: true, enum: []string{
		"APPROVED_BY_BANK", "ACCEPTED_BY_MERCHANT", "ASSEMBLED",
		"COMPLETED", "CANCELLING", "CANCELLED", "RETURNED",
	}},
	{name: "action", kind: kindString, required: false},
}

type rawEnvelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	ShopID    string          `json:"shop_id"`
	Data      json.RawMessage `json:"data"`
}

// Validate checks a raw inbound message against the registry and returns a
// typed Event. Unknown or malformed categories and any field-level mismatch
// return ErrRejected; the error text carries the reason for debug logging
// only and must never reach the remote peer.
func Validate(raw []byte) (Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: malformed envelope: %v", ErrRejected, err)
	}
	if env.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrRejected)
	}

	switch env.Type {
	case CatPing, CatPong, CatConnected:
		return Event{Type: env.Type, Timestamp: env.Timestamp, Data: KeepalivePayload{}}, nil
	}

	specs, ok := registry[env.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown category %q", ErrRejected, env.Type)
	}

	var fields map[string]any
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		return Event{}, fmt.Errorf("%w: malformed payload for %s", ErrRejected, env.Type)
	}
	for _, spec := range specs {
		v, present := fields[spec.name]
		if !present {
			if spec.required {
				return Event{}, fmt.Errorf("%w: %s missing field %q", ErrRejected, env.Type, spec.name)
			}
			continue
		}
		if err := checkField(spec, v); err != nil {
			return Event{}, fmt.Errorf("%w: %s field %q: %v", ErrRejected, env.Type, spec.name, err)
		}
	}

	payload, err := decodePayload(env.Type, env.Data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrRejected, env.Type, err)
	}
	return Event{Type: env.Type, Timestamp: env.Timestamp, ShopID: env.ShopID, Data: payload}, nil
}

func checkField(spec fieldSpec, v any) error {
	switch spec.kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		if len(spec.enum) > 0 {
			for _, allowed := range spec.enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("value %q not in allowed set", s)
		}
	case kindNumber:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
	}
	return nil
}

func decodePayload(eventType string, data json.RawMessage) (Payload, error) {
	switch eventType {
	case CatSyncCompleted:
		var p SyncCompletedPayload
		return p, json.Unmarshal(data, &p)
	case CatSyncError:
		var p SyncErrorPayload
		return p, json.Unmarshal(data, &p)
	case CatOrderCreated, CatOrderUpdated, CatOrderCompleted, CatOrderCancelled:
		var p OrderEventPayload
		return p, json.Unmarshal(data, &p)
	}
	return nil, fmt.Errorf("no decoder for %q", eventType)
}
