package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler consumes one event. Returning an error (or panicking) is isolated
// to this handler; remaining handlers for the event still run.
type Handler func(Event) error

// Dispatcher routes validated events to subscribers by exact category.
// Handlers run synchronously in registration order, so per-category emission
// order is the producer's order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one exact category.
func (d *Dispatcher) Subscribe(category string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[category] = append(d.handlers[category], h)
}

// Dispatch invokes every handler registered for the event's category. Events
// with no subscribers are dropped, not errors.
func (d *Dispatcher) Dispatch(evt Event) {
	d.mu.RLock()
	hs := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, h := range hs {
		d.invoke(h, evt)
	}
}

func (d *Dispatcher) invoke(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("category", evt.Type),
				zap.Any("panic", r))
		}
	}()
	if err := h(evt); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("category", evt.Type),
			zap.Error(err))
	}
}
