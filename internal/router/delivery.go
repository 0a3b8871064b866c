package router

import (
	"context"
	"errors"
	"sync"

	"github.com/lotas/notebridge/internal/applog"
	"github.com/lotas/notebridge/internal/server"
)

// DeliveryState is where a Delivery ended up.
type DeliveryState int

const (
	Pending DeliveryState = iota
	Delivered
	FallbackUsed
	Dropped
)

func (s DeliveryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Delivered:
		return "delivered"
	case FallbackUsed:
		return "fallback"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// ErrDeliveryUsed is returned when a Delivery is delivered twice.
var ErrDeliveryUsed = errors.New("delivery already used")

// Delivery sends one async result to an extension context that may no
// longer exist. Push is tried first; Fallback, if set, runs when Push fails.
type Delivery struct {
	Name     string
	Push     func(ctx context.Context, msg any) error
	Fallback func(ctx context.Context) error

	mu      sync.Mutex
	claimed bool
	state   DeliveryState
}

// State returns the current state. It is Pending while a push is in flight.
func (d *Delivery) State() DeliveryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Deliver runs the delivery. It may be called once.
func (d *Delivery) Deliver(ctx context.Context, msg any) (DeliveryState, error) {
	d.mu.Lock()
	if d.claimed {
		st := d.state
		d.mu.Unlock()
		return st, ErrDeliveryUsed
	}
	// Claimed before any IO; State stays Pending until the push settles.
	d.claimed = true
	d.mu.Unlock()

	st := d.run(ctx, msg)

	d.mu.Lock()
	d.state = st
	d.mu.Unlock()
	return st, nil
}

func (d *Delivery) run(ctx context.Context, msg any) DeliveryState {
	err := d.Push(ctx, msg)
	if err == nil {
		applog.Info("router.delivered", "push", d.Name)
		return Delivered
	}
	if errors.Is(err, server.ErrNoListener) {
		applog.Info("router.no_listener", "push", d.Name)
	} else {
		applog.Warn("router.push_failed", "push", d.Name, "err", err.Error())
	}

	if d.Fallback == nil {
		applog.Info("router.dropped", "push", d.Name)
		return Dropped
	}
	if err := d.Fallback(ctx); err != nil {
		applog.Error("router.fallback_failed", err, "push", d.Name)
		return Dropped
	}
	applog.Info("router.fallback", "push", d.Name)
	return FallbackUsed
}
