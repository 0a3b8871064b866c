// Package notify is the fallback channel used when no extension context is
// listening: desktop notifications and a durable inbox.
package notify

import (
	"context"
	"errors"
)

// Notification is a user-facing message.
type Notification struct {
	Title   string
	Message string
}

// Notifier shows a notification somewhere the user will see it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi sends to every notifier and succeeds if at least one did.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) && len(m) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
