package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lotas/notebridge/internal/storage"
)

// Inbox keeps notifications in sqlite so they survive until read, even if
// the desktop notification was missed.
type Inbox struct {
	DB *sql.DB

	// Published receives every stored notification, if set. Sends never
	// block.
	Published chan<- storage.NotificationRecord
}

func (i *Inbox) Notify(ctx context.Context, n Notification) error {
	rec := storage.NotificationRecord{
		ID:        uuid.NewString(),
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: time.Now(),
	}
	if err := storage.InsertNotification(ctx, i.DB, rec); err != nil {
		return err
	}
	if i.Published != nil {
		select {
		case i.Published <- rec:
		default:
		}
	}
	return nil
}
