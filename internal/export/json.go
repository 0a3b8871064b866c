package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/notebridge/internal/storage"
)

type jsonExport struct {
	ExportedAt time.Time          `json:"exported_at"`
	Unread     int                `json:"unread"`
	Items      []jsonNotification `json:"items"`
}

type jsonNotification struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Age       string     `json:"age"`
}

// JSON formats notifications as a JSON document.
func JSON(recs []storage.NotificationRecord, now time.Time) (string, error) {
	out := jsonExport{ExportedAt: now, Items: make([]jsonNotification, 0, len(recs))}
	for _, r := range recs {
		if r.ReadAt == nil {
			out.Unread++
		}
		out.Items = append(out.Items, jsonNotification{
			ID:        r.ID,
			Title:     r.Title,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
			ReadAt:    r.ReadAt,
			Age:       relativeTime(now.Sub(r.CreatedAt)),
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
