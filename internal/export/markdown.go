// Package export renders the notification inbox for the command line.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/notebridge/internal/storage"
)

// Markdown formats notifications as a markdown document, in the given order.
func Markdown(recs []storage.NotificationRecord, now time.Time) string {
	var b strings.Builder

	unread := 0
	for _, r := range recs {
		if r.ReadAt == nil {
			unread++
		}
	}
	noun := "notifications"
	if len(recs) == 1 {
		noun = "notification"
	}
	fmt.Fprintf(&b, "# Notifications (%d %s, %d unread)\n", len(recs), noun, unread)
	fmt.Fprintf(&b, "> Exported %s\n", now.Format("2006-01-02 15:04"))

	for _, r := range recs {
		title := r.Title
		if title == "" {
			title = "Notification"
		}
		mark := ""
		if r.ReadAt == nil {
			mark = " (unread)"
		}
		fmt.Fprintf(&b, "\n## %s%s\n\n_%s_\n", title, mark, relativeTime(now.Sub(r.CreatedAt)))
		if msg := strings.TrimSpace(r.Message); msg != "" {
			fmt.Fprintf(&b, "\n%s\n", msg)
		}
	}

	return b.String()
}

func relativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
