package router

import (
	"fmt"

	"github.com/lotas/notebridge/internal/handler"
	"github.com/lotas/notebridge/internal/notify"
)

const excerptLen = 140

func pageName(title string) string {
	if title == "" {
		return "this page"
	}
	return fmt.Sprintf("%q", title)
}

func kindWord(extractOnly bool) string {
	if extractOnly {
		return "Extract"
	}
	return "Summary"
}

// contentSaved is shown after a direct save.
func contentSaved(req handler.ContentRequest) notify.Notification {
	return notify.Notification{
		Title:   kindWord(req.IsExtractOnly) + " saved",
		Message: fmt.Sprintf("%s of %s was saved to your notes.", kindWord(req.IsExtractOnly), pageName(req.Title)),
	}
}

// contentReady is shown when the popup closed before the result arrived.
func contentReady(req handler.ContentRequest, summary string) notify.Notification {
	msg := fmt.Sprintf("%s of %s is ready. Open the popup to review and save it.", kindWord(req.IsExtractOnly), pageName(req.Title))
	if ex := notify.Excerpt(summary, excerptLen); ex != "" {
		msg += "\n\n" + ex
	}
	return notify.Notification{Title: kindWord(req.IsExtractOnly) + " ready", Message: msg}
}

func contentFailed(req handler.ContentRequest, errMsg string) notify.Notification {
	verb := "Summarizing"
	if req.IsExtractOnly {
		verb = "Extracting"
	}
	return notify.Notification{
		Title:   kindWord(req.IsExtractOnly) + " failed",
		Message: fmt.Sprintf("%s %s failed: %s", verb, pageName(req.Title), errMsg),
	}
}

func saveFailed(errMsg string) notify.Notification {
	return notify.Notification{Title: "Save failed", Message: errMsg}
}

func sendFailed(errMsg string) notify.Notification {
	return notify.Notification{Title: "Send failed", Message: errMsg}
}

func uploadFailed(errMsg string) notify.Notification {
	return notify.Notification{Title: "Upload failed", Message: errMsg}
}

func relayed(m *ShowNotification) notify.Notification {
	title := m.Title
	if title == "" {
		title = "Notification"
	}
	return notify.Notification{Title: title, Message: m.Message}
}
