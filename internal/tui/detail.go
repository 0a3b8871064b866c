package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/notebridge/internal/server"
	"github.com/lotas/notebridge/internal/storage"
	"github.com/lotas/notebridge/internal/types"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

func statusBadge(s types.Status) string {
	switch s {
	case types.StatusProcessing:
		return busyStyle.Render("processing")
	case types.StatusCompleted:
		return okStyle.Render("completed")
	case types.StatusError:
		return errStyle.Render("error")
	}
	return dimStyle.Render("idle")
}

// wrapURL breaks a long URL into lines of at most width bytes.
func wrapURL(url string, width int) string {
	if width < 10 {
		return url
	}
	var b strings.Builder
	for len(url) > width {
		b.WriteString(url[:width] + "\n")
		url = url[width:]
	}
	b.WriteString(url)
	return b.String()
}

// renderState renders the operation state. The summary body is rendered
// separately into the viewport.
func renderState(st types.OperationState, width int) string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("Status") + "\n")
	kind := "summary"
	if st.IsExtractOnly {
		kind = "extract"
	}
	b.WriteString(statusBadge(st.Status))
	if st.Status != types.StatusNone {
		b.WriteString(dimStyle.Render(" · " + kind))
	}
	b.WriteString("\n\n")

	if st.Title != "" {
		b.WriteString(labelStyle.Render("Title") + "\n")
		title := st.Title
		if width > 3 && len(title) > width-2 {
			title = title[:width-3] + "…"
		}
		b.WriteString(title + "\n\n")
	}
	if st.URL != "" {
		b.WriteString(labelStyle.Render("URL") + "\n")
		b.WriteString(wrapURL(st.URL, width-2) + "\n\n")
	}
	if st.Error != "" {
		b.WriteString(labelStyle.Render("Error") + "\n")
		b.WriteString(errStyle.Render(st.Error) + "\n\n")
	}
	if st.Summary != "" {
		b.WriteString(labelStyle.Render("Result") + "\n")
	}
	return b.String()
}

func renderPeers(peers []server.PeerInfo, now time.Time) string {
	if len(peers) == 0 {
		return dimStyle.Render("No extension contexts connected.")
	}
	var b strings.Builder
	for _, p := range peers {
		name := string(p.Kind)
		if p.Kind == server.KindContent {
			name = fmt.Sprintf("content (tab %d)", p.TabID)
		}
		age := now.Sub(p.ConnectedAt).Truncate(time.Second)
		b.WriteString(fmt.Sprintf("%-20s %s\n", name, dimStyle.Render("connected "+age.String()+" ago")))
	}
	return b.String()
}

func renderInbox(recs []storage.NotificationRecord, width int) string {
	if len(recs) == 0 {
		return dimStyle.Render("No notifications.")
	}
	var b strings.Builder
	for _, r := range recs {
		marker := "●"
		if r.ReadAt != nil {
			marker = " "
		}
		b.WriteString(marker + " " + labelStyle.Render(r.Title) + " " + dimStyle.Render(r.CreatedAt.Format("15:04:05")) + "\n")
		msg := strings.ReplaceAll(r.Message, "\n", " ")
		if width > 6 && len(msg) > width-4 {
			msg = msg[:width-5] + "…"
		}
		b.WriteString("  " + msg + "\n")
	}
	return b.String()
}
