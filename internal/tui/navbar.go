package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type ViewType int

const (
	ViewState ViewType = iota
	ViewPeers
	ViewInbox
)

var viewNames = []string{"State", "Peers", "Inbox"}

func renderNavbar(active ViewType, counts [3]int, status string, width int) string {
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")).Underline(true)
	inactiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	var tabs string
	for i, name := range viewNames {
		if i > 0 {
			tabs += inactiveStyle.Render(" │ ")
		}
		countSuffix := ""
		if counts[i] > 0 {
			countSuffix = fmt.Sprintf(" (%d)", counts[i])
		}
		if ViewType(i) == active {
			tabs += activeStyle.Render(name + countSuffix)
		} else {
			tabs += inactiveStyle.Render(name) + countStyle.Render(countSuffix)
		}
	}

	left := " " + tabs
	right := statusStyle.Render(status)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + right + " "
}
