// Package tui is the terminal monitor shown while the daemon runs: the live
// operation state, connected extension contexts and recent notifications.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/notebridge/internal/opstate"
	"github.com/lotas/notebridge/internal/server"
	"github.com/lotas/notebridge/internal/storage"
	"github.com/lotas/notebridge/internal/types"
)

// PeerSource is the part of the server the monitor watches.
type PeerSource interface {
	Events() <-chan server.PeerEvent
	Peers() []server.PeerInfo
}

// Sources wires the monitor to the running daemon.
type Sources struct {
	Port     int
	State    *opstate.Store
	Peers    PeerSource
	Notices  <-chan storage.NotificationRecord
	Recent   []storage.NotificationRecord
	Clear    func(ctx context.Context) error
	MarkRead func(ctx context.Context) error
}

// --- Messages ---

type stateMsg struct{ st types.OperationState }
type peerMsg struct{ ev server.PeerEvent }
type noticeMsg struct{ rec storage.NotificationRecord }
type actionDoneMsg struct {
	what string
	err  error
}
type clockMsg time.Time

const maxInbox = 50

func waitState(ch <-chan types.OperationState) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return stateMsg{st: st}
	}
}

func waitPeer(ch <-chan server.PeerEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return peerMsg{ev: ev}
	}
}

func waitNotice(ch <-chan storage.NotificationRecord) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		rec, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg{rec: rec}
	}
}

func clock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func runAction(what string, fn func(ctx context.Context) error) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return actionDoneMsg{what: what, err: fn(ctx)}
	}
}

// --- Model ---

type Model struct {
	src    Sources
	states <-chan types.OperationState
	cancel func()

	view    ViewType
	st      types.OperationState
	peers   []server.PeerInfo
	inbox   []storage.NotificationRecord
	unread  int
	flash   string
	now     time.Time
	spinner spinner.Model
	body    viewport.Model
	width   int
	height  int
}

func NewModel(src Sources) Model {
	states, cancel := src.State.Subscribe()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = busyStyle

	m := Model{
		src:     src,
		states:  states,
		cancel:  cancel,
		st:      src.State.Get(),
		peers:   src.Peers.Peers(),
		inbox:   append([]storage.NotificationRecord(nil), src.Recent...),
		now:     time.Now(),
		spinner: sp,
		body:    viewport.New(80, 10),
	}
	for _, r := range m.inbox {
		if r.ReadAt == nil {
			m.unread++
		}
	}
	m.body.SetContent(m.st.Summary)
	return m
}

// Close stops the state subscription.
func (m Model) Close() {
	m.cancel()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitState(m.states),
		waitPeer(m.src.Peers.Events()),
		waitNotice(m.src.Notices),
		clock(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeBody()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.view = (m.view + 1) % ViewType(len(viewNames))
		case "1", "2", "3":
			m.view = ViewType(msg.String()[0] - '1')
		case "c":
			if m.view == ViewState && m.st.Status != types.StatusProcessing {
				return m, runAction("clear", m.src.Clear)
			}
		case "r":
			if m.view == ViewInbox && m.unread > 0 {
				return m, runAction("read", m.src.MarkRead)
			}
		default:
			if m.view == ViewState {
				var cmd tea.Cmd
				m.body, cmd = m.body.Update(msg)
				return m, cmd
			}
		}
		return m, nil

	case stateMsg:
		m.st = msg.st
		m.body.SetContent(lipgloss.NewStyle().Width(m.body.Width).Render(m.st.Summary))
		m.body.GotoTop()
		m.resizeBody()
		return m, waitState(m.states)

	case peerMsg:
		m.peers = m.src.Peers.Peers()
		return m, waitPeer(m.src.Peers.Events())

	case noticeMsg:
		m.inbox = append([]storage.NotificationRecord{msg.rec}, m.inbox...)
		if len(m.inbox) > maxInbox {
			m.inbox = m.inbox[:maxInbox]
		}
		m.unread++
		return m, waitNotice(m.src.Notices)

	case actionDoneMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s failed: %v", msg.what, msg.err)
			return m, nil
		}
		m.flash = ""
		if msg.what == "read" {
			now := time.Now()
			for i := range m.inbox {
				if m.inbox[i].ReadAt == nil {
					m.inbox[i].ReadAt = &now
				}
			}
			m.unread = 0
		}
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		return m, clock()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// resizeBody fits the summary viewport under the state header.
func (m *Model) resizeBody() {
	if m.width == 0 {
		return
	}
	header := lipgloss.Height(renderState(m.st, m.width-4))
	h := m.height - 6 - header
	if h < 3 {
		h = 3
	}
	m.body.Width = m.width - 4
	m.body.Height = h
}

func (m Model) View() string {
	if m.width == 0 {
		return fmt.Sprintf("\n  Listening on 127.0.0.1:%d...\n", m.src.Port)
	}

	status := fmt.Sprintf("127.0.0.1:%d", m.src.Port)
	if len(m.peers) == 0 {
		status += " ○ waiting"
	} else {
		status += " ● connected"
	}
	if m.st.Status == types.StatusProcessing {
		status = m.spinner.View() + " " + status
	}
	counts := [3]int{0, len(m.peers), m.unread}
	top := renderNavbar(m.view, counts, status, m.width)

	var content string
	switch m.view {
	case ViewState:
		content = renderState(m.st, m.width-4)
		if m.st.Summary != "" {
			content += m.body.View()
		}
	case ViewPeers:
		content = renderPeers(m.peers, m.now)
	case ViewInbox:
		content = renderInbox(m.inbox, m.width-4)
	}

	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.width - 2).
		Height(m.height - 4).
		Render(content)

	bottomStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	help := "tab/1-3 view · "
	switch m.view {
	case ViewState:
		help += "↑↓ scroll · c clear · "
	case ViewInbox:
		help += "r mark read · "
	}
	help += "q quit"
	if m.flash != "" {
		help = errStyle.Render(m.flash) + "  " + help
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, pane, bottomStyle.Render(help))
}
