package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/dashboard"
)

type dashboardLoadedMsg struct {
	err error
}

type clickedMsg struct {
	action *action.Action
	err    error
}

// DashboardModel draws the journal cards and the dashboard buttons. Clicking a button opens its action.
type DashboardModel struct {
	*dashboard.Dashboard
	ctx    context.Context
	cursor int
	err    error

	mu         sync.Mutex
	view       dashboard.View
	dispatched *action.Action
}

// NewDashboardModel creates a DashboardModel
func NewDashboardModel(ctx context.Context, controller dashboard.Controller) *DashboardModel {
	m := &DashboardModel{ctx: ctx}
	m.Dashboard = dashboard.New(controller, m, dashboard.DispatcherFunc(m.dispatch))
	return m
}

// RenderDashboard implements dashboard.Renderer
func (m *DashboardModel) RenderDashboard(v dashboard.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = v
}

func (m *DashboardModel) dispatch(ctx context.Context, a action.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = &a
	return nil
}

func (m *DashboardModel) snapshot() dashboard.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Init implements tea.Model
func (m *DashboardModel) Init() tea.Cmd {
	return func() tea.Msg {
		return dashboardLoadedMsg{err: m.Initialize(m.ctx)}
	}
}

// Update implements tea.Model
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardLoadedMsg:
		m.err = msg.err
	case clickedMsg:
		m.err = msg.err
		if msg.err == nil && msg.action != nil {
			return m, open(*msg.action)
		}
	case tea.KeyMsg:
		buttons := m.snapshot().Buttons
		switch msg.String() {
		case "esc", "q":
			return m, closeWith("")
		case "r":
			return m, m.Init()
		case "left", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "right", "down":
			if m.cursor < len(buttons)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor >= len(buttons) {
				return m, nil
			}
			name := buttons[m.cursor].Name
			return m, func() tea.Msg {
				m.mu.Lock()
				m.dispatched = nil
				m.mu.Unlock()
				err := m.HandleSelection(m.ctx, name)
				m.mu.Lock()
				defer m.mu.Unlock()
				return clickedMsg{action: m.dispatched, err: err}
			}
		}
	}
	return m, nil
}

// View implements tea.Model
func (m *DashboardModel) View() string {
	view := m.snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Bank journals"))
	b.WriteString("\n")
	for _, card := range view.Cards {
		account := card.BankAccount
		if account == "" {
			account = "No bank account"
		}
		b.WriteString(boxStyle.Render(fmt.Sprintf("%s\n%s\n%d statement lines", selectedStyle.Render(card.Name), account, card.Lines)))
		b.WriteString("\n")
	}
	var buttons []string
	for i, button := range view.Buttons {
		label := "[ " + button.Label + " ]"
		if i == m.cursor {
			label = selectedStyle.Render(label)
		}
		buttons = append(buttons, label)
	}
	b.WriteString(strings.Join(buttons, " "))
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}
	b.WriteString(helpStyle.Render("enter click • ←/→ move • r refresh • q quit"))
	return b.String()
}
