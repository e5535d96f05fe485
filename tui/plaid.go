package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/plaidlogin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type plaidDoneMsg struct {
	err error
}

// PlaidModel runs Plaid Link. Without a Link, the user completes Link elsewhere and pastes the public token.
type PlaidModel struct {
	*plaidlogin.Login
	ctx       context.Context
	linkToken string
	prompt    bool
	input     string
	running   bool

	mu     sync.Mutex
	status plaidlogin.Status
	err    error
}

var _ Model = &PlaidModel{}

// NewPlaidModel creates a PlaidModel for a plaid_login action. A nil link prompts for the public token.
func NewPlaidModel(ctx context.Context, a action.Action, link plaidlogin.Link, backend plaidlogin.Backend, logger *zap.Logger) (*PlaidModel, error) {
	m := &PlaidModel{
		ctx:       ctx,
		linkToken: a.Params["token"],
		prompt:    link == nil,
	}
	if link == nil {
		link = plaidlogin.LinkFunc(m.typedToken)
	}
	login, err := plaidlogin.New(a, link, backend, m, logger)
	if err != nil {
		return nil, err
	}
	m.Login = login
	return m, nil
}

func (m *PlaidModel) typedToken(ctx context.Context, linkToken string) (string, error) {
	token := strings.TrimSpace(m.input)
	if token == "" {
		return "", errors.New("Public token is required")
	}
	return token, nil
}

// RenderStatus implements plaidlogin.Renderer
func (m *PlaidModel) RenderStatus(status plaidlogin.Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status, m.err = status, err
}

func (m *PlaidModel) run(initialize bool) tea.Cmd {
	m.running = true
	return func() tea.Msg {
		if initialize {
			return plaidDoneMsg{err: m.Initialize(m.ctx)}
		}
		return plaidDoneMsg{err: m.HandleSelection(m.ctx, "")}
	}
}

// Init implements tea.Model
func (m *PlaidModel) Init() tea.Cmd {
	if m.prompt {
		return nil
	}
	return m.run(true)
}

// Update implements tea.Model
func (m *PlaidModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case plaidDoneMsg:
		m.running = false
		if msg.err == nil {
			return m, closeWith("Linked")
		}
		return m, nil
	case tea.KeyMsg:
		if m.running {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEsc:
			return m, closeWith("")
		case tea.KeyEnter:
			if m.Status() == plaidlogin.Failed {
				return m, m.run(false)
			}
			return m, m.run(true)
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}
	}
	return m, nil
}

// View implements tea.Model
func (m *PlaidModel) View() string {
	m.mu.Lock()
	status, err := m.status, m.err
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Plaid"))
	b.WriteString("\n")
	if m.prompt {
		fmt.Fprintf(&b, "Open Plaid Link with token %s\n", selectedStyle.Render(m.linkToken))
		fmt.Fprintf(&b, "Public token: %s█\n", m.input)
	}
	switch {
	case m.running:
		b.WriteString(busyStyle.Render("Linking your account..."))
	case status == plaidlogin.Linked:
		b.WriteString(selectedStyle.Render("Linked"))
	case status == plaidlogin.Failed:
		b.WriteString(errorStyle.Render(err.Error()))
		b.WriteString(helpStyle.Render("enter try again • esc close"))
	default:
		b.WriteString(helpStyle.Render("enter link • esc close"))
	}
	return b.String()
}
