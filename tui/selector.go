package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/selector"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type selectorInitializedMsg struct {
	err error
}

type selectionDoneMsg struct {
	err error
}

// SelectorModel draws an institution selector. Arrow keys change the country and the cursor, typing searches and enter selects.
type SelectorModel struct {
	*selector.Widget
	ctx      context.Context
	title    string
	view     *selector.ViewRenderer
	redirect *atomic.String
	cursor   int
	inputErr error
}

var _ Model = &SelectorModel{}

// NewSelectorModel creates a SelectorModel for a selector construction context
func NewSelectorModel(ctx context.Context, title string, c selector.Context, backend selector.Backend, logger *zap.Logger) *SelectorModel {
	m := &SelectorModel{
		ctx:      ctx,
		title:    title,
		view:     selector.NewViewRenderer(),
		redirect: atomic.NewString(""),
	}
	m.Widget = selector.New(c, backend, m.view, m, logger)
	return m
}

// Replace implements selector.Navigator
func (m *SelectorModel) Replace(url string) {
	m.redirect.Store(url)
}

// Redirect returns the URL the selector navigated to, if any
func (m *SelectorModel) Redirect() string {
	return m.redirect.Load()
}

// Init implements tea.Model
func (m *SelectorModel) Init() tea.Cmd {
	return func() tea.Msg {
		return selectorInitializedMsg{err: m.Initialize(m.ctx)}
	}
}

// Update implements tea.Model
func (m *SelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case selectorInitializedMsg:
		m.inputErr = msg.err
		return m, nil
	case selectionDoneMsg:
		if msg.err == nil {
			return m, closeWith(m.Redirect())
		}
		if m.Err() != msg.err {
			// Failed errors are drawn from the view
			m.inputErr = msg.err
		}
		return m, nil
	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m *SelectorModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.inputErr = nil
	switch msg.Type {
	case tea.KeyEsc:
		return m, closeWith("")
	case tea.KeyLeft:
		m.cycleCountry(-1)
	case tea.KeyRight:
		m.cycleCountry(1)
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case tea.KeyCtrlR:
		m.inputErr = m.Retry()
	case tea.KeyEnter:
		visible := m.visible()
		if m.cursor >= len(visible) {
			return m, nil
		}
		id := visible[m.cursor].ID
		return m, func() tea.Msg {
			return selectionDoneMsg{err: m.Select(m.ctx, id)}
		}
	case tea.KeyBackspace:
		text := []rune(m.SearchText())
		if len(text) > 0 {
			m.search(string(text[:len(text)-1]))
		}
	case tea.KeyRunes, tea.KeySpace:
		m.search(m.SearchText() + string(msg.Runes))
	}
	return m, nil
}

func (m *SelectorModel) search(text string) {
	m.Search(text)
	m.cursor = 0
}

func (m *SelectorModel) cycleCountry(step int) {
	countries := m.view.Snapshot().Countries
	if len(countries) == 0 {
		return
	}
	index := -1
	for i, country := range countries {
		if country.Code == m.Country() {
			index = i
		}
	}
	if index == -1 && step < 0 {
		index = 0
	}
	index = (index + step + len(countries)) % len(countries)
	m.SelectCountry(countries[index].Code)
	m.cursor = 0
}

func (m *SelectorModel) visible() []institution.Institution {
	return m.view.Snapshot().Visible()
}

// View implements tea.Model
func (m *SelectorModel) View() string {
	view := m.view.Snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")

	country := "none"
	for _, c := range view.Countries {
		if c.Code == view.SelectedCountry {
			country = c.Name
		}
	}
	fmt.Fprintf(&b, "Country: ◀ %s ▶\n", selectedStyle.Render(country))
	fmt.Fprintf(&b, "Search: %s█\n\n", m.SearchText())

	if view.Busy {
		b.WriteString(busyStyle.Render("Connecting to your bank..."))
		b.WriteString("\n")
	} else {
		visible := view.Visible()
		if len(visible) == 0 {
			b.WriteString(busyStyle.Render("No banks match"))
			b.WriteString("\n")
		}
		for i, inst := range visible {
			name := inst.Name
			if inst.BIC != "" {
				name += " (" + inst.BIC + ")"
			}
			b.WriteString(cursorLine(i == m.cursor, name))
			b.WriteString("\n")
		}
	}

	if view.Error != "" {
		b.WriteString("\n" + errorStyle.Render(view.Error) + "\n")
	}
	if m.inputErr != nil {
		b.WriteString("\n" + errorStyle.Render(m.inputErr.Error()) + "\n")
	}
	help := "enter select • ←/→ country • ↑/↓ move • esc close"
	if m.State() == selector.Failed {
		help = "ctrl+r try again • " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}
