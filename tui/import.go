package tui

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/statement"
	"github.com/pkg/errors"
)

type importLoadedMsg struct {
	journals []provider.Journal
	err      error
}

type importDoneMsg struct {
	added int
	err   error
}

// ImportModel is the statement import dialog: pick a journal, then type the path of an OFX file
type ImportModel struct {
	ctx        context.Context
	providers  *provider.Store
	statements *statement.Store

	journals []provider.Journal
	cursor   int
	path     string
	running  bool
	err      error
}

var _ Model = &ImportModel{}

// NewImportModel creates an ImportModel
func NewImportModel(ctx context.Context, providers *provider.Store, statements *statement.Store) *ImportModel {
	return &ImportModel{ctx: ctx, providers: providers, statements: statements}
}

// Initialize implements action.Component
func (m *ImportModel) Initialize(ctx context.Context) error {
	journals, err := m.providers.Journals()
	m.journals = journals
	return err
}

// Render implements action.Component. The terminal redraws from View.
func (m *ImportModel) Render() {}

// HandleSelection imports the file at path into the selected journal
func (m *ImportModel) HandleSelection(ctx context.Context, path string) error {
	_, err := m.importFile(path)
	return err
}

func (m *ImportModel) importFile(path string) (int, error) {
	if m.cursor >= len(m.journals) {
		return 0, errors.New("Select a journal")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	statements, err := statement.ReadOFX(f)
	if err != nil {
		return 0, err
	}
	var lines []statement.Line
	for _, stmt := range statements {
		lines = append(lines, stmt.Lines...)
	}
	return m.statements.Add(m.journals[m.cursor].ID, lines)
}

// Init implements tea.Model
func (m *ImportModel) Init() tea.Cmd {
	return func() tea.Msg {
		journals, err := m.providers.Journals()
		return importLoadedMsg{journals: journals, err: err}
	}
}

// Update implements tea.Model
func (m *ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case importLoadedMsg:
		m.journals, m.err = msg.journals, msg.err
	case importDoneMsg:
		m.running = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		return m, closeWith(fmt.Sprintf("Imported %d statement lines", msg.added))
	case tea.KeyMsg:
		if m.running {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyEsc:
			return m, closeWith("")
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown:
			if m.cursor < len(m.journals)-1 {
				m.cursor++
			}
		case tea.KeyBackspace:
			if len(m.path) > 0 {
				m.path = m.path[:len(m.path)-1]
			}
		case tea.KeyRunes, tea.KeySpace:
			m.path += string(msg.Runes)
		case tea.KeyEnter:
			m.running = true
			m.err = nil
			path := strings.TrimSpace(m.path)
			return m, func() tea.Msg {
				added, err := m.importFile(path)
				return importDoneMsg{added: added, err: err}
			}
		}
	}
	return m, nil
}

// View implements tea.Model
func (m *ImportModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Import Bank Statement"))
	b.WriteString("\n")
	for i, journal := range m.journals {
		b.WriteString(cursorLine(i == m.cursor, journal.DisplayName()))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nOFX file: %s█\n", m.path)
	if m.running {
		b.WriteString(busyStyle.Render("Importing..."))
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	}
	b.WriteString(helpStyle.Render("enter import • ↑/↓ journal • esc close"))
	return b.String()
}
