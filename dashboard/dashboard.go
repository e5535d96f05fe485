// Package dashboard shows the bank journals and their statement actions
package dashboard

import (
	"context"
	"sync"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/statement"
	"github.com/pkg/errors"
)

// ImportButton is the name of the statement upload button
const ImportButton = "import_statement"

// ErrUnknownButton is returned when clicking a button the dashboard doesn't show
var ErrUnknownButton = errors.New("Unknown dashboard button")

// Card summarizes a journal
type Card struct {
	JournalID   string   `json:"journal_id"`
	Name        string   `json:"name"`
	BankAccount string   `json:"bank_account,omitempty"`
	Lines       int      `json:"lines"`
	Providers   []string `json:"providers,omitempty"`
}

// Button is a dashboard control
type Button struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// View is the dashboard's content
type View struct {
	Cards   []Card   `json:"cards"`
	Buttons []Button `json:"buttons"`
}

// Dispatcher runs the actions triggered from the dashboard
type Dispatcher interface {
	DoAction(ctx context.Context, a action.Action) error
}

// DispatcherFunc adapts a func to Dispatcher
type DispatcherFunc func(ctx context.Context, a action.Action) error

// DoAction implements Dispatcher
func (d DispatcherFunc) DoAction(ctx context.Context, a action.Action) error {
	return d(ctx, a)
}

// Controller loads the dashboard and handles its buttons
type Controller interface {
	View(ctx context.Context) (View, error)
	Click(ctx context.Context, button string, dispatcher Dispatcher) error
}

// JournalController shows a card per journal
type JournalController struct {
	providers  *provider.Store
	statements *statement.Store
}

// NewJournalController creates a JournalController
func NewJournalController(providers *provider.Store, statements *statement.Store) *JournalController {
	return &JournalController{providers: providers, statements: statements}
}

// View implements Controller
func (j *JournalController) View(ctx context.Context) (View, error) {
	journals, err := j.providers.Journals()
	if err != nil {
		return View{}, err
	}
	providers, err := j.providers.Providers()
	if err != nil {
		return View{}, err
	}
	view := View{Cards: []Card{}, Buttons: []Button{}}
	for _, journal := range journals {
		lines, err := j.statements.Lines(journal.ID)
		if err != nil {
			return View{}, err
		}
		card := Card{
			JournalID:   journal.ID,
			Name:        journal.DisplayName(),
			BankAccount: journal.BankAccount,
			Lines:       len(lines),
		}
		for _, p := range providers {
			if p.JournalID == journal.ID {
				card.Providers = append(card.Providers, p.ID)
			}
		}
		view.Cards = append(view.Cards, card)
	}
	return view, nil
}

// Click implements Controller
func (j *JournalController) Click(ctx context.Context, button string, dispatcher Dispatcher) error {
	return errors.Wrapf(ErrUnknownButton, "%q", button)
}

type importButton struct {
	Controller
}

// WithImportButton wraps c to add an "Upload statement" button, which opens the statement import dialog
func WithImportButton(c Controller) Controller {
	return importButton{c}
}

// ImportAction opens the statement import dialog
func ImportAction() action.Action {
	return action.Action{
		Type:   "act_window",
		Tag:    action.TagStatementImport,
		Name:   "Import Bank Statement",
		Target: "new",
	}
}

func (i importButton) View(ctx context.Context) (View, error) {
	view, err := i.Controller.View(ctx)
	if err != nil {
		return view, err
	}
	view.Buttons = append(view.Buttons, Button{Name: ImportButton, Label: "Upload statement"})
	return view, nil
}

func (i importButton) Click(ctx context.Context, button string, dispatcher Dispatcher) error {
	if button != ImportButton {
		return i.Controller.Click(ctx, button, dispatcher)
	}
	return dispatcher.DoAction(ctx, ImportAction())
}

// Renderer draws the dashboard
type Renderer interface {
	RenderDashboard(View)
}

// Dashboard is the dashboard component
type Dashboard struct {
	controller Controller
	renderer   Renderer
	dispatcher Dispatcher

	mu   sync.Mutex
	view View
}

var _ action.Component = &Dashboard{}

// New creates a Dashboard
func New(controller Controller, renderer Renderer, dispatcher Dispatcher) *Dashboard {
	return &Dashboard{
		controller: controller,
		renderer:   renderer,
		dispatcher: dispatcher,
	}
}

// Initialize loads and renders the dashboard
func (d *Dashboard) Initialize(ctx context.Context) error {
	view, err := d.controller.View(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.view = view
	d.mu.Unlock()
	d.Render()
	return nil
}

// Render redraws the last loaded view
func (d *Dashboard) Render() {
	d.mu.Lock()
	view := d.view
	d.mu.Unlock()
	d.renderer.RenderDashboard(view)
}

// HandleSelection clicks the button named 'id'
func (d *Dashboard) HandleSelection(ctx context.Context, id string) error {
	return d.controller.Click(ctx, id, d.dispatcher)
}
