// Package tui drives the banklink components from a terminal
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/action"
	"github.com/pkg/errors"
)

// Model is a component which draws itself in the terminal
type Model interface {
	action.Component
	tea.Model
}

// openMsg asks the App to open an action on top of the current model
type openMsg struct {
	action action.Action
}

// closeMsg asks the App to close the current model. A non-empty result is kept for the caller.
type closeMsg struct {
	result string
}

func open(a action.Action) tea.Cmd {
	return func() tea.Msg { return openMsg{action: a} }
}

func closeWith(result string) tea.Cmd {
	return func() tea.Msg { return closeMsg{result: result} }
}

// App stacks component models, opening actions through a registry
type App struct {
	ctx      context.Context
	registry *action.Registry
	stack    []tea.Model
	result   string
	err      error
}

// NewApp creates an App showing root
func NewApp(ctx context.Context, registry *action.Registry, root tea.Model) *App {
	return &App{
		ctx:      ctx,
		registry: registry,
		stack:    []tea.Model{root},
	}
}

// OpenApp creates an App showing the component of a
func OpenApp(ctx context.Context, registry *action.Registry, a action.Action) (*App, error) {
	model, err := openModel(registry, a)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, registry, model), nil
}

func openModel(registry *action.Registry, a action.Action) (tea.Model, error) {
	component, err := registry.Open(a)
	if err != nil {
		return nil, err
	}
	model, ok := component.(tea.Model)
	if !ok {
		return nil, errors.Errorf("Action %q can't be shown in a terminal", a.Tag)
	}
	return model, nil
}

// Result returns the result of the last closed model, i.e. the agreement URL of a selection
func (a *App) Result() string {
	return a.result
}

// Err returns the error which stopped the App, if any
func (a *App) Err() error {
	return a.err
}

func (a *App) current() tea.Model {
	return a.stack[len(a.stack)-1]
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.current().Init()
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
	case openMsg:
		model, err := openModel(a.registry, msg.action)
		if err != nil {
			a.err = err
			return a, tea.Quit
		}
		a.stack = append(a.stack, model)
		return a, model.Init()
	case closeMsg:
		if msg.result != "" {
			a.result = msg.result
		}
		a.stack = a.stack[:len(a.stack)-1]
		if len(a.stack) == 0 {
			return a, tea.Quit
		}
		return a, nil
	}
	model, cmd := a.current().Update(msg)
	a.stack[len(a.stack)-1] = model
	return a, cmd
}

// View implements tea.Model
func (a *App) View() string {
	if len(a.stack) == 0 {
		return ""
	}
	return a.current().View()
}
