// Package action routes client actions to the components which handle them
package action

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Tags of the actions handled by this module
const (
	TagGoCardlessSelector = "online_sync_institution_selector_gocardless"
	TagNordigenSelector   = "online_sync_institution_selector_nordigen"
	TagPlaidLogin         = "plaid_login"
	TagStatementImport    = "account_statement_import"
)

// ErrUnknownTag is returned when no factory is registered for an action's tag
var ErrUnknownTag = errors.New("Unknown action tag")

// Action is a client action: a tagged request to open a component, with its construction context
type Action struct {
	Type    string            `json:"type,omitempty"`
	Tag     string            `json:"tag"`
	Name    string            `json:"name,omitempty"`
	Target  string            `json:"target,omitempty"`
	Context json.RawMessage   `json:"context,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
}

// Component is an interactive element opened by an action
type Component interface {
	// Initialize prepares the component and draws it for the first time
	Initialize(ctx context.Context) error
	// Render redraws the component from its current state
	Render()
	// HandleSelection handles the user choosing the element identified by id
	HandleSelection(ctx context.Context, id string) error
}

// Factory builds a Component for an action
type Factory func(Action) (Component, error)

// Registry maps action tags to component factories
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a Registry from a tag to factory map
func NewRegistry(factories map[string]Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(factories))}
	for tag, factory := range factories {
		r.factories[tag] = factory
	}
	return r
}

// Register adds or replaces the factory for tag
func (r *Registry) Register(tag string, factory Factory) {
	r.factories[tag] = factory
}

// Tags returns the registered tags, sorted
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Open builds the component for a, returning ErrUnknownTag if a.Tag is not registered
func (r *Registry) Open(a Action) (Component, error) {
	factory, ok := r.factories[a.Tag]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTag, "Tag %q", a.Tag)
	}
	component, err := factory(a)
	return component, errors.Wrapf(err, "Open action %q", a.Tag)
}
