package tui

import (
	"context"
	"encoding/json"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/plaidlogin"
	"github.com/johnstarich/banklink/selector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Deps are the dependencies of the terminal components
type Deps struct {
	Service *online.Service
	// PlaidLink completes Plaid Link. Nil prompts for a public token.
	PlaidLink plaidlogin.Link
	Logger    *zap.Logger
}

// NewRegistry returns the registry of every component the terminal can show
func NewRegistry(ctx context.Context, deps Deps) *action.Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return action.NewRegistry(map[string]action.Factory{
		action.TagGoCardlessSelector: selectorFactory(ctx, deps),
		action.TagNordigenSelector:   selectorFactory(ctx, deps),
		action.TagPlaidLogin: func(a action.Action) (action.Component, error) {
			return NewPlaidModel(ctx, a, deps.PlaidLink, deps.Service, deps.Logger)
		},
		action.TagStatementImport: func(a action.Action) (action.Component, error) {
			return NewImportModel(ctx, deps.Service.Providers(), deps.Service.Statements()), nil
		},
	})
}

func selectorFactory(ctx context.Context, deps Deps) action.Factory {
	return func(a action.Action) (action.Component, error) {
		service, ok := online.ServiceForTag(a.Tag)
		if !ok {
			return nil, errors.Wrapf(action.ErrUnknownTag, "Tag %q", a.Tag)
		}
		var c selector.Context
		if err := json.Unmarshal(a.Context, &c); err != nil {
			return nil, errors.Wrap(err, "Invalid selector context")
		}
		title := a.Name
		if title == "" {
			title = "Select Bank"
		}
		logger := deps.Logger.With(zap.String("service", string(service)))
		return NewSelectorModel(ctx, title, c, deps.Service.SelectorBackend(service), logger), nil
	}
}
