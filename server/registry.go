package server

import (
	"encoding/json"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/selector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// newSelectorRegistry returns the registry opening institution selectors drawn into session
func newSelectorRegistry(service *online.Service, logger *zap.Logger, session *selectorSession) *action.Registry {
	factories := make(map[string]action.Factory)
	for _, tag := range []string{action.TagGoCardlessSelector, action.TagNordigenSelector} {
		factories[tag] = selectorFactory(service, logger, session)
	}
	return action.NewRegistry(factories)
}

func selectorFactory(service *online.Service, logger *zap.Logger, session *selectorSession) action.Factory {
	return func(a action.Action) (action.Component, error) {
		providerService, ok := online.ServiceForTag(a.Tag)
		if !ok {
			return nil, errors.Wrapf(action.ErrUnknownTag, "Tag %q", a.Tag)
		}
		var selectorContext selector.Context
		if err := json.Unmarshal(a.Context, &selectorContext); err != nil {
			return nil, errors.Wrap(err, "Invalid selector context")
		}
		session.service = string(providerService)
		session.widget = selector.New(
			selectorContext,
			service.SelectorBackend(providerService),
			session.view,
			session,
			logger.With(zap.String("session", session.ID), zap.String("service", string(providerService))),
		)
		return session.widget, nil
	}
}
