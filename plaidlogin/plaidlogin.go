// Package plaidlogin runs Plaid Link for a plaid_login action and reports the result to the backend
package plaidlogin

import (
	"context"

	"github.com/johnstarich/banklink/action"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Link opens Plaid Link with a link token, returning the public token once the user completes it
type Link interface {
	Open(ctx context.Context, linkToken string) (publicToken string, err error)
}

// LinkFunc adapts a func to Link
type LinkFunc func(ctx context.Context, linkToken string) (string, error)

// Open implements Link
func (l LinkFunc) Open(ctx context.Context, linkToken string) (string, error) {
	return l(ctx, linkToken)
}

// Backend receives the public token of a completed Link flow
type Backend interface {
	PlaidSuccess(ctx context.Context, publicToken string, params map[string]string) (bool, error)
}

// Status reports the login's progress
type Status int

// Login statuses
const (
	Pending Status = iota
	Linked
	Failed
)

// Renderer draws the login status
type Renderer interface {
	RenderStatus(Status, error)
}

// Login is the plaid_login component
type Login struct {
	params   map[string]string
	link     Link
	backend  Backend
	renderer Renderer
	logger   *zap.Logger

	status Status
	err    error
}

var _ action.Component = &Login{}

// New creates a Login for a plaid_login action
func New(a action.Action, link Link, backend Backend, renderer Renderer, logger *zap.Logger) (*Login, error) {
	if a.Tag != action.TagPlaidLogin {
		return nil, errors.Errorf("Unexpected action tag: %q", a.Tag)
	}
	for _, param := range []string{"token", "call_method", "object_id"} {
		if a.Params[param] == "" {
			return nil, errors.Errorf("Plaid login requires param %q", param)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Login{
		params:   a.Params,
		link:     link,
		backend:  backend,
		renderer: renderer,
		logger:   logger,
	}, nil
}

// Initialize opens Link and forwards the public token to the backend
func (l *Login) Initialize(ctx context.Context) error {
	l.Render()
	publicToken, err := l.link.Open(ctx, l.params["token"])
	if err == nil {
		var ok bool
		ok, err = l.backend.PlaidSuccess(ctx, publicToken, l.params)
		if err == nil && !ok {
			err = errors.New("Plaid did not return an access token")
		}
	}
	if err != nil {
		l.logger.Warn("Plaid login failed", zap.String("object", l.params["object_id"]), zap.Error(err))
		l.status, l.err = Failed, err
	} else {
		l.status = Linked
	}
	l.Render()
	return err
}

// Render draws the current status
func (l *Login) Render() {
	l.renderer.RenderStatus(l.status, l.err)
}

// HandleSelection retries a failed login. Link has no selectable elements otherwise.
func (l *Login) HandleSelection(ctx context.Context, id string) error {
	if l.status != Failed {
		return nil
	}
	l.status, l.err = Pending, nil
	return l.Initialize(ctx)
}

// Status returns the login's status
func (l *Login) Status() Status {
	return l.status
}
