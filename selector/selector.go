// Package selector implements the institution selector: a country-scoped, searchable institution list
// which, on selection, stores the institution on a record and navigates to the aggregator's agreement URL.
package selector

import (
	"context"
	"sync"

	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/pipe"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a selection is already being submitted
	ErrBusy = errors.New("A selection is already in progress")
	// ErrNoRedirect is returned when the agreement call completes without a URL to navigate to
	ErrNoRedirect = errors.New("The bank did not return an authorization link")
	// ErrNotFailed is returned by Retry outside of the Failed state
	ErrNotFailed = errors.New("Nothing to retry")
)

// Renderer draws the widget. Renderers are output only and never queried for state.
type Renderer interface {
	// RenderCountries draws the country options, with 'selected' chosen. 'selected' may be empty.
	RenderCountries(countries []institution.Country, selected string)
	// RenderInstitutions replaces all institution rows. Every new row is visible.
	RenderInstitutions(institutions []institution.Institution)
	// SetRowVisible shows or hides an already rendered row
	SetRowVisible(institutionID string, visible bool)
	// SetBusy engages or clears the input-blocking busy state
	SetBusy(busy bool)
	// RenderError shows err to the user, or clears the error if nil
	RenderError(err error)
}

// Backend performs the two server calls of a selection
type Backend interface {
	// WriteInstitution stores institutionID on the record identified by recordID
	WriteInstitution(ctx context.Context, recordID, institutionID string) error
	// CheckAgreement negotiates the aggregator agreement for scopeIDs and returns the URL to navigate to, or "" if there is none
	CheckAgreement(ctx context.Context, scopeIDs []string) (string, error)
}

// Navigator moves the user to another location
type Navigator interface {
	// Replace replaces the current location with url, without adding a history entry
	Replace(url string)
}

// NavigatorFunc adapts a function into a Navigator
type NavigatorFunc func(url string)

// Replace implements Navigator
func (n NavigatorFunc) Replace(url string) {
	n(url)
}

// Widget is an institution selector instance. It is safe for concurrent use, though inputs are expected from a single user.
type Widget struct {
	context   Context
	backend   Backend
	renderer  Renderer
	navigator Navigator
	logger    *zap.Logger

	submitting *atomic.Bool

	mu         sync.Mutex
	state      State
	country    string
	searchText string
	rendered   []institution.Institution
	lastErr    error
}

// New creates a Widget. Call Initialize before any other input.
func New(c Context, backend Backend, renderer Renderer, navigator Navigator, logger *zap.Logger) *Widget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Widget{
		context:    c,
		backend:    backend,
		renderer:   renderer,
		navigator:  navigator,
		logger:     logger,
		submitting: atomic.NewBool(false),
	}
}

// Initialize renders the countries and, if the default country is one of them, selects it like a user would.
// Returns ErrBusy while a selection is being submitted.
func (w *Widget) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting.Load() && w.state != NavigatingAway {
		return ErrBusy
	}
	w.state = Idle
	w.country = ""
	w.searchText = ""
	w.lastErr = nil
	w.submitting.Store(false)

	if institution.HasCountry(w.context.Countries, w.context.Country) {
		w.renderer.RenderCountries(w.context.Countries, w.context.Country)
		w.selectCountry(w.context.Country)
		return nil
	}
	w.renderer.RenderCountries(w.context.Countries, "")
	w.rendered = nil
	w.renderer.RenderInstitutions(nil)
	return nil
}

// SelectCountry re-renders the institution list for the country with 'code'. Unknown codes render an empty list.
// Ignored while a selection is being submitted.
func (w *Widget) SelectCountry(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.interactive() {
		w.logger.Debug("Ignoring country change while not interactive", zap.Stringer("state", w.state))
		return
	}
	w.selectCountry(code)
}

func (w *Widget) selectCountry(code string) {
	w.clearFailure()
	w.country = code
	w.rendered = institution.InCountry(w.context.Institutions, code)
	w.renderer.RenderInstitutions(w.rendered)
	w.applySearch()
	w.state = w.selectionState()
}

// Search shows the rendered rows whose name contains text, ignoring case, and hides the rest.
// Ignored while a selection is being submitted.
func (w *Widget) Search(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.interactive() {
		w.logger.Debug("Ignoring search while not interactive", zap.Stringer("state", w.state))
		return
	}
	w.clearFailure()
	w.searchText = text
	w.applySearch()
	if w.state != Idle {
		w.state = w.selectionState()
	}
}

func (w *Widget) applySearch() {
	for _, inst := range w.rendered {
		w.renderer.SetRowVisible(inst.ID, inst.Matches(w.searchText))
	}
}

// selectionState returns the selection state matching the current inputs
func (w *Widget) selectionState() State {
	if w.searchText != "" {
		return Filtered
	}
	return CountrySelected
}

// clearFailure leaves the Failed state, if necessary
func (w *Widget) clearFailure() {
	if w.state == Failed {
		w.lastErr = nil
		w.renderer.RenderError(nil)
	}
}

// Filtered returns the institutions matching both the selected country and the search text
func (w *Widget) Filtered() []institution.Institution {
	w.mu.Lock()
	defer w.mu.Unlock()
	return institution.Filter(w.context.Institutions, w.country, w.searchText)
}

// State returns the current state
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Country returns the selected country code
func (w *Widget) Country() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.country
}

// SearchText returns the current search text
func (w *Widget) SearchText() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.searchText
}

// Err returns the error that moved the widget into the Failed state
func (w *Widget) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Render redraws the whole widget from its current state
func (w *Widget) Render() {
	w.mu.Lock()
	defer w.mu.Unlock()
	selected := w.country
	if w.state == Idle {
		selected = ""
	}
	w.renderer.RenderCountries(w.context.Countries, selected)
	w.renderer.RenderInstitutions(w.rendered)
	w.applySearch()
	w.renderer.SetBusy(w.state == Submitting || w.state == NavigatingAway)
	w.renderer.RenderError(w.lastErr)
}

// HandleSelection implements the selection capability, see Select
func (w *Widget) HandleSelection(ctx context.Context, institutionID string) error {
	return w.Select(ctx, institutionID)
}

// Select stores institutionID on the record, then negotiates the agreement and navigates to the returned URL.
// The two backend calls run strictly in order. Only one selection may be in flight; others return ErrBusy.
// On failure or an empty URL the widget moves to Failed, clears the busy state, and returns the error.
func (w *Widget) Select(ctx context.Context, institutionID string) error {
	if !w.submitting.CAS(false, true) {
		return ErrBusy
	}

	w.mu.Lock()
	if err := w.validateSelection(institutionID); err != nil {
		w.mu.Unlock()
		w.submitting.Store(false)
		return err
	}
	w.clearFailure()
	w.state = Submitting
	w.renderer.SetBusy(true)
	w.mu.Unlock()

	logger := w.logger.With(zap.String("institution", institutionID), zap.String("record", w.context.RecordID))
	var redirectURL string
	err := pipe.OpFuncs{
		func() error {
			return errors.Wrap(w.backend.WriteInstitution(ctx, w.context.RecordID, institutionID), "Save institution")
		},
		func() error {
			var err error
			redirectURL, err = w.backend.CheckAgreement(ctx, w.context.ScopeIDs)
			return errors.Wrap(err, "Check agreement")
		},
		func() error {
			if redirectURL == "" {
				return ErrNoRedirect
			}
			return nil
		},
	}.DoContext(ctx)
	if err != nil {
		logger.Info("Institution selection failed", zap.Error(err))
		w.fail(err)
		return err
	}

	w.mu.Lock()
	w.state = NavigatingAway
	w.mu.Unlock()
	logger.Info("Navigating to agreement", zap.String("url", redirectURL))
	w.navigator.Replace(redirectURL)
	return nil
}

func (w *Widget) validateSelection(institutionID string) error {
	if !w.state.interactive() {
		return ErrBusy
	}
	if institutionID == "" {
		return errors.New("Institution ID is required")
	}
	for _, inst := range institution.Filter(w.rendered, w.country, w.searchText) {
		if inst.ID == institutionID {
			return nil
		}
	}
	return errors.Errorf("Institution %q is not available for country %q", institutionID, w.country)
}

func (w *Widget) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = Failed
	w.lastErr = err
	w.renderer.SetBusy(false)
	w.renderer.RenderError(err)
	w.submitting.Store(false)
}

// Retry leaves the Failed state, clearing the error so another institution can be selected
func (w *Widget) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Failed {
		return ErrNotFailed
	}
	w.clearFailure()
	w.state = w.selectionState()
	return nil
}
