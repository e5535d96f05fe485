package selector

import (
	"sync"

	"github.com/johnstarich/banklink/institution"
)

// View is a point-in-time copy of everything a renderer has drawn
type View struct {
	Countries       []institution.Country     `json:"countries"`
	SelectedCountry string                    `json:"selected_country"`
	Institutions    []institution.Institution `json:"institutions"`
	Hidden          map[string]bool           `json:"hidden,omitempty"`
	Busy            bool                      `json:"busy"`
	Error           string                    `json:"error,omitempty"`
}

// Visible returns the drawn institutions which are not hidden, in render order
func (v View) Visible() []institution.Institution {
	var visible []institution.Institution
	for _, inst := range v.Institutions {
		if !v.Hidden[inst.ID] {
			visible = append(visible, inst)
		}
	}
	return visible
}

// ViewRenderer is a Renderer which records the drawn view in memory.
// Used by the HTTP session API and the terminal UI to serialize or paint the widget.
type ViewRenderer struct {
	mu   sync.RWMutex
	view View
}

// NewViewRenderer creates an empty ViewRenderer
func NewViewRenderer() *ViewRenderer {
	return &ViewRenderer{view: View{Hidden: make(map[string]bool)}}
}

// RenderCountries implements Renderer
func (r *ViewRenderer) RenderCountries(countries []institution.Country, selected string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Countries = append([]institution.Country(nil), countries...)
	r.view.SelectedCountry = selected
}

// RenderInstitutions implements Renderer
func (r *ViewRenderer) RenderInstitutions(institutions []institution.Institution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Institutions = append([]institution.Institution(nil), institutions...)
	r.view.Hidden = make(map[string]bool)
}

// SetRowVisible implements Renderer
func (r *ViewRenderer) SetRowVisible(institutionID string, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if visible {
		delete(r.view.Hidden, institutionID)
	} else {
		r.view.Hidden[institutionID] = true
	}
}

// SetBusy implements Renderer
func (r *ViewRenderer) SetBusy(busy bool) {
	r.mu.Lock()
	r.view.Busy = busy
	r.mu.Unlock()
}

// RenderError implements Renderer
func (r *ViewRenderer) RenderError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.view.Error = ""
		return
	}
	r.view.Error = err.Error()
}

// Snapshot returns a copy of the current view
func (r *ViewRenderer) Snapshot() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view := r.view
	view.Countries = append([]institution.Country(nil), r.view.Countries...)
	view.Institutions = append([]institution.Institution(nil), r.view.Institutions...)
	view.Hidden = make(map[string]bool, len(r.view.Hidden))
	for id, hidden := range r.view.Hidden {
		view.Hidden[id] = hidden
	}
	return view
}
