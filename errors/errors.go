// Package errors collects the failures of an operation spanning several providers
package errors

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Errors combines one failure per provider into a single error
type Errors []error

// AddErr appends err unless it is nil, flattening nested Errors. Returns true if err is nil.
func (e *Errors) AddErr(err error) bool {
	if err == nil {
		return true
	}
	if errs, ok := err.(Errors); ok {
		*e = append(*e, errs...)
	} else {
		*e = append(*e, err)
	}
	return false
}

// ErrOrNil returns nil if e is empty, the only error if there's just one, otherwise e
func (e Errors) ErrOrNil() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	default:
		return e
	}
}

func (e Errors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "\n")
}

// ProviderIDs returns the providers of each ProviderError in e
func (e Errors) ProviderIDs() []string {
	var ids []string
	for _, err := range e {
		if providerErr, ok := err.(*ProviderError); ok {
			ids = append(ids, providerErr.ProviderID)
		}
	}
	return ids
}

// MarshalJSON renders each error as {"Description": "..."} unless it marshals itself
func (e Errors) MarshalJSON() ([]byte, error) {
	errs := make([]interface{}, 0, len(e))
	for _, err := range e {
		switch err := err.(type) {
		case json.Marshaler:
			errs = append(errs, err)
		default:
			errs = append(errs, map[string]interface{}{"Description": err.Error()})
		}
	}
	return json.Marshal(errs)
}

// ProviderError is a failure of a single provider, i.e. an expired agreement during a pull
type ProviderError struct {
	ProviderID string
	Service    string
	Err        error
}

// ForProvider attributes err to a provider. Returns nil if err is nil.
func ForProvider(providerID, service string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{ProviderID: providerID, Service: service, Err: err}
}

func (p *ProviderError) Error() string {
	return "Provider " + p.ProviderID + ": " + p.Err.Error()
}

// Cause implements the causer interface of github.com/pkg/errors
func (p *ProviderError) Cause() error {
	return errors.Cause(p.Err)
}

// MarshalJSON implements json.Marshaler
func (p *ProviderError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"Provider":    p.ProviderID,
		"Service":     p.Service,
		"Description": p.Err.Error(),
	})
}
