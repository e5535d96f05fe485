// Package institution models the banking institutions an aggregator exposes and the pure predicates used to filter them
package institution

import (
	"sort"

	"github.com/johnstarich/banklink/search"
)

// Institution is a selectable banking entity exposed by an aggregator, scoped to one or more countries
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Countries            []string `json:"countries"`
	BIC                  string   `json:"bic,omitempty"`
	Logo                 string   `json:"logo,omitempty"`
	TransactionTotalDays string   `json:"transaction_total_days,omitempty"`
}

// Country is a selectable country option
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// InCountry returns true if the institution operates in the country with 'code'
func (i Institution) InCountry(code string) bool {
	for _, c := range i.Countries {
		if c == code {
			return true
		}
	}
	return false
}

// Matches returns true if the institution's name contains text, ignoring case
func (i Institution) Matches(text string) bool {
	return search.Contains(i.Name, text)
}

// InCountry returns the institutions operating in the country with 'code', preserving order.
// Unknown or empty codes return no institutions.
func InCountry(institutions []Institution, code string) []Institution {
	results := make([]Institution, 0, len(institutions))
	for _, inst := range institutions {
		if inst.InCountry(code) {
			results = append(results, inst)
		}
	}
	return results
}

// Filter returns the institutions in the country with 'code' whose name contains 'text'
func Filter(institutions []Institution, code, text string) []Institution {
	results := make([]Institution, 0, len(institutions))
	for _, inst := range institutions {
		if inst.InCountry(code) && inst.Matches(text) {
			results = append(results, inst)
		}
	}
	return results
}

// Find returns the institution with 'id'
func Find(institutions []Institution, id string) (Institution, bool) {
	for _, inst := range institutions {
		if inst.ID == id {
			return inst, true
		}
	}
	return Institution{}, false
}

// HasCountry returns true if 'countries' includes 'code'
func HasCountry(countries []Country, code string) bool {
	for _, c := range countries {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Countries returns every country any institution operates in, named with 'names' and sorted by name.
// Codes missing from 'names' use the code as their name.
func Countries(institutions []Institution, names map[string]string) []Country {
	seen := make(map[string]bool)
	var countries []Country
	for _, inst := range institutions {
		for _, code := range inst.Countries {
			if seen[code] {
				continue
			}
			seen[code] = true
			name := names[code]
			if name == "" {
				name = code
			}
			countries = append(countries, Country{Code: code, Name: name})
		}
	}
	sort.Slice(countries, func(a, b int) bool {
		if countries[a].Name == countries[b].Name {
			return countries[a].Code < countries[b].Code
		}
		return countries[a].Name < countries[b].Name
	})
	return countries
}
