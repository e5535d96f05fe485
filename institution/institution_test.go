package institution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var someInstitutions = []Institution{
	{ID: "BNP_FR", Name: "BNP Paribas", Countries: []string{"FR"}},
	{ID: "ING_NL", Name: "ING", Countries: []string{"NL", "BE"}},
	{ID: "REVOLUT", Name: "Revolut", Countries: []string{"FR", "NL", "GB"}},
	{ID: "BOURSO", Name: "Boursorama", Countries: []string{"FR"}},
}

func ids(institutions []Institution) []string {
	var result []string
	for _, inst := range institutions {
		result = append(result, inst.ID)
	}
	return result
}

func TestInCountry(t *testing.T) {
	for _, tc := range []struct {
		description string
		country     string
		expect      []string
	}{
		{"single country", "BE", []string{"ING_NL"}},
		{"preserves order", "FR", []string{"BNP_FR", "REVOLUT", "BOURSO"}},
		{"unknown country", "ZZ", nil},
		{"empty country", "", nil},
	} {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, ids(InCountry(someInstitutions, tc.country)))
		})
	}
}

func TestFilter(t *testing.T) {
	for _, tc := range []struct {
		description   string
		country, text string
		expect        []string
	}{
		{"no text", "FR", "", []string{"BNP_FR", "REVOLUT", "BOURSO"}},
		{"case insensitive", "FR", "bo", []string{"BOURSO"}},
		{"intersects country", "NL", "bo", nil},
		{"substring anywhere", "FR", "OLU", []string{"REVOLUT"}},
		{"unknown country", "ZZ", "", nil},
	} {
		t.Run(tc.description, func(t *testing.T) {
			result := Filter(someInstitutions, tc.country, tc.text)
			assert.Equal(t, tc.expect, ids(result))
			for _, inst := range result {
				assert.True(t, inst.InCountry(tc.country))
				assert.True(t, inst.Matches(tc.text))
			}
		})
	}
}

func TestFind(t *testing.T) {
	inst, found := Find(someInstitutions, "ING_NL")
	assert.True(t, found)
	assert.Equal(t, "ING", inst.Name)

	_, found = Find(someInstitutions, "nope")
	assert.False(t, found)
}

func TestCountries(t *testing.T) {
	countries := Countries(someInstitutions, map[string]string{
		"FR": "France",
		"NL": "Netherlands",
		"BE": "Belgium",
	})
	assert.Equal(t, []Country{
		{Code: "BE", Name: "Belgium"},
		{Code: "FR", Name: "France"},
		{Code: "GB", Name: "GB"},
		{Code: "NL", Name: "Netherlands"},
	}, countries)
	assert.True(t, HasCountry(countries, "FR"))
	assert.False(t, HasCountry(countries, "ZZ"))
}
