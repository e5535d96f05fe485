package online

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/johnstarich/banklink/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBankAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, tc := range []struct {
		description      string
		providerID       string
		expectTag        string
		expectRecordID   string
		expectCountries  []string
		expectInstitutes []string
		expectErr        string
	}{
		{
			description:      "gocardless offers the company country",
			providerID:       "gocardless",
			expectTag:        action.TagGoCardlessSelector,
			expectRecordID:   "gocardless",
			expectCountries:  []string{"FR"},
			expectInstitutes: []string{sandbox.SandboxInstitutionID, "ALPHA_ALPHFRPP", "BETA_BETADEFF"},
		},
		{
			description:      "nordigen offers every country",
			providerID:       "nordigen",
			expectTag:        action.TagNordigenSelector,
			expectRecordID:   "journal",
			expectCountries:  []string{"DE", "FR", "GB", "XX"},
			expectInstitutes: []string{sandbox.SandboxInstitutionID, "ALPHA_ALPHFRPP", "BETA_BETADEFF", "GAMMA_GAMMGB2L"},
		},
		{
			description: "journal without bank account",
			providerID:  "no-account",
			expectErr:   "To continue configure bank account on journal Cash",
		},
		{
			description: "plaid has no selector",
			providerID:  "plaid",
			expectErr:   `Provider "plaid" does not select an institution`,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			a, err := env.service.SelectBankAction(ctx, tc.providerID)
			if tc.expectErr != "" {
				assert.EqualError(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectTag, a.Tag)
			assert.Equal(t, "new", a.Target)

			var c selector.Context
			require.NoError(t, json.Unmarshal(a.Context, &c))
			assert.Equal(t, "FR", c.Country)
			assert.Equal(t, tc.expectRecordID, c.RecordID)
			assert.Equal(t, []string{tc.providerID}, c.ScopeIDs)
			var countries, institutions []string
			for _, country := range c.Countries {
				countries = append(countries, country.Code)
			}
			for _, inst := range c.Institutions {
				institutions = append(institutions, inst.ID)
			}
			assert.ElementsMatch(t, tc.expectCountries, countries)
			assert.Equal(t, tc.expectInstitutes, institutions)
		})
	}
}

func TestSetInstitution(t *testing.T) {
	env := newTestEnv(t)
	backend := env.service.SelectorBackend(provider.GoCardless)
	require.NoError(t, backend.WriteInstitution(context.Background(), "gocardless", "ALPHA_ALPHFRPP"))
	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA_ALPHFRPP", p.GoCardlessInstitutionID)

	backend = env.service.SelectorBackend(provider.Nordigen)
	require.NoError(t, backend.WriteInstitution(context.Background(), "journal", "BETA_BETADEFF"))
	j, err := env.store.Journal("journal")
	require.NoError(t, err)
	assert.Equal(t, "BETA_BETADEFF", j.NordigenInstitutionID)

	assert.Error(t, env.service.SetInstitution(provider.Plaid, "plaid", "any"))
}

func TestCheckGoCardlessAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	backend := env.service.SelectorBackend(provider.GoCardless)

	_, err := backend.CheckAgreement(ctx, []string{"gocardless"})
	assert.EqualError(t, err, `Provider "gocardless" has no institution selected`)

	_, err = backend.CheckAgreement(ctx, []string{"gocardless", "nordigen"})
	assert.EqualError(t, err, "Expected one provider, found 2")

	_, err = backend.CheckAgreement(ctx, []string{"nordigen"})
	assert.EqualError(t, err, `Provider "nordigen" does not use gocardless`)

	require.NoError(t, backend.WriteInstitution(ctx, "gocardless", "NOT_A_BANK"))
	link, err := backend.CheckAgreement(ctx, []string{"gocardless"})
	require.NoError(t, err)
	assert.Empty(t, link)

	require.NoError(t, backend.WriteInstitution(ctx, "gocardless", sandbox.SandboxInstitutionID))
	link, err = backend.CheckAgreement(ctx, []string{"gocardless"})
	require.NoError(t, err)
	assert.Contains(t, link, "/consent/")

	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.NotEmpty(t, p.GoCardlessRequisitionID)
	assert.True(t, strings.HasSuffix(link, p.GoCardlessRequisitionID))
	assert.Len(t, p.GoCardlessRequisitionRef, 36)

	redirect, err := env.sandbox.Agree(p.GoCardlessRequisitionID)
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/gocardless/response?ref="+p.GoCardlessRequisitionRef, redirect)
}

func TestCheckNordigenAgreement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	backend := env.service.SelectorBackend(provider.Nordigen)

	link, err := backend.CheckAgreement(ctx, []string{"nordigen"})
	require.NoError(t, err)
	assert.Contains(t, link, "/consent/", "Sandbox mode links the sandbox institution")
	p, err := env.store.Provider("nordigen")
	require.NoError(t, err)
	assert.NotEmpty(t, p.NordigenLastRequisitionRef)

	env.service.sandbox = false
	require.NoError(t, backend.WriteInstitution(ctx, "journal", "NOT_A_BANK"))
	link, err = backend.CheckAgreement(ctx, []string{"nordigen"})
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/nordigen/response", link)
}

func TestServiceForTag(t *testing.T) {
	service, ok := ServiceForTag(action.TagGoCardlessSelector)
	assert.True(t, ok)
	assert.Equal(t, provider.GoCardless, service)
	service, ok = ServiceForTag(action.TagNordigenSelector)
	assert.True(t, ok)
	assert.Equal(t, provider.Nordigen, service)
	_, ok = ServiceForTag(action.TagPlaidLogin)
	assert.False(t, ok)
}
