package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/johnstarich/banklink/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) openSelector(t *testing.T, body interface{}) sessionJSON {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/selectors", body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var session sessionJSON
	decode(t, resp, &session)
	return session
}

func (e *testEnv) sessionDo(t *testing.T, session sessionJSON, path string, body interface{}) sessionJSON {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/selectors/"+session.ID+path, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var result sessionJSON
	decode(t, resp, &result)
	return result
}

func visibleIDs(v selector.View) []string {
	var ids []string
	for _, inst := range v.Visible() {
		ids = append(ids, inst.ID)
	}
	return ids
}

func TestSelectorSession(t *testing.T) {
	env := newTestEnv(t)
	session := env.openSelector(t, map[string]string{"provider_id": "gocardless"})
	assert.Equal(t, action.TagGoCardlessSelector, session.Tag)
	assert.Equal(t, "CountrySelected", session.State)
	assert.Equal(t, "FR", session.Country)
	assert.Equal(t, []institution.Country{{Code: "FR", Name: "France"}}, session.View.Countries)
	assert.Equal(t, []string{sandbox.SandboxInstitutionID, "ALPHA_ALPHFRPP", "BETA_BETADEFF"}, visibleIDs(session.View))

	session = env.sessionDo(t, session, "/search", map[string]string{"text": "ALPHA"})
	assert.Equal(t, "Filtered", session.State)
	assert.Equal(t, []string{"ALPHA_ALPHFRPP"}, visibleIDs(session.View))

	resp := env.do(t, http.MethodPost, "/api/v1/selectors/"+session.ID+"/select", map[string]string{"institution_id": sandbox.SandboxInstitutionID})
	assert.Equal(t, http.StatusBadRequest, resp.Code, "Hidden institutions can't be selected")
	assert.Equal(t, `Institution "SANDBOXFINANCE_SFIN0000" is not available for country "FR"`, errorMessage(t, resp))

	session = env.sessionDo(t, session, "/search", map[string]string{"text": ""})
	assert.Equal(t, "CountrySelected", session.State)
	session = env.sessionDo(t, session, "/select", map[string]string{"institution_id": sandbox.SandboxInstitutionID})
	assert.Equal(t, "NavigatingAway", session.State)
	assert.Contains(t, session.Redirect, "/consent/")

	resp = env.do(t, http.MethodPost, "/api/v1/selectors/"+session.ID+"/select", map[string]string{"institution_id": sandbox.SandboxInstitutionID})
	assert.Equal(t, http.StatusConflict, resp.Code)

	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.Equal(t, sandbox.SandboxInstitutionID, p.GoCardlessInstitutionID)
	redirect, err := env.sandbox.Agree(p.GoCardlessRequisitionID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirect, testBaseURL+"/gocardless/response?"), redirect)
	u, err := url.Parse(redirect)
	require.NoError(t, err)

	resp = env.do(t, http.MethodGet, u.RequestURI(), nil)
	assert.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/web/providers/gocardless", resp.Header().Get("Location"))
	p, err = env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.NotEmpty(t, p.GoCardlessAccountID)

	resp = env.do(t, http.MethodDelete, "/api/v1/selectors/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = env.do(t, http.MethodGet, "/api/v1/selectors/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSelectorSessionFailure(t *testing.T) {
	env := newTestEnv(t)
	session := env.openSelector(t, map[string]interface{}{
		"action": action.Action{
			Tag: action.TagGoCardlessSelector,
			Context: []byte(`{
				"institutions": [{"id": "UNKNOWN_BANK", "name": "Unknown Bank", "countries": ["FR"]}],
				"country_names": [{"code": "FR", "name": "France"}],
				"country": "FR",
				"provider_id": "gocardless",
				"active_id": "gocardless"
			}`),
		},
	})
	assert.Equal(t, "CountrySelected", session.State)

	session = env.sessionDo(t, session, "/select", map[string]string{"institution_id": "UNKNOWN_BANK"})
	assert.Equal(t, "Failed", session.State)
	assert.Equal(t, selector.ErrNoRedirect.Error(), session.Error)
	assert.Equal(t, selector.ErrNoRedirect.Error(), session.View.Error)
	assert.False(t, session.View.Busy)
	assert.Empty(t, session.Redirect)

	session = env.sessionDo(t, session, "/retry", nil)
	assert.Equal(t, "CountrySelected", session.State)
	assert.Empty(t, session.Error)

	resp := env.do(t, http.MethodPost, "/api/v1/selectors/"+session.ID+"/retry", nil)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, selector.ErrNotFailed.Error(), errorMessage(t, resp))
}

func TestCreateSelectorErrors(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct {
		description string
		body        interface{}
		expectCode  int
		expectErr   string
	}{
		{
			description: "empty request",
			body:        map[string]string{},
			expectCode:  http.StatusBadRequest,
			expectErr:   "Either provider_id or action is required",
		},
		{
			description: "missing provider",
			body:        map[string]string{"provider_id": "missing"},
			expectCode:  http.StatusNotFound,
			expectErr:   `Provider "missing": Not found`,
		},
		{
			description: "journal without bank account",
			body:        map[string]string{"provider_id": "no-account"},
			expectCode:  http.StatusBadRequest,
			expectErr:   "To continue configure bank account on journal Cash",
		},
		{
			description: "unknown tag",
			body:        map[string]interface{}{"action": action.Action{Tag: "explode"}},
			expectCode:  http.StatusBadRequest,
			expectErr:   `Tag "explode": Unknown action tag`,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/v1/selectors", tc.body)
			assert.Equal(t, tc.expectCode, resp.Code)
			assert.Equal(t, tc.expectErr, errorMessage(t, resp))
		})
	}
}
