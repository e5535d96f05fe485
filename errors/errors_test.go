package errors

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	var errs Errors
	assert.NoError(t, errs.ErrOrNil())

	assert.True(t, errs.AddErr(nil))
	assert.False(t, errs.AddErr(errors.New("Store unavailable")))
	assert.EqualError(t, errs.ErrOrNil(), "Store unavailable")

	assert.False(t, errs.AddErr(Errors{
		ForProvider("p1", "gocardless", errors.New("Agreement expired")),
		errors.New("b"),
	}))
	require.Len(t, errs, 3)
	assert.EqualError(t, errs.ErrOrNil(), "Store unavailable\nProvider p1: Agreement expired\nb")
	assert.Equal(t, []string{"p1"}, errs.ProviderIDs())

	b, err := json.Marshal(errs)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"Description": "Store unavailable"},
		{"Provider": "p1", "Service": "gocardless", "Description": "Agreement expired"},
		{"Description": "b"}
	]`, string(b))
}

func TestForProvider(t *testing.T) {
	assert.NoError(t, ForProvider("p1", "plaid", nil))

	cause := errors.New("Unauthorized")
	err := ForProvider("p1", "plaid", errors.Wrap(cause, "Pull failed"))
	assert.EqualError(t, err, "Provider p1: Pull failed: Unauthorized")
	assert.Equal(t, cause, errors.Cause(err))
}
