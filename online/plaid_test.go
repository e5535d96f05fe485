package online

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaidLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.service.PlaidLinkAction(ctx, "plaid")
	require.NoError(t, err)
	assert.Equal(t, "plaid_login", a.Tag)
	assert.Equal(t, "new", a.Target)
	assert.Equal(t, PlaidCallModel, a.Params["call_model"])
	assert.Equal(t, PlaidCreateTokenCall, a.Params["call_method"])
	assert.Equal(t, "plaid", a.Params["object_id"])
	assert.NotEmpty(t, a.Params["token"])

	_, err = env.service.PlaidLinkAction(ctx, "gocardless")
	assert.EqualError(t, err, `Provider "gocardless" does not use Plaid`)

	ok, err := env.service.PlaidSuccess(ctx, env.sandbox.PlaidPublicToken(), a.Params)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := env.store.Provider("plaid")
	require.NoError(t, err)
	assert.NotEmpty(t, p.PlaidAccessToken)

	added, err := env.service.Pull(ctx, "plaid", env.now.AddDate(0, 0, -DefaultPullDays), env.now)
	require.NoError(t, err)
	assert.NotZero(t, added)
	lines, err := env.service.Statements().Lines("journal")
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, line.Ref, line.PaymentRef)
		assert.Equal(t, "USD", line.Currency)
	}
}

func TestPlaidSuccessUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.PlaidSuccess(context.Background(), "token", map[string]string{
		"call_method": "drop_tables",
		"object_id":   "plaid",
	})
	require.Error(t, err)
	assert.Equal(t, ErrUnknownPlaidCall, errors.Cause(err))
}
