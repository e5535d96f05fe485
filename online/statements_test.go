package online

import (
	"context"
	"testing"
	"time"

	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullGoCardless(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	added, err := env.service.Pull(ctx, "gocardless", env.now.AddDate(0, 0, -DefaultPullDays), env.now)
	require.NoError(t, err)
	assert.Zero(t, added, "Unlinked providers have no lines")

	ref := env.startRequisition(t, provider.GoCardless, "gocardless", sandbox.SandboxInstitutionID)
	_, _, err = env.service.FinishRequisition(ctx, provider.GoCardless, ref)
	require.NoError(t, err)

	added, err = env.service.Pull(ctx, "gocardless", env.now.AddDate(0, 0, -DefaultPullDays), env.now)
	require.NoError(t, err)
	assert.NotZero(t, added)

	lines, err := env.service.Statements().Lines("journal")
	require.NoError(t, err)
	require.Len(t, lines, added)
	for _, line := range lines {
		assert.NotEqual(t, sandbox.SandboxIBAN, line.AccountNumber)
		assert.NotEmpty(t, line.UniqueImportID)
		assert.Equal(t, "EUR", line.Currency)
	}
	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.Equal(t, env.now, p.LastPull)

	again, err := env.service.Pull(ctx, "gocardless", env.now.AddDate(0, 0, -DefaultPullDays), env.now)
	require.NoError(t, err)
	assert.Zero(t, again, "Already imported lines are skipped")
}

func TestStatementDataExpired(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.UpdateProvider("gocardless", func(p *provider.Provider) error {
		p.GoCardlessAccountID = "some account"
		p.GoCardlessRequisitionExpiration = env.now.Add(-time.Hour)
		return nil
	}))
	lines, err := env.service.StatementData(context.Background(), "gocardless", env.now.AddDate(0, 0, -1), env.now)
	require.NoError(t, err)
	assert.Empty(t, lines)

	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.Equal(t, "You should renew the authorization process with your bank institution for GoCardless.", lastMessage(t, p))
}

func TestStatementDataPlaidUnlinked(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.StatementData(context.Background(), "plaid", env.now.AddDate(0, 0, -1), env.now)
	assert.EqualError(t, err, `Provider "plaid" is not linked to Plaid`)
}

func TestPullStart(t *testing.T) {
	until := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		description string
		lastPull    time.Time
		expect      time.Time
	}{
		{
			description: "never pulled",
			expect:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			description: "overlaps last pull",
			lastPull:    time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			expect:      time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, PullStart(provider.Provider{LastPull: tc.lastPull}, until))
		})
	}
}
