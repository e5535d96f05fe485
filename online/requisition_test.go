package online

import (
	"context"
	"testing"
	"time"

	"github.com/johnstarich/banklink/aggregator/nordigen"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) startRequisition(t *testing.T, service provider.Service, providerID, institutionID string) string {
	t.Helper()
	ctx := context.Background()
	backend := e.service.SelectorBackend(service)
	recordID := providerID
	if service == provider.Nordigen {
		recordID = "journal"
	}
	require.NoError(t, backend.WriteInstitution(ctx, recordID, institutionID))
	link, err := backend.CheckAgreement(ctx, []string{providerID})
	require.NoError(t, err)
	require.NotEmpty(t, link)
	return e.agree(t, providerID)
}

func lastMessage(t *testing.T, p provider.Provider) string {
	t.Helper()
	require.NotEmpty(t, p.Messages)
	return p.Messages[len(p.Messages)-1].Text
}

func TestFinishGoCardlessRequisition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := env.startRequisition(t, provider.GoCardless, "gocardless", sandbox.SandboxInstitutionID)

	_, found, err := env.service.FinishRequisition(ctx, provider.GoCardless, "not a ref")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = env.service.FinishRequisition(ctx, provider.Nordigen, ref)
	require.NoError(t, err)
	assert.False(t, found, "References are scoped by service")

	p, found, err := env.service.FinishRequisition(ctx, provider.GoCardless, ref)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "gocardless", p.ID)

	p, err = env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.NotEmpty(t, p.GoCardlessAccountID)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 90), p.GoCardlessRequisitionExpiration, time.Minute)
	assert.Equal(t, "Your account number GL33 4369 7694 9121 88 is successfully attached.", lastMessage(t, p))
}

func TestFinishRequisitionMismatch(t *testing.T) {
	env := newTestEnv(t)
	ref := env.startRequisition(t, provider.GoCardless, "gocardless", "ALPHA_ALPHFRPP")

	_, found, err := env.service.FinishRequisition(context.Background(), provider.GoCardless, ref)
	require.NoError(t, err)
	require.True(t, found)

	p, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	assert.Empty(t, p.GoCardlessAccountID)
	assert.Empty(t, p.GoCardlessRequisitionID)
	assert.Empty(t, p.GoCardlessRequisitionRef)
	assert.True(t, p.GoCardlessRequisitionExpiration.IsZero())
	assert.Equal(t,
		"Your account number GL33 4369 7694 9121 88 is not in the IBAN account numbers found FR7630006000011234567890189, please check",
		lastMessage(t, p))
}

func TestFinishNordigenRequisition(t *testing.T) {
	env := newTestEnv(t)
	ref := env.startRequisition(t, provider.Nordigen, "nordigen", nordigen.SandboxInstitutionID)

	_, found, err := env.service.FinishRequisition(context.Background(), provider.Nordigen, ref)
	require.NoError(t, err)
	require.True(t, found)

	j, err := env.store.Journal("journal")
	require.NoError(t, err)
	assert.NotEmpty(t, j.NordigenAccountID)
	p, err := env.store.Provider("nordigen")
	require.NoError(t, err)
	assert.Equal(t, env.now.AddDate(0, 0, nordigen.DefaultAccessValidForDays), p.NordigenLastRequisitionExpiration,
		"Default terms apply without agreement details")
	assert.Equal(t, "Your account number GL33 4369 7694 9121 88 is successfully attached.", lastMessage(t, p))
}

func TestLinkExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref := env.startRequisition(t, provider.GoCardless, "gocardless", sandbox.SandboxInstitutionID)
	_, _, err := env.service.FinishRequisition(ctx, provider.GoCardless, ref)
	require.NoError(t, err)

	require.NoError(t, env.store.PutProvider(provider.Provider{
		ID:        "gocardless-2",
		Service:   provider.GoCardless,
		JournalID: "journal",
		Username:  "sandbox-id",
		Password:  "sandbox-key",
	}))
	require.NoError(t, env.service.LinkExisting(ctx, "gocardless-2", "gocardless"))

	original, err := env.store.Provider("gocardless")
	require.NoError(t, err)
	linked, err := env.store.Provider("gocardless-2")
	require.NoError(t, err)
	assert.Equal(t, original.GoCardlessRequisitionID, linked.GoCardlessRequisitionID)
	assert.Equal(t, original.GoCardlessAccountID, linked.GoCardlessAccountID)
	assert.Equal(t, sandbox.SandboxInstitutionID, linked.GoCardlessInstitutionID)

	assert.EqualError(t, env.service.LinkExisting(ctx, "gocardless-2", "plaid"), `Provider "plaid" has no GoCardless requisition to link`)
	assert.EqualError(t, env.service.LinkExisting(ctx, "plaid", "gocardless"), `Provider "plaid" does not use gocardless`)
}
