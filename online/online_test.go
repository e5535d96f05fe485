package online

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/aggregator/gocardless"
	"github.com/johnstarich/banklink/aggregator/nordigen"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/johnstarich/banklink/statement"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://banklink.test"

func init() {
	gin.SetMode(gin.TestMode)
}

// nordigenSandbox answers Nordigen providers with a GoCardless client against the sandbox, without agreement details
type nordigenSandbox struct {
	Clients
	sandboxClient aggregator.Client
}

type noAgreementClient struct {
	aggregator.Client
}

func (c noAgreementClient) Agreement(ctx context.Context, id string) (aggregator.Agreement, error) {
	return aggregator.Agreement{}, nordigen.ErrAgreementUnsupported
}

func (n nordigenSandbox) OpenBanking(p provider.Provider) (aggregator.Client, error) {
	if p.Service == provider.Nordigen {
		return noAgreementClient{n.sandboxClient}, nil
	}
	return n.Clients.OpenBanking(p)
}

type testEnv struct {
	service *Service
	store   *provider.Store
	sandbox *sandbox.Server
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	conf := sandbox.DefaultConfig()
	sandboxServer := sandbox.New(conf, nil)
	server := httptest.NewServer(sandboxServer.Handler())
	t.Cleanup(server.Close)

	db := plaindb.NewMockDB(plaindb.MockConfig{})
	store, err := provider.NewStore(db)
	require.NoError(t, err)
	statements, err := statement.NewStore(db)
	require.NoError(t, err)

	clients := NewClients(ClientsConfig{
		GoCardlessEndpoint: server.URL + "/api/v2",
		PlaidEndpoint:      server.URL + "/plaid",
		HTTPClient:         server.Client(),
	})
	env := &testEnv{
		store:   store,
		sandbox: sandboxServer,
		now:     time.Now(),
	}
	env.service = New(Config{
		Providers:  store,
		Statements: statements,
		Clients: nordigenSandbox{
			Clients: clients,
			sandboxClient: gocardless.New(gocardless.Config{
				Endpoint:   server.URL + "/api/v2",
				SecretID:   conf.SecretID,
				SecretKey:  conf.SecretKey,
				HTTPClient: server.Client(),
			}),
		},
		BaseURL: testBaseURL + "/",
		Sandbox: true,
	})
	env.service.now = func() time.Time { return env.now }

	require.NoError(t, store.PutJournal(provider.Journal{
		ID:             "journal",
		Name:           "Main account",
		CompanyCountry: "FR",
		BankAccount:    "GL33 4369 7694 9121 88",
		Currency:       "EUR",
	}))
	require.NoError(t, store.PutJournal(provider.Journal{ID: "unconfigured", Name: "Cash", CompanyCountry: "DE"}))
	for _, p := range []provider.Provider{
		{ID: "gocardless", Service: provider.GoCardless, JournalID: "journal"},
		{ID: "nordigen", Service: provider.Nordigen, JournalID: "journal"},
		{ID: "plaid", Service: provider.Plaid, JournalID: "journal"},
		{ID: "no-account", Service: provider.GoCardless, JournalID: "unconfigured"},
	} {
		p.Username = conf.SecretID
		p.Password = conf.SecretKey
		require.NoError(t, store.PutProvider(p))
	}
	return env
}

// agree accepts the provider's latest requisition at the sandbox bank and returns the reference from the redirect
func (e *testEnv) agree(t *testing.T, providerID string) string {
	t.Helper()
	p, err := e.store.Provider(providerID)
	require.NoError(t, err)
	requisitionID := p.GoCardlessRequisitionID
	if p.Service == provider.Nordigen {
		requisitionID = p.NordigenLastRequisitionID
	}
	redirect, err := e.sandbox.Agree(requisitionID)
	require.NoError(t, err)
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	return u.Query().Get("ref")
}
