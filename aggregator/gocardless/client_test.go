package gocardless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSandboxClient(t *testing.T) (*Client, *sandbox.Server) {
	conf := sandbox.DefaultConfig()
	sandboxServer := sandbox.New(conf, nil)
	server := httptest.NewServer(sandboxServer.Handler())
	t.Cleanup(server.Close)
	client := New(Config{
		Endpoint:   server.URL + "/api/v2",
		SecretID:   conf.SecretID,
		SecretKey:  conf.SecretKey,
		HTTPClient: server.Client(),
	})
	return client, sandboxServer
}

func TestInstitutions(t *testing.T) {
	client, _ := newSandboxClient(t)
	ctx := context.Background()

	institutions, err := client.Institutions(ctx, "GB")
	require.NoError(t, err)
	var ids []string
	for _, inst := range institutions {
		ids = append(ids, inst.ID)
	}
	assert.Equal(t, []string{sandbox.SandboxInstitutionID, "GAMMA_GAMMGB2L"}, ids)
	assert.Equal(t, "365", institutions[1].TransactionTotalDays)

	_, err = client.Institutions(ctx, "ZZ")
	assert.Equal(t, ErrUnsupportedCountry, err)

	all, err := client.Institutions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, len(sandbox.DefaultConfig().Institutions))
}

func TestRequisitionFlow(t *testing.T) {
	client, sandboxServer := newSandboxClient(t)
	ctx := context.Background()

	_, err := client.CreateRequisition(ctx, aggregator.RequisitionRequest{
		Redirect:      "http://localhost/gocardless/response",
		InstitutionID: "NOT_A_BANK",
		Reference:     "ref",
	})
	require.Error(t, err)
	statusErr, ok := errors.Cause(err).(*StatusError)
	require.True(t, ok, "Expected status error, got %T", errors.Cause(err))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)

	requisition, err := client.CreateRequisition(ctx, aggregator.RequisitionRequest{
		Redirect:      "http://localhost/gocardless/response",
		InstitutionID: "ALPHA_ALPHFRPP",
		Reference:     "ref",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, requisition.Link)

	redirect, err := sandboxServer.Agree(requisition.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/gocardless/response?ref=ref", redirect)

	requisition, err = client.Requisition(ctx, requisition.ID)
	require.NoError(t, err)
	require.Len(t, requisition.Accounts, 1)

	account, err := client.Account(ctx, requisition.Accounts[0])
	require.NoError(t, err)
	assert.Equal(t, "FR7630006000011234567890189", account.IBAN)

	agreement, err := client.Agreement(ctx, requisition.Agreement)
	require.NoError(t, err)
	assert.Equal(t, 90, agreement.AccessValidForDays)

	_, err = client.Account(ctx, "missing")
	assert.Equal(t, aggregator.ErrNotFound, errors.Cause(err))

	now := time.Now()
	transactions, err := client.Transactions(ctx, account.ID, now.AddDate(0, -3, 0), now.AddDate(0, 0, 10))
	require.NoError(t, err, "End dates in the future are clamped to now")
	assert.NotEmpty(t, transactions.Transactions.Booked)
}

func TestTokenReuse(t *testing.T) {
	var tokenRequests, institutionRequests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token/new/":
			atomic.AddInt32(&tokenRequests, 1)
			_, _ = w.Write([]byte(`{"access": "a", "access_expires": 86400, "refresh": "r", "refresh_expires": 2592000}`))
		case "/institutions/":
			atomic.AddInt32(&institutionRequests, 1)
			if r.Header.Get("Authorization") != "Bearer a" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[{"id": "X", "name": "X Bank", "countries": ["FR"]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := New(Config{Endpoint: server.URL, HTTPClient: server.Client()})
	for i := 0; i < 3; i++ {
		institutions, err := client.Institutions(context.Background(), "FR")
		require.NoError(t, err)
		assert.Len(t, institutions, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenRequests))
	assert.Equal(t, int32(3), atomic.LoadInt32(&institutionRequests))
}

func TestTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"summary": "Authentication failed", "detail": "No active account found with the given credentials", "status_code": 401}`))
	}))
	defer server.Close()

	client := New(Config{Endpoint: server.URL, HTTPClient: server.Client()})
	_, err := client.Institutions(context.Background(), "FR")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to create access token")
	assert.Contains(t, err.Error(), "No active account found")
}
