package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/sandbox"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHostURL(t *testing.T) {
	for _, tc := range []struct {
		host      string
		expect    string
		expectErr bool
	}{
		{host: Sandbox, expect: "https://sandbox.plaid.com"},
		{host: Development, expect: "https://development.plaid.com"},
		{host: Production, expect: "https://production.plaid.com"},
		{host: "staging", expectErr: true},
	} {
		t.Run(tc.host, func(t *testing.T) {
			u, err := HostURL(tc.host)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, u)
		})
	}
}

func TestSandboxFlow(t *testing.T) {
	conf := sandbox.DefaultConfig()
	sandboxServer := sandbox.New(conf, nil)
	server := httptest.NewServer(sandboxServer.Handler())
	defer server.Close()
	client := New(Config{
		Endpoint:   server.URL + "/plaid",
		ClientID:   conf.SecretID,
		Secret:     conf.SecretKey,
		HTTPClient: server.Client(),
	})
	ctx := context.Background()

	linkToken, err := client.CreateLinkToken(ctx, LinkTokenRequest{
		ClientName:   "Banklink",
		CountryCodes: []string{"US"},
		Language:     "en",
		Products:     []string{"transactions"},
		ClientUserID: "client",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, linkToken)

	_, err = client.ExchangePublicToken(ctx, "bogus")
	require.Error(t, err)
	apiErr, ok := errors.Cause(err).(*Error)
	require.True(t, ok)
	assert.Equal(t, "INVALID_PUBLIC_TOKEN", apiErr.ErrorCode)

	accessToken, err := client.ExchangePublicToken(ctx, sandboxServer.PlaidPublicToken())
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)

	publicToken, err := client.SandboxPublicToken(ctx, "ins_109508", []string{"transactions"})
	require.NoError(t, err)
	_, err = client.ExchangePublicToken(ctx, publicToken)
	assert.NoError(t, err)

	transactions, err := client.Transactions(ctx, accessToken,
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, transactions)
	seen := make(map[string]bool)
	for _, txn := range transactions {
		assert.False(t, seen[txn.TransactionID], "Duplicate transaction %s", txn.TransactionID)
		seen[txn.TransactionID] = true
	}
}

func TestTransactionsPagination(t *testing.T) {
	var offsets []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Options struct {
				Offset int `json:"offset"`
			} `json:"options"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		offsets = append(offsets, req.Options.Offset)
		page := `[{"transaction_id": "a", "amount": 1.5}, {"transaction_id": "b", "amount": -2}]`
		if req.Options.Offset >= 2 {
			page = `[{"transaction_id": "c", "amount": 12.25}]`
		}
		_, _ = w.Write([]byte(`{"transactions": ` + page + `, "total_transactions": 3}`))
	}))
	defer server.Close()

	client := New(Config{Endpoint: server.URL, HTTPClient: server.Client()})
	transactions, err := client.Transactions(context.Background(), "token", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, offsets)
	require.Len(t, transactions, 3)
	assert.Equal(t, "12.25", transactions[2].Amount.String())
	assert.Equal(t, "-2", transactions[1].Amount.String())
}
