// Package plaid is a client for the Plaid link and transactions API
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/redactor"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceName        = "plaid"
	dateFormat         = "2006-01-02"
	transactionsCount  = 500
	maxErrorBodyLength = 4096
)

// Hosts selectable on a provider
const (
	Sandbox     = "sandbox"
	Development = "development"
	Production  = "production"
)

var hostURLs = map[string]string{
	Sandbox:     "https://sandbox.plaid.com",
	Development: "https://development.plaid.com",
	Production:  "https://production.plaid.com",
}

// HostURL returns the API endpoint for a host name
func HostURL(host string) (string, error) {
	if u, ok := hostURLs[host]; ok {
		return u, nil
	}
	return "", errors.Errorf("Unknown Plaid host: %q", host)
}

// Error is an error response from the API
type Error struct {
	StatusCode     int    `json:"-"`
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
}

func (e *Error) Error() string {
	if e.ErrorCode == "" {
		return "Plaid request failed with status " + http.StatusText(e.StatusCode) + ": " + e.ErrorMessage
	}
	return "Plaid request failed: " + e.ErrorCode + ": " + e.ErrorMessage
}

// Config configures a Client
type Config struct {
	// Endpoint is the API base URL, see HostURL
	Endpoint   string
	ClientID   string
	Secret     redactor.String
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client calls the Plaid API
type Client struct {
	endpoint   string
	clientID   string
	secret     redactor.String
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a Client
func New(conf Config) *Client {
	if conf.HTTPClient == nil {
		conf.HTTPClient = http.DefaultClient
	}
	if conf.Limiter == nil {
		conf.Limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 10)
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	return &Client{
		endpoint:   strings.TrimSuffix(conf.Endpoint, "/"),
		clientID:   conf.ClientID,
		secret:     conf.Secret,
		httpClient: conf.HTTPClient,
		limiter:    conf.Limiter,
		logger:     conf.Logger.With(zap.String("service", serviceName)),
		metrics:    conf.Metrics,
	}
}

func (c *Client) post(ctx context.Context, operation, path string, body map[string]interface{}, dest interface{}) (returnErr error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(serviceName, operation, start, returnErr)
	}()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body["client_id"] = c.clientID
	body["secret"] = string(c.secret)
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.endpoint+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Sending request", zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "Error sending request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		apiErr := &Error{StatusCode: resp.StatusCode}
		errBody, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		if err := json.Unmarshal(errBody, apiErr); err != nil || apiErr.ErrorMessage == "" {
			apiErr.ErrorMessage = strings.TrimSpace(string(errBody))
		}
		return apiErr
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(dest), "Error parsing response body")
}

// LinkTokenRequest describes the Link flow to start
type LinkTokenRequest struct {
	ClientName   string
	CountryCodes []string
	Language     string
	Products     []string
	ClientUserID string
}

// CreateLinkToken creates a token which initializes Plaid Link in the user's browser
func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (string, error) {
	var resp struct {
		LinkToken string `json:"link_token"`
	}
	err := c.post(ctx, "link_token_create", "/link/token/create", map[string]interface{}{
		"client_name":   req.ClientName,
		"country_codes": req.CountryCodes,
		"language":      req.Language,
		"products":      req.Products,
		"user":          map[string]string{"client_user_id": req.ClientUserID},
	}, &resp)
	return resp.LinkToken, errors.Wrap(err, "Error getting link token")
}

// ExchangePublicToken exchanges the public token from a completed Link flow for an access token
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (redactor.String, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.post(ctx, "item_public_token_exchange", "/item/public_token/exchange", map[string]interface{}{
		"public_token": publicToken,
	}, &resp)
	return redactor.String(resp.AccessToken), errors.Wrap(err, "Error getting access token")
}

// SandboxPublicToken skips Link in the sandbox environment, returning a public token for an item at institutionID
func (c *Client) SandboxPublicToken(ctx context.Context, institutionID string, products []string) (string, error) {
	var resp struct {
		PublicToken string `json:"public_token"`
	}
	err := c.post(ctx, "sandbox_public_token_create", "/sandbox/public_token/create", map[string]interface{}{
		"institution_id":   institutionID,
		"initial_products": products,
	}, &resp)
	return resp.PublicToken, errors.Wrap(err, "Error getting sandbox public token")
}

// Transaction is a Plaid transaction. Positive amounts are money moving out of the account.
type Transaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode string          `json:"iso_currency_code"`
	Date            string          `json:"date"`
	Name            string          `json:"name"`
	MerchantName    string          `json:"merchant_name"`
	PaymentChannel  string          `json:"payment_channel"`
	Pending         bool            `json:"pending"`
	TransactionType string          `json:"transaction_type"`
}

// Transactions lists the transactions between from and to, fetching every page
func (c *Client) Transactions(ctx context.Context, accessToken redactor.String, from, to time.Time) ([]Transaction, error) {
	var transactions []Transaction
	for {
		var page struct {
			Transactions      []Transaction `json:"transactions"`
			TotalTransactions int           `json:"total_transactions"`
		}
		err := c.post(ctx, "transactions_get", "/transactions/get", map[string]interface{}{
			"access_token": string(accessToken),
			"start_date":   from.Format(dateFormat),
			"end_date":     to.Format(dateFormat),
			"options": map[string]int{
				"count":  transactionsCount,
				"offset": len(transactions),
			},
		}, &page)
		if err != nil {
			return nil, errors.Wrap(err, "Error getting transactions")
		}
		transactions = append(transactions, page.Transactions...)
		if len(page.Transactions) == 0 || len(transactions) >= page.TotalTransactions {
			return transactions, nil
		}
	}
}
