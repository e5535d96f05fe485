// Package gocardless is a client for the GoCardless bank account data API
package gocardless

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/redactor"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the production API endpoint
	DefaultEndpoint = "https://bankaccountdata.gocardless.com/api/v2"

	serviceName        = "gocardless"
	dateFormat         = "2006-01-02"
	accessTokenKey     = "access"
	refreshTokenKey    = "refresh"
	tokenExpiryMargin  = 30 * time.Second
	maxErrorBodyLength = 4096
)

// ErrUnsupportedCountry is returned when listing institutions for an unknown country
var ErrUnsupportedCountry = errors.New("Incorrect country code or country not supported")

// Config configures a Client
type Config struct {
	// Endpoint is the API base URL. Defaults to DefaultEndpoint.
	Endpoint  string
	SecretID  string
	SecretKey redactor.String
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
	// Limiter throttles requests. Defaults to 4 requests per second.
	Limiter *rate.Limiter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Client calls the bank account data API with a cached access token
type Client struct {
	endpoint   string
	secretID   string
	secretKey  redactor.String
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	tokenMu sync.Mutex
	tokens  *cache.Cache
}

var _ aggregator.Client = &Client{}

// New creates a Client
func New(conf Config) *Client {
	if conf.Endpoint == "" {
		conf.Endpoint = DefaultEndpoint
	}
	if conf.HTTPClient == nil {
		conf.HTTPClient = http.DefaultClient
	}
	if conf.Limiter == nil {
		conf.Limiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 4)
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	return &Client{
		endpoint:   strings.TrimSuffix(conf.Endpoint, "/"),
		secretID:   conf.SecretID,
		secretKey:  conf.SecretKey,
		httpClient: conf.HTTPClient,
		limiter:    conf.Limiter,
		logger:     conf.Logger.With(zap.String("service", serviceName)),
		metrics:    conf.Metrics,
		now:        time.Now,
		tokens:     cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// StatusError is an unexpected API response
type StatusError struct {
	StatusCode int    `json:"status_code"`
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
}

func (e *StatusError) Error() string {
	message := "Unexpected response status " + http.StatusText(e.StatusCode)
	if e.Summary != "" {
		message += ": " + e.Summary
	}
	if e.Detail != "" {
		message += ": " + e.Detail
	}
	return message
}

type tokenResponse struct {
	Access         string `json:"access"`
	AccessExpires  int    `json:"access_expires"`
	Refresh        string `json:"refresh"`
	RefreshExpires int    `json:"refresh_expires"`
}

func expiresIn(seconds int) time.Duration {
	return time.Duration(seconds)*time.Second - tokenExpiryMargin
}

// token returns a valid access token, refreshing it or requesting a new one if necessary
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if token, found := c.tokens.Get(accessTokenKey); found {
		return token.(string), nil
	}

	var resp tokenResponse
	if refresh, found := c.tokens.Get(refreshTokenKey); found {
		err := c.do(ctx, "token_refresh", http.MethodPost, "/token/refresh/", nil, map[string]string{
			"refresh": refresh.(string),
		}, false, http.StatusOK, &resp)
		if err == nil {
			c.setAccessToken(resp)
			return resp.Access, nil
		}
		c.logger.Info("Failed to refresh access token, requesting a new one", zap.Error(err))
		c.tokens.Delete(refreshTokenKey)
	}

	err := c.do(ctx, "token_new", http.MethodPost, "/token/new/", nil, map[string]string{
		"secret_id":  c.secretID,
		"secret_key": string(c.secretKey),
	}, false, http.StatusOK, &resp)
	if err != nil {
		return "", errors.Wrap(err, "Failed to create access token")
	}
	c.setAccessToken(resp)
	if resp.Refresh != "" {
		if d := expiresIn(resp.RefreshExpires); d > 0 {
			c.tokens.Set(refreshTokenKey, resp.Refresh, d)
		}
	}
	return resp.Access, nil
}

func (c *Client) setAccessToken(resp tokenResponse) {
	if d := expiresIn(resp.AccessExpires); d > 0 {
		c.tokens.Set(accessTokenKey, resp.Access, d)
	}
}

func (c *Client) do(
	ctx context.Context,
	operation, method, path string,
	query url.Values,
	body interface{},
	authenticated bool,
	expectStatus int,
	dest interface{},
) (returnErr error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(serviceName, operation, start, returnErr)
	}()

	var token string
	if authenticated {
		var err error
		token, err = c.token(ctx)
		if err != nil {
			return err
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}
	reqURL := c.endpoint + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Sending request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "Error sending request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectStatus {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		errBody, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		if err := json.Unmarshal(errBody, statusErr); err != nil || statusErr.Summary == "" {
			statusErr.Detail = strings.TrimSpace(string(errBody))
		}
		statusErr.StatusCode = resp.StatusCode
		if resp.StatusCode == http.StatusUnauthorized && authenticated {
			c.tokens.Delete(accessTokenKey)
		}
		if resp.StatusCode == http.StatusNotFound {
			return errors.Wrap(aggregator.ErrNotFound, statusErr.Error())
		}
		return statusErr
	}
	if dest == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(dest), "Error parsing response body")
}

// Institutions implements aggregator.Client
func (c *Client) Institutions(ctx context.Context, country string) ([]institution.Institution, error) {
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}
	var institutions []institution.Institution
	err := c.do(ctx, "institutions", http.MethodGet, "/institutions/", query, nil, true, http.StatusOK, &institutions)
	if statusErr, ok := err.(*StatusError); ok && statusErr.StatusCode == http.StatusBadRequest {
		return nil, ErrUnsupportedCountry
	}
	return institutions, err
}

// CreateRequisition implements aggregator.Client
func (c *Client) CreateRequisition(ctx context.Context, req aggregator.RequisitionRequest) (aggregator.Requisition, error) {
	var requisition aggregator.Requisition
	err := c.do(ctx, "create_requisition", http.MethodPost, "/requisitions/", nil, req, true, http.StatusCreated, &requisition)
	return requisition, errors.Wrap(err, "Create requisition")
}

// Requisition implements aggregator.Client
func (c *Client) Requisition(ctx context.Context, id string) (aggregator.Requisition, error) {
	var requisition aggregator.Requisition
	err := c.do(ctx, "requisition", http.MethodGet, "/requisitions/"+url.PathEscape(id)+"/", nil, nil, true, http.StatusOK, &requisition)
	return requisition, errors.Wrap(err, "Get requisition")
}

// Account implements aggregator.Client
func (c *Client) Account(ctx context.Context, id string) (aggregator.Account, error) {
	var account aggregator.Account
	err := c.do(ctx, "account", http.MethodGet, "/accounts/"+url.PathEscape(id)+"/", nil, nil, true, http.StatusOK, &account)
	return account, errors.Wrap(err, "Get account")
}

// Agreement implements aggregator.Client
func (c *Client) Agreement(ctx context.Context, id string) (aggregator.Agreement, error) {
	var agreement aggregator.Agreement
	err := c.do(ctx, "agreement", http.MethodGet, "/agreements/enduser/"+url.PathEscape(id)+"/", nil, nil, true, http.StatusOK, &agreement)
	return agreement, errors.Wrap(err, "Get agreement")
}

// Transactions implements aggregator.Client. The API rejects future dates, so an end date after now is clamped to now.
func (c *Client) Transactions(ctx context.Context, accountID string, from, to time.Time) (aggregator.Transactions, error) {
	now := c.now()
	if now.After(from) && now.Before(to) {
		to = now
	}
	query := url.Values{}
	query.Set("date_from", from.Format(dateFormat))
	query.Set("date_to", to.Format(dateFormat))
	var transactions aggregator.Transactions
	err := c.do(ctx, "transactions", http.MethodGet, "/accounts/"+url.PathEscape(accountID)+"/transactions/", query, nil, true, http.StatusOK, &transactions)
	return transactions, errors.Wrap(err, "Get transactions")
}
