// Package nordigen adapts the Nordigen open banking library to aggregator.Client
package nordigen

import (
	"context"
	"time"

	nordigen "github.com/frieser/nordigen-go-lib/v2"
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
	serviceName = "nordigen"
	dateFormat  = "2006-01-02"
	// SandboxInstitutionID always succeeds to link test accounts
	SandboxInstitutionID = "SANDBOXFINANCE_SFIN0000"
	// DefaultAccessValidForDays is the access period of agreements created with default terms
	DefaultAccessValidForDays = 90
	apiCacheDuration          = 12 * time.Hour
)

// ErrAgreementUnsupported is returned by Agreement, which the library does not expose. Callers should assume default agreement terms.
var ErrAgreementUnsupported = errors.New("Agreement details are not available from Nordigen")

// api is the subset of the library client in use
type api interface {
	ListInstitutions(country string) ([]nordigen.Institution, error)
	CreateRequisition(r nordigen.Requisition) (nordigen.Requisition, error)
	GetRequisition(id string) (nordigen.Requisition, error)
	GetAccountMetadata(id string) (nordigen.AccountMetadata, error)
	GetAccountTransactions(id string) (nordigen.AccountTransactions, error)
}

// Config configures a Client
type Config struct {
	SecretID  string
	SecretKey redactor.String
	// Limiter throttles requests. Defaults to 4 requests per second.
	Limiter *rate.Limiter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Client calls Nordigen with a library client, created on first use and cached
type Client struct {
	secretID  string
	secretKey redactor.String
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	apis      *cache.Cache
	newAPI    func(secretID, secretKey string) (api, error)
}

var _ aggregator.Client = &Client{}

// New creates a Client
func New(conf Config) *Client {
	if conf.Limiter == nil {
		conf.Limiter = rate.NewLimiter(rate.Every(250*time.Millisecond), 4)
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	return &Client{
		secretID:  conf.SecretID,
		secretKey: conf.SecretKey,
		limiter:   conf.Limiter,
		logger:    conf.Logger.With(zap.String("service", serviceName)),
		metrics:   conf.Metrics,
		apis:      cache.New(apiCacheDuration, apiCacheDuration/4),
		newAPI: func(secretID, secretKey string) (api, error) {
			return nordigen.NewClient(secretID, secretKey)
		},
	}
}

func (c *Client) api() (api, error) {
	if cached, found := c.apis.Get(c.secretID); found {
		return cached.(api), nil
	}
	client, err := c.newAPI(c.secretID, string(c.secretKey))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create Nordigen client")
	}
	c.apis.SetDefault(c.secretID, client)
	return client, nil
}

// call runs fn with the library client, once the rate limit allows
func (c *Client) call(ctx context.Context, operation string, fn func(api) error) (returnErr error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRequest(serviceName, operation, start, returnErr)
	}()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	client, err := c.api()
	if err != nil {
		return err
	}
	c.logger.Debug("Calling Nordigen", zap.String("operation", operation))
	return fn(client)
}

// Institutions implements aggregator.Client
func (c *Client) Institutions(ctx context.Context, country string) ([]institution.Institution, error) {
	var institutions []institution.Institution
	err := c.call(ctx, "institutions", func(client api) error {
		libInstitutions, err := client.ListInstitutions(country)
		if err != nil {
			return err
		}
		return aggregator.Convert(libInstitutions, &institutions)
	})
	return institutions, errors.Wrap(err, "List institutions")
}

// CreateRequisition implements aggregator.Client
func (c *Client) CreateRequisition(ctx context.Context, req aggregator.RequisitionRequest) (aggregator.Requisition, error) {
	var requisition aggregator.Requisition
	err := c.call(ctx, "create_requisition", func(client api) error {
		var libReq nordigen.Requisition
		if err := aggregator.Convert(req, &libReq); err != nil {
			return err
		}
		libRequisition, err := client.CreateRequisition(libReq)
		if err != nil {
			return err
		}
		return aggregator.Convert(libRequisition, &requisition)
	})
	return requisition, errors.Wrap(err, "Create requisition")
}

// Requisition implements aggregator.Client
func (c *Client) Requisition(ctx context.Context, id string) (aggregator.Requisition, error) {
	var requisition aggregator.Requisition
	err := c.call(ctx, "requisition", func(client api) error {
		libRequisition, err := client.GetRequisition(id)
		if err != nil {
			return err
		}
		return aggregator.Convert(libRequisition, &requisition)
	})
	return requisition, errors.Wrap(err, "Get requisition")
}

// Account implements aggregator.Client
func (c *Client) Account(ctx context.Context, id string) (aggregator.Account, error) {
	var account aggregator.Account
	err := c.call(ctx, "account", func(client api) error {
		metadata, err := client.GetAccountMetadata(id)
		if err != nil {
			return err
		}
		return aggregator.Convert(metadata, &account)
	})
	return account, errors.Wrap(err, "Get account")
}

// Agreement implements aggregator.Client. Always returns ErrAgreementUnsupported.
func (c *Client) Agreement(ctx context.Context, id string) (aggregator.Agreement, error) {
	return aggregator.Agreement{ID: id}, ErrAgreementUnsupported
}

// Transactions implements aggregator.Client. The library lists all available transactions, so they are filtered to [from, to] here.
func (c *Client) Transactions(ctx context.Context, accountID string, from, to time.Time) (aggregator.Transactions, error) {
	var all aggregator.Transactions
	err := c.call(ctx, "transactions", func(client api) error {
		libTransactions, err := client.GetAccountTransactions(accountID)
		if err != nil {
			return err
		}
		return aggregator.Convert(libTransactions, &all)
	})
	if err != nil {
		return all, errors.Wrap(err, "Get transactions")
	}

	fromDay, toDay := from.Format(dateFormat), to.Format(dateFormat)
	var result aggregator.Transactions
	for _, txn := range all.Transactions.Booked {
		date := txn.BookingDate
		if date == "" {
			date = txn.ValueDate
		}
		if date == "" || (date >= fromDay && date <= toDay) {
			// undated transactions are passed through for the statement mapping to decide on
			result.Transactions.Booked = append(result.Transactions.Booked, txn)
		}
	}
	return result, nil
}
