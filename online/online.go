// Package online links journals to aggregators and pulls their statements
package online

import (
	"context"
	"strings"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/aggregator/plaid"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/redactor"
	"github.com/johnstarich/banklink/statement"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	institutionCacheDuration = time.Hour
	// DefaultPullDays is how far back the first pull of a provider reaches
	DefaultPullDays = 30
	// pullOverlap re-reads recent days, picking up transactions booked late
	pullOverlap = 2 * 24 * time.Hour
)

// PlaidClient is the subset of the Plaid API used to link and pull
type PlaidClient interface {
	CreateLinkToken(ctx context.Context, req plaid.LinkTokenRequest) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (redactor.String, error)
	Transactions(ctx context.Context, accessToken redactor.String, from, to time.Time) ([]plaid.Transaction, error)
}

// Clients creates aggregator clients with a provider's credentials
type Clients interface {
	OpenBanking(p provider.Provider) (aggregator.Client, error)
	Plaid(p provider.Provider) (PlaidClient, error)
}

// Config configures a Service
type Config struct {
	Providers  *provider.Store
	Statements *statement.Store
	Clients    Clients
	// BaseURL is this server's externally reachable URL, used for aggregator redirects
	BaseURL string
	// Sandbox links Nordigen journals to the sandbox institution regardless of their selection
	Sandbox bool
	// CompanyName is shown to the user in Plaid Link
	CompanyName string
	// Language is the Plaid Link language. Defaults to "en".
	Language string
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Service performs the provider operations behind the selector, callback and pull endpoints
type Service struct {
	providers    *provider.Store
	statements   *statement.Store
	clients      Clients
	baseURL      string
	sandbox      bool
	companyName  string
	language     string
	logger       *zap.Logger
	metrics      *metrics.Metrics
	institutions *cache.Cache
	now          func() time.Time
	newRef       func() string
}

// New creates a Service
func New(conf Config) *Service {
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	if conf.Language == "" {
		conf.Language = "en"
	}
	return &Service{
		providers:    conf.Providers,
		statements:   conf.Statements,
		clients:      conf.Clients,
		baseURL:      strings.TrimSuffix(conf.BaseURL, "/"),
		sandbox:      conf.Sandbox,
		companyName:  conf.CompanyName,
		language:     conf.Language,
		logger:       conf.Logger,
		metrics:      conf.Metrics,
		institutions: cache.New(institutionCacheDuration, institutionCacheDuration/4),
		now:          time.Now,
		newRef:       newRequisitionRef,
	}
}

// Providers returns the provider store
func (s *Service) Providers() *provider.Store {
	return s.providers
}

// Statements returns the statement line store
func (s *Service) Statements() *statement.Store {
	return s.statements
}

func (s *Service) openBanking(p provider.Provider) (aggregator.Client, error) {
	if p.Service != provider.GoCardless && p.Service != provider.Nordigen {
		return nil, errors.Errorf("Provider %q does not use an open banking service", p.ID)
	}
	return s.clients.OpenBanking(p)
}

// listInstitutions returns the institutions of a country, cached per provider credentials
func (s *Service) listInstitutions(ctx context.Context, p provider.Provider, country string) ([]institution.Institution, error) {
	key := strings.Join([]string{string(p.Service), p.Username, country}, "|")
	if cached, found := s.institutions.Get(key); found {
		return cached.([]institution.Institution), nil
	}
	client, err := s.openBanking(p)
	if err != nil {
		return nil, err
	}
	institutions, err := client.Institutions(ctx, country)
	if err != nil {
		return nil, err
	}
	s.institutions.SetDefault(key, institutions)
	return institutions, nil
}

func (s *Service) post(providerID, text string) {
	if err := s.providers.PostMessage(providerID, text); err != nil {
		s.logger.Error("Failed to post provider message", zap.String("provider", providerID), zap.Error(err))
	}
}
