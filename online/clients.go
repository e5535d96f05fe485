package online

import (
	"net/http"
	"strings"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/aggregator/gocardless"
	"github.com/johnstarich/banklink/aggregator/nordigen"
	"github.com/johnstarich/banklink/aggregator/plaid"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/provider"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const clientCacheDuration = time.Hour

// ClientsConfig configures the default Clients
type ClientsConfig struct {
	// GoCardlessEndpoint overrides the GoCardless API URL
	GoCardlessEndpoint string
	// PlaidEndpoint overrides the URL selected by a provider's Plaid host
	PlaidEndpoint string
	HTTPClient    *http.Client
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

type cachedClients struct {
	conf    ClientsConfig
	clients *cache.Cache
}

// NewClients returns Clients which reuse a client, and its access token, while a provider's credentials are unchanged
func NewClients(conf ClientsConfig) Clients {
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	return &cachedClients{
		conf:    conf,
		clients: cache.New(clientCacheDuration, clientCacheDuration/4),
	}
}

func clientKey(p provider.Provider) string {
	return strings.Join([]string{string(p.Service), p.ID, p.Username, string(p.Password), p.PlaidHost}, "|")
}

func (c *cachedClients) OpenBanking(p provider.Provider) (aggregator.Client, error) {
	key := clientKey(p)
	if cached, found := c.clients.Get(key); found {
		return cached.(aggregator.Client), nil
	}
	var client aggregator.Client
	switch p.Service {
	case provider.GoCardless:
		client = gocardless.New(gocardless.Config{
			Endpoint:   c.conf.GoCardlessEndpoint,
			SecretID:   p.Username,
			SecretKey:  p.Password,
			HTTPClient: c.conf.HTTPClient,
			Logger:     c.conf.Logger,
			Metrics:    c.conf.Metrics,
		})
	case provider.Nordigen:
		client = nordigen.New(nordigen.Config{
			SecretID:  p.Username,
			SecretKey: p.Password,
			Logger:    c.conf.Logger,
			Metrics:   c.conf.Metrics,
		})
	default:
		return nil, errors.Errorf("Unsupported open banking service: %q", p.Service)
	}
	c.clients.SetDefault(key, client)
	return client, nil
}

func (c *cachedClients) Plaid(p provider.Provider) (PlaidClient, error) {
	if p.Service != provider.Plaid {
		return nil, errors.Errorf("Provider %q does not use Plaid", p.ID)
	}
	key := clientKey(p)
	if cached, found := c.clients.Get(key); found {
		return cached.(PlaidClient), nil
	}
	endpoint := c.conf.PlaidEndpoint
	if endpoint == "" {
		host := p.PlaidHost
		if host == "" {
			host = plaid.Sandbox
		}
		var err error
		endpoint, err = plaid.HostURL(host)
		if err != nil {
			return nil, err
		}
	}
	client := plaid.New(plaid.Config{
		Endpoint:   endpoint,
		ClientID:   p.Username,
		Secret:     p.Password,
		HTTPClient: c.conf.HTTPClient,
		Logger:     c.conf.Logger,
		Metrics:    c.conf.Metrics,
	})
	c.clients.SetDefault(key, client)
	return client, nil
}
