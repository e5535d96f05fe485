package online

import (
	"github.com/johnstarich/banklink/config"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/statement"
	"go.uber.org/zap"
)

// Open creates a Service backed by db and configured by conf
func Open(db plaindb.DB, conf config.Config, logger *zap.Logger, m *metrics.Metrics) (*Service, error) {
	providers, err := provider.NewStore(db)
	if err != nil {
		return nil, err
	}
	statements, err := statement.NewStore(db)
	if err != nil {
		return nil, err
	}
	clients := NewClients(ClientsConfig{
		GoCardlessEndpoint: conf.Online.GoCardlessEndpoint,
		PlaidEndpoint:      conf.Online.PlaidEndpoint,
		Logger:             logger,
		Metrics:            m,
	})
	return New(Config{
		Providers:   providers,
		Statements:  statements,
		Clients:     clients,
		BaseURL:     conf.Server.BaseURL,
		Sandbox:     conf.Online.Sandbox,
		CompanyName: conf.Online.CompanyName,
		Language:    conf.Online.Language,
		Logger:      logger,
		Metrics:     m,
	}), nil
}
