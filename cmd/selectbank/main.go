// Command selectbank links providers to their banks from a terminal
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/aggregator/plaid"
	"github.com/johnstarich/banklink/config"
	"github.com/johnstarich/banklink/dashboard"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/plaidlogin"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sync"
	"github.com/johnstarich/banklink/tui"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// sandboxInstitution is the Plaid sandbox institution used by -plaid-sandbox
const sandboxInstitution = "ins_109508"

func main() {
	flagSet := flag.NewFlagSet("selectbank", flag.ExitOnError)
	configFile := flagSet.String("config", "", "Path to a config file")
	dataDir := flagSet.String("data", "", "Path to a database directory")
	providerID := flagSet.String("provider", "", "Links this provider. Opens the dashboard if empty")
	plaidSandbox := flagSet.Bool("plaid-sandbox", false, "Completes Plaid Link with a sandbox item instead of prompting for a public token")
	_ = flagSet.Parse(os.Args[1:])

	overrides := make(map[string]interface{})
	if *dataDir != "" {
		overrides["data.dir"] = *dataDir
	}

	var db plaindb.DB
	result, err := run(context.Background(), &db, *configFile, overrides, *providerID, *plaidSandbox)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		sync.Shutdown(db, 1)
	}
	if result != "" {
		fmt.Println(result)
	}
	sync.Shutdown(db, 0)
}

func run(ctx context.Context, db *plaindb.DB, configFile string, overrides map[string]interface{}, providerID string, plaidSandbox bool) (string, error) {
	conf, err := config.Load(configFile, overrides)
	if err != nil {
		return "", err
	}
	// the terminal owns stdout, so only warnings reach the log
	logConf := zap.NewProductionConfig()
	logConf.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := logConf.Build()
	if err != nil {
		return "", err
	}
	*db, err = plaindb.Open(conf.Data.Dir)
	if err != nil {
		return "", err
	}
	service, err := online.Open(*db, conf, logger, nil)
	if err != nil {
		return "", err
	}

	deps := tui.Deps{Service: service, Logger: logger}
	if plaidSandbox {
		deps.PlaidLink = sandboxLink(conf, service, providerID)
	}
	registry := tui.NewRegistry(ctx, deps)

	var app *tui.App
	if providerID == "" {
		controller := dashboard.WithImportButton(dashboard.NewJournalController(service.Providers(), service.Statements()))
		app = tui.NewApp(ctx, registry, tui.NewDashboardModel(ctx, controller))
	} else {
		a, err := providerAction(ctx, service, providerID)
		if err != nil {
			return "", err
		}
		app, err = tui.OpenApp(ctx, registry, a)
		if err != nil {
			return "", err
		}
	}

	if _, err := tea.NewProgram(app).Run(); err != nil {
		return "", errors.Wrap(err, "Terminal failed")
	}
	return app.Result(), app.Err()
}

func providerAction(ctx context.Context, service *online.Service, providerID string) (action.Action, error) {
	p, err := service.Providers().Provider(providerID)
	if err != nil {
		return action.Action{}, err
	}
	if p.Service == provider.Plaid {
		return service.PlaidLinkAction(ctx, providerID)
	}
	return service.SelectBankAction(ctx, providerID)
}

// sandboxLink creates sandbox public tokens with the Plaid provider's credentials
func sandboxLink(conf config.Config, service *online.Service, providerID string) plaidlogin.Link {
	return plaidlogin.LinkFunc(func(ctx context.Context, linkToken string) (string, error) {
		p, err := service.Providers().Provider(providerID)
		if err != nil {
			return "", err
		}
		endpoint := conf.Online.PlaidEndpoint
		if endpoint == "" {
			endpoint, err = plaid.HostURL(plaid.Sandbox)
			if err != nil {
				return "", err
			}
		}
		client := plaid.New(plaid.Config{
			Endpoint: endpoint,
			ClientID: p.Username,
			Secret:   p.Password,
		})
		return client.SandboxPublicToken(ctx, sandboxInstitution, []string{"transactions"})
	})
}
