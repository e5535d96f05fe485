package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/config"
	"github.com/johnstarich/banklink/consts"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/plaindb"
	"github.com/johnstarich/banklink/server"
	"github.com/johnstarich/banklink/sync"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEVELOPMENT") == "true" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openDB(conf config.Config) (plaindb.DB, error) {
	var opts []plaindb.DBOpt
	if conf.Data.VersionControl {
		opts = append(opts, plaindb.VersionControl(nil))
	}
	db, err := plaindb.Open(conf.Data.Dir, opts...)
	return db, errors.Wrapf(err, "Error opening database '%s'", conf.Data.Dir)
}

func start(ctx context.Context, isServer bool, conf config.Config, db plaindb.DB) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	service, err := online.Open(db, conf, logger, m)
	if err != nil {
		return err
	}

	if !isServer {
		return sync.Sync(ctx, logger, service)
	}
	gin.SetMode(gin.ReleaseMode)
	err = server.Run(ctx, server.Config{
		Addr:         fmt.Sprintf("0.0.0.0:%d", conf.Server.Port),
		Service:      service,
		Logger:       logger,
		Metrics:      m,
		SessionTTL:   conf.Server.SessionTTL,
		Password:     conf.Server.Password,
		UpdateCheck:  conf.Server.UpdateCheck,
		AutoSync:     conf.Pull.Auto,
		SyncInterval: conf.Pull.Interval,
	})
	if err != nil {
		logger.Error("Server run failed", zap.Error(err))
	}
	return err
}

func usage(flagSet *flag.FlagSet) string {
	oldOutput := flagSet.Output()
	buf := bytes.NewBuffer(nil)
	flagSet.SetOutput(buf)
	flagSet.Usage()
	flagSet.SetOutput(oldOutput)
	return buf.String()
}

// flagOverrides maps flags set on the command line to their config keys
func flagOverrides(flagSet *flag.FlagSet, keys map[string]string) map[string]interface{} {
	overrides := make(map[string]interface{})
	flagSet.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			overrides[key] = f.Value.(flag.Getter).Get()
		}
	})
	return overrides
}

func handleErrors(ctx context.Context, db *plaindb.DB) (usageErr bool, err error) {
	flagSet := flag.NewFlagSet("banklink", flag.ContinueOnError)
	isServer := flagSet.Bool("server", false, "Starts the banklink http server and pulls statements on an interval until terminated")
	configFile := flagSet.String("config", "", "Path to a config file. Defaults to banklink.toml in the working directory or ~/.config/banklink")
	flagSet.Uint("port", 0, "Sets the port the server listens on. Defaults to 8080. Implies -server")
	flagSet.String("data", "", "Path to a database directory. Defaults to ~/.local/share/banklink")
	flagSet.String("base-url", "", "The server's externally reachable URL, used for bank redirects")
	noSyncLoop := flagSet.Bool("no-auto-sync", false, "Disables the statement auto-pull")
	flagSet.Bool("sandbox", false, "Links Nordigen journals to the sandbox institution")
	requestVersion := flagSet.Bool("version", false, "Print the version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return true, err
	}
	if *requestVersion {
		fmt.Println(consts.Version)
		return false, nil
	}

	overrides := flagOverrides(flagSet, map[string]string{
		"port":     "server.port",
		"data":     "data.dir",
		"base-url": "server.base_url",
		"sandbox":  "online.sandbox",
	})
	if *noSyncLoop {
		overrides["pull.auto"] = false
	}
	if port, ok := overrides["server.port"].(uint); ok {
		*isServer = true
		if port == 0 || port > 1<<16-1 {
			return true, errors.Errorf("Port number must be a positive 16-bit integer: %d\n%s", port, usage(flagSet))
		}
	}

	conf, err := config.Load(*configFile, overrides)
	if err != nil {
		return true, err
	}

	*db, err = openDB(conf)
	if err != nil {
		return false, err
	}
	return false, start(ctx, *isServer, conf, *db)
}

func main() {
	var db plaindb.DB
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c)
		for {
			s := <-c
			fmt.Println(`{"level":"info","msg":"Handling signal: ` + s.String() + `"}`)
			switch s {
			case os.Interrupt:
				cancel()
				sync.Shutdown(db, 0)
			case os.Kill:
				sync.Shutdown(db, 1)
			}
		}
	}()
	usageErr, err := handleErrors(ctx, &db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if usageErr {
			sync.Shutdown(db, 2)
		}
		sync.Shutdown(db, 1)
	}
	sync.Shutdown(db, 0)
}
