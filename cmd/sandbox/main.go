package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/config"
	"github.com/johnstarich/banklink/sandbox"
	"go.uber.org/zap"
)

// serve a local aggregator with generated banks, accounts and transactions
func main() {
	configFile := flag.String("config", "", "Path to a config file")
	port := flag.Uint("port", 0, "Server port to listen on. Defaults to 8081")
	linkBase := flag.String("link-base", "", "The sandbox's externally reachable URL, prefixed to consent links")
	flag.Parse()

	if err := run(*configFile, *port, *linkBase); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

func run(configFile string, port uint, linkBase string) error {
	overrides := make(map[string]interface{})
	if port != 0 {
		overrides["sandbox.port"] = port
	}
	if linkBase != "" {
		overrides["sandbox.link_base"] = linkBase
	}
	conf, err := config.Load(configFile, overrides)
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)
	sandboxConf := sandbox.DefaultConfig()
	sandboxConf.LinkBase = conf.Sandbox.LinkBase

	addr := fmt.Sprintf("0.0.0.0:%d", conf.Sandbox.Port)
	logger.Info("Starting sandbox", zap.String("addr", addr), zap.String("secret_id", sandboxConf.SecretID))
	return http.ListenAndServe(addr, sandbox.New(sandboxConf, logger).Handler())
}
