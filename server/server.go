package server

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/dashboard"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/reconcile"
	"github.com/johnstarich/banklink/redactor"
	"github.com/johnstarich/banklink/sync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultSyncInterval = 4 * time.Hour
	loggerKey           = "logger"
	githubAPI           = "api.github.com"
	upstreamRepo        = "johnstarich/banklink"
)

// Config configures the HTTP server
type Config struct {
	Addr    string
	Service *online.Service
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// SessionTTL is how long an idle selector session lives
	SessionTTL time.Duration
	// Password requires API clients to sign in. Empty disables authentication.
	Password redactor.String
	// UpdateCheck compares the running version with the latest upstream release
	UpdateCheck bool
	HTTPClient  *http.Client
	// AutoSync pulls every active provider on start and then every SyncInterval
	AutoSync     bool
	SyncInterval time.Duration
}

// Server serves the selector session API, aggregator callbacks and the web page
type Server struct {
	conf      Config
	sessions  *sessionStore
	dashboard dashboard.Controller
	lines     reconcile.LineRenderer
	auth      *authenticator
}

// New creates a Server
func New(conf Config) *Server {
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	if conf.Gatherer == nil {
		conf.Gatherer = prometheus.DefaultGatherer
	}
	if conf.SessionTTL <= 0 {
		conf.SessionTTL = defaultSessionTTL
	}
	if conf.SyncInterval <= 0 {
		conf.SyncInterval = defaultSyncInterval
	}
	if conf.HTTPClient == nil {
		conf.HTTPClient = http.DefaultClient
	}
	s := &Server{
		conf:      conf,
		sessions:  newSessionStore(conf.SessionTTL, conf.Metrics),
		dashboard: dashboard.WithImportButton(dashboard.NewJournalController(conf.Service.Providers(), conf.Service.Statements())),
		lines:     reconcile.WithPartnerPlaceholder(reconcile.FieldsRenderer{}),
	}
	if conf.Password != "" {
		s.auth = newAuthenticator(conf.Password)
	}
	return s
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	logger := s.conf.Logger
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		//ginzap.RecoveryWithZap(logger, true), // TODO restore recovery when https://github.com/gin-contrib/zap/pull/10 is merged
		recovery(logger, true),
		func(c *gin.Context) {
			c.Set(loggerKey, logger)
		},
	)
	engine.GET("/", func(c *gin.Context) { c.Redirect(http.StatusTemporaryRedirect, "/web") })
	engine.StaticFS("/web", newDefaultRouteFS("/index.html", webFS(), "/static/"))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.conf.Gatherer, promhttp.HandlerOpts{})))

	engine.GET("/gocardless/response", finishRequisition(s.conf.Service, provider.GoCardless))
	engine.GET("/nordigen/response", finishRequisition(s.conf.Service, provider.Nordigen))

	api := engine.Group("/api/v1")
	if s.auth != nil {
		api.POST("/signin", signIn(s.auth))
		api.Use(requireAuth(s.auth))
		api.POST("/signout", signOut(s.auth))
	}
	s.setupAPI(api)
	return engine
}

func (s *Server) setupAPI(router gin.IRouter) {
	service := s.conf.Service
	var versionHandler gin.HandlerFunc
	if s.conf.UpdateCheck {
		versionHandler = getVersion(s.conf.HTTPClient, githubAPI, upstreamRepo)
	} else {
		versionHandler = getLocalVersion
	}
	router.GET("/version", versionHandler)

	router.GET("/journals", getJournals(service))
	router.PUT("/journals/:id", updateJournal(service))
	router.GET("/journals/:id/statements", getStatementLines(service))
	router.POST("/journals/:id/statements/import", importStatement(service, s.conf.Metrics))
	router.GET("/journals/:id/reconciliation/lines/:line", getReconciliationLine(service, s.lines))

	router.GET("/providers", getProviders(service))
	router.GET("/providers/:id", getProvider(service))
	router.PUT("/providers/:id", updateProvider(service))
	router.DELETE("/providers/:id", deleteProvider(service))
	router.POST("/providers/:id/select-bank", selectBankAction(service))
	router.POST("/providers/:id/link/:other", linkExisting(service))
	router.POST("/providers/:id/pull", pullProvider(service))
	router.POST("/providers/:id/plaid/link", plaidLink(service))
	router.POST("/plaid/success", plaidSuccess(service))

	router.POST("/selectors", createSelector(s.sessions, service, s.conf.Metrics))
	selectors := router.Group("/selectors/:id")
	selectors.Use(loadSession(s.sessions))
	selectors.GET("", getSelector)
	selectors.POST("/country", selectCountry)
	selectors.POST("/search", searchInstitutions)
	selectors.POST("/select", selectInstitution(s.conf.Metrics))
	selectors.POST("/retry", retrySelection)
	selectors.DELETE("", closeSelector(s.sessions))

	router.GET("/dashboard", getDashboard(s.dashboard))
	router.POST("/dashboard/buttons/:name", clickDashboardButton(s.dashboard))
}

// Run serves on conf.Addr until ctx is cancelled or the server fails. Pulls providers on an interval if conf.AutoSync is set.
func Run(ctx context.Context, conf Config) error {
	s := New(conf)
	logger := s.conf.Logger
	httpServer := &http.Server{Addr: conf.Addr, Handler: s.Handler()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)

	if conf.AutoSync {
		go func() {
			// give gin server time to start running. don't perform unnecessary requests if gin fails to boot
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			errs <- sync.Run(ctx, logger, s.conf.SyncInterval, func(ctx context.Context) error {
				return sync.Sync(ctx, logger, conf.Service)
			})
		}()
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", conf.Addr))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil {
			return err
		}
		<-ctx.Done()
	case <-ctx.Done():
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
