// Package sandbox serves a local stand-in for the GoCardless bank account data API and the Plaid API.
// Requisitions are agreed by visiting their link, and accounts generate deterministic transactions.
package sandbox

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/redactor"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	tokenLength          = 48
	tokenDuration        = 24 * time.Hour
	refreshTokenLength   = 96
	refreshTokenDuration = 30 * 24 * time.Hour

	agreementTimeFormat = "2006-01-02T15:04:05.000000Z"
	loggerKey           = "logger"
)

var (
	errUnauthorized = errors.New("Authentication credentials were not provided or are invalid")
	errNotFound     = errors.New("Not found")
)

// Config configures the sandbox's credentials and data
type Config struct {
	SecretID  string
	SecretKey redactor.String
	// Institutions are served from the institutions endpoint
	Institutions []institution.Institution
	// Accounts maps institution IDs to the IBANs an agreed requisition links
	Accounts map[string][]string
	// AccessValidForDays is the validity of agreements
	AccessValidForDays int
	// LinkBase is the sandbox's externally reachable URL, prefixed to requisition links
	LinkBase string
}

// SandboxInstitutionID is the institution which always links the sandbox IBAN
const SandboxInstitutionID = "SANDBOXFINANCE_SFIN0000"

// SandboxIBAN is the IBAN linked by the sandbox institution
const SandboxIBAN = "GL3343697694912188"

// DefaultConfig returns a Config with a few institutions across France, Germany and Great Britain
func DefaultConfig() Config {
	return Config{
		SecretID:  "sandbox-id",
		SecretKey: "sandbox-key",
		Institutions: []institution.Institution{
			{ID: SandboxInstitutionID, Name: "Sandbox Finance", BIC: "SFIN0000", TransactionTotalDays: "90", Countries: []string{"DE", "FR", "GB", "XX"}},
			{ID: "ALPHA_ALPHFRPP", Name: "Alpha Banque", BIC: "ALPHFRPP", TransactionTotalDays: "730", Countries: []string{"FR"}},
			{ID: "BETA_BETADEFF", Name: "Beta Bank", BIC: "BETADEFF", TransactionTotalDays: "540", Countries: []string{"DE", "FR"}},
			{ID: "GAMMA_GAMMGB2L", Name: "Gamma Building Society", BIC: "GAMMGB2L", TransactionTotalDays: "365", Countries: []string{"GB"}},
		},
		Accounts: map[string][]string{
			SandboxInstitutionID: {SandboxIBAN, "GL0865354374424724"},
			"ALPHA_ALPHFRPP":     {"FR7630006000011234567890189"},
			"BETA_BETADEFF":      {"DE89370400440532013000", "FR1420041010050500013M02606"},
			"GAMMA_GAMMGB2L":     {"GB29NWBK60161331926819"},
		},
		AccessValidForDays: 90,
		LinkBase:           "http://localhost:8081",
	}
}

// Server is the sandbox API
type Server struct {
	conf   Config
	logger *zap.Logger
	now    func() time.Time

	tokens, refreshTokens *cache.Cache

	mu           sync.Mutex
	requisitions map[string]aggregator.Requisition
	agreements   map[string]aggregator.Agreement
	accounts     map[string]aggregator.Account
	plaid        *plaidSandbox
}

// New creates a sandbox Server
func New(conf Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		conf:          conf,
		logger:        logger,
		now:           time.Now,
		tokens:        cache.New(tokenDuration, tokenDuration/5+1),
		refreshTokens: cache.New(refreshTokenDuration, refreshTokenDuration/5+1),
		requisitions:  make(map[string]aggregator.Requisition),
		agreements:    make(map[string]aggregator.Agreement),
		accounts:      make(map[string]aggregator.Account),
		plaid:         newPlaidSandbox(conf),
	}
}

// Handler returns the sandbox's HTTP handler
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(s.logger, time.RFC3339, true),
		gin.Recovery(),
		func(c *gin.Context) {
			c.Set(loggerKey, s.logger)
		},
	)

	api := engine.Group("/api/v2")
	api.POST("/token/new/", s.newToken)
	api.POST("/token/refresh/", s.refreshToken)

	authed := api.Group("")
	authed.Use(s.requireToken)
	authed.GET("/institutions/", s.getInstitutions)
	authed.POST("/requisitions/", s.createRequisition)
	authed.GET("/requisitions/:id/", s.getRequisition)
	authed.GET("/accounts/:id/", s.getAccount)
	authed.GET("/accounts/:id/transactions/", s.getTransactions)
	authed.GET("/agreements/enduser/:id/", s.getAgreement)

	engine.GET("/consent/:id", s.consent)

	s.plaid.setupRoutes(engine.Group("/plaid"))
	return engine
}

func abortWithError(c *gin.Context, status int, err error) {
	logger := c.MustGet(loggerKey).(*zap.Logger)
	logger.Info("Aborting with client error", zap.Int("status", status), zap.String("error", err.Error()))
	c.AbortWithStatusJSON(status, map[string]interface{}{
		"summary":     http.StatusText(status),
		"detail":      err.Error(),
		"status_code": status,
	})
}

func randomToken(length uint) string {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	if err != nil {
		panic("Error generating random string")
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// PlaidPublicToken simulates a completed Plaid Link flow, returning a public token to exchange for an access token
func (s *Server) PlaidPublicToken() string {
	return s.plaid.PublicToken()
}
