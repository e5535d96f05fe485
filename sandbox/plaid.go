package sandbox

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/johnstarich/banklink/redactor"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

const (
	plaidPublicTokenDuration = 30 * time.Minute
	plaidMaxCount            = 500
	plaidDefaultCount        = 100
)

type plaidSandbox struct {
	clientID string
	secret   redactor.String
	now      func() time.Time

	linkTokens   *cache.Cache
	publicTokens *cache.Cache

	mu    sync.Mutex
	items map[string]plaidItem
}

type plaidItem struct {
	ID        string
	AccountID string
	IBAN      string
}

type plaidAuth struct {
	ClientID string          `json:"client_id"`
	Secret   redactor.String `json:"secret"`
}

func newPlaidSandbox(conf Config) *plaidSandbox {
	return &plaidSandbox{
		clientID:     conf.SecretID,
		secret:       conf.SecretKey,
		now:          time.Now,
		linkTokens:   cache.New(4*time.Hour, time.Hour),
		publicTokens: cache.New(plaidPublicTokenDuration, plaidPublicTokenDuration/5+1),
		items:        make(map[string]plaidItem),
	}
}

func (p *plaidSandbox) setupRoutes(router gin.IRouter) {
	router.POST("/link/token/create", p.createLinkToken)
	router.POST("/sandbox/public_token/create", p.createPublicToken)
	router.POST("/item/public_token/exchange", p.exchangePublicToken)
	router.POST("/transactions/get", p.getTransactions)
}

func abortWithPlaidError(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, map[string]interface{}{
		"error_type":      "INVALID_INPUT",
		"error_code":      code,
		"error_message":   err.Error(),
		"display_message": nil,
		"request_id":      uuid.New().String(),
	})
}

// bind parses the request body into v, which must embed plaidAuth, and checks the credentials
func (p *plaidSandbox) bind(c *gin.Context, v interface {
	credentials() plaidAuth
}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return false
	}
	creds := v.credentials()
	if creds.ClientID != p.clientID || creds.Secret != p.secret {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_API_KEYS", errors.New("invalid client_id or secret provided"))
		return false
	}
	return true
}

func (a plaidAuth) credentials() plaidAuth {
	return a
}

func (p *plaidSandbox) createLinkToken(c *gin.Context) {
	var req struct {
		plaidAuth
		ClientName   string   `json:"client_name"`
		Products     []string `json:"products"`
		CountryCodes []string `json:"country_codes"`
		Language     string   `json:"language"`
		User         struct {
			ClientUserID string `json:"client_user_id"`
		} `json:"user"`
	}
	if !p.bind(c, &req) {
		return
	}
	if req.ClientName == "" || req.User.ClientUserID == "" || len(req.CountryCodes) == 0 || len(req.Products) == 0 {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_FIELD", errors.New("client_name, user, country_codes and products are required"))
		return
	}
	token := "link-sandbox-" + uuid.New().String()
	p.linkTokens.SetDefault(token, true)
	c.JSON(http.StatusOK, map[string]interface{}{
		"link_token": token,
		"expiration": p.now().Add(4 * time.Hour).UTC().Format(time.RFC3339),
		"request_id": uuid.New().String(),
	})
}

// PublicToken simulates a completed Plaid Link flow, returning a public token for the sandbox IBAN
func (p *plaidSandbox) PublicToken() string {
	token := "public-sandbox-" + uuid.New().String()
	p.publicTokens.SetDefault(token, SandboxIBAN)
	return token
}

func (p *plaidSandbox) createPublicToken(c *gin.Context) {
	var req struct {
		plaidAuth
		InstitutionID string `json:"institution_id"`
	}
	if !p.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"public_token": p.PublicToken(),
		"request_id":   uuid.New().String(),
	})
}

func (p *plaidSandbox) exchangePublicToken(c *gin.Context) {
	var req struct {
		plaidAuth
		PublicToken string `json:"public_token"`
	}
	if !p.bind(c, &req) {
		return
	}
	iban, found := p.publicTokens.Get(req.PublicToken)
	if !found {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_PUBLIC_TOKEN", errors.New("provided public token is in an invalid format"))
		return
	}
	p.publicTokens.Delete(req.PublicToken)
	item := plaidItem{
		ID:        uuid.New().String(),
		AccountID: uuid.New().String(),
		IBAN:      iban.(string),
	}
	accessToken := "access-sandbox-" + uuid.New().String()
	p.mu.Lock()
	p.items[accessToken] = item
	p.mu.Unlock()
	c.JSON(http.StatusOK, map[string]interface{}{
		"access_token": accessToken,
		"item_id":      item.ID,
		"request_id":   uuid.New().String(),
	})
}

func (p *plaidSandbox) getTransactions(c *gin.Context) {
	var req struct {
		plaidAuth
		AccessToken string `json:"access_token"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		Options     struct {
			Count  int `json:"count"`
			Offset int `json:"offset"`
		} `json:"options"`
	}
	if !p.bind(c, &req) {
		return
	}
	p.mu.Lock()
	item, found := p.items[req.AccessToken]
	p.mu.Unlock()
	if !found {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_ACCESS_TOKEN", errors.New("provided access token is in an invalid format"))
		return
	}
	start, err := time.Parse(dateFormat, req.StartDate)
	if err != nil {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_FIELD", err)
		return
	}
	end, err := time.Parse(dateFormat, req.EndDate)
	if err != nil {
		abortWithPlaidError(c, http.StatusBadRequest, "INVALID_FIELD", err)
		return
	}
	count := req.Options.Count
	if count <= 0 {
		count = plaidDefaultCount
	}
	if count > plaidMaxCount {
		count = plaidMaxCount
	}

	generator := AccountGenerator{IBAN: item.IBAN}
	all := generator.randTransactions(start, end)
	transactions := []map[string]interface{}{}
	for i := req.Options.Offset; i < len(all) && len(transactions) < count; i++ {
		txn := all[i]
		amount, _ := txn.Amount.Neg().Float64() // positive amounts are money moving out of the account
		transactions = append(transactions, map[string]interface{}{
			"transaction_id":    txn.ID,
			"account_id":        item.AccountID,
			"amount":            amount,
			"iso_currency_code": "USD",
			"date":              txn.Date.Format(dateFormat),
			"name":              txn.Counterparty,
			"merchant_name":     txn.Counterparty,
			"payment_channel":   "other",
			"pending":           false,
			"transaction_type":  "special",
		})
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"accounts": []map[string]interface{}{{
			"account_id": item.AccountID,
			"name":       "Sandbox Checking",
			"type":       "depository",
			"subtype":    "checking",
		}},
		"transactions":       transactions,
		"total_transactions": len(all),
		"request_id":         uuid.New().String(),
	})
}
