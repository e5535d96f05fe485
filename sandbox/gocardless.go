package sandbox

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/redactor"
	"github.com/pkg/errors"
)

func (s *Server) issueTokens(c *gin.Context, withRefresh bool) {
	access := randomToken(tokenLength)
	s.tokens.SetDefault(access, true)
	response := map[string]interface{}{
		"access":         access,
		"access_expires": int(tokenDuration.Seconds()),
	}
	if withRefresh {
		refresh := randomToken(refreshTokenLength)
		s.refreshTokens.SetDefault(refresh, true)
		response["refresh"] = refresh
		response["refresh_expires"] = int(refreshTokenDuration.Seconds())
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) newToken(c *gin.Context) {
	var creds struct {
		SecretID  string          `json:"secret_id"`
		SecretKey redactor.String `json:"secret_key"`
	}
	if err := c.ShouldBindJSON(&creds); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if creds.SecretID != s.conf.SecretID || creds.SecretKey != s.conf.SecretKey {
		abortWithError(c, http.StatusUnauthorized, errUnauthorized)
		return
	}
	s.issueTokens(c, true)
}

func (s *Server) refreshToken(c *gin.Context) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if _, found := s.refreshTokens.Get(body.Refresh); !found || body.Refresh == "" {
		abortWithError(c, http.StatusUnauthorized, errUnauthorized)
		return
	}
	s.issueTokens(c, false)
}

func (s *Server) requireToken(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if _, found := s.tokens.Get(token); !found || token == "" {
		abortWithError(c, http.StatusUnauthorized, errUnauthorized)
	}
}

func (s *Server) getInstitutions(c *gin.Context) {
	country := strings.ToUpper(c.Query("country"))
	if country == "" {
		c.JSON(http.StatusOK, s.conf.Institutions)
		return
	}
	if _, known := institution.CountryNames[country]; !known {
		abortWithError(c, http.StatusBadRequest, errors.Errorf("%q is not a valid choice", country))
		return
	}
	c.JSON(http.StatusOK, institution.InCountry(s.conf.Institutions, country))
}

func (s *Server) createRequisition(c *gin.Context) {
	var req aggregator.RequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if _, found := institution.Find(s.conf.Institutions, req.InstitutionID); !found {
		abortWithError(c, http.StatusBadRequest, errors.Errorf("Unknown institution: %q", req.InstitutionID))
		return
	}
	if req.Redirect == "" {
		abortWithError(c, http.StatusBadRequest, errors.New("Redirect is required"))
		return
	}
	id := uuid.New().String()
	requisition := aggregator.Requisition{
		ID:            id,
		Status:        "CR",
		Redirect:      req.Redirect,
		InstitutionID: req.InstitutionID,
		Reference:     req.Reference,
		Accounts:      []string{},
		Link:          strings.TrimSuffix(s.conf.LinkBase, "/") + "/consent/" + id,
	}
	s.mu.Lock()
	s.requisitions[id] = requisition
	s.mu.Unlock()
	c.JSON(http.StatusCreated, requisition)
}

func (s *Server) getRequisition(c *gin.Context) {
	s.mu.Lock()
	requisition, found := s.requisitions[c.Param("id")]
	s.mu.Unlock()
	if !found {
		abortWithError(c, http.StatusNotFound, errNotFound)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

// Agree links the requisition's accounts as if the end user accepted the agreement at their bank, returning the redirect URL
func (s *Server) Agree(requisitionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requisition, found := s.requisitions[requisitionID]
	if !found {
		return "", errNotFound
	}
	if requisition.Status != "LN" {
		agreement := aggregator.Agreement{
			ID:                 uuid.New().String(),
			Accepted:           s.now().UTC().Format(agreementTimeFormat),
			AccessValidForDays: s.conf.AccessValidForDays,
		}
		s.agreements[agreement.ID] = agreement
		requisition.Agreement = agreement.ID
		requisition.Status = "LN"
		requisition.Accounts = nil
		for _, iban := range s.conf.Accounts[requisition.InstitutionID] {
			account := aggregator.Account{
				ID:            uuid.New().String(),
				IBAN:          iban,
				InstitutionID: requisition.InstitutionID,
				Status:        "READY",
			}
			s.accounts[account.ID] = account
			requisition.Accounts = append(requisition.Accounts, account.ID)
		}
		s.requisitions[requisitionID] = requisition
	}
	separator := "?"
	if strings.Contains(requisition.Redirect, "?") {
		separator = "&"
	}
	return requisition.Redirect + separator + "ref=" + requisition.Reference, nil
}

func (s *Server) consent(c *gin.Context) {
	redirect, err := s.Agree(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

func (s *Server) getAccount(c *gin.Context) {
	s.mu.Lock()
	account, found := s.accounts[c.Param("id")]
	s.mu.Unlock()
	if !found {
		abortWithError(c, http.StatusNotFound, errNotFound)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) getAgreement(c *gin.Context) {
	s.mu.Lock()
	agreement, found := s.agreements[c.Param("id")]
	s.mu.Unlock()
	if !found {
		abortWithError(c, http.StatusNotFound, errNotFound)
		return
	}
	c.JSON(http.StatusOK, agreement)
}

func (s *Server) getTransactions(c *gin.Context) {
	s.mu.Lock()
	account, found := s.accounts[c.Param("id")]
	s.mu.Unlock()
	if !found {
		abortWithError(c, http.StatusNotFound, errNotFound)
		return
	}
	now := s.now().UTC()
	from, to := now.AddDate(0, 0, -90), now
	var err error
	if dateFrom := c.Query("date_from"); dateFrom != "" {
		if from, err = time.Parse(dateFormat, dateFrom); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
	}
	if dateTo := c.Query("date_to"); dateTo != "" {
		if to, err = time.Parse(dateFormat, dateTo); err != nil {
			abortWithError(c, http.StatusBadRequest, err)
			return
		}
	}
	if to.After(truncateToDay(now).AddDate(0, 0, 1)) {
		abortWithError(c, http.StatusBadRequest, errors.New("date_to cannot be in the future"))
		return
	}
	generator := AccountGenerator{IBAN: account.IBAN}
	var response aggregator.Transactions
	response.Transactions.Booked = generator.Transactions(from, to)
	if response.Transactions.Booked == nil {
		response.Transactions.Booked = []aggregator.Transaction{}
	}
	response.Transactions.Pending = []aggregator.Transaction{}
	c.JSON(http.StatusOK, response)
}
