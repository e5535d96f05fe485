package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/selector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const sessionKey = "session"

func createSelector(sessions *sessionStore, service *online.Service, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			ProviderID string         `json:"provider_id"`
			Action     *action.Action `json:"action"`
		}
		if err := c.BindJSON(&request); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}

		var a action.Action
		switch {
		case request.Action != nil:
			a = *request.Action
		case request.ProviderID != "":
			var err error
			a, err = service.SelectBankAction(c.Request.Context(), request.ProviderID)
			if errors.Cause(err) == provider.ErrNotFound {
				abortWithClientError(c, http.StatusNotFound, err)
				return
			}
			if err != nil {
				abortWithClientError(c, http.StatusBadRequest, err)
				return
			}
		default:
			abortWithClientError(c, http.StatusBadRequest, errors.New("Either provider_id or action is required"))
			return
		}

		logger := c.MustGet(loggerKey).(*zap.Logger)
		session := newSelectorSession(a.Tag)
		component, err := newSelectorRegistry(service, logger, session).Open(a)
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		if err := component.Initialize(c.Request.Context()); err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		sessions.Add(session)
		c.JSON(http.StatusCreated, session.JSON())
	}
}

func loadSession(sessions *sessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := sessions.Get(c.Param("id"))
		if err != nil {
			abortWithClientError(c, http.StatusNotFound, err)
			return
		}
		c.Set(sessionKey, session)
	}
}

func getSession(c *gin.Context) *selectorSession {
	return c.MustGet(sessionKey).(*selectorSession)
}

func getSelector(c *gin.Context) {
	c.JSON(http.StatusOK, getSession(c).JSON())
}

func selectCountry(c *gin.Context) {
	var request struct {
		Country string `json:"country"`
	}
	if err := c.BindJSON(&request); err != nil {
		abortWithClientError(c, http.StatusBadRequest, err)
		return
	}
	session := getSession(c)
	session.widget.SelectCountry(request.Country)
	c.JSON(http.StatusOK, session.JSON())
}

func searchInstitutions(c *gin.Context) {
	var request struct {
		Text string `json:"text"`
	}
	if err := c.BindJSON(&request); err != nil {
		abortWithClientError(c, http.StatusBadRequest, err)
		return
	}
	session := getSession(c)
	session.widget.Search(request.Text)
	c.JSON(http.StatusOK, session.JSON())
}

func selectInstitution(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			InstitutionID string `json:"institution_id"`
		}
		if err := c.BindJSON(&request); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		session := getSession(c)
		err := session.widget.Select(c.Request.Context(), request.InstitutionID)
		switch {
		case err == nil:
			m.ObserveSelection(session.service, nil)
			c.JSON(http.StatusOK, session.JSON())
		case err == selector.ErrBusy:
			abortWithClientError(c, http.StatusConflict, err)
		case session.widget.Err() == err:
			// the failure is part of the session's state, shown to the user with a retry
			m.ObserveSelection(session.service, err)
			c.JSON(http.StatusOK, session.JSON())
		default:
			abortWithClientError(c, http.StatusBadRequest, err)
		}
	}
}

func retrySelection(c *gin.Context) {
	session := getSession(c)
	if err := session.widget.Retry(); err != nil {
		abortWithClientError(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusOK, session.JSON())
}

func closeSelector(sessions *sessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions.Remove(getSession(c).ID)
		c.Status(http.StatusNoContent)
	}
}
