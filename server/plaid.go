package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/online"
	"github.com/pkg/errors"
)

func plaidLink(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := service.PlaidLinkAction(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// plaidSuccess receives the public token of a completed Plaid Link flow along with the link action's params
func plaidSuccess(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			PublicToken string            `json:"public_token"`
			Params      map[string]string `json:"params"`
		}
		if err := c.BindJSON(&request); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		if request.PublicToken == "" {
			abortWithClientError(c, http.StatusBadRequest, errors.New("Public token is required"))
			return
		}
		linked, err := service.PlaidSuccess(c.Request.Context(), request.PublicToken, request.Params)
		if errors.Cause(err) == online.ErrUnknownPlaidCall {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		if err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"Linked": linked,
		})
	}
}
