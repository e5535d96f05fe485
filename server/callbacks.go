package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/provider"
	"go.uber.org/zap"
)

const providersPage = "/web/providers"

// finishRequisition handles the user's return from their bank, then sends them to the provider's page
func finishRequisition(service *online.Service, providerService provider.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Query("ref")
		p, found, err := service.FinishRequisition(c.Request.Context(), providerService, ref)
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		target := providersPage
		if found {
			target += "/" + p.ID
		} else {
			logger := c.MustGet(loggerKey).(*zap.Logger)
			logger.Info("No requisition found for reference", zap.String("service", string(providerService)), zap.String("ref", ref))
		}
		c.Redirect(http.StatusSeeOther, target)
	}
}
