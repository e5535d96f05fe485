package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/dashboard"
	"github.com/pkg/errors"
)

func getDashboard(controller dashboard.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := controller.View(c.Request.Context())
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// clickDashboardButton clicks a dashboard button and responds with the action the client should run
func clickDashboardButton(controller dashboard.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var dispatched *action.Action
		dispatcher := dashboard.DispatcherFunc(func(ctx context.Context, a action.Action) error {
			dispatched = &a
			return nil
		})
		err := controller.Click(c.Request.Context(), c.Param("name"), dispatcher)
		if errors.Cause(err) == dashboard.ErrUnknownButton {
			abortWithClientError(c, http.StatusNotFound, err)
			return
		}
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		if dispatched == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, dispatched)
	}
}
