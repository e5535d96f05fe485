package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func recovery(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			panicValue := recover()
			if panicValue == nil {
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]string{
				"Error": http.StatusText(http.StatusInternalServerError),
			})
			ce := logger.Check(zap.ErrorLevel, "[Recovery]")
			if ce == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("error", panicValue),
				zap.String("path", c.Request.URL.Path),
			}
			if stack && ce.Entry.Stack == "" {
				fields = append(fields, zap.Stack("stacktrace"))
			} else if !stack {
				ce.Entry.Stack = ""
			}
			ce.Write(fields...)
		}()
		c.Next()
	}
}
