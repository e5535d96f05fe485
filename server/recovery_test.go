package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	engine := gin.New()
	engine.Use(recovery(zap.New(core), false))
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.JSONEq(t, `{"Error": "Internal Server Error"}`, resp.Body.String())

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "[Recovery]", entries[0].Message)
		assert.Equal(t, "/panic", entries[0].ContextMap()["path"])
		assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	}
}
