package server

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/metrics"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/reconcile"
	"github.com/johnstarich/banklink/statement"
	"github.com/pkg/errors"
)

const (
	statementFileField = "file"
	maxStatementSize   = 10 << 20
)

func getStatementLines(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		journalID := c.Param("id")
		if _, err := service.Providers().Journal(journalID); err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		lines, err := service.Statements().Lines(journalID)
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		if lines == nil {
			lines = []statement.Line{}
		}
		c.JSON(http.StatusOK, lines)
	}
}

// importStatement reads an uploaded OFX file into the journal's statement lines
func importStatement(service *online.Service, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		journalID := c.Param("id")
		if _, err := service.Providers().Journal(journalID); err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxStatementSize)
		header, err := c.FormFile(statementFileField)
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			abortWithClientError(c, http.StatusRequestEntityTooLarge, errors.Errorf("Statement file must be at most %d bytes", tooLarge.Limit))
			return
		}
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, errors.Wrap(err, "Statement file is required"))
			return
		}
		file, err := header.Open()
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		defer file.Close()

		statements, err := statement.ReadOFX(file)
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		var lines []statement.Line
		for _, stmt := range statements {
			lines = append(lines, stmt.Lines...)
		}
		added, err := service.Statements().Add(journalID, lines)
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		m.AddStatementLines("ofx", added)
		c.JSON(http.StatusOK, map[string]interface{}{
			"Statements": len(statements),
			"Added":      added,
			"Duplicates": len(lines) - added,
		})
	}
}

func getReconciliationLine(service *online.Service, renderer reconcile.LineRenderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		line, found, err := service.Statements().Line(c.Param("id"), c.Param("line"))
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		if !found {
			abortWithClientError(c, http.StatusNotFound, errors.Errorf("Statement line %q not found", c.Param("line")))
			return
		}
		view, err := renderer.Start(c.Request.Context(), line)
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
