package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/banklink/online"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/sync"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// storeErrorStatus returns 404 for missing records and 500 for everything else
func storeErrorStatus(err error) int {
	if errors.Cause(err) == provider.ErrNotFound {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func getJournals(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		journals, err := service.Providers().Journals()
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		if journals == nil {
			journals = []provider.Journal{}
		}
		c.JSON(http.StatusOK, journals)
	}
}

func updateJournal(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var journal provider.Journal
		if err := c.BindJSON(&journal); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		id := c.Param("id")
		store := service.Providers()
		err := store.UpdateJournal(id, func(j *provider.Journal) error {
			j.Name = journal.Name
			j.CompanyCountry = journal.CompanyCountry
			j.BankAccount = journal.BankAccount
			j.Currency = journal.Currency
			return nil
		})
		if errors.Cause(err) == provider.ErrNotFound {
			journal.ID = id
			err = store.PutJournal(journal)
		}
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func getProviders(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		providers, err := service.Providers().Providers()
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		if providers == nil {
			providers = []provider.Provider{}
		}
		c.JSON(http.StatusOK, providers)
	}
}

func getProvider(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := service.Providers().Provider(c.Param("id"))
		if err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// updateProvider creates or updates a provider's settings. An empty password keeps the stored one.
func updateProvider(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var settings provider.Provider
		if err := c.BindJSON(&settings); err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		id := c.Param("id")
		store := service.Providers()
		err := store.UpdateProvider(id, func(p *provider.Provider) error {
			if p.Service != settings.Service {
				return errors.Errorf("Provider %q uses %s, delete it to change service", id, p.Service)
			}
			p.Name = settings.Name
			p.JournalID = settings.JournalID
			p.Active = settings.Active
			p.Username = settings.Username
			if settings.Password != "" {
				p.Password = settings.Password
			}
			if settings.PlaidHost != "" {
				p.PlaidHost = settings.PlaidHost
			}
			return nil
		})
		if errors.Cause(err) == provider.ErrNotFound {
			err = store.PutProvider(provider.Provider{
				ID:        id,
				Name:      settings.Name,
				Service:   settings.Service,
				JournalID: settings.JournalID,
				Active:    settings.Active,
				Username:  settings.Username,
				Password:  settings.Password,
				PlaidHost: settings.PlaidHost,
			})
		}
		if err != nil {
			abortWithClientError(c, http.StatusBadRequest, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func deleteProvider(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.Providers().DeleteProvider(c.Param("id")); err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func selectBankAction(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := service.SelectBankAction(c.Request.Context(), c.Param("id"))
		if err != nil {
			status := storeErrorStatus(err)
			if status != http.StatusNotFound {
				status = http.StatusBadRequest
			}
			abortWithClientError(c, status, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func linkExisting(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := service.LinkExisting(c.Request.Context(), c.Param("id"), c.Param("other"))
		if err != nil {
			status := storeErrorStatus(err)
			if status != http.StatusNotFound {
				status = http.StatusBadRequest
			}
			abortWithClientError(c, status, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func pullProvider(service *online.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := service.Providers().Provider(c.Param("id"))
		if err != nil {
			abortWithClientError(c, storeErrorStatus(err), err)
			return
		}
		logger := c.MustGet(loggerKey).(*zap.Logger)
		added, err := sync.Provider(c.Request.Context(), logger, service, p, time.Now())
		if err != nil {
			abortWithClientError(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, map[string]interface{}{
			"Added": added,
		})
	}
}
