package online

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/aggregator/nordigen"
	"github.com/johnstarich/banklink/institution"
	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/selector"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const selectBankName = "Select Bank of your Account"

func newRequisitionRef() string {
	return uuid.New().String()
}

// SelectBankAction returns the action opening the institution selector for a provider's journal
func (s *Service) SelectBankAction(ctx context.Context, providerID string) (action.Action, error) {
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return action.Action{}, err
	}
	journal, err := s.providers.ProviderJournal(p)
	if err != nil {
		return action.Action{}, err
	}
	if journal.BankAccount == "" {
		return action.Action{}, errors.Errorf("To continue configure bank account on journal %s", journal.DisplayName())
	}

	var tag string
	var selectorContext selector.Context
	switch p.Service {
	case provider.GoCardless:
		tag = action.TagGoCardlessSelector
		institutions, err := s.listInstitutions(ctx, p, journal.CompanyCountry)
		if err != nil {
			return action.Action{}, err
		}
		selectorContext = selector.Context{
			Institutions: institutions,
			Countries:    []institution.Country{countryOf(journal.CompanyCountry)},
			Country:      journal.CompanyCountry,
			RecordID:     p.ID,
			ScopeIDs:     []string{p.ID},
		}
	case provider.Nordigen:
		tag = action.TagNordigenSelector
		institutions, err := s.listInstitutions(ctx, p, "")
		if err != nil {
			return action.Action{}, err
		}
		selectorContext = selector.Context{
			Institutions: institutions,
			Countries:    institution.Countries(institutions, institution.CountryNames),
			Country:      journal.CompanyCountry,
			RecordID:     journal.ID,
			ScopeIDs:     []string{p.ID},
		}
	default:
		return action.Action{}, errors.Errorf("Provider %q does not select an institution", p.ID)
	}

	contextJSON, err := json.Marshal(selectorContext)
	if err != nil {
		return action.Action{}, err
	}
	return action.Action{
		Type:    "client",
		Tag:     tag,
		Name:    selectBankName,
		Target:  "new",
		Context: contextJSON,
		Params:  map[string]string{},
	}, nil
}

func countryOf(code string) institution.Country {
	name := institution.CountryNames[code]
	if name == "" {
		name = code
	}
	return institution.Country{Code: code, Name: name}
}

// SetInstitution writes the selected institution: on the provider for GoCardless, on the journal for Nordigen
func (s *Service) SetInstitution(service provider.Service, recordID, institutionID string) error {
	switch service {
	case provider.GoCardless:
		return s.providers.SetGoCardlessInstitution(recordID, institutionID)
	case provider.Nordigen:
		return s.providers.SetNordigenInstitution(recordID, institutionID)
	default:
		return errors.Errorf("Unsupported institution service: %q", service)
	}
}

// CheckAgreement starts a requisition for the provider in providerIDs and returns the link to the bank's consent page.
// On failure, GoCardless returns an empty link and Nordigen returns its redirect URL.
func (s *Service) CheckAgreement(ctx context.Context, service provider.Service, providerIDs []string) (string, error) {
	if len(providerIDs) != 1 {
		return "", errors.Errorf("Expected one provider, found %d", len(providerIDs))
	}
	p, err := s.providers.Provider(providerIDs[0])
	if err != nil {
		return "", err
	}
	if p.Service != service {
		return "", errors.Errorf("Provider %q does not use %s", p.ID, service)
	}
	switch service {
	case provider.GoCardless:
		return s.checkGoCardlessAgreement(ctx, p)
	case provider.Nordigen:
		return s.checkNordigenAgreement(ctx, p)
	default:
		return "", errors.Errorf("Unsupported agreement service: %q", service)
	}
}

func (s *Service) createRequisition(ctx context.Context, p provider.Provider, institutionID, redirect string) (aggregator.Requisition, string, error) {
	client, err := s.openBanking(p)
	if err != nil {
		return aggregator.Requisition{}, "", err
	}
	ref := s.newRef()
	requisition, err := client.CreateRequisition(ctx, aggregator.RequisitionRequest{
		Redirect:      redirect,
		InstitutionID: institutionID,
		Reference:     ref,
	})
	return requisition, ref, err
}

func (s *Service) checkGoCardlessAgreement(ctx context.Context, p provider.Provider) (string, error) {
	if p.GoCardlessInstitutionID == "" {
		return "", errors.Errorf("Provider %q has no institution selected", p.ID)
	}
	requisition, ref, err := s.createRequisition(ctx, p, p.GoCardlessInstitutionID, s.baseURL+"/gocardless/response")
	if err != nil {
		s.logger.Warn("Failed to create requisition", zap.String("provider", p.ID), zap.Error(err))
		return "", nil
	}
	err = s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
		p.GoCardlessRequisitionRef = ref
		p.GoCardlessRequisitionID = requisition.ID
		return nil
	})
	return requisition.Link, err
}

func (s *Service) checkNordigenAgreement(ctx context.Context, p provider.Provider) (string, error) {
	journal, err := s.providers.ProviderJournal(p)
	if err != nil {
		return "", err
	}
	institutionID := journal.NordigenInstitutionID
	if s.sandbox {
		institutionID = nordigen.SandboxInstitutionID
	}
	if institutionID == "" {
		return "", errors.Errorf("Journal %s has no institution selected", journal.DisplayName())
	}
	redirect := s.baseURL + "/nordigen/response"
	requisition, ref, err := s.createRequisition(ctx, p, institutionID, redirect)
	if err != nil {
		s.logger.Warn("Failed to create requisition", zap.String("provider", p.ID), zap.Error(err))
		return redirect, nil
	}
	err = s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
		p.NordigenLastRequisitionRef = ref
		p.NordigenLastRequisitionID = requisition.ID
		return nil
	})
	return requisition.Link, err
}

// SelectorBackend is the selector.Backend of one service's selector
type SelectorBackend struct {
	service  *Service
	provider provider.Service
}

var _ selector.Backend = &SelectorBackend{}

// SelectorBackend returns the selector.Backend for a service's institution selector
func (s *Service) SelectorBackend(service provider.Service) *SelectorBackend {
	return &SelectorBackend{service: s, provider: service}
}

// WriteInstitution implements selector.Backend
func (b *SelectorBackend) WriteInstitution(ctx context.Context, recordID, institutionID string) error {
	return b.service.SetInstitution(b.provider, recordID, institutionID)
}

// CheckAgreement implements selector.Backend
func (b *SelectorBackend) CheckAgreement(ctx context.Context, scopeIDs []string) (string, error) {
	return b.service.CheckAgreement(ctx, b.provider, scopeIDs)
}

// ServiceForTag returns the service of an institution selector action tag
func ServiceForTag(tag string) (provider.Service, bool) {
	switch tag {
	case action.TagGoCardlessSelector:
		return provider.GoCardless, true
	case action.TagNordigenSelector:
		return provider.Nordigen, true
	default:
		return "", false
	}
}
