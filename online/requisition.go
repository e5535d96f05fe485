package online

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/aggregator/nordigen"
	"github.com/johnstarich/banklink/provider"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FinishRequisition completes the requisition with reference 'ref' once the user returns from their bank.
// Returns the matching provider, or false if no provider of 'service' started a requisition with 'ref'.
//
// If the journal's bank account is among the linked accounts, the account and agreement expiration are stored.
// Otherwise the requisition is reset. Both outcomes post a message on the provider.
func (s *Service) FinishRequisition(ctx context.Context, service provider.Service, ref string) (provider.Provider, bool, error) {
	p, found, err := s.providers.FindByRequisitionRef(service, ref)
	if err != nil || !found {
		return p, found, err
	}
	return p, true, s.finishRequisition(ctx, p)
}

func (s *Service) finishRequisition(ctx context.Context, p provider.Provider) error {
	journal, err := s.providers.ProviderJournal(p)
	if err != nil {
		return err
	}
	client, err := s.openBanking(p)
	if err != nil {
		return err
	}
	requisitionID := p.GoCardlessRequisitionID
	if p.Service == provider.Nordigen {
		requisitionID = p.NordigenLastRequisitionID
	}
	requisition, err := client.Requisition(ctx, requisitionID)
	if err != nil {
		return errors.Wrap(err, "Get requisition")
	}

	ownAccount := journal.SanitizedBankAccount()
	var ibans []string
	var match aggregator.Account
	for _, accountID := range requisition.Accounts {
		account, err := client.Account(ctx, accountID)
		if err != nil {
			s.logger.Warn("Failed to get linked account", zap.String("provider", p.ID), zap.String("account", accountID), zap.Error(err))
			continue
		}
		ibans = append(ibans, account.IBAN)
		if provider.SanitizeAccountNumber(account.IBAN) == ownAccount {
			match = account
			break
		}
	}

	if match.ID == "" {
		s.logger.Info("Linked accounts do not include journal account", zap.String("provider", p.ID), zap.Strings("ibans", ibans))
		err := s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
			if p.Service == provider.Nordigen {
				p.ResetNordigenRequisition()
			} else {
				p.ResetGoCardlessRequisition()
			}
			p.Post(s.now(), fmt.Sprintf("Your account number %s is not in the IBAN account numbers found %s, please check", journal.BankAccount, strings.Join(ibans, " / ")))
			return nil
		})
		return err
	}

	expiration, err := s.agreementExpiration(ctx, client, requisition)
	if err != nil {
		return err
	}
	if p.Service == provider.Nordigen {
		if err := s.providers.UpdateJournal(journal.ID, func(j *provider.Journal) error {
			j.NordigenAccountID = match.ID
			return nil
		}); err != nil {
			return err
		}
	}
	return s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
		if p.Service == provider.Nordigen {
			p.NordigenLastRequisitionExpiration = expiration
		} else {
			p.GoCardlessAccountID = match.ID
			p.GoCardlessRequisitionExpiration = expiration
		}
		p.Post(s.now(), fmt.Sprintf("Your account number %s is successfully attached.", journal.BankAccount))
		return nil
	})
}

// agreementExpiration returns when the requisition's agreement ends, assuming default terms if the aggregator can't say
func (s *Service) agreementExpiration(ctx context.Context, client aggregator.Client, requisition aggregator.Requisition) (time.Time, error) {
	defaultExpiration := s.now().AddDate(0, 0, nordigen.DefaultAccessValidForDays)
	if requisition.Agreement == "" {
		return defaultExpiration, nil
	}
	agreement, err := client.Agreement(ctx, requisition.Agreement)
	if errors.Cause(err) == nordigen.ErrAgreementUnsupported {
		return defaultExpiration, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Get agreement")
	}
	return agreement.Expiration()
}

// LinkExisting reuses the requisition of another GoCardless provider with the same credentials, then finishes it for providerID's journal
func (s *Service) LinkExisting(ctx context.Context, providerID, otherID string) error {
	other, err := s.providers.Provider(otherID)
	if err != nil {
		return err
	}
	if other.Service != provider.GoCardless || other.GoCardlessRequisitionID == "" {
		return errors.Errorf("Provider %q has no GoCardless requisition to link", otherID)
	}
	err = s.providers.UpdateProvider(providerID, func(p *provider.Provider) error {
		if p.Service != provider.GoCardless {
			return errors.Errorf("Provider %q does not use %s", p.ID, provider.GoCardless)
		}
		p.GoCardlessInstitutionID = other.GoCardlessInstitutionID
		p.GoCardlessRequisitionRef = other.GoCardlessRequisitionRef
		p.GoCardlessRequisitionID = other.GoCardlessRequisitionID
		p.GoCardlessRequisitionExpiration = other.GoCardlessRequisitionExpiration
		return nil
	})
	if err != nil {
		return err
	}
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return err
	}
	return s.finishRequisition(ctx, p)
}
