package online

import (
	"context"
	"time"

	"github.com/johnstarich/banklink/provider"
	"github.com/johnstarich/banklink/statement"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StatementData fetches the provider's statement lines booked between since and until.
// Returns no lines, after posting a message, if the bank authorization expired.
func (s *Service) StatementData(ctx context.Context, providerID string, since, until time.Time) ([]statement.Line, error) {
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return nil, err
	}
	journal, err := s.providers.ProviderJournal(p)
	if err != nil {
		return nil, err
	}

	switch p.Service {
	case provider.GoCardless:
		if p.GoCardlessAccountID == "" {
			return nil, nil
		}
		if !p.GoCardlessRequisitionExpiration.After(s.now()) {
			s.post(p.ID, "You should renew the authorization process with your bank institution for GoCardless.")
			return nil, nil
		}
		return s.openBankingLines(ctx, p, p.GoCardlessAccountID, since, until, statement.GoCardlessOptions(journal))
	case provider.Nordigen:
		if journal.NordigenAccountID == "" {
			return nil, nil
		}
		if !p.NordigenLastRequisitionExpiration.After(s.now()) {
			s.post(p.ID, "You should renew the authorization process with your bank institution for Nordigen.")
			return nil, nil
		}
		return s.openBankingLines(ctx, p, journal.NordigenAccountID, since, until, statement.NordigenOptions(journal))
	case provider.Plaid:
		if p.PlaidAccessToken == "" {
			return nil, errors.Errorf("Provider %q is not linked to Plaid", p.ID)
		}
		client, err := s.clients.Plaid(p)
		if err != nil {
			return nil, err
		}
		txns, err := client.Transactions(ctx, p.PlaidAccessToken, since, until)
		if err != nil {
			return nil, err
		}
		return statement.FromPlaid(txns, journal.Currency), nil
	default:
		return nil, errors.Errorf("Unsupported service: %q", p.Service)
	}
}

func (s *Service) openBankingLines(ctx context.Context, p provider.Provider, accountID string, since, until time.Time, opts statement.MappingOptions) ([]statement.Line, error) {
	client, err := s.openBanking(p)
	if err != nil {
		return nil, err
	}
	txns, err := client.Transactions(ctx, accountID, since, until)
	if err != nil {
		return nil, err
	}
	return statement.FromOpenBanking(txns.Transactions.Booked, opts), nil
}

// PullStart returns where the next pull of p begins: a little before its last pull, or DefaultPullDays before until
func PullStart(p provider.Provider, until time.Time) time.Time {
	if p.LastPull.IsZero() {
		return until.AddDate(0, 0, -DefaultPullDays)
	}
	return p.LastPull.Add(-pullOverlap)
}

// Pull imports the provider's statement lines booked between since and until into its journal's statement.
// Returns the number of new lines.
func (s *Service) Pull(ctx context.Context, providerID string, since, until time.Time) (added int, returnErr error) {
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return 0, err
	}
	defer func() {
		s.metrics.ObservePull(string(p.Service), returnErr)
	}()

	lines, err := s.StatementData(ctx, p.ID, since, until)
	if err != nil {
		return 0, errors.Wrapf(err, "Pull provider %q", p.ID)
	}
	added, err = s.statements.Add(p.JournalID, lines)
	if err != nil {
		return added, err
	}
	s.metrics.AddStatementLines(string(p.Service), added)
	s.logger.Info("Pulled statement lines", zap.String("provider", p.ID), zap.Time("since", since), zap.Time("until", until), zap.Int("lines", len(lines)), zap.Int("added", added))
	if len(lines) == 0 {
		return 0, nil
	}
	return added, s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
		if until.After(p.LastPull) {
			p.LastPull = until
		}
		return nil
	})
}
