package online

import (
	"context"
	"strings"

	"github.com/johnstarich/banklink/action"
	"github.com/johnstarich/banklink/aggregator/plaid"
	"github.com/johnstarich/banklink/provider"
	"github.com/pkg/errors"
)

// Plaid login action parameters
const (
	PlaidCallModel       = "provider"
	PlaidCreateTokenCall = "plaid_create_access_token"
	plaidClientUserID    = "client"
)

// PlaidLinkAction creates a Link token for the provider and returns the action opening Plaid Link with it
func (s *Service) PlaidLinkAction(ctx context.Context, providerID string) (action.Action, error) {
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return action.Action{}, err
	}
	client, err := s.clients.Plaid(p)
	if err != nil {
		return action.Action{}, err
	}
	var countryCodes []string
	companyName := s.companyName
	if journal, err := s.providers.ProviderJournal(p); err == nil {
		if journal.CompanyCountry != "" {
			countryCodes = append(countryCodes, strings.ToUpper(journal.CompanyCountry))
		}
		if companyName == "" {
			companyName = journal.DisplayName()
		}
	}
	if len(countryCodes) == 0 {
		countryCodes = []string{"US"}
	}

	token, err := client.CreateLinkToken(ctx, plaid.LinkTokenRequest{
		ClientName:   companyName,
		CountryCodes: countryCodes,
		Language:     s.language,
		Products:     []string{"transactions"},
		ClientUserID: plaidClientUserID,
	})
	if err != nil {
		return action.Action{}, err
	}
	return action.Action{
		Type:   "client",
		Tag:    action.TagPlaidLogin,
		Target: "new",
		Params: map[string]string{
			"call_model":  PlaidCallModel,
			"call_method": PlaidCreateTokenCall,
			"token":       token,
			"object_id":   p.ID,
		},
	}, nil
}

// PlaidCreateAccessToken exchanges the public token of a completed Link flow and stores the access token on the provider.
// Returns true if an access token was stored.
func (s *Service) PlaidCreateAccessToken(ctx context.Context, publicToken, providerID string) (bool, error) {
	p, err := s.providers.Provider(providerID)
	if err != nil {
		return false, err
	}
	client, err := s.clients.Plaid(p)
	if err != nil {
		return false, err
	}
	accessToken, err := client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return false, err
	}
	if accessToken == "" {
		return false, nil
	}
	return true, s.providers.UpdateProvider(p.ID, func(p *provider.Provider) error {
		p.PlaidAccessToken = accessToken
		return nil
	})
}

// PlaidCall is a Plaid Link success callback, dispatched by its call_method parameter
type PlaidCall func(ctx context.Context, publicToken, objectID string) (bool, error)

// ErrUnknownPlaidCall is returned when a Link success callback names an unknown method
var ErrUnknownPlaidCall = errors.New("Unknown Plaid callback method")

// PlaidSuccess forwards the public token of a completed Link flow to the method named by the action's params
func (s *Service) PlaidSuccess(ctx context.Context, publicToken string, params map[string]string) (bool, error) {
	calls := map[string]PlaidCall{
		PlaidCreateTokenCall: s.PlaidCreateAccessToken,
	}
	call, ok := calls[params["call_method"]]
	if !ok {
		return false, errors.Wrapf(ErrUnknownPlaidCall, "%q", params["call_method"])
	}
	return call(ctx, publicToken, params["object_id"])
}
