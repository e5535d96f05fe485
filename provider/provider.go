// Package provider stores online statement providers and the journals they feed
package provider

import (
	"strings"
	"time"

	"github.com/johnstarich/banklink/redactor"
	"github.com/johnstarich/go/regext"
)

// Service identifies the aggregator a provider pulls statements from
type Service string

// Supported services
const (
	GoCardless Service = "gocardless"
	Nordigen   Service = "nordigen"
	Plaid      Service = "plaid"
)

// Services returns every supported service
func Services() []Service {
	return []Service{GoCardless, Nordigen, Plaid}
}

// Valid returns true if s is a supported service
func (s Service) Valid() bool {
	for _, service := range Services() {
		if s == service {
			return true
		}
	}
	return false
}

var accountNumberSeparators = regext.MustCompile(`
	[^ A-Z a-z 0-9 ]+   # anything but letters and digits
`)

// SanitizeAccountNumber strips separators from an account number and upper-cases it, i.e. 'fr76 3000-6000' becomes 'FR7630006000'
func SanitizeAccountNumber(accountNumber string) string {
	return strings.ToUpper(accountNumberSeparators.ReplaceAllString(accountNumber, ""))
}

// Message is a note posted on a provider, i.e. the result of an agreement or a sync warning
type Message struct {
	Time time.Time
	Text string
}

// Provider pulls statements for a journal from an aggregator
type Provider struct {
	ID        string
	Name      string
	Service   Service
	JournalID string
	Active    bool
	// Username is the aggregator secret ID or client ID
	Username string
	// Password is the aggregator secret key
	Password redactor.String
	// LastPull is the end date of the latest successful statement pull
	LastPull time.Time

	GoCardlessInstitutionID         string `json:",omitempty"`
	GoCardlessRequisitionRef        string `json:",omitempty"`
	GoCardlessRequisitionID         string `json:",omitempty"`
	GoCardlessRequisitionExpiration time.Time
	GoCardlessAccountID             string `json:",omitempty"`

	NordigenLastRequisitionRef        string `json:",omitempty"`
	NordigenLastRequisitionID         string `json:",omitempty"`
	NordigenLastRequisitionExpiration time.Time

	PlaidAccessToken redactor.String `json:",omitempty"`
	PlaidHost        string          `json:",omitempty"`

	Messages []Message `json:",omitempty"`
}

// ResetGoCardlessRequisition clears the GoCardless requisition, requiring a new agreement
func (p *Provider) ResetGoCardlessRequisition() {
	p.GoCardlessRequisitionID = ""
	p.GoCardlessRequisitionRef = ""
	p.GoCardlessRequisitionExpiration = time.Time{}
}

// ResetNordigenRequisition clears the Nordigen requisition, requiring a new agreement
func (p *Provider) ResetNordigenRequisition() {
	p.NordigenLastRequisitionID = ""
	p.NordigenLastRequisitionRef = ""
	p.NordigenLastRequisitionExpiration = time.Time{}
}

// RequisitionRef returns the reference of the service's latest requisition
func (p Provider) RequisitionRef() string {
	switch p.Service {
	case GoCardless:
		return p.GoCardlessRequisitionRef
	case Nordigen:
		return p.NordigenLastRequisitionRef
	default:
		return ""
	}
}

// Post appends a message
func (p *Provider) Post(now time.Time, text string) {
	p.Messages = append(p.Messages, Message{Time: now, Text: text})
}

// Journal is a bank journal, receiving statement lines for one bank account
type Journal struct {
	ID             string
	Name           string
	CompanyCountry string
	// BankAccount is the journal's IBAN. Empty if not configured.
	BankAccount string
	Currency    string

	NordigenInstitutionID string `json:",omitempty"`
	NordigenAccountID     string `json:",omitempty"`
}

// SanitizedBankAccount returns the journal's bank account without separators
func (j Journal) SanitizedBankAccount() string {
	return SanitizeAccountNumber(j.BankAccount)
}

// DisplayName returns the journal's name, or its ID if unnamed
func (j Journal) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}
