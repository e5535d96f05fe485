// Package aggregator defines the open banking account data model shared by the GoCardless and Nordigen clients
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/johnstarich/banklink/institution"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when the aggregator has no such requisition, account or agreement
var ErrNotFound = errors.New("Aggregator resource not found")

// Client is an open banking account data API
type Client interface {
	// Institutions lists the institutions supporting a country. An empty country lists every institution.
	Institutions(ctx context.Context, country string) ([]institution.Institution, error)
	// CreateRequisition starts an agreement with an institution, returning the link the end user must follow
	CreateRequisition(ctx context.Context, req RequisitionRequest) (Requisition, error)
	// Requisition fetches a requisition by ID, including its linked accounts once the end user agreed
	Requisition(ctx context.Context, id string) (Requisition, error)
	// Account fetches an account's metadata
	Account(ctx context.Context, id string) (Account, error)
	// Agreement fetches an end user agreement
	Agreement(ctx context.Context, id string) (Agreement, error)
	// Transactions lists an account's transactions booked between from and to, inclusive
	Transactions(ctx context.Context, accountID string, from, to time.Time) (Transactions, error)
}

// RequisitionRequest is the payload for a new requisition
type RequisitionRequest struct {
	Redirect      string `json:"redirect"`
	InstitutionID string `json:"institution_id"`
	Reference     string `json:"reference"`
}

// Requisition links an end user agreement to the accounts it grants access to
type Requisition struct {
	ID            string   `json:"id"`
	Status        string   `json:"status,omitempty"`
	Redirect      string   `json:"redirect,omitempty"`
	InstitutionID string   `json:"institution_id,omitempty"`
	Reference     string   `json:"reference,omitempty"`
	Agreement     string   `json:"agreement,omitempty"`
	Accounts      []string `json:"accounts"`
	Link          string   `json:"link,omitempty"`
}

// Account is the metadata of an account linked through a requisition
type Account struct {
	ID            string `json:"id"`
	IBAN          string `json:"iban"`
	InstitutionID string `json:"institution_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

// AgreementTimeFormat is the layout of agreement timestamps
const AgreementTimeFormat = "2006-01-02T15:04:05.999999Z"

// Agreement is an end user agreement, granting access for a number of days after acceptance
type Agreement struct {
	ID                 string `json:"id"`
	Accepted           string `json:"accepted"`
	AccessValidForDays int    `json:"access_valid_for_days"`
}

// Expiration returns the time access granted by the agreement ends
func (a Agreement) Expiration() (time.Time, error) {
	accepted, err := time.Parse(AgreementTimeFormat, a.Accepted)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Invalid agreement acceptance time")
	}
	return accepted.AddDate(0, 0, a.AccessValidForDays), nil
}

// Transactions is an account's transaction listing
type Transactions struct {
	Transactions struct {
		Booked  []Transaction `json:"booked"`
		Pending []Transaction `json:"pending,omitempty"`
	} `json:"transactions"`
}

// Amount is a signed decimal amount in a currency
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// AccountReference identifies a counterparty account
type AccountReference struct {
	IBAN string `json:"iban,omitempty"`
}

// Transaction is a booked or pending account transaction
type Transaction struct {
	TransactionID                     string            `json:"transactionId,omitempty"`
	EntryReference                    string            `json:"entryReference,omitempty"`
	InternalTransactionID             string            `json:"internalTransactionId,omitempty"`
	BookingDate                       string            `json:"bookingDate,omitempty"`
	ValueDate                         string            `json:"valueDate,omitempty"`
	TransactionAmount                 Amount            `json:"transactionAmount"`
	CreditorName                      string            `json:"creditorName,omitempty"`
	CreditorAccount                   *AccountReference `json:"creditorAccount,omitempty"`
	DebtorName                        string            `json:"debtorName,omitempty"`
	DebtorAccount                     *AccountReference `json:"debtorAccount,omitempty"`
	RemittanceInformationUnstructured string            `json:"remittanceInformationUnstructured,omitempty"`
	BankTransactionCode               string            `json:"bankTransactionCode,omitempty"`

	// Fields holds every field of the original transaction, including ones without a typed field above
	Fields map[string]json.RawMessage `json:"-"`
}

type transactionFields Transaction

// UnmarshalJSON implements json.Unmarshaler, retaining all original fields
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var typed transactionFields
	if err := json.Unmarshal(b, &typed); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*t = Transaction(typed)
	t.Fields = fields
	return nil
}

// Field returns the named field formatted for display: strings are unquoted, numbers and objects are compact JSON.
// Returns "" for missing, null, empty or zero-length values.
func (t Transaction) Field(name string) string {
	raw, ok := t.Fields[name]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	switch value := buf.String(); value {
	case "null", "{}", "[]", "false":
		return ""
	default:
		return value
	}
}

// Convert copies 'src' into 'dest' through their JSON representations
func Convert(src, dest interface{}) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}
