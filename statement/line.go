// Package statement maps aggregator transactions and OFX files into bank statement lines, and stores them per journal
package statement

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Line is a bank statement line
type Line struct {
	// ID is assigned by the Store when the line is added
	ID              string          `json:"id"`
	JournalID       string          `json:"journal_id"`
	Sequence        int             `json:"sequence"`
	Date            time.Time       `json:"date"`
	Ref             string          `json:"ref"`
	PaymentRef      string          `json:"payment_ref"`
	UniqueImportID  string          `json:"unique_import_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency,omitempty"`
	AccountNumber   string          `json:"account_number,omitempty"`
	PartnerName     string          `json:"partner_name,omitempty"`
	TransactionType string          `json:"transaction_type,omitempty"`
	Narration       string          `json:"narration,omitempty"`
	RawData         json.RawMessage `json:"raw_data,omitempty"`
}
