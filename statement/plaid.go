package statement

import (
	"encoding/json"
	"time"

	"github.com/johnstarich/banklink/aggregator/plaid"
)

// FromPlaid maps Plaid transactions into lines. Plaid reports outflows as positive amounts, so signs are flipped.
func FromPlaid(txns []plaid.Transaction, currency string) []Line {
	var lines []Line
	for _, txn := range txns {
		date, err := time.Parse(dateFormat, txn.Date)
		if err != nil {
			continue
		}
		lineCurrency := txn.ISOCurrencyCode
		if lineCurrency == "" {
			lineCurrency = currency
		}
		raw, _ := json.Marshal(txn)
		lines = append(lines, Line{
			Sequence:        len(lines) + 1,
			Date:            date,
			Ref:             txn.Name,
			PaymentRef:      txn.Name,
			UniqueImportID:  txn.TransactionID,
			Amount:          txn.Amount.Neg(),
			Currency:        lineCurrency,
			PartnerName:     txn.MerchantName,
			TransactionType: txn.TransactionType,
			RawData:         raw,
		})
	}
	return lines
}
