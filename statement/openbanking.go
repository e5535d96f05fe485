package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/johnstarich/banklink/provider"
	"github.com/shopspring/decimal"
)

const dateFormat = "2006-01-02"

// noteElements are the transaction fields copied into a line's narration, in order
var noteElements = []string{
	"additionalInformation",
	"balanceAfterTransaction",
	"bankTransactionCode",
	"bookingDate",
	"checkId",
	"creditorAccount",
	"creditorAgent",
	"creditorId",
	"creditorName",
	"currencyExchange",
	"debtorAccount",
	"debtorAgent",
	"debtorName",
	"entryReference",
	"mandateId",
	"proprietaryBank",
	"remittanceInformationUnstructured",
	"transactionAmount",
	"transactionId",
	"ultimateCreditor",
	"ultimateDebtor",
	"valueDate",
}

var repeatedSpaces = regexp.MustCompile(` +`)

// MappingOptions tune the open banking mapping per service
type MappingOptions struct {
	// OwnAccountNumber is the journal's IBAN, never reported as a counterparty account
	OwnAccountNumber string
	// Currency is used for transactions without a currency
	Currency string
	// LabelNotes prefixes each narration line with its field name
	LabelNotes bool
	// InternalIDFallback uses internalTransactionId as a last resort unique import ID
	InternalIDFallback bool
}

// GoCardlessOptions returns the mapping options for GoCardless lines
func GoCardlessOptions(journal provider.Journal) MappingOptions {
	return MappingOptions{
		OwnAccountNumber:   journal.SanitizedBankAccount(),
		Currency:           journal.Currency,
		InternalIDFallback: true,
	}
}

// NordigenOptions returns the mapping options for Nordigen lines
func NordigenOptions(journal provider.Journal) MappingOptions {
	return MappingOptions{
		OwnAccountNumber: journal.SanitizedBankAccount(),
		Currency:         journal.Currency,
		LabelNotes:       true,
	}
}

// FromOpenBanking maps booked transactions into lines. Transactions without a booking or value date are skipped.
// Credits take the debtor as partner, debits the creditor.
func FromOpenBanking(txns []aggregator.Transaction, opts MappingOptions) []Line {
	var lines []Line
	ownAccount := provider.SanitizeAccountNumber(opts.OwnAccountNumber)
	for _, txn := range txns {
		dateStr := txn.BookingDate
		if dateStr == "" {
			dateStr = txn.ValueDate
		}
		if dateStr == "" {
			continue
		}
		date, err := time.Parse(dateFormat, dateStr)
		if err != nil {
			continue
		}

		amount, err := decimal.NewFromString(txn.TransactionAmount.Amount)
		if err != nil {
			amount = decimal.Zero
		}
		currency := txn.TransactionAmount.Currency
		if currency == "" {
			currency = opts.Currency
		}

		partnerName := txn.CreditorName
		if amount.Sign() >= 0 {
			partnerName = txn.DebtorName
		}
		ref := strings.TrimSpace(repeatedSpaces.ReplaceAllString(partnerName, " "))
		if ref == "" {
			ref = "/"
		}
		paymentRef := txn.RemittanceInformationUnstructured
		if paymentRef == "" {
			paymentRef = partnerName
		}

		accountNumber := counterpartyAccount(ownAccount, txn.DebtorAccount, txn.CreditorAccount)

		uniqueID := txn.EntryReference
		if uniqueID == "" {
			uniqueID = txn.TransactionID
		}
		if uniqueID == "" && opts.InternalIDFallback {
			uniqueID = txn.InternalTransactionID
		}

		lines = append(lines, Line{
			Sequence:        len(lines) + 1,
			Date:            date,
			Ref:             ref,
			PaymentRef:      paymentRef,
			UniqueImportID:  uniqueID,
			Amount:          amount,
			Currency:        currency,
			AccountNumber:   accountNumber,
			PartnerName:     partnerName,
			TransactionType: txn.BankTransactionCode,
			Narration:       narration(txn, opts.LabelNotes),
		})
	}
	return lines
}

func counterpartyAccount(ownAccount string, refs ...*aggregator.AccountReference) string {
	for _, ref := range refs {
		if ref == nil || ref.IBAN == "" {
			continue
		}
		if ownAccount != "" && provider.SanitizeAccountNumber(ref.IBAN) == ownAccount {
			continue
		}
		return ref.IBAN
	}
	return ""
}

func narration(txn aggregator.Transaction, labelled bool) string {
	var notes []string
	for _, element := range noteElements {
		value := txn.Field(element)
		if value == "" {
			continue
		}
		if labelled {
			value = element + ": " + value
		}
		notes = append(notes, value)
	}
	return strings.Join(notes, "\n")
}
