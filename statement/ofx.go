package statement

import (
	"io"

	"github.com/aclindsa/ofxgo"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OFXStatement is a parsed OFX statement for one account
type OFXStatement struct {
	AccountID string
	Currency  string
	Lines     []Line
}

// ReadOFX reads r and parses it for each account's statement lines
func ReadOFX(r io.Reader) ([]OFXStatement, error) {
	resp, err := ofxgo.ParseResponse(r)
	if err != nil {
		return nil, errors.Wrap(err, "Invalid OFX file")
	}
	return importOFX(resp)
}

func importOFX(resp *ofxgo.Response) ([]OFXStatement, error) {
	messages := append(resp.Bank, resp.CreditCard...)
	if len(messages) == 0 {
		return nil, errors.Errorf("No messages received")
	}
	fid := resp.Signon.Fid.String()

	var statements []OFXStatement
	for _, message := range messages {
		var ofxTxns []ofxgo.Transaction
		var statement OFXStatement
		switch response := message.(type) {
		case *ofxgo.CCStatementResponse:
			statement.AccountID = response.CCAcctFrom.AcctID.String()
			if response.BankTranList != nil {
				ofxTxns = response.BankTranList.Transactions
			}
			statement.Currency = response.CurDef.String()
		case *ofxgo.StatementResponse:
			statement.AccountID = response.BankAcctFrom.AcctID.String()
			if response.BankTranList != nil {
				ofxTxns = response.BankTranList.Transactions
			}
			statement.Currency = response.CurDef.String()
		default:
			return nil, errors.Errorf("Invalid statement type: %T", message)
		}

		for _, ofxTxn := range ofxTxns {
			line := parseOFXTransaction(ofxTxn, statement.Currency, makeUniqueTxnID(fid, statement.AccountID))
			line.Sequence = len(statement.Lines) + 1
			statement.Lines = append(statement.Lines, line)
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

func parseOFXTransaction(txn ofxgo.Transaction, currency string, makeTxnID func(string) string) Line {
	if txn.Currency != nil {
		if ok, _ := txn.Currency.Valid(); ok {
			currency = txn.Currency.CurSym.String()
		}
	}

	name := string(txn.Name)
	if name == "" && txn.Payee != nil {
		name = string(txn.Payee.Name)
	}
	paymentRef := name
	if len(txn.Memo) > 0 {
		paymentRef = string(txn.Memo)
	}
	ref := string(txn.RefNum)
	if ref == "" {
		ref = name
	}
	if ref == "" {
		ref = "/"
	}

	// NOTE: TrnAmt uses big.Rat internally, which can't form an invalid number with .String()
	amount := decimal.RequireFromString(txn.TrnAmt.String())
	var txnType string
	if txn.TrnType.Valid() {
		txnType = txn.TrnType.String()
	}

	return Line{
		Date:            txn.DtPosted.Time,
		Ref:             ref,
		PaymentRef:      paymentRef,
		UniqueImportID:  makeTxnID(string(txn.FiTID)),
		Amount:          amount,
		Currency:        currency,
		PartnerName:     name,
		TransactionType: txnType,
	}
}

func makeUniqueTxnID(fid, accountID string) func(txnID string) string {
	// Follows FITID recommendation from OFX 102 Section 3.2.1
	idPrefix := fid + "-" + accountID + "-"
	return func(txnID string) string {
		return idPrefix + txnID
	}
}
