package sandbox

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/johnstarich/banklink/aggregator"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"golang.org/x/text/currency"
)

const dateFormat = "2006-01-02"

// AccountGenerator deterministically generates transactions for an account
type AccountGenerator struct {
	IBAN     string
	Currency currency.Unit
	seed     uint64
}

type randTransaction struct {
	ID           string
	Date         time.Time
	Counterparty string
	Account      string
	Amount       decimal.Decimal
}

func (a *AccountGenerator) getSeed() uint64 {
	if a.seed == 0 {
		a.seed = seedStringToInt(a.IBAN)
	}
	return a.seed
}

func milliseconds(millis uint64) time.Duration {
	return time.Duration(int(millis) * int(time.Millisecond))
}

func seedStringToInt(seed string) uint64 {
	buf := bytes.NewBufferString(seed)
	var reducedVal uint64
	for val, err := binary.ReadUvarint(buf); err == nil; val, err = binary.ReadUvarint(buf) {
		reducedVal = (reducedVal ^ val) * val
	}
	if reducedVal == 0 {
		reducedVal = 1
	}
	return reducedVal
}

func truncateToYear(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
}

func (a *AccountGenerator) seedFromYear(t time.Time) uint64 {
	return a.getSeed() * uint64(t.Year())
}

func (a *AccountGenerator) currencyCode() string {
	if a.Currency == (currency.Unit{}) {
		return currency.EUR.String()
	}
	return a.Currency.String()
}

// Transactions generates the booked transactions between start and end, inclusive of both days.
// The same account and date range always generate the same transactions.
func (a *AccountGenerator) Transactions(start, end time.Time) []aggregator.Transaction {
	var txns []aggregator.Transaction
	for _, randTxn := range a.randTransactions(start, end) {
		txn := aggregator.Transaction{
			TransactionID:                     randTxn.ID,
			EntryReference:                    "ENTRY-" + randTxn.ID,
			BookingDate:                       randTxn.Date.Format(dateFormat),
			ValueDate:                         randTxn.Date.Format(dateFormat),
			TransactionAmount:                 aggregator.Amount{Amount: randTxn.Amount.StringFixed(2), Currency: a.currencyCode()},
			RemittanceInformationUnstructured: "Payment " + randTxn.Counterparty,
			BankTransactionCode:               "PMNT",
		}
		if randTxn.Amount.IsNegative() {
			txn.CreditorName = randTxn.Counterparty
			txn.CreditorAccount = &aggregator.AccountReference{IBAN: randTxn.Account}
			txn.DebtorAccount = &aggregator.AccountReference{IBAN: a.IBAN}
		} else {
			txn.DebtorName = randTxn.Counterparty
			txn.DebtorAccount = &aggregator.AccountReference{IBAN: randTxn.Account}
			txn.CreditorAccount = &aggregator.AccountReference{IBAN: a.IBAN}
		}
		txns = append(txns, txn)
	}
	return txns
}

func (a *AccountGenerator) randTransactions(start, end time.Time) []randTransaction {
	start = truncateToDay(start.UTC())
	end = truncateToDay(end.UTC()).AddDate(0, 0, 1)
	var rng rand.PCGSource
	date := truncateToYear(start)
	year := date.Year()
	seed := a.seedFromYear(date)
	rng.Seed(seed)

	var txns []randTransaction
	for date.Before(end) {
		date = date.Add(milliseconds(rng.Uint64() >> 34)) // 30 bits of milliseconds caps out at about 12 days
		if date.Year() != year {
			// re-seed for each year. helps jumps between years.
			year = date.Year()
			seed = a.seedFromYear(date)
			date = truncateToYear(date)
			rng.Seed(seed)
			continue
		}

		if !date.Before(start) && date.Before(end) {
			txnSeed := seed ^ uint64(date.UnixNano())
			txns = append(txns, newRandTransaction(date, txnSeed))
		}
	}
	return txns
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func newRandTransaction(date time.Time, seed uint64) randTransaction {
	var rng rand.PCGSource
	rng.Seed(seed)
	random := rand.New(&rng)
	id := strconv.FormatUint(random.Uint64(), 10)
	amount := decimal.NewFromFloat(random.Float64() * float64(random.Intn(100))).Round(2)
	if random.Intn(3) != 0 {
		amount = amount.Neg()
	}
	choice := random.Int() % len(counterpartyChoices)
	return randTransaction{
		ID:           id,
		Date:         date,
		Counterparty: counterpartyChoices[choice].Name,
		Account:      counterpartyChoices[choice].IBAN,
		Amount:       amount,
	}
}

var (
	counterpartyChoices = []struct {
		Name string
		IBAN string
	}{
		{"Frond n Me", "FR1420041010050500013M02606"},
		{"Home Despot", "DE89370400440532013000"},
		{"Burger Palace", "NL91ABNA0417164300"},
		{"The Flying Yodel", "AT611904300234573201"},
		{"Screech Sound Systems", "BE68539007547034"},
		{"Lightship Travel", "ES9121000418450200051332"},
		{"Half Life Energy", "IT60X0542811101000000123456"},
		{"Snowball Cleaners", "FI2112345600000785"},
		{"Flux Timepieces", "PT50000201231234567890154"},
		{"Dynaworks Fireworks", "IE29AIBK93115212345678"},
		{"Pipe Dreams Industries", "LU280019400644750000"},
		{"Primary Color Inc", "SE4550000000058398257466"},
		{"Yesterday's News", "DK5000400440116243"},
		{"Luna Tick's Bar and Grill", "NO9386011117947"},
		{"Danger Zones", "PL61109010140000071219812874"},
	}
)
