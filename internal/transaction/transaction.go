// =============================================================================
// CSV to OFX Converter - Transaction Model
// =============================================================================
//
// This package turns one raw statement row into one normalized Record.
//
// A row is a map of column header -> cell value, exactly as produced by the
// row sources (csvparser, xlsxparser). Two caller-supplied structures tell
// New how to read it:
//
//   ColumnMap        : which source column holds the date, amount, payee,
//                      memo and bank transaction id.
//   AccountConstants : values that are the same for every row of one
//                      export (bank id, account id, account type, currency)
//                      plus the date format and amount normalization rules.
//
// EXAMPLE:
//   row     := Row{"Date": "15/03/2024", "Montant": "1 234,56", "Desc": "ACME"}
//   columns := ColumnMap{Date: "Date", Amount: "Montant", Payee: "Desc"}
//   account := AccountConstants{BankID: "815", AcctID: "555", DateFormat: "%d/%m/%Y"}
//   rec, err := New(row, columns, account)
//   // rec.Amount() == 1234.56, rec.TrnType() == "CREDIT"
//
// Records are values: every field is unexported and only readable through
// accessors, so a Record never changes after New returns it.
//
// =============================================================================

package transaction

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Transaction types written to TRNTYPE.
const (
	TypeCredit = "CREDIT"
	TypeDebit  = "DEBIT"
)

// Defaults applied when AccountConstants leaves a field empty.
const (
	DefaultAcctType = "CHECKING"
	DefaultCurrency = "CAD"
)

// Field length limits. Longer values are cut, not rejected.
const (
	MaxPayeeLength = 80
	MaxMemoLength  = 255
)

// fitidLength is the number of hex characters kept from the digest.
const fitidLength = 16

// fitidSeparator joins the fields hashed into a fingerprint.
const fitidSeparator = "|"

// DefaultAmountReplace reads a comma as the decimal separator and strips
// spaces used as thousands separators: "1 234,56" -> "1234.56".
var DefaultAmountReplace = []Replacement{
	{Find: ",", Replace: "."},
	{Find: " ", Replace: ""},
}

// =============================================================================
// INPUT STRUCTURES
// =============================================================================

// Row is one data row of a statement export.
type Row map[string]string

// ColumnMap names the source columns for each transaction field.
type ColumnMap struct {
	// Date is the column holding the posting date. Required.
	Date string

	// Amount is the column holding the signed amount. Required.
	Amount string

	// Payee, Memo and ExtID are optional. An empty name, or a name the row
	// does not contain, yields an empty payee/memo and no external id.
	Payee string
	Memo  string
	ExtID string
}

// Replacement is one find/replace pair applied to the raw amount.
type Replacement struct {
	Find    string
	Replace string
}

// AccountConstants holds the per-export values shared by every row.
type AccountConstants struct {
	// BankID and AcctID identify the account. Required.
	BankID string
	AcctID string

	// AcctType defaults to CHECKING.
	AcctType string

	// Currency defaults to CAD.
	Currency string

	// DateFormat is a strftime pattern ("%d/%m/%Y") or a Go layout
	// ("02/01/2006"). Empty means strict YYYY-MM-DD.
	DateFormat string

	// AmountReplace is applied in order to the trimmed raw amount.
	// nil means DefaultAmountReplace; an empty non-nil slice disables
	// substitution altogether.
	AmountReplace []Replacement
}

// =============================================================================
// RECORD
// =============================================================================

// AccountKey identifies the statement a record belongs to.
type AccountKey struct {
	BankID   string
	AcctID   string
	AcctType string
	Currency string
}

// Record is one posted transaction.
type Record struct {
	bankID   string
	acctID   string
	acctType string
	currency string
	posted   time.Time
	amount   decimal.Decimal
	payee    string
	memo     string
	extID    string
}

// New builds a Record from a raw row.
//
// PARAMETERS:
//   - row: The raw row (column header -> value).
//   - columns: Which columns hold which field.
//   - account: Per-export constants and parsing rules.
//
// RETURNS:
//   - The Record.
//   - *MissingFieldError when a required key or column is missing.
//   - *MalformedDateError when the date does not parse.
//   - *MalformedAmountError when the amount does not parse.
func New(row Row, columns ColumnMap, account AccountConstants) (Record, error) {
	if err := checkRequired(columns, account); err != nil {
		return Record{}, err
	}

	rawDate, ok := row[columns.Date]
	if !ok {
		return Record{}, &MissingFieldError{Source: SourceRow, Field: columns.Date}
	}
	posted, err := parseDate(strings.TrimSpace(rawDate), account.DateFormat)
	if err != nil {
		return Record{}, err
	}

	rawAmount, ok := row[columns.Amount]
	if !ok {
		return Record{}, &MissingFieldError{Source: SourceRow, Field: columns.Amount}
	}
	amount, err := parseAmount(strings.TrimSpace(rawAmount), account.AmountReplace)
	if err != nil {
		return Record{}, err
	}

	acctType := account.AcctType
	if acctType == "" {
		acctType = DefaultAcctType
	}
	currency := account.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return Record{
		bankID:   account.BankID,
		acctID:   account.AcctID,
		acctType: acctType,
		currency: currency,
		posted:   posted,
		amount:   amount,
		payee:    truncate(optional(row, columns.Payee), MaxPayeeLength),
		memo:     truncate(optional(row, columns.Memo), MaxMemoLength),
		extID:    optional(row, columns.ExtID),
	}, nil
}

// checkRequired reports the first required configuration key left empty.
func checkRequired(columns ColumnMap, account AccountConstants) error {
	switch {
	case columns.Date == "":
		return &MissingFieldError{Source: SourceColumns, Field: "date"}
	case columns.Amount == "":
		return &MissingFieldError{Source: SourceColumns, Field: "amount"}
	case account.BankID == "":
		return &MissingFieldError{Source: SourceAccount, Field: "bankid"}
	case account.AcctID == "":
		return &MissingFieldError{Source: SourceAccount, Field: "acctid"}
	}
	return nil
}

// parseAmount applies the substitutions and parses an exact decimal.
func parseAmount(raw string, replacements []Replacement) (decimal.Decimal, error) {
	if replacements == nil {
		replacements = DefaultAmountReplace
	}

	normalized := raw
	for _, r := range replacements {
		if r.Find == "" {
			continue
		}
		normalized = strings.ReplaceAll(normalized, r.Find, r.Replace)
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, &MalformedAmountError{Value: raw, Normalized: normalized, Err: err}
	}
	return amount, nil
}

// optional returns the cell for column, or "" when either is missing.
// Invalid UTF-8 sequences are replaced by U+FFFD.
func optional(row Row, column string) string {
	if column == "" {
		return ""
	}
	return strings.ToValidUTF8(row[column], "\uFFFD")
}

// truncate keeps the first n characters (runes) of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (r Record) BankID() string   { return r.bankID }
func (r Record) AcctID() string   { return r.acctID }
func (r Record) AcctType() string { return r.acctType }
func (r Record) Currency() string { return r.currency }

// Posted is the posting date at midnight UTC.
func (r Record) Posted() time.Time { return r.posted }

// Amount is signed: positive for credits, negative for debits.
func (r Record) Amount() decimal.Decimal { return r.amount }

func (r Record) Payee() string { return r.payee }
func (r Record) Memo() string  { return r.memo }

// ExtID returns the bank-provided id and whether there was one.
func (r Record) ExtID() (string, bool) { return r.extID, r.extID != "" }

// Key returns the statement grouping key of the record.
func (r Record) Key() AccountKey {
	return AccountKey{
		BankID:   r.bankID,
		AcctID:   r.acctID,
		AcctType: r.acctType,
		Currency: r.currency,
	}
}

// =============================================================================
// DERIVED FIELDS
// =============================================================================

// TrnType is CREDIT for a positive amount and DEBIT otherwise (zero
// included).
func (r Record) TrnType() string {
	if r.amount.IsPositive() {
		return TypeCredit
	}
	return TypeDebit
}

// FormattedAmount renders the amount with exactly two decimals using
// round-half-even. Zero is always "0.00", never "-0.00".
func (r Record) FormattedAmount() string {
	return r.amount.StringFixedBank(2)
}

// FITID returns the bank id when the export has one. Otherwise it derives
// a 16 hex character fingerprint from the md5 of
//
//	lower(bankid|acctid|YYYY-MM-DD|amount|payee|memo)
//
// The truncated digest is not collision free; it only needs to be unique
// within one account's history.
func (r Record) FITID() string {
	if r.extID != "" {
		return r.extID
	}

	base := strings.Join([]string{
		r.bankID,
		r.acctID,
		r.posted.Format(isoDateLayout),
		r.FormattedAmount(),
		r.payee,
		r.memo,
	}, fitidSeparator)

	sum := md5.Sum([]byte(strings.ToLower(base)))
	return hex.EncodeToString(sum[:])[:fitidLength]
}

// Equal reports whether both records hold the same values.
func (r Record) Equal(other Record) bool {
	return r.bankID == other.bankID &&
		r.acctID == other.acctID &&
		r.acctType == other.acctType &&
		r.currency == other.currency &&
		r.posted.Equal(other.posted) &&
		r.amount.Equal(other.amount) &&
		r.payee == other.payee &&
		r.memo == other.memo &&
		r.extID == other.extID
}
