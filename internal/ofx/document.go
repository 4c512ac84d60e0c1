// =============================================================================
// CSV to OFX Converter - OFX Document Assembler
// =============================================================================
//
// This module turns a collection of transaction Records into one OFX
// document. Records are grouped into one statement per account, and every
// statement lists its transactions by posting date.
//
// DOCUMENT STRUCTURE:
//
//   <OFX>
//     <SIGNONMSGSRSV1>                  <!-- fixed sign-on acknowledgment -->
//       <SONRS>
//         <STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS>
//         <DTSERVER>20240102150405</DTSERVER>
//         <LANGUAGE>ENG</LANGUAGE>
//         <FI />
//       </SONRS>
//     </SIGNONMSGSRSV1>
//     <BANKMSGSRSV1>
//       <STMTTRNRS>                     <!-- one per account group -->
//         <STMTRS>
//           <CURDEF>CAD</CURDEF>
//           <BANKACCTFROM>
//             <BANKID>001</BANKID><ACCTID>555</ACCTID><ACCTTYPE>CHECKING</ACCTTYPE>
//           </BANKACCTFROM>
//           <BANKTRANLIST>
//             <STMTTRN>                 <!-- sorted by DTPOSTED -->
//               <TRNTYPE>CREDIT</TRNTYPE>
//               <DTPOSTED>20240102</DTPOSTED>
//               <TRNAMT>100.00</TRNAMT>
//               <FITID>...</FITID>
//               <NAME>ACME</NAME>
//               <MEMO />
//             </STMTTRN>
//           </BANKTRANLIST>
//         </STMTRS>
//       </STMTTRNRS>
//     </BANKMSGSRSV1>
//   </OFX>
//
// GROUPING:
//   Statements are keyed by (bank id, account id, account type, currency)
//   and emitted in the order each key is first seen in the input.
//
// =============================================================================

package ofx

import (
	"sort"
	"time"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/xmlwriter"
)

// Timestamp layouts.
const (
	serverTimeLayout = "20060102150405"
	postedDateLayout = "20060102"
)

// Fixed sign-on values.
const (
	statusCode     = "0"
	statusSeverity = "INFO"
	language       = "ENG"
)

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler builds OFX documents. It holds no state between calls and is
// safe for concurrent use.
type Assembler struct {
	now     func() time.Time
	options xmlwriter.GenerateOptions
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock replaces the clock used for DTSERVER.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIndent makes the output one element per line, indented by indent.
func WithIndent(indent string) Option {
	return func(a *Assembler) { a.options.Indent = indent }
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		now:     time.Now,
		options: xmlwriter.DefaultGenerateOptions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build serializes records as one OFX document using the current time.
func Build(records []transaction.Record) string {
	return NewAssembler().Build(records)
}

// Build serializes records as one OFX document.
//
// Every record appears exactly once, in the statement of its account. An
// empty collection yields a document with the sign-on header and an empty
// BANKMSGSRSV1.
func (a *Assembler) Build(records []transaction.Record) string {
	root := a.Tree(records)
	return string(xmlwriter.GenerateWithOptions(root, a.options))
}

// Tree builds the element tree without serializing it.
func (a *Assembler) Tree(records []transaction.Record) *xmlwriter.XMLElement {
	root := xmlwriter.NewElement("OFX")
	addSignon(root, a.now().UTC())

	bankMessages := root.Add("BANKMSGSRSV1")
	for _, group := range groupByAccount(records) {
		addStatement(bankMessages, group)
	}

	return root
}

// =============================================================================
// SECTIONS
// =============================================================================

// addSignon adds the fixed sign-on acknowledgment.
func addSignon(root *xmlwriter.XMLElement, serverTime time.Time) {
	sonrs := root.Add("SIGNONMSGSRSV1").Add("SONRS")

	status := sonrs.Add("STATUS")
	status.AddText("CODE", statusCode)
	status.AddText("SEVERITY", statusSeverity)

	sonrs.AddText("DTSERVER", serverTime.Format(serverTimeLayout))
	sonrs.AddText("LANGUAGE", language)
	sonrs.Add("FI")
}

// addStatement adds one STMTTRNRS block for an account group.
func addStatement(parent *xmlwriter.XMLElement, group statementGroup) {
	stmtrs := parent.Add("STMTTRNRS").Add("STMTRS")
	stmtrs.AddText("CURDEF", group.key.Currency)

	account := stmtrs.Add("BANKACCTFROM")
	account.AddText("BANKID", group.key.BankID)
	account.AddText("ACCTID", group.key.AcctID)
	account.AddText("ACCTTYPE", group.key.AcctType)

	list := stmtrs.Add("BANKTRANLIST")
	for _, rec := range sortedByPosted(group.records) {
		entry := list.Add("STMTTRN")
		entry.AddText("TRNTYPE", rec.TrnType())
		entry.AddText("DTPOSTED", rec.Posted().Format(postedDateLayout))
		entry.AddText("TRNAMT", rec.FormattedAmount())
		entry.AddText("FITID", rec.FITID())
		entry.AddText("NAME", rec.Payee())
		entry.AddText("MEMO", rec.Memo())
	}
}

// =============================================================================
// GROUPING
// =============================================================================

// statementGroup is the set of records of one account.
type statementGroup struct {
	key     transaction.AccountKey
	records []transaction.Record
}

// Accounts returns the distinct account keys of records in the order the
// statements of a built document list them.
func Accounts(records []transaction.Record) []transaction.AccountKey {
	groups := groupByAccount(records)
	keys := make([]transaction.AccountKey, len(groups))
	for i, group := range groups {
		keys[i] = group.key
	}
	return keys
}

// groupByAccount partitions records by account key, keeping the order in
// which keys are first seen.
func groupByAccount(records []transaction.Record) []statementGroup {
	index := make(map[transaction.AccountKey]int)
	var groups []statementGroup

	for _, rec := range records {
		key := rec.Key()
		i, exists := index[key]
		if !exists {
			i = len(groups)
			index[key] = i
			groups = append(groups, statementGroup{key: key})
		}
		groups[i].records = append(groups[i].records, rec)
	}

	return groups
}

// sortedByPosted returns a copy of records in ascending posting date.
// Records on the same date keep their input order.
func sortedByPosted(records []transaction.Record) []transaction.Record {
	sorted := make([]transaction.Record, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Posted().Before(sorted[j].Posted())
	})

	return sorted
}
