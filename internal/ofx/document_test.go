package ofx

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ginjaninja78/CSV-to-OFX-conversion/internal/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

var columns = transaction.ColumnMap{Date: "date", Amount: "amount", Payee: "payee", Memo: "memo"}

func record(t *testing.T, bankID, acctID, date, amount, payee string) transaction.Record {
	t.Helper()
	rec, err := transaction.New(
		transaction.Row{"date": date, "amount": amount, "payee": payee},
		columns,
		transaction.AccountConstants{BankID: bankID, AcctID: acctID},
	)
	require.NoError(t, err)
	return rec
}

// parsed mirrors the document for assertions.
type parsed struct {
	XMLName xml.Name `xml:"OFX"`
	Signon  struct {
		Code     string `xml:"SONRS>STATUS>CODE"`
		Severity string `xml:"SONRS>STATUS>SEVERITY"`
		Server   string `xml:"SONRS>DTSERVER"`
		Language string `xml:"SONRS>LANGUAGE"`
	} `xml:"SIGNONMSGSRSV1"`
	Statements []struct {
		Currency string `xml:"STMTRS>CURDEF"`
		BankID   string `xml:"STMTRS>BANKACCTFROM>BANKID"`
		AcctID   string `xml:"STMTRS>BANKACCTFROM>ACCTID"`
		AcctType string `xml:"STMTRS>BANKACCTFROM>ACCTTYPE"`
		Entries  []struct {
			Type   string `xml:"TRNTYPE"`
			Posted string `xml:"DTPOSTED"`
			Amount string `xml:"TRNAMT"`
			FITID  string `xml:"FITID"`
			Name   string `xml:"NAME"`
			Memo   string `xml:"MEMO"`
		} `xml:"STMTRS>BANKTRANLIST>STMTTRN"`
	} `xml:"BANKMSGSRSV1>STMTTRNRS"`
}

func parse(t *testing.T, doc string) parsed {
	t.Helper()
	var p parsed
	require.NoError(t, xml.Unmarshal([]byte(doc), &p))
	return p
}

func TestBuild_EndToEnd(t *testing.T) {
	rec, err := transaction.New(
		transaction.Row{"date": "2024-01-02", "amount": "100,00", "payee": "ACME"},
		transaction.ColumnMap{Date: "date", Amount: "amount", Payee: "payee"},
		transaction.AccountConstants{BankID: "001", AcctID: "555", Currency: "CAD"},
	)
	require.NoError(t, err)

	doc := NewAssembler(WithClock(fixedClock)).Build([]transaction.Record{rec})

	expected := "<?xml version='1.0' encoding='utf-8'?>\n" +
		"<OFX>" +
		"<SIGNONMSGSRSV1><SONRS>" +
		"<STATUS><CODE>0</CODE><SEVERITY>INFO</SEVERITY></STATUS>" +
		"<DTSERVER>20240506070809</DTSERVER>" +
		"<LANGUAGE>ENG</LANGUAGE>" +
		"<FI />" +
		"</SONRS></SIGNONMSGSRSV1>" +
		"<BANKMSGSRSV1><STMTTRNRS><STMTRS>" +
		"<CURDEF>CAD</CURDEF>" +
		"<BANKACCTFROM><BANKID>001</BANKID><ACCTID>555</ACCTID><ACCTTYPE>CHECKING</ACCTTYPE></BANKACCTFROM>" +
		"<BANKTRANLIST><STMTTRN>" +
		"<TRNTYPE>CREDIT</TRNTYPE>" +
		"<DTPOSTED>20240102</DTPOSTED>" +
		"<TRNAMT>100.00</TRNAMT>" +
		"<FITID>" + rec.FITID() + "</FITID>" +
		"<NAME>ACME</NAME>" +
		"<MEMO />" +
		"</STMTTRN></BANKTRANLIST>" +
		"</STMTRS></STMTTRNRS></BANKMSGSRSV1>" +
		"</OFX>"
	assert.Equal(t, expected, doc)
}

func TestBuild_InvalidUTF8CellsStayWellFormed(t *testing.T) {
	rec := record(t, "001", "555", "2024-01-02", "-4,50", "Caf\xe9 <&>")

	doc := NewAssembler(WithClock(fixedClock)).Build([]transaction.Record{rec})

	assert.True(t, utf8.ValidString(doc))
	p := parse(t, doc)
	require.Len(t, p.Statements, 1)
	require.Len(t, p.Statements[0].Entries, 1)
	assert.Equal(t, "Caf\uFFFD <&>", p.Statements[0].Entries[0].Name)
}

func TestBuild_Empty(t *testing.T) {
	doc := NewAssembler(WithClock(fixedClock)).Build(nil)

	p := parse(t, doc)
	assert.Equal(t, "0", p.Signon.Code)
	assert.Equal(t, "INFO", p.Signon.Severity)
	assert.Equal(t, "20240506070809", p.Signon.Server)
	assert.Equal(t, "ENG", p.Signon.Language)
	assert.Empty(t, p.Statements)
	assert.True(t, strings.HasSuffix(doc, "<BANKMSGSRSV1 /></OFX>"))
}

func TestBuild_GroupsInFirstSeenOrder(t *testing.T) {
	records := []transaction.Record{
		record(t, "900", "B", "2024-01-01", "1", "b1"),
		record(t, "100", "A", "2024-01-01", "2", "a1"),
		record(t, "900", "B", "2024-01-02", "3", "b2"),
		record(t, "100", "A", "2024-01-02", "4", "a2"),
	}

	p := parse(t, NewAssembler(WithClock(fixedClock)).Build(records))

	require.Len(t, p.Statements, 2)
	assert.Equal(t, "900", p.Statements[0].BankID)
	assert.Equal(t, "B", p.Statements[0].AcctID)
	assert.Equal(t, "100", p.Statements[1].BankID)
	assert.Equal(t, "A", p.Statements[1].AcctID)

	names := func(i int) []string {
		var out []string
		for _, e := range p.Statements[i].Entries {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"b1", "b2"}, names(0))
	assert.Equal(t, []string{"a1", "a2"}, names(1))
}

func TestBuild_GroupKeyIncludesTypeAndCurrency(t *testing.T) {
	row := transaction.Row{"date": "2024-01-01", "amount": "1"}
	cols := transaction.ColumnMap{Date: "date", Amount: "amount"}

	mk := func(acctType, currency string) transaction.Record {
		rec, err := transaction.New(row, cols, transaction.AccountConstants{
			BankID: "1", AcctID: "2", AcctType: acctType, Currency: currency,
		})
		require.NoError(t, err)
		return rec
	}

	records := []transaction.Record{
		mk("CHECKING", "CAD"),
		mk("SAVINGS", "CAD"),
		mk("CHECKING", "USD"),
		mk("CHECKING", "CAD"),
	}

	p := parse(t, NewAssembler(WithClock(fixedClock)).Build(records))

	require.Len(t, p.Statements, 3)
	assert.Equal(t, "CHECKING", p.Statements[0].AcctType)
	assert.Equal(t, "CAD", p.Statements[0].Currency)
	assert.Len(t, p.Statements[0].Entries, 2)
	assert.Equal(t, "SAVINGS", p.Statements[1].AcctType)
	assert.Equal(t, "USD", p.Statements[2].Currency)
}

func TestBuild_SortsByPostedDate(t *testing.T) {
	records := []transaction.Record{
		record(t, "1", "2", "2024-03-10", "1", "march"),
		record(t, "1", "2", "2024-01-05", "1", "january"),
		record(t, "1", "2", "2024-02-20", "1", "february"),
	}

	p := parse(t, NewAssembler(WithClock(fixedClock)).Build(records))

	require.Len(t, p.Statements, 1)
	var posted []string
	for _, e := range p.Statements[0].Entries {
		posted = append(posted, e.Posted)
	}
	assert.Equal(t, []string{"20240105", "20240220", "20240310"}, posted)
}

func TestBuild_SameDateKeepsInputOrder(t *testing.T) {
	records := []transaction.Record{
		record(t, "1", "2", "2024-01-02", "1", "second-day"),
		record(t, "1", "2", "2024-01-01", "1", "first"),
		record(t, "1", "2", "2024-01-01", "1", "second"),
		record(t, "1", "2", "2024-01-01", "1", "third"),
	}

	p := parse(t, NewAssembler(WithClock(fixedClock)).Build(records))

	var names []string
	for _, e := range p.Statements[0].Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"first", "second", "third", "second-day"}, names)
}

func TestBuild_EntryFields(t *testing.T) {
	debit, err := transaction.New(
		transaction.Row{"date": "2024-02-29", "amount": "-42.1", "payee": "Café & Co", "memo": "card <1234>", "ref": "BANK-1"},
		transaction.ColumnMap{Date: "date", Amount: "amount", Payee: "payee", Memo: "memo", ExtID: "ref"},
		transaction.AccountConstants{BankID: "1", AcctID: "2"},
	)
	require.NoError(t, err)

	doc := NewAssembler(WithClock(fixedClock)).Build([]transaction.Record{debit})

	assert.Contains(t, doc, "<NAME>Café &amp; Co</NAME>")
	assert.Contains(t, doc, "<MEMO>card &lt;1234&gt;</MEMO>")

	entry := parse(t, doc).Statements[0].Entries[0]
	assert.Equal(t, "DEBIT", entry.Type)
	assert.Equal(t, "20240229", entry.Posted)
	assert.Equal(t, "-42.10", entry.Amount)
	assert.Equal(t, "BANK-1", entry.FITID)
	assert.Equal(t, "Café & Co", entry.Name)
	assert.Equal(t, "card <1234>", entry.Memo)
}

func TestBuild_EveryRecordOnce(t *testing.T) {
	var records []transaction.Record
	for i, acct := range []string{"A", "B", "C", "A", "B", "A"} {
		records = append(records, record(t, "1", acct, "2024-01-0"+string(rune('1'+i)), "1", acct))
	}

	p := parse(t, NewAssembler(WithClock(fixedClock)).Build(records))

	total := 0
	for _, s := range p.Statements {
		for _, e := range s.Entries {
			assert.Equal(t, s.AcctID, e.Name)
			total++
		}
	}
	assert.Equal(t, len(records), total)
	assert.Len(t, p.Statements, 3)
}

func TestBuild_Idempotent(t *testing.T) {
	records := []transaction.Record{
		record(t, "1", "2", "2024-03-10", "1", "x"),
		record(t, "3", "4", "2024-01-05", "-2", "y"),
	}
	assembler := NewAssembler(WithClock(fixedClock))

	assert.Equal(t, assembler.Build(records), assembler.Build(records))
}

func TestBuild_DoesNotReorderInput(t *testing.T) {
	records := []transaction.Record{
		record(t, "1", "2", "2024-03-10", "1", "late"),
		record(t, "1", "2", "2024-01-05", "1", "early"),
	}

	NewAssembler(WithClock(fixedClock)).Build(records)

	assert.Equal(t, "late", records[0].Payee())
}

func TestBuild_ServerTimeIsUTC(t *testing.T) {
	local := time.Date(2024, 5, 6, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	doc := NewAssembler(WithClock(func() time.Time { return local })).Build(nil)

	assert.Equal(t, "20240507043000", parse(t, doc).Signon.Server)
}

func TestBuild_Indented(t *testing.T) {
	doc := NewAssembler(WithClock(fixedClock), WithIndent("  ")).Build(nil)

	assert.Contains(t, doc, "\n  <SIGNONMSGSRSV1>\n")
	assert.Contains(t, doc, "      <FI />\n")
	parse(t, doc)
}

func TestBuild_DefaultClock(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Second)
	doc := Build(nil)
	after := time.Now().UTC()

	server, err := time.Parse("20060102150405", parse(t, doc).Signon.Server)
	require.NoError(t, err)
	assert.False(t, server.Before(before))
	assert.False(t, server.After(after))
}

func TestGroupByAccount(t *testing.T) {
	records := []transaction.Record{
		record(t, "1", "X", "2024-01-01", "1", ""),
		record(t, "1", "Y", "2024-01-01", "1", ""),
		record(t, "1", "X", "2024-01-01", "1", ""),
	}

	groups := groupByAccount(records)

	require.Len(t, groups, 2)
	assert.Equal(t, "X", groups[0].key.AcctID)
	assert.Len(t, groups[0].records, 2)
	assert.Equal(t, "Y", groups[1].key.AcctID)
	assert.Len(t, groups[1].records, 1)
	assert.Empty(t, groupByAccount(nil))
}

func TestAccounts(t *testing.T) {
	records := []transaction.Record{
		record(t, "2", "B", "2024-01-01", "1", ""),
		record(t, "1", "A", "2024-01-01", "1", ""),
		record(t, "2", "B", "2024-01-02", "1", ""),
	}

	keys := Accounts(records)

	require.Len(t, keys, 2)
	assert.Equal(t, transaction.AccountKey{BankID: "2", AcctID: "B", AcctType: "CHECKING", Currency: "CAD"}, keys[0])
	assert.Equal(t, "A", keys[1].AcctID)
	assert.Empty(t, Accounts(nil))
}
