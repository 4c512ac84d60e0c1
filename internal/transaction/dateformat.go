package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// isoDateLayout is the layout used when no date_fmt is configured.
const isoDateLayout = "2006-01-02"

// supportedDirectives are the strftime directives accepted in a date_fmt.
const supportedDirectives = "YymdebhBaAHIMSpzZ%"

// unstableDirectives render differently from what they parse (weekday
// names are not checked against the date, zones are normalized), so
// formats using them skip the round-trip calendar check.
const unstableDirectives = "aAzZ"

// parseDate parses raw strictly and drops any time-of-day component.
//
// An empty format means ISO "YYYY-MM-DD". Formats containing a '%' are
// strftime patterns ("%d/%m/%Y"); numeric fields accept one or two digits
// like strptime does. Anything else is taken to be a Go layout.
func parseDate(raw, format string) (time.Time, error) {
	var (
		t   time.Time
		err error
	)

	switch {
	case format == "":
		t, err = time.Parse(isoDateLayout, raw)
	case strings.Contains(format, "%"):
		t, err = parseStrftime(raw, format)
	default:
		t, err = time.Parse(format, raw)
	}
	if err != nil {
		return time.Time{}, &MalformedDateError{Value: raw, Format: format, Err: err}
	}

	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// parseStrftime parses raw against a strftime pattern.
func parseStrftime(raw, format string) (time.Time, error) {
	if err := ValidateDateFormat(format); err != nil {
		return time.Time{}, err
	}

	t, err := timefmt.Parse(raw, format)
	if err != nil {
		return time.Time{}, err
	}

	// Out-of-range days roll over into the next month ("30/02" -> "01/03");
	// formatting the result back exposes them.
	if !strings.ContainsAny(directives(format), unstableDirectives) &&
		canonical(timefmt.Format(t, format)) != canonical(raw) {
		return time.Time{}, fmt.Errorf("%q is not a valid calendar date", raw)
	}

	return t, nil
}

// ValidateDateFormat reports whether format can be used as a date_fmt.
// Formats without a '%' are Go layouts and always accepted.
func ValidateDateFormat(format string) error {
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		if i+1 >= len(format) {
			return fmt.Errorf("dangling %% at end of date format")
		}
		i++
		if !strings.ContainsRune(supportedDirectives, rune(format[i])) {
			return fmt.Errorf("unsupported date directive %%%c", format[i])
		}
	}
	return nil
}

// directives returns the directive letters used in format.
func directives(format string) string {
	var b strings.Builder
	for i := 0; i+1 < len(format); i++ {
		if format[i] == '%' {
			i++
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

// canonical folds case, collapses blanks and drops leading zeros of every
// number, so "5/3/2024" and "05/03/2024" compare equal.
func canonical(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))

	var b strings.Builder
	leading := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) {
			leading = true
			b.WriteByte(c)
			continue
		}
		lastDigit := i+1 >= len(s) || !isDigit(s[i+1])
		if leading && c == '0' && !lastDigit {
			continue
		}
		leading = false
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
