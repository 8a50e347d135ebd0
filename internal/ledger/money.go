// Package ledger derives balances, statuses and per-student views from fee
// records fetched from the server. Everything here is a pure function over
// a snapshot; nothing is persisted.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayout is the wire format of due dates and payment dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned by ParseDate for anything not in DateLayout.
var ErrInvalidDate = errors.New("date must be formatted YYYY-MM-DD")

var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

var printer = message.NewPrinter(language.English)

// dec converts a wire amount to a decimal rounded to cents.
// NaN and infinities count as zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// nonNegative is dec clamped at zero.
func nonNegative(v float64) decimal.Decimal {
	d := dec(v)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return toFloat(dec(v))
}

// ParseAmount parses user input as a positive amount with at most two
// fraction digits. "12", "12.5" and "12.50" are accepted; "0", "-1",
// "1e3" and "12.345" are not.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// FormatCurrency renders v with thousands separators and two decimals,
// prefixed by the currency code or symbol, e.g. "INR 1,250.00".
func FormatCurrency(v float64, currency string) string {
	amount := printer.Sprintf("%.2f", Round2(v))
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}

// FormatDueDate renders a due date for display. Zero dates render as "-".
func FormatDueDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
