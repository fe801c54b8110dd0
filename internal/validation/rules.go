package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order; the first one that parses wins, so
// "01/02/2023" is read day-first.
var dateLayouts = []string{
	"2.1.2006",
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2.1.06",
	"2/1/06",
	"1/2/06",
	"2-1-06",
	"2006.1.2",
}

// DateFormat is the canonical output format for dates (DD.MM.YYYY).
const DateFormat = "02.01.2006"

var (
	nonNumeric       = regexp.MustCompile(`[^\d.\-]`)
	accountNumberRe  = regexp.MustCompile(`^\d{6}-\d{7,8}$`)
	bicRe            = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	finnishIBANRe    = regexp.MustCompile(`^FI\d{16}$`)
	ibanRe           = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{1,30}$`)
	referenceRe      = regexp.MustCompile(`^\d{4,25}$`)
	businessIDRe     = regexp.MustCompile(`^\d{7}-\d$`)
	currencyCodeRe   = regexp.MustCompile(`^[A-Za-z]{3}$`)
	businessIDWeight = []int{7, 9, 10, 5, 8, 4, 2}
)

var currencySynonyms = map[string]string{
	"euro":    "EUR",
	"euros":   "EUR",
	"euroa":   "EUR",
	"eur":     "EUR",
	"€":       "EUR",
	"usd":     "USD",
	"dollar":  "USD",
	"dollars": "USD",
	"$":       "USD",
	"gbp":     "GBP",
	"pound":   "GBP",
	"pounds":  "GBP",
	"£":       "GBP",
}

// InvoiceNumber trims the value; an empty result is rejected.
func InvoiceNumber(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.TrimSpace(asText(raw))
	if s == "" {
		return reject[string]("Invoice number is empty")
	}
	return accept(s)
}

// Date parses the value with each of dateLayouts and renders it as DD.MM.YYYY.
func Date(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.TrimSpace(asText(raw))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return accept(t.Format(DateFormat))
		}
	}
	return reject[string]("Invalid date format: %s", s)
}

// Amount returns a rule for a non-negative monetary amount rounded to two
// decimals. label names the field in error messages.
func Amount(label string) Rule[float64] {
	return func(raw any) Outcome[float64] {
		if raw == nil {
			return absent[float64]()
		}
		f, err := parseNumber(raw)
		if err != nil {
			return reject[float64]("Invalid %s: %v", strings.ToLower(label), err)
		}
		if f < 0 {
			return reject[float64]("%s cannot be negative", label)
		}
		return accept(round2(f))
	}
}

// Quantity accepts a non-negative number. Whole numbers are kept as they are,
// anything else is rounded to two decimals.
func Quantity(raw any) Outcome[float64] {
	if raw == nil {
		return absent[float64]()
	}
	f, err := parseNumber(raw)
	if err != nil {
		return reject[float64]("Invalid quantity: %v", err)
	}
	if f < 0 {
		return reject[float64]("Quantity cannot be negative")
	}
	if f == math.Trunc(f) {
		return accept(f)
	}
	return accept(round2(f))
}

// ProductName trims the value; an empty result is rejected.
func ProductName(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.TrimSpace(asText(raw))
	if s == "" {
		return reject[string]("Product name is empty")
	}
	return accept(s)
}

// AccountNumber checks the Finnish domestic format NNNNNN-NNNNNNN(N).
func AccountNumber(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.TrimSpace(asText(raw))
	if s == "" {
		return reject[string]("Account number is empty")
	}
	if !accountNumberRe.MatchString(s) {
		return reject[string]("Invalid Finnish account number format")
	}
	return accept(s)
}

// BIC upper-cases the value and checks it is an 8 or 11 character bank code.
func BIC(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.ToUpper(strings.TrimSpace(asText(raw)))
	if s == "" {
		return reject[string]("BIC is empty")
	}
	if !bicRe.MatchString(s) {
		return reject[string]("Invalid BIC format")
	}
	return accept(s)
}

// IBAN removes whitespace, upper-cases, checks the format and returns the
// IBAN in groups of four. Finnish IBANs must have exactly 16 digits.
func IBAN(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.ToUpper(removeSpaces(asText(raw)))
	if s == "" {
		return reject[string]("IBAN is empty")
	}
	if strings.HasPrefix(s, "FI") {
		if !finnishIBANRe.MatchString(s) {
			return reject[string]("Invalid Finnish IBAN format")
		}
	} else if !ibanRe.MatchString(s) {
		return reject[string]("Invalid IBAN format")
	}
	return accept(groupLeft(s, 4))
}

// ReferenceNumber checks for 4 to 25 digits and groups them in fives from the
// right. The check digit is not verified.
func ReferenceNumber(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := removeSpaces(asText(raw))
	if s == "" {
		return reject[string]("Reference number is empty")
	}
	if !referenceRe.MatchString(s) {
		return reject[string]("Invalid reference number format")
	}
	return accept(groupRight(s, 5))
}

// BusinessID checks a Finnish business ID (NNNNNNN-N) including its check digit.
func BusinessID(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := removeSpaces(asText(raw))
	if s == "" {
		return reject[string]("Business ID is empty")
	}
	if !businessIDRe.MatchString(s) {
		return reject[string]("Invalid business ID format")
	}

	sum := 0
	for i, w := range businessIDWeight {
		sum += int(s[i]-'0') * w
	}
	check := 0
	if r := sum % 11; r != 0 {
		check = 11 - r
	}
	if check == 10 || check != int(s[8]-'0') {
		return reject[string]("Invalid business ID check digit")
	}
	return accept(s)
}

// Currency maps common names and symbols to ISO codes and upper-cases other
// three-letter codes. Anything else is kept in its lower-cased form. It never
// rejects a value; blank input is treated as null.
func Currency(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.ToLower(strings.TrimSpace(asText(raw)))
	if s == "" {
		return absent[string]()
	}
	if code, ok := currencySynonyms[s]; ok {
		return accept(code)
	}
	if currencyCodeRe.MatchString(s) {
		return accept(strings.ToUpper(s))
	}
	return accept(s)
}

// Text trims free-form values such as vendor_name. It never rejects a value;
// blank input is treated as null.
func Text(raw any) Outcome[string] {
	if raw == nil {
		return absent[string]()
	}
	s := strings.TrimSpace(asText(raw))
	if s == "" {
		return absent[string]()
	}
	return accept(s)
}

// asText renders a JSON-decoded value as text. Whole floats print without a
// fraction or exponent, so 20230001 stays "20230001".
func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// parseNumber accepts numbers directly. Strings have commas turned into
// decimal points and every other character except digits, '.' and '-'
// stripped before parsing.
func parseNumber(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t.String())
		}
		f = n
	case string:
		cleaned := nonNumeric.ReplaceAllString(strings.ReplaceAll(t, ",", "."), "")
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t)
		}
		f = n
	default:
		return 0, fmt.Errorf("unsupported value of type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

func removeSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// groupLeft splits s into space separated chunks of n, starting from the left.
func groupLeft(s string, n int) string {
	var b strings.Builder
	for i := 0; i < len(s); i += n {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + n
		if end > len(s) {
			end = len(s)
		}
		b.WriteString(s[i:end])
	}
	return b.String()
}

// groupRight splits s into space separated chunks of n, starting from the right.
func groupRight(s string, n int) string {
	head := len(s) % n
	if head == 0 {
		return groupLeft(s, n)
	}
	if len(s) <= n {
		return s
	}
	return s[:head] + " " + groupLeft(s[head:], n)
}
