package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Money is an amount in cents. Cents keep weekly sums exact.
type Money int64

// String formats the amount with two decimals, e.g. "1250.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns the amount as a float for display only.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// MarshalJSON writes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON never fails: numbers and numeric strings are parsed, anything
// else reads as zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*m = 0
			return nil
		}
		*m = DefaultQuoteParser.Parse(s)
		return nil
	}
	*m = ParseDecimal(string(data))
	return nil
}

// DefaultQuoteStrip removes currency signs, thousands separators and spaces.
const DefaultQuoteStrip = `[$£€,\s]`

// DefaultQuoteParser parses quotes with DefaultQuoteStrip.
var DefaultQuoteParser = MustQuoteParser(DefaultQuoteStrip)

// QuoteParser turns free-text quote input into Money. The strip pattern is
// locale specific and comes from configuration.
type QuoteParser struct {
	strip *regexp.Regexp
}

// NewQuoteParser compiles the strip pattern.
func NewQuoteParser(pattern string) (*QuoteParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("models: quote strip pattern: %w", err)
	}
	return &QuoteParser{strip: re}, nil
}

// MustQuoteParser is NewQuoteParser that panics on a bad pattern.
func MustQuoteParser(pattern string) *QuoteParser {
	p, err := NewQuoteParser(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse strips the configured pattern and parses what is left. Unparseable or
// negative input is zero.
func (p *QuoteParser) Parse(s string) Money {
	return ParseDecimal(p.strip.ReplaceAllString(s, ""))
}

// ParseDecimal converts a plain decimal string ("12", "12.3", "12.345") to
// cents, rounding half up on the third decimal. Anything that is not a
// non-negative decimal yields zero.
func ParseDecimal(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0
	}
	s = strings.TrimPrefix(s, "+")

	// JSON numbers may arrive in exponent form.
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f >= maxFloatWhole {
			return 0
		}
		return Money(f*100 + 0.5)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || iv > maxWhole {
		return 0
	}

	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}
	return Money(iv*100 + frac)
}

// MaxMoney is the largest representable amount. Sums saturate here.
const MaxMoney = Money(math.MaxInt64)

// maxWhole keeps whole*100 + 99 within int64.
const maxWhole = (math.MaxInt64 - 99) / 100

// maxFloatWhole bounds exponent-form input below maxWhole after float
// rounding.
const maxFloatWhole = 9e16

// Add returns m+n, saturating at MaxMoney instead of wrapping.
func (m Money) Add(n Money) Money {
	if n > 0 && m > MaxMoney-n {
		return MaxMoney
	}
	if n < 0 && m < math.MinInt64-n {
		return math.MinInt64
	}
	return m + n
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
