package finance

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultLocale is used when the configured locale cannot be parsed.
const DefaultLocale = "pt-BR"

var symbols = map[string]string{
	"BRL": "R$ ",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Money formats amounts for one locale and its currency.
type Money struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoney returns a formatter for locale ("pt-BR" formats BRL, "en" USD).
func NewMoney(locale string) *Money {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		unit = currency.BRL
	}
	return &Money{unit: unit, printer: message.NewPrinter(tag)}
}

// Currency returns the ISO code of the formatter's currency.
func (m *Money) Currency() string {
	return m.unit.String()
}

// Format renders amount with two decimals, grouping and currency symbol.
func (m *Money) Format(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	symbol, ok := symbols[m.unit.String()]
	if !ok {
		symbol = m.unit.String() + " "
	}
	return sign + symbol + m.printer.Sprint(number.Decimal(amount, number.Scale(2)))
}

// Short abbreviates large magnitudes: 1.5K, 2.3M, 1.0B.
func Short(n float64) string {
	abs := math.Abs(n)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.1fB", n/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", n/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", n/1e3)
	}
	return fmt.Sprintf("%.0f", math.Round(n))
}
