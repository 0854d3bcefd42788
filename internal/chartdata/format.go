package chartdata

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyFormat renders axis values as a currency glyph followed by the
// locale grouped number, e.g. "₹1,23,456".
type CurrencyFormat struct {
	Symbol string
	Locale language.Tag
}

// NewCurrencyFormat parses a BCP 47 locale such as "en-IN".
func NewCurrencyFormat(symbol, locale string) (CurrencyFormat, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return CurrencyFormat{}, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	return CurrencyFormat{Symbol: symbol, Locale: tag}, nil
}

// Format groups v with the locale separators, keeping up to three fraction digits.
func (f CurrencyFormat) Format(v float64) string {
	p := message.NewPrinter(f.Locale)
	return f.Symbol + p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(3)))
}

// JSFormatter returns the equivalent tick formatter for browser side charts.
// Literals are single quoted: the function ends up inside a JSON document.
func (f CurrencyFormat) JSFormatter() string {
	return "function (value) { return " + jsString(f.Symbol) +
		" + Number(value).toLocaleString(" + jsString(f.Locale.String()) + "); }"
}

func jsString(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s) + "'"
}
