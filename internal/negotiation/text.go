package negotiation

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported locales.
const (
	LocaleFR = "fr"
	LocaleEN = "en"
)

// CounterOfferText renders the message that accompanies a counter-offer.
// Unknown locales fall back to French.
func CounterOfferText(locale string, price, quantity float64, unit string) string {
	format := "Je propose %s fcfa pour %s %s"
	if locale == LocaleEN {
		format = "I propose %s fcfa for %s %s"
	}
	return strings.TrimSpace(fmt.Sprintf(format, FormatAmount(price), FormatAmount(quantity), unit))
}

// FormatAmount prints a price or quantity as the shortest exact decimal:
// 450, 12.5.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
