// Package commission computes the sale commission offered by the admin calculator.
package commission

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/m3rciful/communitybot/internal/domain"
)

// invalidPrice is shown to the user for a rejected price.
const invalidPrice = "amount must be a positive number"

type rule struct {
	upTo    float64
	percent func(price float64) float64
}

func flat(p float64) func(float64) float64 { return func(float64) float64 { return p } }

// Bounds are inclusive and evaluated top-down.
var rules = []rule{
	{100_000, flat(10.0)},
	{1_700_000, func(p float64) float64 { return math.Max(10-((p-100_000)/50_000)*0.15, 0) }},
	{1_800_000, flat(5.2)},
	{1_900_000, flat(5.1)},
	{3_050_000, flat(5.0)},
	{6_000_000, func(p float64) float64 { return math.Max(5-((p-3_050_000)/50_000)*0.02, 0) }},
	{math.Inf(1), flat(2.8)},
}

// Calculate returns the commission percent and amount for price.
func Calculate(price float64) (percent, amount float64, err error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, 0, domain.ValidationError(invalidPrice)
	}
	for _, r := range rules {
		if price <= r.upTo {
			percent = r.percent(price)
			break
		}
	}
	return percent, price * percent / 100, nil
}

// ParsePrice reads a user supplied amount. Spaces are ignored and a comma
// is accepted as the decimal separator.
func ParsePrice(input string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		if r == ',' {
			return '.'
		}
		return r
	}, input)
	if cleaned == "" {
		return 0, domain.ValidationError(invalidPrice)
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, domain.ValidationError(invalidPrice)
	}
	return price, nil
}

// Result is a computed commission.
type Result struct {
	Price   float64
	Percent float64
	Amount  float64
}

// Evaluate parses input and computes the commission.
func Evaluate(input string) (Result, error) {
	price, err := ParsePrice(input)
	if err != nil {
		return Result{}, err
	}
	percent, amount, err := Calculate(price)
	if err != nil {
		return Result{}, err
	}
	return Result{Price: price, Percent: percent, Amount: amount}, nil
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders v with thousands grouping and two decimals.
func FormatAmount(v float64) string {
	return printer.Sprintf("%.2f", v)
}

// HTML renders the result for the calculator message.
func (r Result) HTML() string {
	return printer.Sprintf(
		"✅ <b>Result</b>\nPrice: <code>%.2f</code>\nCommission rate: <code>%.2f%%</code>\nCommission: <code>%.2f</code>\n\nEnter the next amount.",
		r.Price, r.Percent, r.Amount,
	)
}
