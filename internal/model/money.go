package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code from the closed set the core supports.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyJPY Currency = "JPY"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyNZD Currency = "NZD"
	CurrencyCNY Currency = "CNY"
	CurrencyHKD Currency = "HKD"
	CurrencySGD Currency = "SGD"
	CurrencySEK Currency = "SEK"
	CurrencyNOK Currency = "NOK"
	CurrencyDKK Currency = "DKK"
	CurrencyPLN Currency = "PLN"
	CurrencyCZK Currency = "CZK"
	CurrencyHUF Currency = "HUF"
	CurrencyINR Currency = "INR"
	CurrencyKRW Currency = "KRW"
	CurrencyBRL Currency = "BRL"
	CurrencyMXN Currency = "MXN"
	CurrencyZAR Currency = "ZAR"
	CurrencyTRY Currency = "TRY"
	CurrencyAED Currency = "AED"
	CurrencySAR Currency = "SAR"
	CurrencyKWD Currency = "KWD"
	CurrencyBHD Currency = "BHD"
	CurrencyOMR Currency = "OMR"
)

var currencies = map[Currency]int32{
	CurrencyUSD: 2, CurrencyEUR: 2, CurrencyGBP: 2, CurrencyCHF: 2,
	CurrencyJPY: 0, CurrencyCAD: 2, CurrencyAUD: 2, CurrencyNZD: 2,
	CurrencyCNY: 2, CurrencyHKD: 2, CurrencySGD: 2, CurrencySEK: 2,
	CurrencyNOK: 2, CurrencyDKK: 2, CurrencyPLN: 2, CurrencyCZK: 2,
	CurrencyHUF: 2, CurrencyINR: 2, CurrencyKRW: 0, CurrencyBRL: 2,
	CurrencyMXN: 2, CurrencyZAR: 2, CurrencyTRY: 2, CurrencyAED: 2,
	CurrencySAR: 2, CurrencyKWD: 3, CurrencyBHD: 3, CurrencyOMR: 3,
}

func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

// Precision is the number of minor-unit digits.
func (c Currency) Precision() int32 {
	if p, ok := currencies[c]; ok {
		return p
	}
	return 2
}

// Fits reports whether amount is expressible in the currency's minor unit.
func (c Currency) Fits(amount decimal.Decimal) bool {
	return amount.Equal(c.Round(amount))
}

// Round rounds half-up (away from zero) to the currency's minor unit.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Precision())
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", Validationf("unknown currency %q", s)
	}
	return c, nil
}
