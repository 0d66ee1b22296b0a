package enums

import "fmt"

// Currency represents supported wallet denominations.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyIMI Currency = "IMI"
)

var validCurrencies = []Currency{
	CurrencyRUB,
	CurrencyIMI,
}

// SeedCurrencies are the denominations every new account starts with.
var SeedCurrencies = []Currency{CurrencyRUB, CurrencyIMI}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
