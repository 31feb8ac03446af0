// Package exchange converts fee amounts between currencies.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"blobnet/internal/domain"
)

// Converter converts using static rates expressed in the canonical
// currency. It implements domain.CurrencyConverter.
type Converter struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewConverter builds a converter from currency -> value in LBC.
func NewConverter(rates map[string]float64) *Converter {
	c := &Converter{}
	c.SetRates(rates)
	return c
}

// SetRates replaces the rate table. Currency codes are case-insensitive.
func (c *Converter) SetRates(rates map[string]float64) {
	table := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		table[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	table[domain.CanonicalCurrency] = decimal.NewFromInt(1)

	c.mu.Lock()
	c.rates = table
	c.mu.Unlock()
}

// Rate returns the value of one unit of currency in LBC.
func (c *Converter) Rate(currency string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rates[strings.ToUpper(currency)]
	return r, ok
}

// Convert converts amount from one currency to another.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	if strings.EqualFold(from, to) {
		return amount, nil
	}

	fromRate, ok := c.Rate(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no exchange rate for %s", domain.ErrInvalidInput, from)
	}
	toRate, ok := c.Rate(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no exchange rate for %s", domain.ErrInvalidInput, to)
	}
	if !toRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exchange rate for %s is %s", domain.ErrInvalidInput, to, toRate)
	}

	return amount.Mul(fromRate).Div(toRate), nil
}
