// Package quotes looks up a last traded price for the promoted ticker.
package quotes

import (
	"context"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned when the provider knows nothing about a symbol.
var ErrNoQuote = errors.New("no quote for symbol")

// Quoter returns a display-ready last price for a ticker.
type Quoter interface {
	LastPrice(ctx context.Context, ticker string) (string, error)
}

// YahooQuoter reads quotes through finance-go. Suffix is appended to the
// ticker for non-US listings (".NS", ".L", ...).
type YahooQuoter struct {
	Suffix string

	get func(symbol string) (*finance.Quote, error)
}

func NewYahooQuoter(suffix string) *YahooQuoter {
	return &YahooQuoter{Suffix: suffix, get: quote.Get}
}

func (q *YahooQuoter) LastPrice(ctx context.Context, ticker string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	symbol := ticker + q.Suffix
	type result struct {
		qt  *finance.Quote
		err error
	}
	// finance-go has no context support; abandon the call when ctx ends
	ch := make(chan result, 1)
	go func() {
		qt, err := q.get(symbol)
		ch <- result{qt, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		return "", errors.Wrapf(r.err, "quote for %s", symbol)
	}
	if r.qt == nil || r.qt.RegularMarketPrice == 0 {
		return "", errors.Wrap(ErrNoQuote, symbol)
	}
	return FormatPrice(r.qt.RegularMarketPrice, r.qt.CurrencyID), nil
}

// FormatPrice renders a price with two decimals and an optional currency code.
func FormatPrice(price float64, currency string) string {
	s := decimal.NewFromFloat(price).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
