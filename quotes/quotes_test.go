package quotes

import (
	"context"
	"testing"

	"github.com/piquette/finance-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYahooQuoterLastPrice(t *testing.T) {
	var asked string
	q := &YahooQuoter{Suffix: ".NS", get: func(symbol string) (*finance.Quote, error) {
		asked = symbol
		return &finance.Quote{RegularMarketPrice: 2841.5, CurrencyID: "INR"}, nil
	}}

	got, err := q.LastPrice(context.Background(), "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE.NS", asked)
	assert.Equal(t, "2841.50 INR", got)
}

func TestYahooQuoterErrors(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("boom")
		q := &YahooQuoter{get: func(string) (*finance.Quote, error) { return nil, boom }}
		_, err := q.LastPrice(context.Background(), "X")
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("empty quote", func(t *testing.T) {
		q := &YahooQuoter{get: func(string) (*finance.Quote, error) { return nil, nil }}
		_, err := q.LastPrice(context.Background(), "X")
		assert.True(t, errors.Is(err, ErrNoQuote))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		q := &YahooQuoter{get: func(string) (*finance.Quote, error) {
			t.Error("provider should not be called")
			return nil, nil
		}}
		_, err := q.LastPrice(ctx, "X")
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "187.00", FormatPrice(187, ""))
	assert.Equal(t, "0.13 USD", FormatPrice(0.125, "USD"))
}
