// Package selector picks the candidate to promote and derives the text shown
// for it. Everything here is pure: callers apply the result to a surface.
package selector

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"top-pick/models"
)

var (
	// ErrEmptyInput is returned when there is nothing to select from.
	ErrEmptyInput = errors.New("no candidates to select from")
	// ErrMalformedTicker is returned when the selected record has no baseTicker.
	ErrMalformedTicker = errors.New("candidate has no baseTicker")
)

const (
	Ellipsis = "…"

	DefaultBrand = "Victor Philip"
	DefaultPitch = "At %s, we believe in evaluating companies from ALL sides. %s " +
		"scores high on stable growth, valuation, ROIC, balance‐sheet strength, cash‐flow, sentiment and momentum."
)

// Copy parameterizes the fixed marketing sentence.
type Copy struct {
	Brand string
	// Pitch is a format string taking the brand and the candidate's name.
	Pitch string
}

// DefaultCopy returns the stock marketing copy.
func DefaultCopy() Copy {
	return Copy{Brand: DefaultBrand, Pitch: DefaultPitch}
}

// SelectTop returns the candidate with the lowest rank. Ties keep the first
// occurrence; a later candidate only wins when its rank is strictly lower.
// Invalid ranks compare as +Inf, so they lose to any valid rank.
func SelectTop(candidates []models.Candidate) (models.Candidate, error) {
	if len(candidates) == 0 {
		return models.Candidate{}, ErrEmptyInput
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Rank.Less(best.Rank) {
			best = c
		}
	}
	return best, nil
}

// BuildDisplay derives the display fields for the selected record.
func BuildDisplay(top models.Candidate, cp Copy) (models.DisplayFields, error) {
	ticker, err := Ticker(top.BaseTicker)
	if err != nil {
		return models.DisplayFields{}, err
	}

	rank := FormatRank(top.Rank)
	return models.DisplayFields{
		Ticker:      ticker,
		LogoURL:     ResolveLogo(top.Logo),
		LogoAlt:     ticker + " logo",
		FullName:    top.Name,
		Rank:        rank,
		RankLabel:   "Overall Rank: " + rank,
		Marketing:   MarketingSentence(cp, top.Name, ticker),
		Description: Truncate(top.Description),
	}, nil
}

// Ticker returns the part of baseTicker before the first ':'.
func Ticker(baseTicker string) (string, error) {
	if baseTicker == "" {
		return "", ErrMalformedTicker
	}
	symbol, _, _ := strings.Cut(baseTicker, ":")
	return symbol, nil
}

// ResolveLogo picks the image URL: a direct URL first, then the first
// attachment's small thumbnail, then that attachment's own URL.
func ResolveLogo(logo models.Logo) string {
	if logo.URL != "" {
		return logo.URL
	}
	if len(logo.Attachments) == 0 {
		return ""
	}

	first := logo.Attachments[0]
	if first.Thumbnails != nil && first.Thumbnails.Small != nil && first.Thumbnails.Small.URL != "" {
		return first.Thumbnails.Small.URL
	}
	return first.URL
}

// FormatRank renders the rank with exactly one decimal place.
func FormatRank(r models.Rank) string {
	v := r.Float()
	if math.IsInf(v, 0) {
		return "N/A"
	}
	return decimal.NewFromFloat(v).StringFixed(1)
}

// Truncate keeps the first ceil(n/2) whitespace-separated words and appends
// an ellipsis. This counts words, not characters, so a verbose description
// still produces long output.
func Truncate(description string) string {
	words := strings.Fields(description)
	keep := (len(words) + 1) / 2
	return strings.Join(words[:keep], " ") + Ellipsis
}

// MarketingSentence fills the pitch with the candidate's name, or the ticker
// when the name is empty.
func MarketingSentence(cp Copy, name, ticker string) string {
	if cp.Brand == "" {
		cp.Brand = DefaultBrand
	}
	if cp.Pitch == "" {
		cp.Pitch = DefaultPitch
	}
	subject := name
	if subject == "" {
		subject = ticker
	}
	return fmt.Sprintf(cp.Pitch, cp.Brand, subject)
}
