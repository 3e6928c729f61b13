package model

import "strings"

// Symbol identifies a trading pair, e.g. "BTCUSDT". Comparison is
// case-sensitive exact match; symbols are used as map keys throughout.
type Symbol string

// Exchange identifies a venue, e.g. "binance". Case-sensitive.
type Exchange string

// defaultQuoteLen is the fallback split policy: the last four characters of
// the symbol are the quote asset (e.g. "USDT").
const defaultQuoteLen = 4

func (s Symbol) String() string { return string(s) }

func (s Symbol) Len() int { return len(s) }

// Slice returns the substring [i, j). Out-of-range indexes are clamped.
func (s Symbol) Slice(i, j int) string {
	if i < 0 {
		i = 0
	}
	if j > len(s) {
		j = len(s)
	}
	if i >= j {
		return ""
	}

	return string(s[i:j])
}

// SplitAssets splits the symbol into base and quote assets. Known quote
// suffixes are tried longest-first; when none match, the last four characters
// are taken as the quote asset. A symbol too short to split returns the whole
// symbol as base with an empty quote.
func (s Symbol) SplitAssets(quotes ...string) (base, quote string) {
	for _, q := range sortBySuffixLen(quotes) {
		if len(q) < len(s) && strings.HasSuffix(string(s), q) {
			return string(s[:len(s)-len(q)]), q
		}
	}

	if len(s) <= defaultQuoteLen {
		return string(s), ""
	}

	return string(s[:len(s)-defaultQuoteLen]), string(s[len(s)-defaultQuoteLen:])
}

// BaseAsset is SplitAssets returning only the base side.
func (s Symbol) BaseAsset(quotes ...string) string {
	base, _ := s.SplitAssets(quotes...)
	return base
}

// QuoteAsset is SplitAssets returning only the quote side.
func (s Symbol) QuoteAsset(quotes ...string) string {
	_, quote := s.SplitAssets(quotes...)
	return quote
}

func sortBySuffixLen(quotes []string) []string {
	if len(quotes) <= 1 {
		return quotes
	}

	sorted := make([]string, len(quotes))
	copy(sorted, quotes)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j]) > len(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	return sorted
}
