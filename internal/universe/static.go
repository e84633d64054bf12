package universe

import (
	"context"
	"strings"

	"github.com/wonny/alphalab/internal/contracts"
)

// SourceStatic identifies a fixed ticker list
const SourceStatic = "static"

// Static is a fixed universe
type Static struct {
	tickers []string
}

// NewStatic de-duplicates tickers, keeping first-seen order
func NewStatic(tickers []string) *Static {
	return &Static{tickers: contracts.UniqueTickers(tickers)}
}

// ParseList splits a comma separated ticker list
func ParseList(s string) []string {
	return contracts.UniqueTickers(strings.Split(s, ","))
}

// Tickers returns a copy of the list
func (s *Static) Tickers(context.Context) ([]string, error) {
	if len(s.tickers) == 0 {
		return nil, ErrNoTickers
	}
	out := make([]string, len(s.tickers))
	copy(out, s.tickers)
	return out, nil
}

// Truncate keeps the first n tickers; n <= 0 keeps all
func Truncate(tickers []string, n int) []string {
	if n <= 0 || n >= len(tickers) {
		return tickers
	}
	return tickers[:n]
}

var (
	_ contracts.UniverseSource = (*Static)(nil)
	_ contracts.UniverseSource = (*SP500Scraper)(nil)
)
