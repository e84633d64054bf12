package marketdata

import (
	"time"

	"github.com/wonny/alphalab/internal/contracts"
)

// Dataset is an ordered ticker list with the raw bars of each ticker
type Dataset struct {
	Tickers   []string                   `json:"tickers"`
	Bars      map[string][]contracts.Bar `json:"bars"`
	Start     time.Time                  `json:"start"`
	End       time.Time                  `json:"end"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// NewDataset creates an empty dataset for a window
func NewDataset(start, end time.Time) *Dataset {
	return &Dataset{
		Bars:  make(map[string][]contracts.Bar),
		Start: contracts.NormalizeDate(start),
		End:   contracts.NormalizeDate(end),
	}
}

// Add appends ticker when it has bars; empty histories are dropped
func (d *Dataset) Add(ticker string, bars []contracts.Bar) bool {
	if len(bars) == 0 {
		return false
	}
	if _, exists := d.Bars[ticker]; !exists {
		d.Tickers = append(d.Tickers, ticker)
	}
	d.Bars[ticker] = bars
	return true
}

// Len returns the number of tickers
func (d *Dataset) Len() int {
	return len(d.Tickers)
}

// Truncate returns a dataset restricted to the first n tickers; n <= 0 keeps all
func (d *Dataset) Truncate(n int) *Dataset {
	if n <= 0 || n >= len(d.Tickers) {
		return d
	}
	out := &Dataset{
		Tickers:   append([]string(nil), d.Tickers[:n]...),
		Bars:      make(map[string][]contracts.Bar, n),
		Start:     d.Start,
		End:       d.End,
		FetchedAt: d.FetchedAt,
	}
	for _, t := range out.Tickers {
		out.Bars[t] = d.Bars[t]
	}
	return out
}

// Subset returns a dataset holding only the listed tickers that have bars, in the given order
func (d *Dataset) Subset(tickers []string) *Dataset {
	out := &Dataset{
		Bars:      make(map[string][]contracts.Bar, len(tickers)),
		Start:     d.Start,
		End:       d.End,
		FetchedAt: d.FetchedAt,
	}
	for _, t := range contracts.UniqueTickers(tickers) {
		out.Add(t, d.Bars[t])
	}
	return out
}

// Covers reports whether the dataset window contains [start, end]
func (d *Dataset) Covers(start, end time.Time) bool {
	return !contracts.NormalizeDate(start).Before(d.Start) && !contracts.NormalizeDate(end).After(d.End)
}
