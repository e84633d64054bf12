package contracts

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Bar is one daily OHLCV record as delivered by a price-history source
// ⭐ SSOT: 외부 수집기 → 백테스트 엔진 가격 데이터 전달 형식
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Universe is an ordered list of unique instrument identifiers
type Universe struct {
	Source    string    `json:"source"`
	Tickers   []string  `json:"tickers"`
	FetchedAt time.Time `json:"fetched_at"`
}

// UniverseSource discovers the instrument universe
type UniverseSource interface {
	Tickers(ctx context.Context) ([]string, error)
}

// HistorySource retrieves raw daily bars for one instrument.
// An instrument without data yields an empty slice, not an error.
type HistorySource interface {
	History(ctx context.Context, ticker string, start, end time.Time) ([]Bar, error)
}

// NormalizeDate maps any instant onto midnight UTC of its calendar day in UTC
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// CloneBars returns an independent, date-sorted copy of bars
func CloneBars(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// UniqueTickers trims, drops empties and de-duplicates while keeping first-seen order
func UniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
