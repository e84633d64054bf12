package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/alphalab/internal/contracts"
)

// DefaultEligibilityWindow is the trailing window (current day inclusive) in which
// a price must have moved at least once for an instrument to be tradable
const DefaultEligibilityWindow = 5

// Record is one calendar day of a prepared instrument series
type Record struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Return   float64 // close[t]/close[t-1] - 1, NaN on the first date
	Eligible bool
}

// Series is a prepared instrument series, one Record per calendar date
type Series []Record

// Calendar builds the contiguous daily calendar from start to end inclusive.
// Both bounds are normalized to midnight UTC.
func Calendar(start, end time.Time) ([]time.Time, error) {
	from := contracts.NormalizeDate(start)
	to := contracts.NormalizeDate(end)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrEmptyCalendar,
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	days := int(to.Sub(from).Hours()/24) + 1
	calendar := make([]time.Time, 0, days)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		calendar = append(calendar, d)
	}
	return calendar, nil
}

// PrepareSeries reindexes raw bars onto the calendar and derives returns and eligibility.
//
// Bars whose date is not on the calendar are ignored. Missing days are forward-filled,
// then any leading gap is back-filled from the first observed bar. An instrument with no
// bar on the calendar gets NaN prices and is never eligible.
//
// eligible[t] holds when close changed versus the previous day at least once within the
// trailing window ending at t, and close[t] > 0. The first window-1 dates cannot evaluate a
// full window and are ineligible.
func PrepareSeries(bars []contracts.Bar, calendar []time.Time, window int) Series {
	if window < 1 {
		window = DefaultEligibilityWindow
	}

	byDate := make(map[time.Time]contracts.Bar, len(bars))
	for _, b := range bars {
		byDate[contracts.NormalizeDate(b.Date)] = b
	}

	series := make(Series, len(calendar))
	filled := make([]bool, len(calendar))

	// forward fill
	var last contracts.Bar
	seen := false
	for i, d := range calendar {
		if b, ok := byDate[d]; ok {
			last, seen = b, true
		}
		if seen {
			series[i] = recordFromBar(d, last)
			filled[i] = true
		}
	}

	// back fill the leading gap
	firstFilled := -1
	for i := range filled {
		if filled[i] {
			firstFilled = i
			break
		}
	}
	for i, d := range calendar {
		switch {
		case firstFilled < 0:
			series[i] = missingRecord(d)
		case i < firstFilled:
			r := series[firstFilled]
			r.Date = d
			series[i] = r
		}
	}

	// returns and price-change flags
	changed := make([]bool, len(series))
	for i := range series {
		if i == 0 {
			series[i].Return = math.NaN()
			// previous close is back-filled from itself, so only NaN counts as a change
			changed[i] = math.IsNaN(series[i].Close)
			continue
		}
		series[i].Return = series[i].Close/series[i-1].Close - 1
		changed[i] = series[i].Close != series[i-1].Close
	}

	// trailing window of price changes
	moves := 0
	for i := range series {
		if changed[i] {
			moves++
		}
		if i >= window && changed[i-window] {
			moves--
		}
		windowFull := i >= window-1
		series[i].Eligible = windowFull && moves > 0 && series[i].Close > 0
	}

	return series
}

func recordFromBar(d time.Time, b contracts.Bar) Record {
	return Record{
		Date:   d,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}

func missingRecord(d time.Time) Record {
	nan := math.NaN()
	return Record{Date: d, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan}
}

// Market is the strategy-construction contract: the instrument set, the calendar, the
// simulation window and the engine-owned copy of every series.
//
// During PreCompute only Raw is populated; Series is filled before PostCompute runs.
type Market struct {
	Instruments []string
	Calendar    []time.Time
	Start       time.Time
	End         time.Time

	Raw    map[string][]contracts.Bar
	Series map[string]Series

	index map[time.Time]int
}

func newMarket(instruments []string, calendar []time.Time, raw map[string][]contracts.Bar) *Market {
	index := make(map[time.Time]int, len(calendar))
	for i, d := range calendar {
		index[d] = i
	}

	return &Market{
		Instruments: instruments,
		Calendar:    calendar,
		Start:       calendar[0],
		End:         calendar[len(calendar)-1],
		Raw:         raw,
		index:       index,
	}
}

// prepare builds Series for every instrument
func (m *Market) prepare(window int) {
	m.Series = make(map[string]Series, len(m.Instruments))
	for _, inst := range m.Instruments {
		m.Series[inst] = PrepareSeries(m.Raw[inst], m.Calendar, window)
	}
}

// IndexOf returns the calendar row of date
func (m *Market) IndexOf(date time.Time) (int, bool) {
	i, ok := m.index[contracts.NormalizeDate(date)]
	return i, ok
}

// Close returns the prepared close of inst on calendar row i
func (m *Market) Close(inst string, i int) float64 {
	return m.Series[inst][i].Close
}

// Return returns the prepared one-day return of inst on calendar row i
func (m *Market) Return(inst string, i int) float64 {
	return m.Series[inst][i].Return
}

// partition splits the instrument set into eligible and non-eligible on row i,
// both in instrument order
func (m *Market) partition(i int) (eligibles, nonEligibles []string) {
	for _, inst := range m.Instruments {
		if m.Series[inst][i].Eligible {
			eligibles = append(eligibles, inst)
		} else {
			nonEligibles = append(nonEligibles, inst)
		}
	}
	return eligibles, nonEligibles
}

// cloneRaw deep-copies the caller's bars for the requested instruments
func cloneRaw(instruments []string, bars map[string][]contracts.Bar) map[string][]contracts.Bar {
	out := make(map[string][]contracts.Bar, len(instruments))
	for _, inst := range instruments {
		out[inst] = contracts.CloneBars(bars[inst])
	}
	return out
}
