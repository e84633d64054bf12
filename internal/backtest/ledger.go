package backtest

import (
	"fmt"
	"time"
)

// DefaultInitialCapital seeds row 0 of every ledger
const DefaultInitialCapital = 10000.0

// Position is one instrument's book entry on one date
type Position struct {
	Units  float64 `json:"units"`  // signed position size
	Weight float64 `json:"weight"` // signed fraction of gross exposure
}

// Row is one committed ledger date
type Row struct {
	Index      int                 `json:"index"`
	Date       time.Time           `json:"datetime"`
	Capital    float64             `json:"capital"`
	DayPnL     float64             `json:"day_pnl"`
	NominalRet float64             `json:"nominal_ret"`
	CapitalRet float64             `json:"capital_ret"`
	Nominal    float64             `json:"nominal"`  // gross dollar exposure
	Leverage   float64             `json:"leverage"` // nominal / capital
	Positions  map[string]Position `json:"positions"`
}

// Units returns the signed units held in inst, 0 when absent
func (r Row) Units(inst string) float64 {
	return r.Positions[inst].Units
}

// Weight returns the signed weight of inst, 0 when absent
func (r Row) Weight(inst string) float64 {
	return r.Positions[inst].Weight
}

// Ledger is the append-only per-date accounting table of a simulation
// ⭐ SSOT: 포트폴리오 장부는 날짜 순서대로 한 행씩만 추가됨
type Ledger struct {
	Instruments    []string    `json:"instruments"`
	Calendar       []time.Time `json:"-"`
	InitialCapital float64     `json:"initial_capital"`
	Rows           []Row       `json:"rows"`
}

// NewLedger allocates an empty ledger for the calendar, seeded with initial capital
func NewLedger(instruments []string, calendar []time.Time, initialCapital float64) *Ledger {
	return &Ledger{
		Instruments:    instruments,
		Calendar:       calendar,
		InitialCapital: initialCapital,
		Rows:           make([]Row, 0, len(calendar)),
	}
}

// seedRow starts row 0: only capital is known before any position exists
func (l *Ledger) seedRow() Row {
	return Row{
		Index:     0,
		Date:      l.Calendar[0],
		Capital:   l.InitialCapital,
		Positions: make(map[string]Position, len(l.Instruments)),
	}
}

// nextRow starts the row following the last committed one
func (l *Ledger) nextRow() Row {
	if len(l.Rows) == 0 {
		return l.seedRow()
	}
	i := len(l.Rows)
	return Row{
		Index:     i,
		Date:      l.Calendar[i],
		Positions: make(map[string]Position, len(l.Instruments)),
	}
}

// commit appends row; rows must arrive in calendar order
func (l *Ledger) commit(row Row) error {
	i := len(l.Rows)
	if i >= len(l.Calendar) {
		return fmt.Errorf("ledger full: %d rows committed", i)
	}
	if row.Index != i || !row.Date.Equal(l.Calendar[i]) {
		return fmt.Errorf("out-of-order ledger row %d (%s), expected %d (%s)",
			row.Index, row.Date.Format("2006-01-02"), i, l.Calendar[i].Format("2006-01-02"))
	}
	l.Rows = append(l.Rows, row)
	return nil
}

// Len returns the number of committed rows
func (l *Ledger) Len() int {
	return len(l.Rows)
}

// Last returns the most recently committed row
func (l *Ledger) Last() (Row, bool) {
	if len(l.Rows) == 0 {
		return Row{}, false
	}
	return l.Rows[len(l.Rows)-1], true
}

// Complete reports whether every calendar date has a committed row
func (l *Ledger) Complete() bool {
	return len(l.Rows) == len(l.Calendar)
}

// FinalCapital returns the capital of the last committed row
func (l *Ledger) FinalCapital() float64 {
	if last, ok := l.Last(); ok {
		return last.Capital
	}
	return l.InitialCapital
}
