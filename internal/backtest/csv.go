package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LedgerHeader returns the CSV column names: aggregate columns followed by
// "{inst} units" and "{inst} w" for every instrument
func LedgerHeader(instruments []string) []string {
	header := []string{
		"datetime",
		"capital",
		"day_pnl",
		"nominal_ret",
		"capital_ret",
		"nominal",
		"leverage",
	}
	for _, inst := range instruments {
		header = append(header, inst+" units", inst+" w")
	}
	return header
}

// WriteLedgerCSV writes the ledger as CSV to w
func WriteLedgerCSV(w io.Writer, l *Ledger) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(LedgerHeader(l.Instruments)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range l.Rows {
		record := []string{
			r.Date.Format("2006-01-02"),
			fmtFloat(r.Capital),
			fmtFloat(r.DayPnL),
			fmtFloat(r.NominalRet),
			fmtFloat(r.CapitalRet),
			fmtFloat(r.Nominal),
			fmtFloat(r.Leverage),
		}
		for _, inst := range l.Instruments {
			record = append(record, fmtFloat(r.Units(inst)), fmtFloat(r.Weight(inst)))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveLedgerCSV writes the ledger to a file at path
func SaveLedgerCSV(path string, l *Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteLedgerCSV(f, l); err != nil {
		return err
	}
	return f.Close()
}

// fmtFloat writes the shortest decimal that parses back to x
func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
