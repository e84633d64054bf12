package backtest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/contracts"
)

func TestLedgerHeader(t *testing.T) {
	assert.Equal(t, []string{
		"datetime", "capital", "day_pnl", "nominal_ret", "capital_ret", "nominal", "leverage",
		"AAA units", "AAA w", "BBB units", "BBB w",
	}, LedgerHeader([]string{"AAA", "BBB"}))
}

func TestWriteLedgerCSV(t *testing.T) {
	result := runSimulation(t, Config{
		Instruments:       []string{"AAA"},
		Bars:              map[string][]contracts.Bar{"AAA": barsFromCloses(100, 110, 99)},
		Start:             day0,
		End:               dayN(2),
		EligibilityWindow: 1,
	}, &fixedStrategy{forecast: 1})

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, result.Ledger))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Len(t, records[0], 9)

	assert.Equal(t, "2020-01-01", records[1][0])
	assert.Equal(t, "10000", records[1][1])
	assert.Equal(t, "0", records[1][7])

	assert.Equal(t, "2020-01-03", records[3][0])
	assert.Equal(t, "9000", records[3][1])
	assert.Equal(t, "-1000", records[3][2])
	assert.Equal(t, "1", records[3][8])

	// 10000/110 units must survive the export exactly
	units, err := strconv.ParseFloat(records[2][7], 64)
	require.NoError(t, err)
	assert.Equal(t, result.Ledger.Rows[1].Units("AAA"), units)
}

func TestSaveLedgerCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	l := ledgerWithCapital(100, 101)
	l.Instruments = []string{"AAA"}

	require.NoError(t, SaveLedgerCSV(path, l))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "datetime,capital")
	assert.Contains(t, string(data), "2020-01-02,101")
}
