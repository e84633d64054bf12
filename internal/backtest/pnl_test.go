package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphalab/internal/contracts"
)

func TestAccountPnL(t *testing.T) {
	cal, err := Calendar(day0, dayN(1))
	require.NoError(t, err)

	m := newMarket([]string{"AAA", "BBB", "CCC"}, cal, map[string][]contracts.Bar{
		"AAA": barsFromCloses(100, 110),
		"BBB": barsFromCloses(50, 45),
		"CCC": barsFromCloses(10, 20),
	})
	m.prepare(1)

	prev := Row{
		Index:    0,
		Date:     day0,
		Capital:  1000,
		Leverage: 1.5,
		Positions: map[string]Position{
			"AAA": {Units: 10, Weight: 0.5},
			"BBB": {Units: -20, Weight: -0.5},
			"CCC": {},
		},
	}
	row := Row{Index: 1, Date: dayN(1), Positions: map[string]Position{}}

	dayPnL, capitalRet := AccountPnL(&row, prev, m)

	// 10*(110-100) + -20*(45-50) = 100 + 100
	assert.InDelta(t, 200.0, dayPnL, 1e-9)
	assert.InDelta(t, 200.0, row.DayPnL, 1e-9)
	assert.InDelta(t, 1200.0, row.Capital, 1e-9)

	// 0.5*0.1 + -0.5*-0.1
	assert.InDelta(t, 0.1, row.NominalRet, 1e-12)
	assert.InDelta(t, 0.15, capitalRet, 1e-12)
	assert.InDelta(t, 0.15, row.CapitalRet, 1e-12)
}

func TestAccountPnLFlatBook(t *testing.T) {
	cal, err := Calendar(day0, dayN(1))
	require.NoError(t, err)

	m := newMarket([]string{"AAA"}, cal, map[string][]contracts.Bar{"AAA": barsFromCloses(100, 300)})
	m.prepare(1)

	prev := Row{Index: 0, Date: day0, Capital: 500, Positions: map[string]Position{}}
	row := Row{Index: 1, Date: dayN(1), Positions: map[string]Position{}}

	dayPnL, capitalRet := AccountPnL(&row, prev, m)
	assert.Zero(t, dayPnL)
	assert.Zero(t, capitalRet)
	assert.Equal(t, 500.0, row.Capital)
}
