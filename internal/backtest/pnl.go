package backtest

// AccountPnL marks yesterday's book to today's closes.
//
// For every instrument with nonzero units in prev it accumulates
// day_pnl += units * (close[today] - close[prev]) and nominal_ret += w * return[today],
// then sets capital_ret = nominal_ret * leverage[prev] and capital = capital[prev] + day_pnl.
// The results are written into row, which must be the row directly after prev.
func AccountPnL(row *Row, prev Row, m *Market) (dayPnL, capitalRet float64) {
	today, yesterday := row.Index, prev.Index

	nominalRet := 0.0
	for _, inst := range m.Instruments {
		units := prev.Units(inst)
		if units == 0 {
			continue
		}
		delta := m.Close(inst, today) - m.Close(inst, yesterday)
		dayPnL += units * delta
		nominalRet += prev.Weight(inst) * m.Return(inst, today)
	}

	capitalRet = nominalRet * prev.Leverage

	row.Capital = prev.Capital + dayPnL
	row.DayPnL = dayPnL
	row.NominalRet = nominalRet
	row.CapitalRet = capitalRet

	return dayPnL, capitalRet
}
