package journal

// ListOrders returns the most recent order transitions, newest first.
func (j *SQLite) ListOrders(limit int) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, broker_id, instrument, strategy, quantity, filled_qty, avg_fill_price, state, reason, time
		FROM orders
		ORDER BY time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var rec OrderRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.BrokerID,
			&rec.Instrument,
			&rec.Strategy,
			&rec.Quantity,
			&rec.FilledQty,
			&rec.AvgFillPrice,
			&rec.State,
			&rec.Reason,
			&rec.Time,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListFills returns the most recent fills, newest first.
func (j *SQLite) ListFills(limit int) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT fill_id, order_id, instrument, quantity, price, time
		FROM fills
		ORDER BY time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var rec FillRecord
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.Instrument, &rec.Quantity, &rec.Price, &rec.Time); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquity returns the most recent equity snapshots, newest first.
func (j *SQLite) ListEquity(limit int) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, equity, realized_pl, unrealized_pl, open_positions
		FROM equity
		ORDER BY time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityRecord
	for rows.Next() {
		var rec EquityRecord
		if err := rows.Scan(&rec.Time, &rec.Cash, &rec.Equity, &rec.RealizedPL, &rec.UnrealizedPL, &rec.OpenPositions); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
