// Package journal persists the audit trail: order lifecycle transitions,
// confirmed fills, and periodic equity snapshots.
package journal

import "time"

// OrderRecord captures an order at one lifecycle transition. Orders appear
// once per transition, so the journal doubles as a state history.
type OrderRecord struct {
	ID           string
	BrokerID     string
	Instrument   string
	Strategy     string
	Quantity     float64 // signed
	FilledQty    float64
	AvgFillPrice float64
	State        string
	Reason       string
	Time         time.Time
}

type FillRecord struct {
	ID         string
	OrderID    string
	Instrument string
	Quantity   float64 // signed
	Price      float64
	Time       time.Time
}

type EquityRecord struct {
	Time          time.Time
	Cash          float64
	Equity        float64
	RealizedPL    float64
	UnrealizedPL  float64
	OpenPositions int
}

// Journal is the persistence sink. Implementations must tolerate being
// called from a single goroutine only; the control loop is the sole writer.
type Journal interface {
	RecordOrder(OrderRecord) error
	RecordFill(FillRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// Nop discards everything. Useful in tests and when journaling is disabled.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error   { return nil }
func (Nop) RecordFill(FillRecord) error     { return nil }
func (Nop) RecordEquity(EquityRecord) error { return nil }
func (Nop) Close() error                    { return nil }
