// market/instruments.go
package market

import "time"

type AssetClass string

const (
	Equity AssetClass = "equity"
	Crypto AssetClass = "crypto"
)

// TradingHours describes when an instrument can be traded, in exchange-local
// wall-clock time. A zero value means the instrument trades around the clock.
type TradingHours struct {
	Open     string // "09:30"
	Close    string // "16:00"
	Location string // "America/New_York"
}

// Always reports whether the instrument trades 24/7.
func (h TradingHours) Always() bool {
	return h.Open == "" && h.Close == ""
}

// Contains reports whether t falls inside the tradable window.
// Weekends are closed for non-24/7 instruments.
func (h TradingHours) Contains(t time.Time) bool {
	if h.Always() {
		return true
	}
	loc, err := time.LoadLocation(h.Location)
	if err != nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open, err1 := time.Parse("15:04", h.Open)
	close, err2 := time.Parse("15:04", h.Close)
	if err1 != nil || err2 != nil {
		return true
	}
	mins := lt.Hour()*60 + lt.Minute()
	o := open.Hour()*60 + open.Minute()
	c := close.Hour()*60 + close.Minute()
	return mins >= o && mins < c
}

type InstrumentMeta struct {
	Symbol           string
	Class            AssetClass
	Hours            TradingHours
	MinimumTradeSize float64
	WholeUnits       bool // equities trade in whole shares
}

var nyse = TradingHours{Open: "09:30", Close: "16:00", Location: "America/New_York"}

var Instruments = map[string]InstrumentMeta{
	"AAPL": {
		Symbol:           "AAPL",
		Class:            Equity,
		Hours:            nyse,
		MinimumTradeSize: 1,
		WholeUnits:       true,
	},
	"SPY": {
		Symbol:           "SPY",
		Class:            Equity,
		Hours:            nyse,
		MinimumTradeSize: 1,
		WholeUnits:       true,
	},
	"XYZ": {
		Symbol:           "XYZ",
		Class:            Equity,
		Hours:            nyse,
		MinimumTradeSize: 1,
		WholeUnits:       true,
	},
	"BTC/USD": {
		Symbol:           "BTC/USD",
		Class:            Crypto,
		MinimumTradeSize: 0.0001,
	},
	"ETH/USD": {
		Symbol:           "ETH/USD",
		Class:            Crypto,
		MinimumTradeSize: 0.001,
	},
}

// Lookup returns instrument metadata. Unknown symbols get a permissive
// crypto-style default so a feed can carry symbols not listed above.
func Lookup(symbol string) InstrumentMeta {
	if m, ok := Instruments[symbol]; ok {
		return m
	}
	return InstrumentMeta{Symbol: symbol, Class: Crypto, MinimumTradeSize: 0.0001}
}
