package orderbook

import "github.com/shopspring/decimal"

// Match pairs an aggressor with one resting order. Price is always the resting
// order's price.
type Match struct {
	TradeID          string
	AggressorOrderID string
	RestingOrderID   string
	Price            decimal.Decimal
	Qty              decimal.Decimal

	// remaining quantities right after this fill
	AggressorRemaining decimal.Decimal
	RestingRemaining   decimal.Decimal

	Resting *Order
}

// Level is an aggregated view of one price level.
type Level struct {
	Price  decimal.Decimal `json:"price"`
	Qty    decimal.Decimal `json:"quantity"`
	Orders int             `json:"orders"`
}
