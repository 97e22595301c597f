package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) Valid() bool {
	return s == BUY || s == SELL
}

func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

type TimeInForce string

const (
	DAY TimeInForce = "DAY"
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

func (t TimeInForce) Valid() bool {
	switch t {
	case DAY, GTC, IOC, FOK:
		return true
	}
	return false
}

// Order is an order as seen by the book. While resting it is owned by the book
// and must only be mutated through book operations.
type Order struct {
	ID          string
	ClOrdID     string
	Symbol      string
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
	Price       decimal.Decimal // ignored for MARKET

	Qty          decimal.Decimal // original quantity
	RemainingQty decimal.Decimal

	// FilledNotional is the sum of price*qty over every fill of this order.
	FilledNotional decimal.Decimal

	Seq        uint64
	ClientID   string
	SourceAddr string
	EntryTime  time.Time
}

func (o *Order) FilledQty() decimal.Decimal {
	return o.Qty.Sub(o.RemainingQty)
}

// AvgPrice is the volume weighted price of all fills so far, zero when unfilled.
func (o *Order) AvgPrice() decimal.Decimal {
	filled := o.FilledQty()
	if !filled.IsPositive() {
		return decimal.Zero
	}
	return o.FilledNotional.Div(filled)
}

func (o *Order) IsFilled() bool {
	return !o.RemainingQty.IsPositive()
}

func (o *Order) fill(qty, price decimal.Decimal) {
	o.RemainingQty = o.RemainingQty.Sub(qty)
	o.FilledNotional = o.FilledNotional.Add(price.Mul(qty))
}
