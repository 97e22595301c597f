package riskrule

import (
	"fmt"

	"github.com/joripage/matching-engine/pkg/instrument"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceBandRule rejects limit prices further than Percent away from the
// reference price: the last trade price, else the last settlement price.
// Without a reference price the order passes.
type PriceBandRule struct {
	Percent decimal.Decimal
}

func (r PriceBandRule) Check(order *orderbook.Order, inst instrument.Instrument) error {
	if order.Type != orderbook.LIMIT || !r.Percent.IsPositive() {
		return nil
	}

	ref := inst.LastTradePrice
	if !ref.IsPositive() {
		ref = inst.LastSettlementPrice
	}
	if !ref.IsPositive() {
		return nil
	}

	band := ref.Mul(r.Percent).Div(hundred)
	floor, ceil := ref.Sub(band), ref.Add(band)
	if order.Price.LessThan(floor) || order.Price.GreaterThan(ceil) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrPriceOutsideBand, order.Price, floor, ceil)
	}
	return nil
}
