package riskrule

import (
	"fmt"

	"github.com/joripage/matching-engine/pkg/instrument"
	"github.com/joripage/matching-engine/pkg/orderbook"
)

// TickSizeRule checks limit prices against the instrument's price tick and
// quantities against its volume tick. A zero tick means no rule.
type TickSizeRule struct{}

func (TickSizeRule) Check(order *orderbook.Order, inst instrument.Instrument) error {
	if order.Type == orderbook.LIMIT && inst.PriceTickSize.IsPositive() {
		if !order.Price.Mod(inst.PriceTickSize).IsZero() {
			return fmt.Errorf("%w: price %s, tick %s", ErrInvalidTickSize, order.Price, inst.PriceTickSize)
		}
	}
	if inst.VolumeTickSize.IsPositive() {
		if !order.Qty.Mod(inst.VolumeTickSize).IsZero() {
			return fmt.Errorf("%w: quantity %s, lot %s", ErrInvalidLotSize, order.Qty, inst.VolumeTickSize)
		}
	}
	return nil
}
