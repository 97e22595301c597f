package riskrule

import (
	"errors"

	"github.com/joripage/matching-engine/pkg/instrument"
	"github.com/joripage/matching-engine/pkg/orderbook"
)

var (
	ErrInvalidTickSize  = errors.New("invalid tick size")
	ErrInvalidLotSize   = errors.New("invalid lot size")
	ErrPriceOutsideBand = errors.New("price outside allowed band")
)

// RiskRule is a pre-trade check. A non-nil error rejects the order; its text
// becomes the reject reason.
type RiskRule interface {
	Check(order *orderbook.Order, inst instrument.Instrument) error
}
