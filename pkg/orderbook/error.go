package orderbook

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrMarketOrderCannotRest = errors.New("market order cannot rest")
	ErrInvalidRemainingQty   = errors.New("invalid remaining quantity")
	ErrDuplicateOrderID      = errors.New("duplicate order id")
	ErrDuplicateClOrdID      = errors.New("duplicate client order id")
)
