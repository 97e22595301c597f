package instrument

import "errors"

var (
	ErrInvalidTradingHours = errors.New("invalid trading hours")
	ErrEmptySymbol         = errors.New("empty instrument symbol")
	ErrDuplicateSymbol     = errors.New("duplicate instrument symbol")
)
