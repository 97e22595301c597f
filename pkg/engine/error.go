package engine

import "errors"

var ErrUnsupportedCommand = errors.New("unsupported command")

// reject reasons reported to clients
const (
	reasonInvalidInstrument = "Invalid instrument"
	reasonInvalidType       = "Invalid order type or parameters"
	reasonInvalidSide       = "Invalid order side: "
	reasonInvalidQuantity   = "Invalid quantity: must be positive"
	reasonInvalidTIF        = "Invalid time in force: "
	reasonDuplicateOrderID  = "Duplicate order id"
	reasonDuplicateClOrdID  = "Duplicate client order id"
	reasonOrderNotFound     = "Order not found"
	reasonOrigNotFound      = "Original order not found"
)

const (
	textImmediateOrCancel = "Immediate-or-cancel"
	textFillOrKill        = "Fill-or-kill"
	textMarketResidual    = "Market order residual"
	textUserCanceled      = "Order canceled by user"
	textMassCanceled      = "Mass cancel"
	textReplaced          = "Order replaced"
	textReplacement       = "Replacement order"
)
