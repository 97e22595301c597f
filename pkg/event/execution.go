package event

import (
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type ExecType string

const (
	ExecTypeNew              ExecType = "NEW"
	ExecTypePartialFill      ExecType = "PARTIAL_FILL"
	ExecTypeFill             ExecType = "FILL"
	ExecTypeCanceled         ExecType = "CANCELED"
	ExecTypeReplaced         ExecType = "REPLACED"
	ExecTypeRejected         ExecType = "REJECTED"
	ExecTypeCanceledRejected ExecType = "CANCELED_REJECTED"
	ExecTypeReplaceRejected  ExecType = "REPLACE_REJECTED"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusReplaced        OrderStatus = "REPLACED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// StatusFor maps an execution type to the order status it reports.
func StatusFor(t ExecType) OrderStatus {
	switch t {
	case ExecTypeNew:
		return OrderStatusNew
	case ExecTypePartialFill:
		return OrderStatusPartiallyFilled
	case ExecTypeFill:
		return OrderStatusFilled
	case ExecTypeCanceled:
		return OrderStatusCanceled
	case ExecTypeReplaced:
		return OrderStatusReplaced
	}
	return OrderStatusRejected
}

type Execution struct {
	ExecID         string           `json:"execId"`
	OrderID        string           `json:"orderId"`
	ClOrdID        string           `json:"clOrdId"`
	OrigClOrdID    string           `json:"origClOrdId,omitempty"`
	InstrumentID   string           `json:"instrumentId"`
	Side           orderbook.Side   `json:"side,omitempty"`
	ExecType       ExecType         `json:"execType"`
	OrderStatus    OrderStatus      `json:"orderStatus"`
	FilledQty      decimal.Decimal  `json:"filledQty"`
	RemainingQty   decimal.Decimal  `json:"remainingQty"`
	Price          decimal.Decimal  `json:"price"`
	LastPrice      *decimal.Decimal `json:"lastPrice,omitempty"`
	LastQty        *decimal.Decimal `json:"lastQty,omitempty"`
	AvgPrice       decimal.Decimal  `json:"avgPrice"`
	Text           string           `json:"text,omitempty"`
	TradeID        string           `json:"tradeId,omitempty"`
	ContraClientID string           `json:"contraClientId,omitempty"`
}

type ExecutionReport struct {
	MessageType MessageType `json:"messageType"`
	MessageID   string      `json:"messageId"`
	Timestamp   time.Time   `json:"timestamp"`
	ClientID    string      `json:"clientId"`
	Execution   Execution   `json:"execution"`
}

func NewExecutionReport(messageID, clientID string, ts time.Time, exec Execution) ExecutionReport {
	exec.OrderStatus = StatusFor(exec.ExecType)
	return ExecutionReport{
		MessageType: MessageTypeExecutionReport,
		MessageID:   messageID,
		Timestamp:   ts,
		ClientID:    clientID,
		Execution:   exec,
	}
}
