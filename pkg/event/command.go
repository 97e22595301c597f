package event

import (
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

type MessageType string

const (
	MessageTypeNewOrder        MessageType = "NewOrder"
	MessageTypeCancelOrder     MessageType = "CancelOrder"
	MessageTypeReplaceOrder    MessageType = "ReplaceOrder"
	MessageTypeMassCancel      MessageType = "MassCancel"
	MessageTypeExecutionReport MessageType = "EXECUTION_REPORT"
)

// ScopeAll selects every instrument in a mass cancel. It is also the
// partition key of such commands.
const ScopeAll = "ALL"

// Header is carried by every command.
type Header struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	ClientID  string    `json:"clientId"`
}

// Command is one of *NewOrder, *CancelOrder, *ReplaceOrder or *MassCancel.
type Command interface {
	Meta() Header
	Type() MessageType
	command()
}

type OrderRequest struct {
	OrderID      string                `json:"orderId,omitempty"`
	ClOrdID      string                `json:"clOrdId"`
	InstrumentID string                `json:"instrumentId"`
	Side         orderbook.Side        `json:"side"`
	OrderType    orderbook.OrderType   `json:"orderType"`
	TimeInForce  orderbook.TimeInForce `json:"timeInForce,omitempty"`
	Price        decimal.Decimal       `json:"price"`
	Quantity     decimal.Decimal       `json:"quantity"`
	SourceAddr   string                `json:"sourceAddress,omitempty"`
}

type CancelRequest struct {
	ClOrdID      string         `json:"clOrdId,omitempty"`
	OrigOrderID  string         `json:"origOrderId,omitempty"`
	OrigClOrdID  string         `json:"origClOrdId,omitempty"`
	InstrumentID string         `json:"instrumentId"`
	Side         orderbook.Side `json:"side,omitempty"`
}

type ReplaceRequest struct {
	OrigOrderID  string              `json:"origOrderId,omitempty"`
	OrigClOrdID  string              `json:"origClOrdId,omitempty"`
	NewOrderID   string              `json:"newOrderId,omitempty"`
	ClOrdID      string              `json:"clOrdId,omitempty"`
	InstrumentID string              `json:"instrumentId"`
	Side         orderbook.Side      `json:"side"`
	OrderType    orderbook.OrderType `json:"orderType"`
	Price        decimal.Decimal     `json:"price"`
	Quantity     decimal.Decimal     `json:"quantity"`
	SourceAddr   string              `json:"sourceAddress,omitempty"`
}

type MassCancelRequest struct {
	// Scope is ScopeAll or an instrument id.
	Scope string `json:"scope"`
	// Side optionally restricts the cancel to one side of the book.
	Side orderbook.Side `json:"side,omitempty"`
}

func (r MassCancelRequest) All() bool {
	return r.Scope == "" || r.Scope == ScopeAll
}

type NewOrder struct {
	Header
	Order OrderRequest
}

type CancelOrder struct {
	Header
	Cancel CancelRequest
}

type ReplaceOrder struct {
	Header
	Replace ReplaceRequest
}

type MassCancel struct {
	Header
	MassCancel MassCancelRequest
}

func (c *NewOrder) Meta() Header     { return c.Header }
func (c *CancelOrder) Meta() Header  { return c.Header }
func (c *ReplaceOrder) Meta() Header { return c.Header }
func (c *MassCancel) Meta() Header   { return c.Header }

func (c *NewOrder) Type() MessageType     { return MessageTypeNewOrder }
func (c *CancelOrder) Type() MessageType  { return MessageTypeCancelOrder }
func (c *ReplaceOrder) Type() MessageType { return MessageTypeReplaceOrder }
func (c *MassCancel) Type() MessageType   { return MessageTypeMassCancel }

func (*NewOrder) command()     {}
func (*CancelOrder) command()  {}
func (*ReplaceOrder) command() {}
func (*MassCancel) command()   {}
