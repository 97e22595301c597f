package event

import (
	"testing"
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNewOrder(t *testing.T) {
	raw := []byte(`{
		"messageType": "NewOrder",
		"messageId": "m-1",
		"timestamp": "2024-03-04T09:15:00Z",
		"clientId": "c1",
		"order": {"clOrdId": "o-1", "instrumentId": "ACB", "side": "BUY",
			"orderType": "LIMIT", "timeInForce": "IOC", "price": "25.50", "quantity": "100"}
	}`)

	cmd, err := DecodeCommand(raw)
	require.NoError(t, err)

	n, ok := cmd.(*NewOrder)
	require.True(t, ok, "got %T", cmd)
	assert.Equal(t, "m-1", n.MessageID)
	assert.Equal(t, "c1", n.ClientID)
	assert.Equal(t, orderbook.BUY, n.Order.Side)
	assert.Equal(t, orderbook.IOC, n.Order.TimeInForce)
	assert.True(t, n.Order.Price.Equal(decimal.RequireFromString("25.5")))
	assert.Equal(t, "ACB", PartitionKey(cmd))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := DecodeCommand([]byte(`{not json`))
	assert.Error(t, err)

	_, err = DecodeCommand([]byte(`{"messageType":"Heartbeat"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	_, err = DecodeCommand([]byte(`{"messageType":"CancelOrder","messageId":"x"}`))
	assert.ErrorIs(t, err, ErrMissingBody)
}

func TestEncodeDecodeKeepsCommandKind(t *testing.T) {
	h := Header{MessageID: "m", ClientID: "c", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	cmds := []Command{
		&CancelOrder{Header: h, Cancel: CancelRequest{OrigClOrdID: "o-1", InstrumentID: "ACB", Side: orderbook.SELL}},
		&ReplaceOrder{Header: h, Replace: ReplaceRequest{OrigOrderID: "1", InstrumentID: "ACB", Side: orderbook.BUY,
			OrderType: orderbook.LIMIT, Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(8)}},
		&MassCancel{Header: h, MassCancel: MassCancelRequest{Scope: ScopeAll}},
	}
	for _, cmd := range cmds {
		data, err := EncodeCommand(cmd)
		require.NoError(t, err)
		got, err := DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, cmd.Type(), got.Type())
		assert.Equal(t, h, got.Meta())
	}
}

func TestPartitionKeyMassCancel(t *testing.T) {
	assert.Equal(t, ScopeAll, PartitionKey(&MassCancel{MassCancel: MassCancelRequest{}}))
	assert.Equal(t, ScopeAll, PartitionKey(&MassCancel{MassCancel: MassCancelRequest{Scope: ScopeAll}}))
	assert.Equal(t, "ACB", PartitionKey(&MassCancel{MassCancel: MassCancelRequest{Scope: "ACB"}}))
}

func TestStatusFor(t *testing.T) {
	want := map[ExecType]OrderStatus{
		ExecTypeNew:              OrderStatusNew,
		ExecTypePartialFill:      OrderStatusPartiallyFilled,
		ExecTypeFill:             OrderStatusFilled,
		ExecTypeCanceled:         OrderStatusCanceled,
		ExecTypeReplaced:         OrderStatusReplaced,
		ExecTypeRejected:         OrderStatusRejected,
		ExecTypeCanceledRejected: OrderStatusRejected,
		ExecTypeReplaceRejected:  OrderStatusRejected,
	}
	for et, st := range want {
		assert.Equal(t, st, StatusFor(et), et)
	}

	r := NewExecutionReport("m", "c", time.Now(), Execution{ExecType: ExecTypeCanceledRejected})
	assert.Equal(t, MessageTypeExecutionReport, r.MessageType)
	assert.Equal(t, OrderStatusRejected, r.Execution.OrderStatus)
}
