package persistence

import (
	"encoding/json"
	"time"

	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// Order is the latest known state of an order, one row per order id.
type Order struct {
	OrderID       string          `gorm:"column:order_id;primaryKey"`
	ClOrdID       string          `gorm:"column:cl_ord_id;index"`
	InstrumentID  string          `gorm:"column:instrument_id;index"`
	ClientID      string          `gorm:"column:client_id;index"`
	Side          string          `gorm:"column:side"`
	OrderType     string          `gorm:"column:order_type"`
	TimeInForce   string          `gorm:"column:time_in_force"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(24,8)"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(24,8)"`
	FilledQty     decimal.Decimal `gorm:"column:filled_qty;type:numeric(24,8)"`
	RemainingQty  decimal.Decimal `gorm:"column:remaining_qty;type:numeric(24,8)"`
	AvgPrice      decimal.Decimal `gorm:"column:avg_price;type:numeric(24,8)"`
	Status        string          `gorm:"column:status"`
	SourceAddress string          `gorm:"column:source_address"`
	EntryTime     time.Time       `gorm:"column:entry_time"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type Trade struct {
	TradeID       string          `gorm:"column:trade_id;primaryKey"`
	InstrumentID  string          `gorm:"column:instrument_id;index"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(24,8)"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(24,8)"`
	BuyOrderID    string          `gorm:"column:buy_order_id"`
	SellOrderID   string          `gorm:"column:sell_order_id"`
	BuyClOrdID    string          `gorm:"column:buy_cl_ord_id"`
	SellClOrdID   string          `gorm:"column:sell_cl_ord_id"`
	BuyClientID   string          `gorm:"column:buy_client_id"`
	SellClientID  string          `gorm:"column:sell_client_id"`
	AggressorSide string          `gorm:"column:aggressor_side"`
	ExecutedAt    time.Time       `gorm:"column:executed_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// BookState is one snapshot of an instrument's book. Level lists are stored
// as JSON.
type BookState struct {
	ID           int64               `gorm:"column:id;primaryKey;autoIncrement"`
	InstrumentID string              `gorm:"column:instrument_id;index"`
	BestBid      decimal.NullDecimal `gorm:"column:best_bid;type:numeric(24,8)"`
	BestAsk      decimal.NullDecimal `gorm:"column:best_ask;type:numeric(24,8)"`
	TopBids      string              `gorm:"column:top_bids;type:jsonb"`
	TopAsks      string              `gorm:"column:top_asks;type:jsonb"`
	Bids         string              `gorm:"column:bids;type:jsonb"`
	Asks         string              `gorm:"column:asks;type:jsonb"`
	LastSeq      uint64              `gorm:"column:last_seq"`
	SnapshotTime time.Time           `gorm:"column:snapshot_time"`
}

func (BookState) TableName() string {
	return "orderbook_states"
}

func orderFromRecord(r event.OrderRecord) *Order {
	return &Order{
		OrderID:       r.OrderID,
		ClOrdID:       r.ClOrdID,
		InstrumentID:  r.InstrumentID,
		ClientID:      r.ClientID,
		Side:          string(r.Side),
		OrderType:     string(r.OrderType),
		TimeInForce:   string(r.TimeInForce),
		Price:         r.Price,
		Quantity:      r.Quantity,
		FilledQty:     r.FilledQty,
		RemainingQty:  r.RemainingQty,
		AvgPrice:      r.AvgPrice,
		Status:        string(r.Status),
		SourceAddress: r.SourceAddr,
		EntryTime:     r.EntryTime,
		UpdatedAt:     r.UpdatedAt,
	}
}

func tradeFromRecord(r event.TradeRecord) *Trade {
	return &Trade{
		TradeID:       r.TradeID,
		InstrumentID:  r.InstrumentID,
		Price:         r.Price,
		Quantity:      r.Quantity,
		BuyOrderID:    r.BuyOrderID,
		SellOrderID:   r.SellOrderID,
		BuyClOrdID:    r.BuyClOrdID,
		SellClOrdID:   r.SellClOrdID,
		BuyClientID:   r.BuyClientID,
		SellClientID:  r.SellClientID,
		AggressorSide: string(r.AggressorSide),
		ExecutedAt:    r.ExecutedAt,
	}
}

func bookStateFromRecord(r event.BookStateRecord) (*BookState, error) {
	st := &BookState{
		InstrumentID: r.InstrumentID,
		LastSeq:      r.LastSeq,
		SnapshotTime: r.Timestamp,
	}
	if r.BestBid != nil {
		st.BestBid = decimal.NewNullDecimal(*r.BestBid)
	}
	if r.BestAsk != nil {
		st.BestAsk = decimal.NewNullDecimal(*r.BestAsk)
	}

	var err error
	if st.TopBids, err = levelsJSON(r.TopBids); err != nil {
		return nil, err
	}
	if st.TopAsks, err = levelsJSON(r.TopAsks); err != nil {
		return nil, err
	}
	if st.Bids, err = levelsJSON(r.Bids); err != nil {
		return nil, err
	}
	if st.Asks, err = levelsJSON(r.Asks); err != nil {
		return nil, err
	}
	return st, nil
}

func levelsJSON(levels []orderbook.Level) (string, error) {
	if levels == nil {
		levels = []orderbook.Level{}
	}
	b, err := json.Marshal(levels)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
