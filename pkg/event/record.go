package event

import (
	"time"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
)

// OrderRecord is the persisted state of an order after a change.
type OrderRecord struct {
	OrderID      string                `json:"orderId"`
	ClOrdID      string                `json:"clOrdId"`
	InstrumentID string                `json:"instrumentId"`
	ClientID     string                `json:"clientId"`
	Side         orderbook.Side        `json:"side"`
	OrderType    orderbook.OrderType   `json:"orderType"`
	TimeInForce  orderbook.TimeInForce `json:"timeInForce"`
	Price        decimal.Decimal       `json:"price"`
	Quantity     decimal.Decimal       `json:"quantity"`
	FilledQty    decimal.Decimal       `json:"filledQty"`
	RemainingQty decimal.Decimal       `json:"remainingQty"`
	AvgPrice     decimal.Decimal       `json:"avgPrice"`
	Status       OrderStatus           `json:"status"`
	SourceAddr   string                `json:"sourceAddress,omitempty"`
	EntryTime    time.Time             `json:"entryTime"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func NewOrderRecord(o *orderbook.Order, status OrderStatus, ts time.Time) OrderRecord {
	return OrderRecord{
		OrderID:      o.ID,
		ClOrdID:      o.ClOrdID,
		InstrumentID: o.Symbol,
		ClientID:     o.ClientID,
		Side:         o.Side,
		OrderType:    o.Type,
		TimeInForce:  o.TimeInForce,
		Price:        o.Price,
		Quantity:     o.Qty,
		FilledQty:    o.FilledQty(),
		RemainingQty: o.RemainingQty,
		AvgPrice:     o.AvgPrice(),
		Status:       status,
		SourceAddr:   o.SourceAddr,
		EntryTime:    o.EntryTime,
		UpdatedAt:    ts,
	}
}

type TradeRecord struct {
	TradeID       string          `json:"tradeId"`
	InstrumentID  string          `json:"instrumentId"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	BuyOrderID    string          `json:"buyOrderId"`
	SellOrderID   string          `json:"sellOrderId"`
	BuyClOrdID    string          `json:"buyClOrdId"`
	SellClOrdID   string          `json:"sellClOrdId"`
	BuyClientID   string          `json:"buyClientId"`
	SellClientID  string          `json:"sellClientId"`
	AggressorSide orderbook.Side  `json:"aggressorSide"`
	ExecutedAt    time.Time       `json:"executedAt"`
}

// NewTradeRecord builds the trade of match m where aggressor took liquidity.
func NewTradeRecord(aggressor *orderbook.Order, m orderbook.Match, ts time.Time) TradeRecord {
	buy, sell := aggressor, m.Resting
	if aggressor.Side == orderbook.SELL {
		buy, sell = m.Resting, aggressor
	}
	return TradeRecord{
		TradeID:       m.TradeID,
		InstrumentID:  aggressor.Symbol,
		Price:         m.Price,
		Quantity:      m.Qty,
		BuyOrderID:    buy.ID,
		SellOrderID:   sell.ID,
		BuyClOrdID:    buy.ClOrdID,
		SellClOrdID:   sell.ClOrdID,
		BuyClientID:   buy.ClientID,
		SellClientID:  sell.ClientID,
		AggressorSide: aggressor.Side,
		ExecutedAt:    ts,
	}
}

// BookStateRecord is a snapshot of one instrument's book.
type BookStateRecord struct {
	InstrumentID string            `json:"instrumentId"`
	BestBid      *decimal.Decimal  `json:"bestBid,omitempty"`
	BestAsk      *decimal.Decimal  `json:"bestAsk,omitempty"`
	TopBids      []orderbook.Level `json:"topBids"`
	TopAsks      []orderbook.Level `json:"topAsks"`
	Bids         []orderbook.Level `json:"bids"`
	Asks         []orderbook.Level `json:"asks"`
	LastSeq      uint64            `json:"lastSeq"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NewBookStateRecord snapshots ob. top is the number of levels per side kept
// in TopBids/TopAsks.
func NewBookStateRecord(ob *orderbook.OrderBook, top int, ts time.Time) BookStateRecord {
	bids, asks := ob.Depth(0)
	rec := BookStateRecord{
		InstrumentID: ob.Symbol(),
		TopBids:      head(bids, top),
		TopAsks:      head(asks, top),
		Bids:         bids,
		Asks:         asks,
		LastSeq:      ob.LastSeq(),
		Timestamp:    ts,
	}
	if len(bids) > 0 {
		rec.BestBid = &bids[0].Price
	}
	if len(asks) > 0 {
		rec.BestAsk = &asks[0].Price
	}
	return rec
}

func head(levels []orderbook.Level, n int) []orderbook.Level {
	if n <= 0 || len(levels) <= n {
		return levels
	}
	return levels[:n]
}

// MarketDataUpdate is published on the market data topic.
type MarketDataUpdate struct {
	InstrumentID   string          `json:"instrumentId"`
	LastTradePrice decimal.Decimal `json:"lastTradePrice"`
	LastTradeQty   decimal.Decimal `json:"lastTradeQty,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
