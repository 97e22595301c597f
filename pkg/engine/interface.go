package engine

import (
	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/instrument"
	"github.com/shopspring/decimal"
)

// ExecutionSender delivers execution reports back toward the gateway. Sends
// are best effort and must not block.
type ExecutionSender interface {
	SendExecution(report event.ExecutionReport)
}

// RecordPublisher hands state changes to the persistence channel. Calls must
// not block.
type RecordPublisher interface {
	PublishOrder(rec event.OrderRecord)
	PublishTrade(rec event.TradeRecord)
	PublishBookState(rec event.BookStateRecord)
}

type InstrumentState interface {
	IsTradable(symbol string) bool
	Get(symbol string) (instrument.Instrument, bool)
	RecordTrade(symbol string, price decimal.Decimal)
}
