package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/matching-engine/config"
	"github.com/joripage/matching-engine/pkg/event"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/orderbook"
	kafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	minPrice = 100.0
	maxPrice = 200.0
	minQty   = 1
	maxQty   = 100
)

type generator struct {
	rnd     *rand.Rand
	symbols []string
	clients []string
	live    []event.OrderRequest
	now     func() time.Time
}

func (g *generator) header(clientID string) event.Header {
	return event.Header{MessageID: uuid.NewString(), Timestamp: g.now(), ClientID: clientID}
}

func (g *generator) newOrder() event.Command {
	side := orderbook.BUY
	if g.rnd.Intn(2) == 0 {
		side = orderbook.SELL
	}
	req := event.OrderRequest{
		ClOrdID:      uuid.NewString(),
		InstrumentID: g.symbols[g.rnd.Intn(len(g.symbols))],
		Side:         side,
		OrderType:    orderbook.LIMIT,
		TimeInForce:  orderbook.DAY,
		Price:        decimal.NewFromFloat(minPrice + g.rnd.Float64()*(maxPrice-minPrice)).Round(2),
		Quantity:     decimal.NewFromInt(int64(g.rnd.Intn(maxQty-minQty+1) + minQty)),
	}
	if g.rnd.Intn(20) == 0 {
		req.OrderType = orderbook.MARKET
		req.Price = decimal.Zero
		req.TimeInForce = orderbook.IOC
	}
	if req.OrderType == orderbook.LIMIT {
		g.live = append(g.live, req)
	}
	return &event.NewOrder{Header: g.header(g.clients[g.rnd.Intn(len(g.clients))]), Order: req}
}

// next returns mostly new orders, with some cancels and replaces of orders
// sent earlier.
func (g *generator) next() event.Command {
	if len(g.live) == 0 {
		return g.newOrder()
	}
	switch n := g.rnd.Intn(10); {
	case n == 0:
		i := g.rnd.Intn(len(g.live))
		orig := g.live[i]
		g.live = append(g.live[:i], g.live[i+1:]...)
		return &event.CancelOrder{Header: g.header(g.clients[0]), Cancel: event.CancelRequest{
			ClOrdID:      uuid.NewString(),
			OrigClOrdID:  orig.ClOrdID,
			InstrumentID: orig.InstrumentID,
			Side:         orig.Side,
		}}
	case n == 1:
		i := g.rnd.Intn(len(g.live))
		orig := g.live[i]
		clOrdID := uuid.NewString()
		g.live[i].ClOrdID = clOrdID
		return &event.ReplaceOrder{Header: g.header(g.clients[0]), Replace: event.ReplaceRequest{
			OrigClOrdID:  orig.ClOrdID,
			ClOrdID:      clOrdID,
			InstrumentID: orig.InstrumentID,
			Side:         orig.Side,
			OrderType:    orderbook.LIMIT,
			Price:        orig.Price,
			Quantity:     orig.Quantity.Add(decimal.NewFromInt(10)),
		}}
	}
	return g.newOrder()
}

func main() {
	var (
		configFile string
		total      int
		symbols    string
		rate       int
	)
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.IntVar(&total, "n", 100_000, "Number of commands to send")
	flag.StringVar(&symbols, "symbols", "ACB,VNM,HPG", "Comma separated instruments")
	flag.IntVar(&rate, "rate", 0, "Commands per second, 0 for unlimited")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), "loadgen")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	})
	defer producer.Close(context.Background()) // nolint

	g := &generator{
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		symbols: strings.Split(symbols, ","),
		clients: []string{"loadgen-1", "loadgen-2", "loadgen-3"},
		now:     time.Now,
	}

	var tick <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
	sent, failed := 0, 0
	for sent+failed < total && ctx.Err() == nil {
		if tick != nil {
			<-tick
		}
		cmd := g.next()
		data, err := event.EncodeCommand(cmd)
		if err != nil {
			failed++
			continue
		}
		if err := producer.Send(ctx, cfg.Kafka.CommandTopic, event.PartitionKey(cmd), data); err != nil {
			logger.Warn("send command", zap.Error(err))
			failed++
			continue
		}
		sent++
	}

	elapsed := time.Since(start)
	logger.Info("load generation done",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
		zap.Float64("perSecond", float64(sent)/elapsed.Seconds()),
	)
}
