package instrument

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Instrument is the reference data the engine needs for one tradable symbol.
type Instrument struct {
	Symbol              string          `yaml:"symbol" json:"symbol"`
	Active              bool            `yaml:"active" json:"active"`
	TradingHours        string          `yaml:"trading_hours" json:"tradingHours"`
	PriceTickSize       decimal.Decimal `yaml:"price_tick_size" json:"priceTickSize"`
	VolumeTickSize      decimal.Decimal `yaml:"volume_tick_size" json:"volumeTickSize"`
	LastSettlementPrice decimal.Decimal `yaml:"last_settlement_price" json:"lastSettlementPrice"`

	// LastTradePrice seeds the last price cache the first time the symbol is seen.
	LastTradePrice decimal.Decimal `yaml:"last_trade_price" json:"lastTradePrice"`
}

type instrumentsFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadFile reads instrument definitions from a YAML export of the
// reference-data service. Environment variables in the file are expanded.
func LoadFile(path string) ([]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}

	var f instrumentsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	return f.Instruments, nil
}
