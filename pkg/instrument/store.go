package instrument

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type entry struct {
	def    Instrument
	window Window
}

type snapshot struct {
	entries map[string]entry
}

// Store serves instrument definitions from an immutable snapshot that is
// replaced as a whole by Refresh. Last trade prices live beside the snapshot
// and survive refreshes.
type Store struct {
	snap       atomic.Pointer[snapshot]
	lastPrices sync.Map // symbol -> decimal.Decimal

	loc *time.Location
	now func() time.Time
}

func NewStore(loc *time.Location, defs []Instrument) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{loc: loc, now: time.Now}
	s.snap.Store(&snapshot{entries: map[string]entry{}})
	if err := s.Refresh(defs); err != nil {
		return nil, err
	}
	return s, nil
}

// SetClock overrides the time source used by IsTradable.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Refresh validates defs and swaps them in. On error the current snapshot is
// kept.
func (s *Store) Refresh(defs []Instrument) error {
	entries := make(map[string]entry, len(defs))
	for _, def := range defs {
		if def.Symbol == "" {
			return ErrEmptySymbol
		}
		if _, ok := entries[def.Symbol]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, def.Symbol)
		}
		w, err := ParseTradingHours(def.TradingHours)
		if err != nil {
			return fmt.Errorf("instrument %s: %w", def.Symbol, err)
		}
		entries[def.Symbol] = entry{def: def, window: w}
		if def.LastTradePrice.IsPositive() {
			s.lastPrices.LoadOrStore(def.Symbol, def.LastTradePrice)
		}
	}
	s.snap.Store(&snapshot{entries: entries})
	return nil
}

func (s *Store) Get(symbol string) (Instrument, bool) {
	e, ok := s.snap.Load().entries[symbol]
	if !ok {
		return Instrument{}, false
	}
	def := e.def
	if p, ok := s.LastTradePrice(symbol); ok {
		def.LastTradePrice = p
	}
	return def, true
}

// IsTradable reports whether symbol is known, active and inside its trading
// window right now.
func (s *Store) IsTradable(symbol string) bool {
	e, ok := s.snap.Load().entries[symbol]
	if !ok || !e.def.Active {
		return false
	}
	return e.window.Contains(s.now().In(s.loc))
}

func (s *Store) RecordTrade(symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	s.lastPrices.Store(symbol, price)
}

func (s *Store) LastTradePrice(symbol string) (decimal.Decimal, bool) {
	v, ok := s.lastPrices.Load(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return v.(decimal.Decimal), true
}

func (s *Store) Symbols() []string {
	entries := s.snap.Load().entries
	out := make([]string, 0, len(entries))
	for sym := range entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Watch reloads path every interval until ctx is done. A file that fails to
// load or validate leaves the current snapshot in place.
func (s *Store) Watch(ctx context.Context, path string, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 || path == "" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			defs, err := LoadFile(path)
			if err == nil {
				err = s.Refresh(defs)
			}
			if err != nil {
				logger.Error("refresh instruments failed", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Debug("instruments refreshed", zap.Int("count", len(defs)))
		}
	}
}
