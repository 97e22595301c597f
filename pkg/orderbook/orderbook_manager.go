package orderbook

import (
	"sort"
	"sync"
)

type bookEntry struct {
	mu   sync.Mutex
	book *OrderBook
}

// BookManager owns one OrderBook per instrument for the life of the process.
// Books are never removed.
type BookManager struct {
	books sync.Map // symbol -> *bookEntry
}

func NewBookManager() *BookManager {
	return &BookManager{}
}

func (s *BookManager) entry(symbol string) *bookEntry {
	if val, ok := s.books.Load(symbol); ok {
		return val.(*bookEntry)
	}

	actual, _ := s.books.LoadOrStore(symbol, &bookEntry{book: newOrderBook(symbol)})
	return actual.(*bookEntry)
}

// GetOrCreate returns the book of symbol, creating an empty one on first use.
// The returned book is not locked; use Exec when another goroutine may touch
// the same instrument.
func (s *BookManager) GetOrCreate(symbol string) *OrderBook {
	return s.entry(symbol).book
}

// Exists reports whether symbol already has a book.
func (s *BookManager) Exists(symbol string) bool {
	_, ok := s.books.Load(symbol)
	return ok
}

// Exec runs fn with exclusive access to the book of symbol. Books of
// different instruments never share a lock.
func (s *BookManager) Exec(symbol string, fn func(ob *OrderBook)) {
	e := s.entry(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.book)
}

// Range calls fn for every book, each under its own lock. Returning false
// stops the iteration.
func (s *BookManager) Range(fn func(ob *OrderBook) bool) {
	s.books.Range(func(_, v any) bool {
		e := v.(*bookEntry)
		e.mu.Lock()
		defer e.mu.Unlock()
		return fn(e.book)
	})
}

// Symbols lists the instruments that have a book, sorted.
func (s *BookManager) Symbols() []string {
	var out []string
	s.books.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}
