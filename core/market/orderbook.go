// Package market implements the day-ahead order book and the
// merit-order clearing of its hourly auctions.
package market

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmas-energy/dmas/core/logger"
	"github.com/dmas-energy/dmas/core/model"
)

// ErrHourCleared is returned when an order is submitted for an hour whose
// auction has already been cleared.
var ErrHourCleared = errors.New("hour already cleared")

// OrderBook groups submitted orders by date and hour. Entries are never
// mutated once accepted.
type OrderBook struct {
	mu   sync.Mutex
	days map[string]*dayBook
	log  logger.Logger
}

type dayBook struct {
	hours [model.HoursPerDay]hourBook
}

type hourBook struct {
	orders  []model.Order
	cleared bool
	result  ClearingResult
}

// NewOrderBook creates an empty book.
func NewOrderBook(log logger.Logger) *OrderBook {
	return &OrderBook{days: make(map[string]*dayBook), log: log}
}

// Submit appends the order to its (date, hour) collection. Submissions to
// an already cleared hour are rejected.
func (b *OrderBook) Submit(o model.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	hb := b.hour(o.Date, o.Hour)
	if hb.cleared {
		return fmt.Errorf("%w: %s hour %d", ErrHourCleared, model.DateKey(o.Date), o.Hour)
	}
	hb.orders = append(hb.orders, o)
	return nil
}

// Orders returns a copy of the orders submitted for the given hour, in
// submission order.
func (b *OrderBook) Orders(date time.Time, hour int) []model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	hb := b.hour(date, hour)
	out := make([]model.Order, len(hb.orders))
	copy(out, hb.orders)
	return out
}

// hour returns the mutable hour entry, allocating the day on first use.
// Callers must hold b.mu.
func (b *OrderBook) hour(date time.Time, hour int) *hourBook {
	key := model.DateKey(date)
	db, ok := b.days[key]
	if !ok {
		db = &dayBook{}
		b.days[key] = db
	}
	return &db.hours[hour]
}
