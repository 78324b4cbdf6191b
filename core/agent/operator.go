package agent

import (
	"sync"
	"time"

	"github.com/dmas-energy/dmas/core/exchange"
	"github.com/dmas-energy/dmas/core/logger"
	"github.com/dmas-energy/dmas/core/market"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
)

// Operator runs the day-ahead market. On CLEAR_DAY_AHEAD it clears every
// hour of the book, records the results and acknowledges the day on the
// exchange. It satisfies orchestrator.ClearedChecker so the status barrier
// can poll it directly in-process.
type Operator struct {
	name string
	book *market.OrderBook
	ack  exchange.AckPublisher
	sink metrics.MetricsSink
	log  logger.Logger

	mu      sync.Mutex
	cleared map[string][]market.ClearingResult
}

// NewOperator builds the market operator agent. ack and sink may be nil.
func NewOperator(name string, book *market.OrderBook, ack exchange.AckPublisher, sink metrics.MetricsSink, log logger.Logger) *Operator {
	return &Operator{
		name:    name,
		book:    book,
		ack:     ack,
		sink:    sink,
		log:     log,
		cleared: make(map[string][]market.ClearingResult),
	}
}

// Name returns the operator identifier.
func (m *Operator) Name() string { return m.name }

// Start subscribes the operator to phase events.
func (m *Operator) Start(sub exchange.Subscriber) error {
	return sub.SubscribePhases(m.HandlePhase)
}

// HandlePhase processes one phase event.
func (m *Operator) HandlePhase(ev model.PhaseEvent) {
	if ev.Phase != model.PhaseClearDayAhead {
		return
	}
	m.clearDay(ev.Date)
}

func (m *Operator) clearDay(date time.Time) {
	results, err := m.book.ClearDay(date)
	if err != nil {
		if m.log != nil {
			m.log.Errorf("%s: clearing %s: %v", m.name, model.DateKey(date), err)
		}
		return
	}

	m.mu.Lock()
	m.cleared[model.DateKey(date)] = results
	m.mu.Unlock()

	if m.sink != nil {
		events := make([]metrics.ClearingEvent, 0, len(results))
		for _, r := range results {
			events = append(events, metrics.ClearingEvent{
				Date:   r.Date,
				Hour:   r.Hour,
				Price:  r.Price,
				Volume: r.Volume,
				Traded: r.Traded,
				Orders: len(m.book.Orders(date, r.Hour)),
			})
		}
		if err := m.sink.RecordClearing(events); err != nil && m.log != nil {
			m.log.Errorf("%s: clearing metrics: %v", m.name, err)
		}
	}

	if m.ack != nil {
		ack := model.PhaseAck{Phase: model.PhaseClearDayAhead, Date: model.Midnight(date), Participant: m.name}
		if err := m.ack.PublishAck(ack); err != nil && m.log != nil {
			m.log.Errorf("%s: ack for %s: %v", m.name, model.DateKey(date), err)
		}
	}
}

// Cleared reports whether the given day's auctions have all been run.
func (m *Operator) Cleared(date time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cleared[model.DateKey(date)]
	return ok
}

// Results returns the stored clearing results for the day, or nil when the
// day has not been cleared.
func (m *Operator) Results(date time.Time) []market.ClearingResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.cleared[model.DateKey(date)]
	if res == nil {
		return nil
	}
	out := make([]market.ClearingResult, len(res))
	copy(out, res)
	return out
}
