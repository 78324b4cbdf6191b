// Package agent wires portfolios and the order book to the phase events
// published on the message exchange. One participant agent wraps one
// portfolio; the market operator wraps the order book.
package agent

import (
	"context"
	"time"

	"github.com/dmas-energy/dmas/core/exchange"
	"github.com/dmas-energy/dmas/core/forecast"
	"github.com/dmas-energy/dmas/core/logger"
	"github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/core/portfolio"
)

// Submitter accepts orders for the day-ahead auction. Locally this is the
// order book; remote deployments put a client here.
type Submitter interface {
	Submit(o model.Order) error
}

// Participant reacts to phase events by dispatching its portfolio and
// submitting the derived orders. A failed day is logged and the agent
// keeps serving later phases.
type Participant struct {
	name      string
	portfolio *portfolio.Portfolio
	forecasts forecast.Provider
	book      Submitter
	bidPrice  float64
	askPrice  float64
	sink      metrics.OrderRecorder
	log       logger.Logger
}

// NewParticipant builds a participant agent around its portfolio.
func NewParticipant(p *portfolio.Portfolio, prov forecast.Provider, book Submitter, bidPrice, askPrice float64, sink metrics.OrderRecorder, log logger.Logger) *Participant {
	return &Participant{
		name:      p.Name(),
		portfolio: p,
		forecasts: prov,
		book:      book,
		bidPrice:  bidPrice,
		askPrice:  askPrice,
		sink:      sink,
		log:       log,
	}
}

// Name returns the participant identifier.
func (a *Participant) Name() string { return a.name }

// Start subscribes the agent to phase events.
func (a *Participant) Start(sub exchange.Subscriber) error {
	return sub.SubscribePhases(a.HandlePhase)
}

// HandlePhase processes one phase event. Phases the participant does not
// act on are ignored; agents tolerate out-of-order arrival.
func (a *Participant) HandlePhase(ev model.PhaseEvent) {
	switch ev.Phase {
	case model.PhaseOptimizeDayAhead:
		a.optimizeDayAhead(ev.Date)
	case model.PhasePublishResults:
		if a.log != nil {
			a.log.Debugf("%s: results published for %s", a.name, model.DateKey(ev.Date))
		}
	}
}

func (a *Participant) optimizeDayAhead(date time.Time) {
	weather, err := a.forecasts.Weather(date)
	if err != nil {
		a.fail(date, "weather forecast", err)
		return
	}
	prices, err := a.forecasts.Price(date)
	if err != nil {
		a.fail(date, "price forecast", err)
		return
	}
	a.portfolio.SetContext(date, weather, prices)
	if err := a.portfolio.Optimize(context.Background()); err != nil {
		a.fail(date, "optimize", err)
		return
	}

	orders := append(a.portfolio.BidOrders(a.bidPrice), a.portfolio.AskOrders(a.askPrice)...)
	submitted := 0
	for _, o := range orders {
		err := a.book.Submit(o)
		if err != nil && a.log != nil {
			a.log.Errorf("%s: order for %s hour %d rejected: %v", a.name, model.DateKey(date), o.Hour, err)
		}
		if err == nil {
			submitted++
		}
		if a.sink != nil {
			rerr := a.sink.RecordOrder(metrics.OrderEvent{
				Participant: a.name,
				Date:        o.Date,
				Hour:        o.Hour,
				Price:       o.Price,
				Quantity:    o.Quantity,
				Rejected:    err != nil,
			})
			if rerr != nil && a.log != nil {
				a.log.Errorf("%s: order metrics: %v", a.name, rerr)
			}
		}
	}
	if a.log != nil {
		a.log.Infof("%s: submitted %d orders for %s", a.name, submitted, model.DateKey(date))
	}
}

func (a *Participant) fail(date time.Time, step string, err error) {
	if a.log != nil {
		a.log.Errorf("%s: %s for %s failed: %v", a.name, step, model.DateKey(date), err)
	}
}
