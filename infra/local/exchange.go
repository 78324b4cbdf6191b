// Package local provides the in-process message exchange used by the
// simulation harness and by tests. Phase events are delivered to handlers
// synchronously in subscription order, so a single-process run is
// deterministic without the clearing barrier.
package local

import (
	"sync"

	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/internal/eventbus"
)

// Exchange fans phase events and acknowledgments out to in-process
// subscribers.
type Exchange struct {
	mu            sync.Mutex
	phaseHandlers []func(model.PhaseEvent)
	ackHandlers   []func(model.PhaseAck)
	acks          *eventbus.TypedBus[model.PhaseAck]
	closed        bool
}

// NewExchange creates an empty exchange.
func NewExchange() *Exchange {
	return &Exchange{acks: eventbus.NewTyped[model.PhaseAck]()}
}

// PublishPhase delivers the event to every phase subscriber before
// returning.
func (e *Exchange) PublishPhase(ev model.PhaseEvent) error {
	e.mu.Lock()
	handlers := append([]func(model.PhaseEvent){}, e.phaseHandlers...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

// SubscribePhases registers a phase event handler.
func (e *Exchange) SubscribePhases(handler func(model.PhaseEvent)) error {
	e.mu.Lock()
	e.phaseHandlers = append(e.phaseHandlers, handler)
	e.mu.Unlock()
	return nil
}

// PublishAck delivers the acknowledgment to handlers and to the ack
// channel subscribers.
func (e *Exchange) PublishAck(ack model.PhaseAck) error {
	e.mu.Lock()
	handlers := append([]func(model.PhaseAck){}, e.ackHandlers...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(ack)
	}
	e.acks.Publish(ack)
	return nil
}

// SubscribeAcks registers an acknowledgment handler.
func (e *Exchange) SubscribeAcks(handler func(model.PhaseAck)) error {
	e.mu.Lock()
	e.ackHandlers = append(e.ackHandlers, handler)
	e.mu.Unlock()
	return nil
}

// AckChannel returns a buffered stream of acknowledgments, suitable for
// the orchestrator's ack barrier.
func (e *Exchange) AckChannel(size int) <-chan model.PhaseAck {
	return e.acks.SubscribeBuffered(size)
}

// Close shuts the ack channels down.
func (e *Exchange) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.acks.Close()
}
