// Package exchange defines the message-exchange contract connecting the
// orchestrator, the participant agents and the market operator. Delivery
// guarantees belong to the implementation behind it.
package exchange

import "github.com/dmas-energy/dmas/core/model"

// Publisher emits phase events. Publication is fire-and-forget: the
// caller gets an error for a failed publish, nothing about consumption.
type Publisher interface {
	PublishPhase(ev model.PhaseEvent) error
}

// Subscriber registers a handler for incoming phase events. Handlers run
// on the exchange's delivery goroutine and must not block indefinitely.
type Subscriber interface {
	SubscribePhases(handler func(model.PhaseEvent)) error
}

// AckPublisher lets subscribers acknowledge a handled phase. The
// orchestrator's optional barrier counts these.
type AckPublisher interface {
	PublishAck(ack model.PhaseAck) error
}

// AckSubscriber registers a handler for phase acknowledgments.
type AckSubscriber interface {
	SubscribeAcks(handler func(model.PhaseAck)) error
}

// Exchange bundles the full contract.
type Exchange interface {
	Publisher
	Subscriber
	AckPublisher
	AckSubscriber
}
