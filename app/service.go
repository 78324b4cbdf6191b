// Package app composes the configuration into a runnable simulation:
// exchange, metrics sinks, market operator, participant agents and the
// orchestrator.
package app

import (
	"context"
	"fmt"

	"github.com/dmas-energy/dmas/config"
	"github.com/dmas-energy/dmas/core/agent"
	"github.com/dmas-energy/dmas/core/exchange"
	"github.com/dmas-energy/dmas/core/market"
	coremetrics "github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/core/orchestrator"
	"github.com/dmas-energy/dmas/core/portfolio"
	"github.com/dmas-energy/dmas/infra/local"
	"github.com/dmas-energy/dmas/infra/logger"
	"github.com/dmas-energy/dmas/infra/metrics"
	"github.com/dmas-energy/dmas/infra/mqtt"
)

// PhaseExchange is the transport the service publishes and consumes phase
// traffic on. The MQTT exchange and the in-process exchange both satisfy it.
type PhaseExchange interface {
	exchange.Publisher
	exchange.Subscriber
	exchange.AckPublisher
	AckChannel(size int) <-chan model.PhaseAck
}

// Service wires the agents to the exchange and drives the calendar.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Book         *market.OrderBook
	Operator     *agent.Operator
	Participants []*agent.Participant

	cfg      *config.Config
	ex       PhaseExchange
	log      logger.Logger
	shutdown func()
}

// New creates a Service connected to the configured MQTT broker.
func New(cfg *config.Config) (*Service, error) {
	ex, err := mqtt.NewPahoExchange(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt exchange: %w", err)
	}
	svc, err := build(cfg, ex)
	if err != nil {
		ex.Disconnect()
		return nil, err
	}
	svc.shutdown = ex.Disconnect
	return svc, nil
}

// NewLocal creates a Service on an in-process exchange. All agents and the
// orchestrator share the same process; phase handling is synchronous.
func NewLocal(cfg *config.Config) (*Service, error) {
	ex := local.NewExchange()
	svc, err := build(cfg, ex)
	if err != nil {
		ex.Close()
		return nil, err
	}
	svc.shutdown = ex.Close
	return svc, nil
}

func build(cfg *config.Config, ex PhaseExchange) (*Service, error) {
	logg := logger.New("service")
	sink := buildSink(cfg)

	// The composed sinks implement all recorders; a custom MetricsSink
	// that does not simply goes unobserved for those events.
	orderSink, _ := sink.(coremetrics.OrderRecorder)
	daySink, _ := sink.(coremetrics.DayOutcomeRecorder)
	dispatchSink, _ := sink.(coremetrics.DispatchRecorder)

	book := market.NewOrderBook(logger.New("market"))
	operator := agent.NewOperator(cfg.Market.OperatorName, book, ex, sink, logg)
	if err := operator.Start(ex); err != nil {
		return nil, fmt.Errorf("operator subscribe: %w", err)
	}

	provider := cfg.Forecast.Provider()
	participants := make([]*agent.Participant, 0, len(cfg.Participants))
	for _, pc := range cfg.Participants {
		popts := []portfolio.Option{portfolio.WithSolverTimeout(cfg.Simulation.SolverTimeout())}
		if dispatchSink != nil {
			popts = append(popts, portfolio.WithDispatchRecorder(dispatchSink))
		}
		p := portfolio.New(pc.Name, cfg.Simulation.Workers, logg, popts...)
		for _, spec := range pc.Assets {
			if err := p.AddAsset(spec); err != nil {
				return nil, fmt.Errorf("participant %s: %w", pc.Name, err)
			}
		}
		bid := pc.BidPriceEURMWh
		if bid == 0 {
			bid = cfg.Market.BidPriceEURMWh
		}
		ask := pc.AskPriceEURMWh
		if ask == 0 {
			ask = cfg.Market.AskPriceEURMWh
		}
		a := agent.NewParticipant(p, provider, book, bid, ask, orderSink, logg)
		if err := a.Start(ex); err != nil {
			return nil, fmt.Errorf("participant %s subscribe: %w", pc.Name, err)
		}
		participants = append(participants, a)
	}

	var barrier orchestrator.Barrier
	switch cfg.Simulation.Barrier {
	case "status":
		barrier = orchestrator.StatusBarrier{
			Checker: operator,
			Timeout: cfg.Simulation.BarrierTimeout(),
			Poll:    cfg.Simulation.BarrierPoll(),
		}
	case "ack":
		barrier = orchestrator.AckBarrier{
			Acks:     ex.AckChannel(cfg.Simulation.ExpectedAcks * model.HoursPerDay),
			Expected: cfg.Simulation.ExpectedAcks,
			Timeout:  cfg.Simulation.BarrierTimeout(),
		}
	}

	orch, err := orchestrator.New(ex, barrier, logger.New("orchestrator"), daySink)
	if err != nil {
		return nil, err
	}

	return &Service{
		Orchestrator: orch,
		Book:         book,
		Operator:     operator,
		Participants: participants,
		cfg:          cfg,
		ex:           ex,
		log:          logg,
	}, nil
}

func buildSink(cfg *config.Config) coremetrics.MetricsSink {
	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			logger.New("service").Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}
	case 1:
		return sinks[0]
	default:
		return metrics.NewMultiSink(sinks...)
	}
}

// Run advances the simulated calendar and blocks until it completes or the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	start, err := s.cfg.Simulation.Start()
	if err != nil {
		return err
	}
	stop, err := s.cfg.Simulation.Stop()
	if err != nil {
		return err
	}

	outcomes := s.Orchestrator.Run(ctx, start, stop)
	failed := 0
	for _, out := range outcomes {
		if !out.Success() {
			failed++
		}
	}
	s.log.Infof("simulation finished: %d days, %d failed", len(outcomes), failed)
	if failed == len(outcomes) && len(outcomes) > 0 {
		return fmt.Errorf("all %d simulated days failed", len(outcomes))
	}
	return nil
}

// Close releases the exchange.
func (s *Service) Close() error {
	if s.shutdown != nil {
		s.shutdown()
	}
	return nil
}
