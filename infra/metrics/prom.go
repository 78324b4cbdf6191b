// Package metrics implements the Prometheus and InfluxDB sinks behind the
// core metrics recorder interfaces.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/dmas-energy/dmas/core/metrics"
)

// PromSink records simulation events in Prometheus metrics.
type PromSink struct {
	clearingPrice  *prometheus.GaugeVec
	clearingVolume *prometheus.GaugeVec
	trades         *prometheus.CounterVec
	days           *prometheus.CounterVec
	dayDuration    prometheus.Histogram
	orders         *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
}

// NewPromSink registers simulation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	price := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "market_clearing_price_eur_mwh",
		Help: "Clearing price of the last cleared day per hour",
	}, []string{"hour"})
	volume := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "market_clearing_volume_kw",
		Help: "Clearing volume of the last cleared day per hour",
	}, []string{"hour"})
	trades := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_auctions_total",
		Help: "Total number of hourly auctions run",
	}, []string{"traded"})
	days := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_days_total",
		Help: "Total number of simulated days",
	}, []string{"success"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_day_duration_seconds",
		Help:    "Wall time spent advancing one simulated day",
		Buckets: prometheus.DefBuckets,
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "market_orders_total",
		Help: "Total number of submitted orders",
	}, []string{"participant", "rejected"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_runs_total",
		Help: "Total number of asset dispatch runs",
	}, []string{"portfolio", "category", "failed"})

	if err := registerGaugeVec(reg, &price); err != nil {
		return nil, err
	}
	if err := registerGaugeVec(reg, &volume); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &trades); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &days); err != nil {
		return nil, err
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := registerCounterVec(reg, &orders); err != nil {
		return nil, err
	}
	if err := registerCounterVec(reg, &dispatches); err != nil {
		return nil, err
	}

	return &PromSink{
		clearingPrice:  price,
		clearingVolume: volume,
		trades:         trades,
		days:           days,
		dayDuration:    duration,
		orders:         orders,
		dispatches:     dispatches,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, vec **prometheus.CounterVec) error {
	if err := reg.Register(*vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*vec = are.ExistingCollector.(*prometheus.CounterVec)
			return nil
		}
		return err
	}
	return nil
}

func registerGaugeVec(reg prometheus.Registerer, vec **prometheus.GaugeVec) error {
	if err := reg.Register(*vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			*vec = are.ExistingCollector.(*prometheus.GaugeVec)
			return nil
		}
		return err
	}
	return nil
}

// RecordClearing updates the per-hour gauges and the auction counter.
func (s *PromSink) RecordClearing(events []coremetrics.ClearingEvent) error {
	for _, ev := range events {
		hour := strconv.Itoa(ev.Hour)
		s.trades.WithLabelValues(strconv.FormatBool(ev.Traded)).Inc()
		if !ev.Traded {
			continue
		}
		s.clearingPrice.WithLabelValues(hour).Set(ev.Price)
		s.clearingVolume.WithLabelValues(hour).Set(ev.Volume)
	}
	return nil
}

// RecordDayOutcome counts the day and observes its duration.
func (s *PromSink) RecordDayOutcome(ev coremetrics.DayOutcomeEvent) error {
	s.days.WithLabelValues(strconv.FormatBool(ev.Success)).Inc()
	s.dayDuration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordOrder counts the submission.
func (s *PromSink) RecordOrder(ev coremetrics.OrderEvent) error {
	s.orders.WithLabelValues(ev.Participant, strconv.FormatBool(ev.Rejected)).Inc()
	return nil
}

// RecordDispatch counts the asset dispatch run.
func (s *PromSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	s.dispatches.WithLabelValues(ev.Portfolio, ev.Category, strconv.FormatBool(ev.Failed)).Inc()
	return nil
}
