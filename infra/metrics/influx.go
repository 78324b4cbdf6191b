package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/dmas-energy/dmas/core/metrics"
	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/infra/logger"
)

// InfluxSink writes simulation events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordClearing writes the hourly auction outcomes as line protocol points.
func (s *InfluxSink) RecordClearing(events []coremetrics.ClearingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, ev := range events {
		p := write.NewPointWithMeasurement("market_clearing").
			AddTag("date", model.DateKey(ev.Date)).
			AddTag("hour", strconv.Itoa(ev.Hour)).
			AddTag("traded", strconv.FormatBool(ev.Traded)).
			AddField("price_eur_mwh", round3(ev.Price)).
			AddField("volume_kw", round3(ev.Volume)).
			AddField("orders", ev.Orders).
			SetTime(ev.Date.Add(time.Duration(ev.Hour) * time.Hour))
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordDayOutcome writes one point per simulated day.
func (s *InfluxSink) RecordDayOutcome(ev coremetrics.DayOutcomeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("simulation_day").
		AddTag("date", model.DateKey(ev.Date)).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("duration_ms", round3(float64(ev.Duration.Milliseconds()))).
		AddField("reason", ev.Reason).
		SetTime(ev.Date)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOrder writes one point per submitted order.
func (s *InfluxSink) RecordOrder(ev coremetrics.OrderEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("market_order").
		AddTag("participant", ev.Participant).
		AddTag("date", model.DateKey(ev.Date)).
		AddTag("hour", strconv.Itoa(ev.Hour)).
		AddTag("rejected", strconv.FormatBool(ev.Rejected)).
		AddField("price_eur_mwh", round3(ev.Price)).
		AddField("quantity_kw", round3(ev.Quantity)).
		SetTime(ev.Date.Add(time.Duration(ev.Hour) * time.Hour))
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDispatch writes one point per asset dispatch run.
func (s *InfluxSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("asset_dispatch").
		AddTag("portfolio", ev.Portfolio).
		AddTag("asset", ev.Asset).
		AddTag("category", ev.Category).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("energy_kwh", round3(ev.EnergyKWh)).
		SetTime(ev.Date)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
