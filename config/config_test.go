package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "dmas"
  username: "user"
  password: "pass"
  use_tls: false
simulation:
  start_date: "2024-05-01"
  stop_date: "2024-05-08"
  barrier: "status"
  barrier_timeout_seconds: 10
market:
  bid_price_eur_mwh: 3000
  ask_price_eur_mwh: -500
participants:
  - name: "pv-house"
    assets:
      - name: "roof"
        kind: "pass_through"
        category: "solar"
        capacity_kw: 10
        tilt: 35
        azimuth: 180
      - name: "home"
        kind: "battery"
        category: "storage"
        demand_kwh_year: 4000
        battery:
          vmin: 0
          vmax: 13
          eta_charge: 0.95
          eta_discharge: 0.95
metrics:
  prometheus_enabled: true
  prometheus_port: ":9091"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "dmas"},
		{"phase_topic_default", cfg.MQTT.PhaseTopic, "dmas/phase"},
		{"start_date", cfg.Simulation.StartDate, "2024-05-01"},
		{"barrier", cfg.Simulation.Barrier, "status"},
		{"barrier_timeout", cfg.Simulation.BarrierTimeoutSeconds, 10},
		{"workers_default", cfg.Simulation.Workers, 4},
		{"bid_price", cfg.Market.BidPriceEURMWh, 3000.0},
		{"ask_price", cfg.Market.AskPriceEURMWh, -500.0},
		{"operator_default", cfg.Market.OperatorName, "market"},
		{"participants", len(cfg.Participants), 1},
		{"assets", len(cfg.Participants[0].Assets), 2},
		{"battery_vmax", cfg.Participants[0].Assets[1].Battery.VMax, 13.0},
		{"prometheus_port", cfg.Metrics.PrometheusPort, ":9091"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadRejectsBadCalendar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `simulation:
  start_date: "2024-05-08"
  stop_date: "2024-05-01"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected calendar error")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestLoadRejectsInvalidParticipant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `simulation:
  start_date: "2024-05-01"
  stop_date: "2024-05-02"
participants:
  - name: "empty"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected participant error")
	}
}

func TestSimulationBarrierValidation(t *testing.T) {
	c := SimulationConfig{StartDate: "2024-05-01", StopDate: "2024-05-02", Barrier: "spin"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected barrier mode error")
	}
}
