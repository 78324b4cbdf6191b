// Package mqtt implements the phase exchange over an MQTT broker using
// Eclipse Paho. Distributed deployments put the orchestrator and the
// agents in separate processes sharing the broker.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dmas-energy/dmas/core/model"
	"github.com/dmas-energy/dmas/infra/logger"
	"github.com/dmas-energy/dmas/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	PhaseTopic string          `json:"phase_topic"`
	AckTopic   string          `json:"ack_topic"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// SetDefaults fills the topics and retry policy the simulation expects.
func (c *Config) SetDefaults() {
	if c.PhaseTopic == "" {
		c.PhaseTopic = "dmas/phase"
	}
	if c.AckTopic == "" {
		c.AckTopic = "dmas/ack"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoExchange publishes and consumes phase events and clearing
// acknowledgments over MQTT.
type PahoExchange struct {
	cli        pahoClient
	phaseTopic string
	ackTopic   string
	qos        map[string]byte
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger

	mu            sync.Mutex
	phaseHandlers []func(model.PhaseEvent)
	ackHandlers   []func(model.PhaseAck)
	acks          *eventbus.TypedBus[model.PhaseAck]
}

// NewPahoExchange connects to the broker and subscribes to the phase and
// ack topics. Both subscriptions are re-established on reconnect.
func NewPahoExchange(cfg Config) (*PahoExchange, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_exchange")
	ex := &PahoExchange{
		phaseTopic: cfg.PhaseTopic,
		ackTopic:   cfg.AckTopic,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
		acks:       eventbus.NewTyped[model.PhaseAck](),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(ex.phaseTopic, ex.topicQoS("phase"), ex.onPhase); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", ex.phaseTopic, token.Error())
		}
		if token := c.Subscribe(ex.ackTopic, ex.topicQoS("ack"), ex.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", ex.ackTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	ex.cli = c
	return ex, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (e *PahoExchange) topicQoS(key string) byte {
	if q, ok := e.qos[key]; ok {
		return q
	}
	return 0
}

// PublishPhase publishes the event on the phase topic with bounded retry.
func (e *PahoExchange) PublishPhase(ev model.PhaseEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := e.publish(e.phaseTopic, e.topicQoS("phase"), payload); err != nil {
		return fmt.Errorf("publish phase %s: %w", ev.Phase, err)
	}
	e.logger.Infof("published %s for %s", ev.Phase, model.DateKey(ev.Date))
	return nil
}

// PublishAck publishes the acknowledgment on the ack topic.
func (e *PahoExchange) PublishAck(ack model.PhaseAck) error {
	payload, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	if err := e.publish(e.ackTopic, e.topicQoS("ack"), payload); err != nil {
		return fmt.Errorf("publish ack: %w", err)
	}
	return nil
}

func (e *PahoExchange) publish(topic string, qos byte, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		token := e.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		e.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == e.maxRetries {
			break
		}
		time.Sleep(e.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// SubscribePhases registers a phase event handler.
func (e *PahoExchange) SubscribePhases(handler func(model.PhaseEvent)) error {
	e.mu.Lock()
	e.phaseHandlers = append(e.phaseHandlers, handler)
	e.mu.Unlock()
	return nil
}

// SubscribeAcks registers an acknowledgment handler.
func (e *PahoExchange) SubscribeAcks(handler func(model.PhaseAck)) error {
	e.mu.Lock()
	e.ackHandlers = append(e.ackHandlers, handler)
	e.mu.Unlock()
	return nil
}

// AckChannel returns a buffered stream of acknowledgments for the
// orchestrator's ack barrier.
func (e *PahoExchange) AckChannel(size int) <-chan model.PhaseAck {
	return e.acks.SubscribeBuffered(size)
}

func (e *PahoExchange) onPhase(_ paho.Client, msg paho.Message) {
	var ev model.PhaseEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		e.logger.Errorf("failed to decode phase event: %v", err)
		return
	}
	e.mu.Lock()
	handlers := append([]func(model.PhaseEvent){}, e.phaseHandlers...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (e *PahoExchange) onAck(_ paho.Client, msg paho.Message) {
	var ack model.PhaseAck
	if err := json.Unmarshal(msg.Payload(), &ack); err != nil {
		e.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	e.mu.Lock()
	handlers := append([]func(model.PhaseAck){}, e.ackHandlers...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(ack)
	}
	e.acks.Publish(ack)
}

// Disconnect gracefully closes the MQTT connection.
func (e *PahoExchange) Disconnect() {
	if e.cli != nil && e.cli.IsConnected() {
		e.cli.Disconnect(250)
	}
	e.acks.Close()
}
