// Package mqtt publishes group payloads to an MQTT broker.
package mqtt

import (
	"crypto/tls"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"adslink/config"
	"adslink/logging"
)

const (
	connectRetryInterval = 5 * time.Second
	publishWaitTimeout   = 5 * time.Second
	disconnectQuiesceMs  = 500
)

// Publisher maintains one broker session. Connecting is asynchronous: Start
// returns immediately and connection state changes arrive through the paho
// handlers. Reconnection after a drop is owned by the paho client.
type Publisher struct {
	cfg    config.MQTTConnection
	log    *logging.Logger
	client pahomqtt.Client

	mu      sync.RWMutex
	running bool
}

// NewPublisher creates a publisher for the configured broker.
func NewPublisher(cfg config.MQTTConnection, log *logging.Logger) *Publisher {
	return &Publisher{
		cfg: cfg,
		log: log.With("component", "mqtt"),
	}
}

// Name identifies this sink in logs and status output.
func (p *Publisher) Name() string { return "mqtt" }

// Start initiates the broker connection and returns without waiting for it.
// An unreachable broker is not an error here; the client keeps retrying and
// the outcome is reported through the connection handlers.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.cfg.BrokerURL)
	opts.SetClientID(p.cfg.ClientID)

	if strings.HasPrefix(p.cfg.BrokerURL, "ssl://") || strings.HasPrefix(p.cfg.BrokerURL, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetKeepAlive(30 * time.Second)

	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		p.log.Info("connected to broker", "broker", p.cfg.BrokerURL)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.log.Warn("broker connection lost", "error", err)
	})

	p.client = pahomqtt.NewClient(opts)
	p.client.Connect()
	p.running = true

	p.log.Info("broker connection initiated", "broker", p.cfg.BrokerURL, "client_id", p.cfg.ClientID)
	return nil
}

// IsConnected reports whether the broker session is currently up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil && p.client.IsConnected()
}

// Publish hands a payload to the broker client and returns immediately.
// Delivery failures are logged by a watcher goroutine; the caller never
// blocks on broker acknowledgement.
func (p *Publisher) Publish(topic string, payload []byte) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		p.log.Warn("publish skipped, publisher not started", "topic", topic)
		return
	}

	token := client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	go func() {
		if !token.WaitTimeout(publishWaitTimeout) {
			p.log.Warn("publish not confirmed in time", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("publish failed", "topic", topic, "error", err)
		}
	}()
}

// Stop disconnects from the broker best-effort.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil {
		client.Disconnect(disconnectQuiesceMs)
	}
	p.log.Info("disconnected from broker")
}
