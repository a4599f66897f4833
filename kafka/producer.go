// Package kafka mirrors published payloads to a Kafka topic.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"adslink/config"
	"adslink/logging"
)

// SASL mechanism names accepted in config.
const (
	SASLPlain       = "PLAIN"
	SASLSCRAMSHA256 = "SCRAM-SHA-256"
	SASLSCRAMSHA512 = "SCRAM-SHA-512"
)

// Producer writes every published payload to one Kafka topic, keyed by the
// MQTT topic string so consumers can partition and filter on it.
type Producer struct {
	cfg    config.KafkaConfig
	log    *logging.Logger
	writer *kafka.Writer

	mu        sync.RWMutex
	connected bool
}

// NewProducer creates a producer for the configured cluster.
func NewProducer(cfg config.KafkaConfig, log *logging.Logger) *Producer {
	return &Producer{
		cfg: cfg,
		log: log.With("component", "kafka"),
	}
}

// Name identifies this sink in logs and status output.
func (p *Producer) Name() string { return "kafka" }

// Start dial-tests the first broker and builds the topic writer.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if p.cfg.UseTLS {
		dialer.TLS = p.tlsConfig()
	}
	if mechanism := p.saslMechanism(); mechanism != nil {
		dialer.SASLMechanism = mechanism
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka connect %s: %w", p.cfg.Brokers[0], err)
	}
	conn.Close()

	p.writer = &kafka.Writer{
		Addr:      kafka.TCP(p.cfg.Brokers...),
		Topic:     p.cfg.Topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: p.transport(),

		RequiredAcks: kafka.RequireOne,
		Async:        false,
		MaxAttempts:  3,

		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 10 * time.Millisecond,

		AllowAutoTopicCreation: true,
	}
	p.connected = true

	p.log.Info("connected to cluster", "brokers", p.cfg.Brokers, "topic", p.cfg.Topic)
	return nil
}

// Publish writes the payload asynchronously; write errors are logged.
func (p *Producer) Publish(topic string, payload []byte) {
	p.mu.RLock()
	writer := p.writer
	connected := p.connected
	p.mu.RUnlock()

	if !connected || writer == nil {
		p.log.Warn("publish skipped, producer not started", "topic", topic)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(topic),
			Value: payload,
			Time:  time.Now(),
		})
		if err != nil {
			p.log.Warn("produce failed", "topic", topic, "error", err)
		}
	}()
}

// Stop closes the writer.
func (p *Producer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		p.writer.Close()
		p.writer = nil
	}
	p.connected = false
	p.log.Info("disconnected from cluster")
}

func (p *Producer) transport() *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}
	if p.cfg.UseTLS {
		transport.TLS = p.tlsConfig()
	}
	if mechanism := p.saslMechanism(); mechanism != nil {
		transport.SASL = mechanism
	}
	return transport
}

func (p *Producer) tlsConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (p *Producer) saslMechanism() sasl.Mechanism {
	if p.cfg.Username == "" {
		return nil
	}

	switch p.cfg.SASLMechanism {
	case SASLPlain:
		return plain.Mechanism{
			Username: p.cfg.Username,
			Password: p.cfg.Password,
		}
	case SASLSCRAMSHA256:
		mechanism, _ := scram.Mechanism(scram.SHA256, p.cfg.Username, p.cfg.Password)
		return mechanism
	case SASLSCRAMSHA512:
		mechanism, _ := scram.Mechanism(scram.SHA512, p.cfg.Username, p.cfg.Password)
		return mechanism
	default:
		return nil
	}
}
