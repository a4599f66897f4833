// Package valkey mirrors published payloads into a Valkey/Redis server.
package valkey

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"adslink/config"
	"adslink/logging"
)

// keyFromTopic converts an MQTT topic path into a colon-separated key,
// dropping empty segments ("base/line/group" -> "base:line:group").
func keyFromTopic(topic string) string {
	var parts []string
	for _, s := range strings.Split(topic, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

// Publisher stores the latest payload per topic under a derived key and
// optionally announces changes on a channel of the same name.
type Publisher struct {
	cfg    config.ValkeyConfig
	log    *logging.Logger
	client *redis.Client

	mu      sync.RWMutex
	running bool
}

// NewPublisher creates a publisher for the configured server.
func NewPublisher(cfg config.ValkeyConfig, log *logging.Logger) *Publisher {
	return &Publisher{
		cfg: cfg,
		log: log.With("component", "valkey"),
	}
}

// Name identifies this sink in logs and status output.
func (p *Publisher) Name() string { return "valkey" }

// Start connects and verifies the server with a ping.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         p.cfg.Address,
		Password:     p.cfg.Password,
		DB:           p.cfg.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("valkey connect %s: %w", p.cfg.Address, err)
	}

	p.client = client
	p.running = true

	p.log.Info("connected", "address", p.cfg.Address, "db", p.cfg.Database)
	return nil
}

// Publish stores the payload asynchronously; storage errors are logged.
func (p *Publisher) Publish(topic string, payload []byte) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		p.log.Warn("publish skipped, publisher not started", "topic", topic)
		return
	}

	key := keyFromTopic(topic)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := client.Set(ctx, key, payload, p.cfg.KeyTTL).Err(); err != nil {
			p.log.Warn("set failed", "key", key, "error", err)
			return
		}
		if p.cfg.PublishChanges {
			if err := client.Publish(ctx, key, payload).Err(); err != nil {
				p.log.Warn("channel publish failed", "key", key, "error", err)
			}
		}
	}()
}

// Stop closes the connection.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.running = false
	p.log.Info("disconnected")
}
