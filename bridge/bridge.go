// Package bridge polls tag groups from a controller on a fixed interval
// and publishes each group as one JSON payload to the configured sinks.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adslink/config"
	"adslink/logging"
)

// Controller is the PLC session the bridge reads from.
type Controller interface {
	Connect() error
	ReadSymbol(name string) (interface{}, error)
	Close()
}

// Sink receives finished payloads. Publish must not block on delivery.
type Sink interface {
	Name() string
	Publish(topic string, payload []byte)
}

// State is the bridge lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StatePolling
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePolling:
		return "polling"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// groupStats tracks publish outcomes for one tag group.
type groupStats struct {
	publishes   uint64
	readErrors  uint64
	lastSuccess time.Time
	lastError   string
}

// Bridge drives the poll/publish loop. Ticks fire on the configured
// interval regardless of whether the previous tick has finished; each tick
// assembles fresh payloads, so overlapping ticks never share state.
type Bridge struct {
	cfg        *config.Config
	controller Controller
	sinks      []Sink
	log        *logging.Logger
	interval   time.Duration

	state  atomic.Int32
	stopCh chan struct{}
	done   chan struct{}

	statsMu  sync.Mutex
	stats    map[string]*groupStats
	lastTick time.Time

	// topic per group, fixed at construction
	topics map[string]string
}

// New wires a bridge from validated configuration. Topics are resolved
// once here; they cannot change while the process runs.
func New(cfg *config.Config, controller Controller, sinks []Sink, log *logging.Logger) *Bridge {
	b := &Bridge{
		cfg:        cfg,
		controller: controller,
		sinks:      sinks,
		log:        log.With("component", "bridge"),
		interval:   cfg.MQTT.Connection.Interval(),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		stats:      make(map[string]*groupStats),
		topics:     make(map[string]string),
	}

	for _, grp := range cfg.PLC.Tags {
		b.topics[grp.Name] = ResolveTopic(cfg.MQTT.Connection.BaseTopic, cfg.MQTT.TopicMapping, grp.Name)
		b.stats[grp.Name] = &groupStats{}
	}

	return b
}

// Start connects the controller and begins polling. A connect failure is
// returned to the caller and leaves the bridge stopped; there is no retry.
func (b *Bridge) Start() error {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("bridge already started")
	}

	b.log.Info("connecting to controller", "address", b.cfg.PLC.Connection.Address)
	if err := b.controller.Connect(); err != nil {
		b.state.Store(int32(StateStopped))
		close(b.done)
		return fmt.Errorf("controller connect: %w", err)
	}

	b.state.Store(int32(StatePolling))
	b.log.Info("polling started", "interval", b.interval, "groups", len(b.cfg.PLC.Tags))

	go b.run()
	return nil
}

// run fires a poll per tick until stopped. Polls run in their own
// goroutine so a slow controller never delays the next tick.
func (b *Bridge) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	go b.pollOnce()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			go b.pollOnce()
		}
	}
}

// pollOnce walks every group in configuration order, publishing each
// completed payload. In-flight work is abandoned once stopping begins.
func (b *Bridge) pollOnce() {
	now := time.Now()
	b.statsMu.Lock()
	b.lastTick = now
	b.statsMu.Unlock()

	for _, grp := range b.cfg.PLC.Tags {
		if b.State() != StatePolling {
			return
		}

		payload, err := b.readGroup(grp)
		if err != nil {
			b.log.Warn("group read failed, payload dropped", "group", grp.Name, "error", err)
			b.statsMu.Lock()
			st := b.stats[grp.Name]
			st.readErrors++
			st.lastError = err.Error()
			b.statsMu.Unlock()
			continue
		}

		data, err := json.Marshal(payload)
		if err != nil {
			b.log.Error("payload encode failed", "group", grp.Name, "error", err)
			continue
		}

		topic := b.topics[grp.Name]
		for _, sink := range b.sinks {
			sink.Publish(topic, data)
		}

		b.statsMu.Lock()
		st := b.stats[grp.Name]
		st.publishes++
		st.lastSuccess = time.Now()
		st.lastError = ""
		b.statsMu.Unlock()
	}
}

// readGroup reads every tag of a group in list order. The first failed
// read discards the whole group for this tick; values already read are
// thrown away with it.
func (b *Bridge) readGroup(grp config.TagGroup) (*Payload, error) {
	payload := NewPayload()

	for _, tag := range grp.Tags {
		value, err := b.controller.ReadSymbol(tag.Tagname)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", tag.Tagname, err)
		}
		payload.Set(tag.Description, value)
	}

	payload.Stamp(time.Now())
	return payload, nil
}

// Stop ends scheduling and waits for the tick loop to exit. Poll
// goroutines already in flight notice the state change and bail out;
// their partial work is discarded, not published.
func (b *Bridge) Stop() {
	state := State(b.state.Load())
	if state != StatePolling && state != StateConnecting {
		return
	}
	if !b.state.CompareAndSwap(int32(state), int32(StateStopping)) {
		return
	}

	close(b.stopCh)
	<-b.done

	b.state.Store(int32(StateStopped))
	b.log.Info("polling stopped")
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// GroupStatus is a point-in-time view of one group's outcomes.
type GroupStatus struct {
	Name        string    `json:"name"`
	Topic       string    `json:"topic"`
	Publishes   uint64    `json:"publishes"`
	ReadErrors  uint64    `json:"read_errors"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Status is a point-in-time view of the bridge for the status API.
type Status struct {
	State    string        `json:"state"`
	Interval string        `json:"interval"`
	LastTick time.Time     `json:"last_tick,omitempty"`
	Groups   []GroupStatus `json:"groups"`
}

// Snapshot reports current state and per-group counters in group order.
func (b *Bridge) Snapshot() Status {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	status := Status{
		State:    b.State().String(),
		Interval: b.interval.String(),
		LastTick: b.lastTick,
		Groups:   make([]GroupStatus, 0, len(b.cfg.PLC.Tags)),
	}

	for _, grp := range b.cfg.PLC.Tags {
		st := b.stats[grp.Name]
		status.Groups = append(status.Groups, GroupStatus{
			Name:        grp.Name,
			Topic:       b.topics[grp.Name],
			Publishes:   st.publishes,
			ReadErrors:  st.readErrors,
			LastSuccess: st.lastSuccess,
			LastError:   st.lastError,
		})
	}

	return status
}
