// Package config loads and validates the adslink configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration. It is loaded once at
// startup and treated as read-only for the lifetime of the process.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	PLC     PLCConfig     `yaml:"plc"`
	Kafka   KafkaConfig   `yaml:"kafka,omitempty"`
	Valkey  ValkeyConfig  `yaml:"valkey,omitempty"`
	Web     WebConfig     `yaml:"web,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// MQTTConfig groups the broker connection settings with the topic layout.
type MQTTConfig struct {
	Connection   MQTTConnection `yaml:"connection"`
	TopicMapping TopicMapping   `yaml:"topic_mapping,omitempty"`
}

// MQTTConnection holds broker connection parameters and the polling cadence.
type MQTTConnection struct {
	BrokerURL       string `yaml:"broker_url"` // tcp:// or ssl://
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	QoS             byte   `yaml:"qos"`
	Retain          bool   `yaml:"retain"`
	BaseTopic       string `yaml:"base_topic"`
	PollingInterval int    `yaml:"polling_interval"` // milliseconds
}

// Interval returns the polling interval as a duration.
func (c MQTTConnection) Interval() time.Duration {
	return time.Duration(c.PollingInterval) * time.Millisecond
}

// TopicMapping is an ordered list of single-entry maps. The entry values are
// joined in document order to form the middle segments of every publish topic.
type TopicMapping []map[string]string

// Values returns the mapping values in document order.
func (m TopicMapping) Values() []string {
	vals := make([]string, 0, len(m))
	for _, entry := range m {
		for _, v := range entry {
			vals = append(vals, v)
		}
	}
	return vals
}

// PLCConfig groups the controller connection with the tag layout.
type PLCConfig struct {
	Connection PLCConnection `yaml:"connection"`
	Tags       TagGroups     `yaml:"tags"`
}

// PLCConnection holds the ADS session parameters.
type PLCConnection struct {
	Address  string        `yaml:"address"`
	AmsNetID string        `yaml:"ams_net_id,omitempty"` // derived from Address when empty
	AmsPort  uint16        `yaml:"ams_port,omitempty"`   // 851 when zero
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Tag is a single symbol to read. Description doubles as the payload key.
type Tag struct {
	Tagname     string `yaml:"tagname"`
	Description string `yaml:"description"`
}

// TagGroup is a named, ordered list of tags published together.
type TagGroup struct {
	Name string
	Tags []Tag
}

// TagGroups preserves the document order of the group mapping. Go maps
// randomize iteration order, and group order decides both polling order and
// is visible in the published topics, so the YAML node is walked directly.
type TagGroups []TagGroup

// UnmarshalYAML decodes a mapping node into an ordered slice of groups.
func (g *TagGroups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("plc.tags: expected a mapping of group name to tag list")
	}
	groups := make(TagGroups, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return fmt.Errorf("plc.tags: bad group name: %w", err)
		}
		var tags []Tag
		if err := node.Content[i+1].Decode(&tags); err != nil {
			return fmt.Errorf("plc.tags group %q: %w", name, err)
		}
		groups = append(groups, TagGroup{Name: name, Tags: tags})
	}
	*g = groups
	return nil
}

// MarshalYAML re-encodes the groups as a mapping in the preserved order.
func (g TagGroups) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, grp := range g {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(grp.Name); err != nil {
			return nil, err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(grp.Tags); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// KafkaConfig describes the optional Kafka mirror sink.
type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers,omitempty"`
	Topic         string   `yaml:"topic,omitempty"`
	UseTLS        bool     `yaml:"use_tls,omitempty"`
	SASLMechanism string   `yaml:"sasl_mechanism,omitempty"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string   `yaml:"username,omitempty"`
	Password      string   `yaml:"password,omitempty"`
}

// ValkeyConfig describes the optional Valkey/Redis mirror sink.
type ValkeyConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Address        string        `yaml:"address,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	Database       int           `yaml:"database,omitempty"`
	KeyTTL         time.Duration `yaml:"key_ttl,omitempty"`
	PublishChanges bool          `yaml:"publish_changes,omitempty"`
}

// WebConfig describes the status HTTP server.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json or text
	Output string `yaml:"output,omitempty"` // stdout or stderr
}

// DefaultConfig returns a config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Connection: MQTTConnection{
				ClientID:        "adslink",
				QoS:             1,
				PollingInterval: 1000,
			},
		},
		PLC: PLCConfig{
			Connection: PLCConnection{
				AmsPort: 851,
				Timeout: 5 * time.Second,
			},
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.MQTT.Connection.BrokerURL == "" {
		return fmt.Errorf("mqtt.connection.broker_url is required")
	}
	if c.MQTT.Connection.BaseTopic == "" {
		return fmt.Errorf("mqtt.connection.base_topic is required")
	}
	if c.MQTT.Connection.PollingInterval <= 0 {
		return fmt.Errorf("mqtt.connection.polling_interval must be greater than zero")
	}
	if c.MQTT.Connection.QoS > 2 {
		return fmt.Errorf("mqtt.connection.qos must be 0, 1, or 2")
	}
	for i, entry := range c.MQTT.TopicMapping {
		if len(entry) != 1 {
			return fmt.Errorf("mqtt.topic_mapping[%d]: each entry must have exactly one key", i)
		}
		for k, v := range entry {
			if v == "" {
				return fmt.Errorf("mqtt.topic_mapping[%d] (%s): value must not be empty", i, k)
			}
		}
	}
	if c.PLC.Connection.Address == "" {
		return fmt.Errorf("plc.connection.address is required")
	}
	if len(c.PLC.Tags) == 0 {
		return fmt.Errorf("plc.tags must define at least one group")
	}
	for _, grp := range c.PLC.Tags {
		if grp.Name == "" {
			return fmt.Errorf("plc.tags: group name must not be empty")
		}
		if len(grp.Tags) == 0 {
			return fmt.Errorf("plc.tags group %q: must define at least one tag", grp.Name)
		}
		for i, tag := range grp.Tags {
			if tag.Tagname == "" {
				return fmt.Errorf("plc.tags group %q tag %d: tagname is required", grp.Name, i)
			}
			if tag.Description == "" {
				return fmt.Errorf("plc.tags group %q tag %d: description is required", grp.Name, i)
			}
		}
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Valkey.Enabled && c.Valkey.Address == "" {
		return fmt.Errorf("valkey.address is required when valkey is enabled")
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}
	return nil
}
