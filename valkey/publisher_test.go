package valkey

import (
	"testing"

	"adslink/config"
	"adslink/logging"
)

func TestKeyFromTopic(t *testing.T) {
	tests := []struct {
		topic    string
		expected string
	}{
		{"base/seg1/seg2/Line1", "base:seg1:seg2:Line1"},
		{"base/Line1", "base:Line1"},
		{"/base//group/", "base:group"},
		{"single", "single"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := keyFromTopic(tc.topic); got != tc.expected {
			t.Errorf("keyFromTopic(%q) = %q, want %q", tc.topic, got, tc.expected)
		}
	}
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher(config.ValkeyConfig{Address: "127.0.0.1:6379"}, logging.Default())
	if p == nil {
		t.Fatal("NewPublisher() returned nil")
	}
	if p.Name() != "valkey" {
		t.Errorf("Name() = %q, want valkey", p.Name())
	}
}

func TestPublishBeforeStart(t *testing.T) {
	p := NewPublisher(config.ValkeyConfig{Address: "127.0.0.1:6379"}, logging.Default())
	// Logged no-op without a client.
	p.Publish("base/group", []byte(`{}`))
	p.Stop()
}

func TestStartUnreachableServer(t *testing.T) {
	p := NewPublisher(config.ValkeyConfig{Address: "127.0.0.1:1"}, logging.Default())
	if err := p.Start(); err == nil {
		p.Stop()
		t.Fatal("Start() against closed port should fail")
	}
}
