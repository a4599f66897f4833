package kafka

import (
	"testing"

	"adslink/config"
	"adslink/logging"
)

func testCfg() config.KafkaConfig {
	return config.KafkaConfig{
		Enabled: true,
		Brokers: []string{"127.0.0.1:9092"},
		Topic:   "adslink-test",
	}
}

func TestNewProducer(t *testing.T) {
	p := NewProducer(testCfg(), logging.Default())
	if p == nil {
		t.Fatal("NewProducer() returned nil")
	}
	if p.Name() != "kafka" {
		t.Errorf("Name() = %q, want kafka", p.Name())
	}
}

func TestPublishBeforeStart(t *testing.T) {
	p := NewProducer(testCfg(), logging.Default())
	// Logged no-op without a writer.
	p.Publish("base/group", []byte(`{}`))
}

func TestStopBeforeStart(t *testing.T) {
	p := NewProducer(testCfg(), logging.Default())
	p.Stop()
	p.Stop()
}

func TestStartUnreachableBroker(t *testing.T) {
	cfg := testCfg()
	cfg.Brokers = []string{"127.0.0.1:1"}

	p := NewProducer(cfg, logging.Default())
	if err := p.Start(); err == nil {
		p.Stop()
		t.Fatal("Start() against closed port should fail")
	}
}

func TestSASLMechanism(t *testing.T) {
	tests := []struct {
		name      string
		mechanism string
		username  string
		wantNil   bool
	}{
		{"no credentials", SASLPlain, "", true},
		{"plain", SASLPlain, "user", false},
		{"scram 256", SASLSCRAMSHA256, "user", false},
		{"scram 512", SASLSCRAMSHA512, "user", false},
		{"unknown", "GSSAPI", "user", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testCfg()
			cfg.SASLMechanism = tc.mechanism
			cfg.Username = tc.username
			cfg.Password = "secret"

			p := NewProducer(cfg, logging.Default())
			got := p.saslMechanism()
			if (got == nil) != tc.wantNil {
				t.Errorf("saslMechanism() = %v, wantNil=%v", got, tc.wantNil)
			}
		})
	}
}
