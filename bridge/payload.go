package bridge

import (
	"bytes"
	"encoding/json"
	"time"
)

// Payload collects the values of one tag group for one tick. Keys keep
// their insertion order in the JSON output; setting an existing key
// overwrites its value in place. A "timestamp" field is appended when the
// payload is stamped at assembly time.
type Payload struct {
	keys      []string
	values    map[string]interface{}
	timestamp time.Time
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{values: make(map[string]interface{})}
}

// Set stores a value under key. A repeated key replaces the earlier value
// and keeps its original position.
func (p *Payload) Set(key string, value interface{}) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Len returns the number of distinct keys, not counting the timestamp.
func (p *Payload) Len() int {
	return len(p.keys)
}

// Stamp records the assembly time emitted as the "timestamp" field.
func (p *Payload) Stamp(t time.Time) {
	p.timestamp = t
}

// MarshalJSON emits the fields in insertion order with an RFC 3339 UTC
// timestamp as the final field.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for _, key := range p.keys {
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(p.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
		buf.WriteByte(',')
	}

	ts := p.timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(`"timestamp":`)
	tsJSON, err := json.Marshal(ts.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	buf.Write(tsJSON)

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
