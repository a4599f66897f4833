package bridge

import (
	"testing"

	"adslink/config"
)

func TestResolveTopic(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		mapping  config.TopicMapping
		group    string
		expected string
	}{
		{
			name:     "two segments",
			base:     "base",
			mapping:  config.TopicMapping{{"a": "seg1"}, {"b": "seg2"}},
			group:    "Line1",
			expected: "base/seg1/seg2/Line1",
		},
		{
			name:     "no mapping",
			base:     "factory",
			mapping:  nil,
			group:    "Line1",
			expected: "factory/Line1",
		},
		{
			name:     "single segment",
			base:     "plant",
			mapping:  config.TopicMapping{{"site": "hall-a"}},
			group:    "Packaging",
			expected: "plant/hall-a/Packaging",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveTopic(tc.base, tc.mapping, tc.group); got != tc.expected {
				t.Errorf("ResolveTopic() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestResolveTopicDeterministic(t *testing.T) {
	mapping := config.TopicMapping{{"site": "hall-a"}, {"line": "packaging"}, {"cell": "7"}}
	first := ResolveTopic("base", mapping, "G")
	for i := 0; i < 100; i++ {
		if got := ResolveTopic("base", mapping, "G"); got != first {
			t.Fatalf("iteration %d: ResolveTopic() = %q, want %q", i, got, first)
		}
	}
}
