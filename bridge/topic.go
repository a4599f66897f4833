package bridge

import (
	"strings"

	"adslink/config"
)

// ResolveTopic derives the publish topic for a tag group: the base topic,
// then every topic-mapping value in configuration order, then the group
// name, joined with "/". Same inputs always produce the same topic.
func ResolveTopic(baseTopic string, mapping config.TopicMapping, group string) string {
	parts := make([]string, 0, len(mapping)+2)
	parts = append(parts, baseTopic)
	parts = append(parts, mapping.Values()...)
	parts = append(parts, group)
	return strings.Join(parts, "/")
}
