package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the topic names the bridge publishes to.
//
//	topics := mqtt.Topics{Prefix: "netatmo"}
//	topics.Channel("living-room", "temperature") // netatmo/living-room/temperature
type Topics struct {
	Prefix string
}

// Channel returns the retained state topic for one device channel.
func (t Topics) Channel(device, channel string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, sanitize(device), channel)
}

// Status returns the bridge availability topic.
func (t Topics) Status(source string) string {
	return fmt.Sprintf("%s/status/%s", t.Prefix, sanitize(source))
}

// sanitize replaces characters that would split or wildcard a topic level.
func sanitize(level string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(level)
}

func validTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
