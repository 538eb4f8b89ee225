package mqtt

import (
	"fmt"
	"strings"
)

// Topic segments appended to the persistor bus address.
//
// The address is the single configurable endpoint name (for example
// "jonnywray.kairospersistor"); every topic the persistor uses hangs off it:
//
//	<address>/command              inbound command envelopes
//	<address>/reply/<request_id>   default reply topic
//	<address>/status               retained online/offline status (LWT)
const (
	topicSegmentCommand = "command"
	topicSegmentReply   = "reply"
	topicSegmentStatus  = "status"
)

// Topics provides builders for the persistor MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topics.Command("jonnywray.kairospersistor")
//	// Returns: "jonnywray.kairospersistor/command"
type Topics struct{}

// Command returns the topic commands are received on.
//
// Example: jonnywray.kairospersistor/command
func (Topics) Command(address string) string {
	return fmt.Sprintf("%s/%s", address, topicSegmentCommand)
}

// Reply returns the default reply topic for a request.
//
// Example: jonnywray.kairospersistor/reply/req-abc123
func (Topics) Reply(address, requestID string) string {
	return fmt.Sprintf("%s/%s/%s", address, topicSegmentReply, requestID)
}

// AllReplies returns a pattern matching every reply for an address.
// Callers use it to collect replies without knowing request IDs up front.
//
// Pattern: jonnywray.kairospersistor/reply/+
func (Topics) AllReplies(address string) string {
	return fmt.Sprintf("%s/%s/+", address, topicSegmentReply)
}

// Status returns the retained status topic for an address.
//
// Example: jonnywray.kairospersistor/status
func (Topics) Status(address string) string {
	return fmt.Sprintf("%s/%s", address, topicSegmentStatus)
}

// IsPublishable reports whether topic can be used as a publish target.
// Wildcards are only valid in subscriptions.
func IsPublishable(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
