package mqtt

import "fmt"

// Topic prefixes for bridge traffic.
//
// The bridge owns the "loxone" topic namespace:
//
//	loxone/command            plain device commands (bus → miniserver)
//	loxone/command/secured    secured device commands (bus → miniserver)
//	loxone/event              raw miniserver messages (miniserver → bus)
//	loxone/health             periodic bridge health status
//	loxone/discovery/{kind}   device registry entries
//	loxone/system/status      bridge online/offline (LWT)
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "loxone"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "loxone/system"
)

// Topics provides builders for bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Example:
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.Event()
//	// Returns: "loxone/event"
type Topics struct{}

// Command returns the topic carrying plain device commands to the bridge.
//
// Example: loxone/command
func (Topics) Command() string {
	return fmt.Sprintf("%s/command", TopicPrefix)
}

// SecuredCommand returns the topic carrying secured device commands
// (commands requiring a visual authorization code) to the bridge.
//
// Example: loxone/command/secured
func (Topics) SecuredCommand() string {
	return fmt.Sprintf("%s/command/secured", TopicPrefix)
}

// Event returns the topic on which inbound miniserver messages are
// republished verbatim.
//
// Example: loxone/event
func (Topics) Event() string {
	return fmt.Sprintf("%s/event", TopicPrefix)
}

// Health returns the topic for periodic bridge health status.
//
// Example: loxone/health
func (Topics) Health() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// Discovery returns the topic for a device registry entry of the given kind.
//
// Example: loxone/discovery/miniserver
func (Topics) Discovery(kind string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, kind)
}

// SystemStatus returns the bridge online/offline status topic.
//
// Example: loxone/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDiscovery returns a pattern matching all discovery entries.
//
// Pattern: loxone/discovery/+
func (Topics) AllDiscovery() string {
	return fmt.Sprintf("%s/discovery/+", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: loxone/#
func (Topics) AllTopics() string {
	return "loxone/#"
}
