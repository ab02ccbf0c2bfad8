package mqtt

import "fmt"

// TopicPrefix is the base for every topic the service touches.
//
// The scheme is flat: helios/{category}/{variable_id}. State topics are
// retained so late subscribers see the current value; command topics are
// not retained.
const TopicPrefix = "helios"

// Topics provides builders for the MQTT topic hierarchy. Using these
// helpers keeps topic naming consistent between the bridge and tests.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("fan_stage")
//	// Returns: "helios/state/fan_stage"
type Topics struct{}

// State returns the retained state topic for a variable.
//
// Example: helios/state/fan_stage
func (Topics) State(variableID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, variableID)
}

// Command returns the topic external clients write to.
//
// Example: helios/command/fan_stage
func (Topics) Command(variableID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, variableID)
}

// Health returns the retained service health topic. The Last Will and
// Testament publishes here too, so subscribers can tell a crash from a
// graceful shutdown by the payload's reason field.
//
// Example: helios/health
func (Topics) Health() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: helios/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllStates returns a pattern matching every state topic.
//
// Pattern: helios/state/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}
