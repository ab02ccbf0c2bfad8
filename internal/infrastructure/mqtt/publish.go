package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outgoing payloads at 1MB, in line with typical
// broker limits. State payloads here are tiny; the cap guards against
// programming errors, not normal traffic.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified topic.
//
// qos selects the delivery guarantee (0 at most once, 1 at least once,
// 2 exactly once). retained makes the broker hand the message to new
// subscribers immediately; use it for state topics, never for commands.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured
// default QoS. Use for state updates where new subscribers should
// receive the current value.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
