// Package mqtt provides the MQTT client used by the state bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Scheme
//
// Flat, two-level topics under a single prefix:
//
//	helios/state/<variable_id>    retained, published by the bridge
//	helios/command/<variable_id>  written by external clients
//	helios/health                 retained online/offline status + LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        // dispatch to the coordinator
//	        return nil
//	    })
//
// # Security Considerations
//
//   - Enable TLS for anything beyond local development (broker.tls)
//   - Credentials are validated against the broker ACL
//   - Payloads are not encrypted beyond TLS transport
package mqtt
