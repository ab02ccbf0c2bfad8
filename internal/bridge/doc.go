// Package bridge connects the device coordinator to MQTT.
//
// It translates in both directions:
//   - Variable changes reported by the coordinator are published as
//     retained JSON on helios/state/<variable_id>.
//   - Payloads arriving on helios/command/<variable_id> become
//     coordinator writes, with range validation and retries handled by
//     the write path.
//
// A periodic health reporter publishes the service status retained on
// helios/health. The status degrades when the broker connection drops
// or the ventilation unit stops answering reads.
//
// The bridge registers a listener for every catalog variable at startup,
// which also places the full catalog on the poll schedule.
package bridge
