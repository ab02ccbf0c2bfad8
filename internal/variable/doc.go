// Package variable defines the static catalog of variables exposed by a
// Helios easyControls ventilation unit.
//
// Each Variable maps a symbolic identifier (used by the coordinator, the
// API, and MQTT topics) to its wire name, decoded type, value size, and
// valid range. The Registry resolves identifiers and is read-only after
// construction.
//
// Helios units address variables by ASCII name rather than by numbered
// register: a read is performed by writing "v00102" into the register
// window and reading back "v00102=2". The encode/decode rules here cover
// the value portion of that exchange; the register framing lives in the
// modbus package.
//
// # Usage
//
//	reg := variable.Default()
//	v, err := reg.Resolve("fan_stage")
//	if err != nil {
//	    // unknown variable: programmer error, fail fast
//	}
//	value, err := v.Decode("2") // int(2)
package variable
