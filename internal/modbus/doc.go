// Package modbus implements the ModBus TCP transport adapter for Helios
// easyControls ventilation units.
//
// Helios units do not expose a conventional numbered register map.
// Instead they publish named variables ("v00102") through a single
// holding-register window:
//
//	read:  WriteMultipleRegisters(window, "v00102\x00")
//	       ReadHoldingRegisters(window, n) -> "v00102=2\x00"
//	write: WriteMultipleRegisters(window, "v00102=3\x00")
//
// ASCII characters are packed two per 16-bit register. The adapter
// handles this framing and returns raw value strings; typed decoding is
// the variable package's job.
//
// # Concurrency
//
// The window is a shared resource on the unit: interleaving two
// exchanges corrupts both. The client therefore performs one exchange
// per call and relies on the coordinator's transport lock for mutual
// exclusion between the poller and writers.
//
// Every exchange is bounded by the configured transport timeout
// (device.timeout_seconds, default 5s).
package modbus
