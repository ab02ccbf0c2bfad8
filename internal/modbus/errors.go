package modbus

import "errors"

// Domain errors for the modbus package.
var (
	// ErrTransport is returned when a read or write exchange fails on the
	// wire (connection fault, device exception, timeout).
	ErrTransport = errors.New("modbus: transport failure")

	// ErrBadResponse is returned when the unit answers a read with a
	// payload that does not carry the requested variable.
	ErrBadResponse = errors.New("modbus: unexpected response payload")

	// ErrValueTooLong is returned when an encoded value exceeds the
	// variable's register window.
	ErrValueTooLong = errors.New("modbus: value exceeds variable size")

	// ErrClosed is returned when an exchange is attempted on a closed client.
	ErrClosed = errors.New("modbus: client closed")
)
