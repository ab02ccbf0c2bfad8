package modbus

import (
	"fmt"
	"strings"
)

// registerWindow is the holding-register address of the variable window.
// Helios units expose every variable through this single window: the
// variable name is written to it, then the "name=value" answer is read
// back from it.
const registerWindow = 1

// packASCII packs a NUL-terminated ASCII string into register payload
// bytes, two characters per 16-bit register, padding the final register
// with a second NUL when the string length is even.
func packASCII(s string) []byte {
	chars := len(s) + 1 // NUL terminator
	if chars%2 != 0 {
		chars++
	}
	buf := make([]byte, chars)
	copy(buf, s)
	return buf
}

// unpackASCII extracts the ASCII string from register payload bytes,
// stopping at the first NUL.
func unpackASCII(buf []byte) string {
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// parseResponse splits a "name=value" read answer and checks it belongs
// to the requested variable. The unit answers reads with the variable
// name echoed back; a mismatch means the window held someone else's
// exchange.
func parseResponse(wireName, payload string) (string, error) {
	name, value, found := strings.Cut(payload, "=")
	if !found {
		return "", fmt.Errorf("%w: missing separator in %q", ErrBadResponse, payload)
	}
	if name != wireName {
		return "", fmt.Errorf("%w: asked for %q, got %q", ErrBadResponse, wireName, name)
	}
	return value, nil
}
