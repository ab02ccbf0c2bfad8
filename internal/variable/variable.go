package variable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the decoded type of a variable.
type Kind string

const (
	// KindInt decodes to int64.
	KindInt Kind = "int"

	// KindFloat decodes to float64.
	KindFloat Kind = "float"

	// KindFlag decodes to bool ("0"/"1" on the wire).
	KindFlag Kind = "flag"

	// KindEnum decodes to int64 with a label per value.
	KindEnum Kind = "enum"

	// KindString decodes to the raw string (device name, serial number).
	KindString Kind = "string"
)

// Variable describes one named register exposed by the ventilation unit.
//
// The unit addresses variables by ASCII name ("v00102"); Size is the
// maximum number of value characters the unit returns for it. Variables
// are immutable once the registry is built.
type Variable struct {
	// ID is the symbolic identifier used throughout the coordinator
	// (e.g. "fan_stage").
	ID string

	// Name is the wire name understood by the unit (e.g. "v00102").
	Name string

	// Kind determines decode/encode behaviour.
	Kind Kind

	// Size is the maximum number of value characters on the wire.
	Size int

	// Min and Max bound writable numeric variables. Ignored for
	// read-only variables and for KindString.
	Min float64
	Max float64

	// Writable marks variables the unit accepts writes for.
	Writable bool

	// Labels maps enum values to human-readable names. Only set for
	// KindEnum.
	Labels map[int]string
}

// RegisterCount returns the number of 16-bit holding registers needed to
// carry "name=value\x00" for this variable, two ASCII characters per
// register.
func (v Variable) RegisterCount() int {
	// name + '=' + value + NUL terminator
	chars := len(v.Name) + 1 + v.Size + 1
	return (chars + 1) / 2
}

// Decode converts a raw value string from the unit into the variable's
// native type: int64 for KindInt/KindEnum, float64 for KindFloat, bool
// for KindFlag, string for KindString. Fails with ErrDecodeFailed on
// malformed input.
func (v Variable) Decode(raw string) (any, error) {
	raw = strings.TrimSpace(raw)

	switch v.Kind {
	case KindInt, KindEnum:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrDecodeFailed, raw)
		}
		return n, nil

	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrDecodeFailed, raw)
		}
		return f, nil

	case KindFlag:
		switch raw {
		case "0":
			return false, nil
		case "1":
			return true, nil
		default:
			return nil, fmt.Errorf("%w: %q is not a flag", ErrDecodeFailed, raw)
		}

	case KindString:
		return raw, nil

	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrDecodeFailed, v.Kind)
	}
}

// Encode converts a native value into the wire string the unit expects.
// Numeric values may arrive as int or float64 (JSON decoding produces
// float64). Fails with ErrEncodeFailed on a type mismatch.
func (v Variable) Encode(value any) (string, error) {
	switch v.Kind {
	case KindInt, KindEnum:
		n, ok := toInt(value)
		if !ok {
			return "", fmt.Errorf("%w: %T is not an integer", ErrEncodeFailed, value)
		}
		return strconv.Itoa(n), nil

	case KindFloat:
		f, ok := toFloat(value)
		if !ok {
			return "", fmt.Errorf("%w: %T is not a number", ErrEncodeFailed, value)
		}
		return strconv.FormatFloat(f, 'f', 1, 64), nil

	case KindFlag:
		switch val := value.(type) {
		case bool:
			if val {
				return "1", nil
			}
			return "0", nil
		default:
			if n, ok := toInt(value); ok && (n == 0 || n == 1) {
				return strconv.Itoa(n), nil
			}
			return "", fmt.Errorf("%w: %T is not a flag", ErrEncodeFailed, value)
		}

	case KindString:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %T is not a string", ErrEncodeFailed, value)
		}
		if len(s) > v.Size {
			return "", fmt.Errorf("%w: string longer than %d characters", ErrEncodeFailed, v.Size)
		}
		return s, nil

	default:
		return "", fmt.Errorf("%w: unsupported kind %q", ErrEncodeFailed, v.Kind)
	}
}

// ValidateWrite checks that a value is writable and within the variable's
// declared range, without touching the transport.
func (v Variable) ValidateWrite(value any) error {
	if !v.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, v.ID)
	}

	switch v.Kind {
	case KindInt, KindEnum, KindFloat:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: %T is not numeric", ErrEncodeFailed, value)
		}
		if f < v.Min || f > v.Max {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrOutOfRange, v.ID, value, v.Min, v.Max)
		}
	case KindFlag, KindString:
		// No range to check; Encode validates the type.
	}

	return nil
}

// Equal reports semantic equality between two decoded values.
// Numeric values compare by magnitude regardless of int/float64 spelling.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}

	return a == b
}

func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
		return 0, false
	case float32:
		f := float64(n)
		if f == math.Trunc(f) {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
