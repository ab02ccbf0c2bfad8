package modbus

import (
	"bytes"
	"errors"
	"testing"
)

func TestPackASCII(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []byte
	}{
		{
			name:  "odd length pads to register boundary",
			input: "v00102",
			want:  []byte{'v', '0', '0', '1', '0', '2', 0, 0},
		},
		{
			name:  "even length gets single terminator",
			input: "v00102=3",
			want:  []byte{'v', '0', '0', '1', '0', '2', '=', '3', 0, 0},
		},
		{
			name:  "odd payload",
			input: "v00104=-3.5",
			want:  []byte{'v', '0', '0', '1', '0', '4', '=', '-', '3', '.', '5', 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := packASCII(tt.input)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("packASCII(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if len(got)%2 != 0 {
				t.Errorf("packASCII(%q) length %d is not register-aligned", tt.input, len(got))
			}
		})
	}
}

func TestUnpackASCII(t *testing.T) {
	got := unpackASCII([]byte{'v', '0', '0', '1', '0', '2', '=', '2', 0, 0})
	if got != "v00102=2" {
		t.Errorf("unpackASCII() = %q, want %q", got, "v00102=2")
	}

	// No terminator: take everything.
	got = unpackASCII([]byte{'v', '0', '0'})
	if got != "v00" {
		t.Errorf("unpackASCII() = %q, want %q", got, "v00")
	}
}

func TestParseResponse(t *testing.T) {
	value, err := parseResponse("v00102", "v00102=2")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if value != "2" {
		t.Errorf("parseResponse() = %q, want %q", value, "2")
	}

	if _, err := parseResponse("v00102", "v00103=2"); !errors.Is(err, ErrBadResponse) {
		t.Errorf("parseResponse() with wrong variable error = %v, want ErrBadResponse", err)
	}

	if _, err := parseResponse("v00102", "garbage"); !errors.Is(err, ErrBadResponse) {
		t.Errorf("parseResponse() without separator error = %v, want ErrBadResponse", err)
	}

	// Values may legitimately contain '=' only in the first cut position;
	// everything after the first separator is the value.
	value, err = parseResponse("v00000", "v00000=KWL=300")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if value != "KWL=300" {
		t.Errorf("parseResponse() = %q, want %q", value, "KWL=300")
	}
}
