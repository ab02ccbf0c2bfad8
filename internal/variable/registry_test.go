package variable

import (
	"errors"
	"testing"
)

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry([]Variable{
		{ID: "fan_stage", Name: "v00102", Kind: KindInt, Min: 0, Max: 4, Writable: true},
		{ID: "device_name", Name: "v00000", Kind: KindString, Size: 31},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	v, err := reg.Resolve("fan_stage")
	if err != nil {
		t.Fatalf("Resolve(fan_stage) error = %v", err)
	}
	if v.Name != "v00102" {
		t.Errorf("Resolve(fan_stage).Name = %q, want %q", v.Name, "v00102")
	}

	_, err = reg.Resolve("no_such_variable")
	if !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("Resolve(no_such_variable) error = %v, want ErrUnknownVariable", err)
	}
}

func TestNewRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry([]Variable{
		{ID: "fan_stage", Name: "v00102", Kind: KindInt},
		{ID: "fan_stage", Name: "v00103", Kind: KindInt},
	})
	if !errors.Is(err, ErrDuplicateVariable) {
		t.Errorf("NewRegistry() error = %v, want ErrDuplicateVariable", err)
	}
}

func TestNewRegistry_DuplicateWireName(t *testing.T) {
	_, err := NewRegistry([]Variable{
		{ID: "fan_stage", Name: "v00102", Kind: KindInt},
		{ID: "fan_stage_copy", Name: "v00102", Kind: KindInt},
	})
	if !errors.Is(err, ErrDuplicateVariable) {
		t.Errorf("NewRegistry() error = %v, want ErrDuplicateVariable", err)
	}
}

func TestDefault_Catalog(t *testing.T) {
	reg := Default()

	if reg.Count() == 0 {
		t.Fatal("Default() returned an empty catalog")
	}

	// The entity surface depends on these.
	for _, id := range []string{
		"fan_stage",
		"reset_flag",
		"bypass_from_month",
		"bypass_from_day",
		"bypass_to_month",
		"bypass_to_day",
		"bypass_extract_air_temperature",
		"bypass_outdoor_air_temperature",
	} {
		if _, err := reg.Resolve(id); err != nil {
			t.Errorf("Default() missing %q: %v", id, err)
		}
	}

	// Writable variables must declare a usable range or be flags.
	for _, v := range reg.All() {
		if !v.Writable {
			continue
		}
		if (v.Kind == KindInt || v.Kind == KindEnum || v.Kind == KindFloat) && v.Min > v.Max {
			t.Errorf("variable %q has inverted range [%v, %v]", v.ID, v.Min, v.Max)
		}
	}

	// IDs must come back ordered for stable API listings.
	ids := reg.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Errorf("IDs() not sorted: %q before %q", ids[i-1], ids[i])
		}
	}
}
