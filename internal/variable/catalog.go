package variable

// Default returns the built-in catalog for Helios easyControls units.
//
// Wire names and value sizes follow the Helios ModBus variable list.
// Size is the maximum number of value characters the unit returns;
// Min/Max apply to writable numeric variables only.
func Default() *Registry {
	r, err := NewRegistry([]Variable{
		{
			ID: "device_name", Name: "v00000", Kind: KindString, Size: 31,
		},
		{
			ID: "operating_mode", Name: "v00101", Kind: KindEnum, Size: 1,
			Min: 0, Max: 1, Writable: true,
			Labels: map[int]string{0: "auto", 1: "manual"},
		},
		{
			ID: "fan_stage", Name: "v00102", Kind: KindInt, Size: 1,
			Min: 0, Max: 4, Writable: true,
		},
		{
			ID: "fan_speed_percent", Name: "v00103", Kind: KindInt, Size: 3,
		},
		{
			ID: "temperature_outside_air", Name: "v00104", Kind: KindFloat, Size: 7,
		},
		{
			ID: "temperature_supply_air", Name: "v00105", Kind: KindFloat, Size: 7,
		},
		{
			ID: "temperature_outgoing_air", Name: "v00106", Kind: KindFloat, Size: 7,
		},
		{
			ID: "temperature_extract_air", Name: "v00107", Kind: KindFloat, Size: 7,
		},
		{
			ID: "party_mode", Name: "v00094", Kind: KindFlag, Size: 1,
			Writable: true,
		},
		{
			ID: "party_mode_duration", Name: "v00091", Kind: KindInt, Size: 3,
			Min: 10, Max: 180, Writable: true,
		},
		{
			ID: "bypass_from_month", Name: "v01035", Kind: KindInt, Size: 2,
			Min: 1, Max: 12, Writable: true,
		},
		{
			ID: "bypass_from_day", Name: "v01036", Kind: KindInt, Size: 2,
			Min: 1, Max: 31, Writable: true,
		},
		{
			ID: "bypass_to_month", Name: "v01037", Kind: KindInt, Size: 2,
			Min: 1, Max: 12, Writable: true,
		},
		{
			ID: "bypass_to_day", Name: "v01038", Kind: KindInt, Size: 2,
			Min: 1, Max: 31, Writable: true,
		},
		{
			ID: "bypass_extract_air_temperature", Name: "v01033", Kind: KindInt, Size: 2,
			Min: 10, Max: 40, Writable: true,
		},
		{
			ID: "bypass_outdoor_air_temperature", Name: "v01034", Kind: KindInt, Size: 2,
			Min: 5, Max: 20, Writable: true,
		},
		{
			ID: "humidity_extract_air", Name: "v02136", Kind: KindInt, Size: 3,
		},
		{
			ID: "operating_hours_supply_fan", Name: "v01103", Kind: KindInt, Size: 10,
		},
		{
			ID: "errors", Name: "v01123", Kind: KindInt, Size: 10,
		},
		{
			ID: "reset_flag", Name: "v02015", Kind: KindFlag, Size: 1,
			Writable: true,
		},
	})
	if err != nil {
		// The built-in catalog is validated by tests; a duplicate here is
		// a programming error.
		panic(err)
	}
	return r
}
