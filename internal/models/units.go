package models

const mmPerInch = 25.4

// ConvertPrecip converts a precipitation depth between unit systems.
// from names the units the upstream reported ("in", "inches", "mm").
func ConvertPrecip(value float64, from string, to UnitSystem) float64 {
	switch from {
	case "in", "inch", "inches":
		if to == UnitsMetric {
			return value * mmPerInch
		}
		return value
	case "mm", "millimeters":
		if to == UnitsStandard {
			return value / mmPerInch
		}
		return value
	default:
		return value
	}
}

// ConvertTemp converts a temperature between unit systems. The archive
// provider also serves temperature parameters alongside precipitation.
func ConvertTemp(value float64, from string, to UnitSystem) float64 {
	switch from {
	case "F", "degF", "fahrenheit":
		if to == UnitsMetric {
			return (value - 32) * 5 / 9
		}
		return value
	case "C", "degC", "celsius":
		if to == UnitsStandard {
			return value*9/5 + 32
		}
		return value
	default:
		return value
	}
}

// PrecipUnits returns the display units for precipitation depth in the
// given unit system.
func PrecipUnits(u UnitSystem) string {
	if u == UnitsMetric {
		return "mm"
	}
	return "in"
}
