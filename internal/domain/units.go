package domain

import (
	"fmt"
	"strings"
)

type dimension int

const (
	dimensionless dimension = iota
	length
	speed
	temperature
	pressure
)

// unitDef converts to the dimension's base unit: base = value*scale + offset.
type unitDef struct {
	dim    dimension
	scale  float64
	offset float64
}

var units = map[string]unitDef{
	"1":        {dimensionless, 1, 0},
	"1.0":      {dimensionless, 1, 0},
	"":         {dimensionless, 1, 0},
	"fraction": {dimensionless, 1, 0},
	"(0 - 1)":  {dimensionless, 1, 0},
	"%":        {dimensionless, 0.01, 0},
	"percent":  {dimensionless, 0.01, 0},

	"m":  {length, 1, 0},
	"cm": {length, 0.01, 0},
	"km": {length, 1000, 0},

	"m s-1":    {speed, 1, 0},
	"m/s":      {speed, 1, 0},
	"m s**-1":  {speed, 1, 0},
	"cm s-1":   {speed, 0.01, 0},
	"km day-1": {speed, 1000.0 / 86400, 0},
	"km d-1":   {speed, 1000.0 / 86400, 0},
	"km/day":   {speed, 1000.0 / 86400, 0},
	"km h-1":   {speed, 1000.0 / 3600, 0},

	"K":     {temperature, 1, 0},
	"degC":  {temperature, 1, 273.15},
	"deg_C": {temperature, 1, 273.15},

	"Pa":  {pressure, 1, 0},
	"hPa": {pressure, 100, 0},
}

func lookupUnit(u string) (unitDef, bool) {
	d, ok := units[strings.TrimSpace(u)]
	return d, ok
}

// Convert converts a single value between units.
func Convert(value float64, from, to string) (float64, error) {
	f, t, err := unitPair(from, to)
	if err != nil {
		return 0, err
	}
	return ((value*f.scale + f.offset) - t.offset) / t.scale, nil
}

// ConvertUnits converts values in place. NaN stays NaN.
func ConvertUnits(values []float64, from, to string) error {
	if from == to {
		return nil
	}
	f, t, err := unitPair(from, to)
	if err != nil {
		return err
	}
	for i, v := range values {
		values[i] = ((v*f.scale + f.offset) - t.offset) / t.scale
	}
	return nil
}

func unitPair(from, to string) (unitDef, unitDef, error) {
	f, ok := lookupUnit(from)
	if !ok {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, from)
	}
	t, ok := lookupUnit(to)
	if !ok {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, to)
	}
	if f.dim != t.dim {
		return unitDef{}, unitDef{}, fmt.Errorf("%w: %q to %q", ErrIncompatibleUnits, from, to)
	}
	return f, t, nil
}
