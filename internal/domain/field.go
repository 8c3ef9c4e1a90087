package domain

import (
	"fmt"
	"math"
	"time"
)

// MonthsPerYear is the length of every climatology.
const MonthsPerYear = 12

// Variable identifies a physical quantity and the unit its values are in.
type Variable struct {
	ShortName    string
	StandardName string
	LongName     string
	Units        string
}

// WithUnits returns a copy of v in another unit.
func (v Variable) WithUnits(units string) Variable {
	v.Units = units
	return v
}

var (
	SeaIceConcentration = Variable{
		ShortName:    "siconc",
		StandardName: "sea_ice_area_fraction",
		LongName:     "Sea-Ice Area Fraction",
		Units:        "1",
	}
	SeaIceThickness = Variable{
		ShortName:    "sithick",
		StandardName: "sea_ice_thickness",
		LongName:     "Sea Ice Thickness",
		Units:        "m",
	}
	SeaIceSpeed = Variable{
		ShortName:    "sispeed",
		StandardName: "sea_ice_speed",
		LongName:     "Sea-Ice Speed",
		Units:        "km day-1",
	}
	// SeaIceVolume is thickness weighted by concentration, i.e. mean ice
	// thickness over the whole cell.
	SeaIceVolume = Variable{
		ShortName:    "sivol",
		StandardName: "sea_ice_thickness",
		LongName:     "Sea Ice Volume per Area",
		Units:        "m",
	}
)

// DatasetInfo is the metadata record of one input dataset.
type DatasetInfo struct {
	Project    string
	Dataset    string
	Experiment string
	Ensemble   string
	StartYear  int
	EndYear    int

	// AreaFile optionally points at a precomputed cell-area field.
	AreaFile string
	// Files maps a variable short name to the file holding it.
	Files map[string]string
}

// Grid describes the horizontal cells of a field. Cells are stored
// row-major, y (latitude-like) first.
type Grid struct {
	NY, NX int

	// Lat and Lon hold the centre of every cell, len NY*NX.
	Lat []float64
	Lon []float64

	// Rectilinear grids keep their 1-D axes; curvilinear grids leave them nil.
	LatAxis []float64
	LonAxis []float64
	// LatBounds (len NY) and LonBounds (len NX) are optional cell edges of a
	// rectilinear grid.
	LatBounds [][2]float64
	LonBounds [][2]float64
}

// NewRectilinearGrid expands 1-D latitude and longitude axes into a grid.
func NewRectilinearGrid(lat, lon []float64) *Grid {
	g := &Grid{
		NY:      len(lat),
		NX:      len(lon),
		LatAxis: append([]float64(nil), lat...),
		LonAxis: append([]float64(nil), lon...),
		Lat:     make([]float64, len(lat)*len(lon)),
		Lon:     make([]float64, len(lat)*len(lon)),
	}
	for j, la := range lat {
		for i, lo := range lon {
			g.Lat[j*g.NX+i] = la
			g.Lon[j*g.NX+i] = lo
		}
	}
	return g
}

// NewCurvilinearGrid wraps 2-D latitude and longitude arrays of shape ny x nx.
func NewCurvilinearGrid(ny, nx int, lat, lon []float64) (*Grid, error) {
	if len(lat) != ny*nx || len(lon) != ny*nx {
		return nil, fmt.Errorf("%w: curvilinear coordinates have %d/%d points, want %d",
			ErrGridMismatch, len(lat), len(lon), ny*nx)
	}
	return &Grid{
		NY:  ny,
		NX:  nx,
		Lat: append([]float64(nil), lat...),
		Lon: append([]float64(nil), lon...),
	}, nil
}

// Size returns the number of cells.
func (g *Grid) Size() int { return g.NY * g.NX }

// Rectilinear reports whether the grid has 1-D axes.
func (g *Grid) Rectilinear() bool { return g.LatAxis != nil && g.LonAxis != nil }

// HasBounds reports whether explicit cell edges are known.
func (g *Grid) HasBounds() bool {
	return g.Rectilinear() && len(g.LatBounds) == g.NY && len(g.LonBounds) == g.NX
}

// Validate checks the shape invariants and, for rectilinear grids, that the
// axes are monotonic.
func (g *Grid) Validate() error {
	if g.NY <= 0 || g.NX <= 0 {
		return fmt.Errorf("%w: empty grid %dx%d", ErrGridMismatch, g.NY, g.NX)
	}
	if len(g.Lat) != g.Size() || len(g.Lon) != g.Size() {
		return fmt.Errorf("%w: coordinates do not cover %dx%d cells", ErrGridMismatch, g.NY, g.NX)
	}
	if g.Rectilinear() {
		if !monotonic(g.LatAxis) {
			return fmt.Errorf("%w: latitude axis is not monotonic", ErrGridMismatch)
		}
		if !monotonic(g.LonAxis) {
			return fmt.Errorf("%w: longitude axis is not monotonic", ErrGridMismatch)
		}
	}
	return nil
}

// SameShape reports whether two grids cover the same cells.
func (g *Grid) SameShape(o *Grid) bool {
	return g.NY == o.NY && g.NX == o.NX
}

func monotonic(v []float64) bool {
	if len(v) < 2 {
		return true
	}
	increasing := v[1] > v[0]
	for i := 1; i < len(v); i++ {
		if increasing && !(v[i] > v[i-1]) {
			return false
		}
		if !increasing && !(v[i] < v[i-1]) {
			return false
		}
	}
	return true
}

// GriddedField is a time series of 2-D fields on a grid. Missing values are NaN.
type GriddedField struct {
	Variable Variable
	Grid     *Grid
	Times    []time.Time
	// Data holds one slice of Grid.Size() values per time step.
	Data [][]float64
}

// Validate checks shape invariants and that time is strictly increasing.
func (f *GriddedField) Validate() error {
	if f.Grid == nil {
		return fmt.Errorf("%s: %w: no grid", f.Variable.ShortName, ErrGridMismatch)
	}
	if err := f.Grid.Validate(); err != nil {
		return fmt.Errorf("%s: %w", f.Variable.ShortName, err)
	}
	if len(f.Times) != len(f.Data) {
		return fmt.Errorf("%s: %w: %d time steps but %d slices",
			f.Variable.ShortName, ErrGridMismatch, len(f.Times), len(f.Data))
	}
	for t, slice := range f.Data {
		if len(slice) != f.Grid.Size() {
			return fmt.Errorf("%s: %w: slice %d has %d values, want %d",
				f.Variable.ShortName, ErrGridMismatch, t, len(slice), f.Grid.Size())
		}
	}
	for t := 1; t < len(f.Times); t++ {
		if !f.Times[t].After(f.Times[t-1]) {
			return fmt.Errorf("%s: time coordinate not strictly increasing at step %d", f.Variable.ShortName, t)
		}
	}
	return nil
}

// ConvertUnits rescales the field in place to the given unit.
func (f *GriddedField) ConvertUnits(to string) error {
	if f.Variable.Units == to {
		return nil
	}
	for _, slice := range f.Data {
		if err := ConvertUnits(slice, f.Variable.Units, to); err != nil {
			return fmt.Errorf("%s: %w", f.Variable.ShortName, err)
		}
	}
	f.Variable.Units = to
	return nil
}

// Multiply returns a new field holding f*o cell by cell, tagged as v.
// Both fields must share grid shape and time steps.
func (f *GriddedField) Multiply(o *GriddedField, v Variable) (*GriddedField, error) {
	if !f.Grid.SameShape(o.Grid) {
		return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrGridMismatch,
			f.Variable.ShortName, f.Grid.NY, f.Grid.NX, o.Variable.ShortName, o.Grid.NY, o.Grid.NX)
	}
	if len(f.Times) != len(o.Times) {
		return nil, fmt.Errorf("%w: %s has %d time steps, %s has %d", ErrGridMismatch,
			f.Variable.ShortName, len(f.Times), o.Variable.ShortName, len(o.Times))
	}
	out := &GriddedField{
		Variable: v,
		Grid:     f.Grid,
		Times:    append([]time.Time(nil), f.Times...),
		Data:     make([][]float64, len(f.Data)),
	}
	for t := range f.Data {
		if !sameMonth(f.Times[t], o.Times[t]) {
			return nil, fmt.Errorf("%w: time step %d is %s in %s but %s in %s", ErrGridMismatch, t,
				f.Times[t].Format("2006-01"), f.Variable.ShortName, o.Times[t].Format("2006-01"), o.Variable.ShortName)
		}
		row := make([]float64, len(f.Data[t]))
		for c := range row {
			row[c] = f.Data[t][c] * o.Data[t][c]
		}
		out.Data[t] = row
	}
	return out, nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthlyClimatology is a multi-year mean per calendar month, January first.
type MonthlyClimatology struct {
	Variable Variable
	Values   [MonthsPerYear]float64
	// Counts is the number of time steps averaged into each month.
	Counts [MonthsPerYear]int
}

// Slice returns the values as a fresh slice.
func (c MonthlyClimatology) Slice() []float64 {
	out := make([]float64, MonthsPerYear)
	copy(out, c.Values[:])
	return out
}

// Month returns the value for a calendar month.
func (c MonthlyClimatology) Month(m time.Month) float64 {
	return c.Values[m-1]
}

// Finite reports whether every value is a finite number.
func (c MonthlyClimatology) Finite() bool {
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
