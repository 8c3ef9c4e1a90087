// Package netcdf reads CF-convention gridded fields and writes climatology
// and CMOR output files.
package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gonc "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// ErrVariableNotFound means a file holds no variable matching the request.
var ErrVariableNotFound = errors.New("variable not found")

// Reader loads fields from NetCDF classic and NetCDF-4 files.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// variable is one decoded NetCDF variable.
type variable struct {
	name   string
	dims   []string
	attrs  api.AttributeMap
	shape  []int
	values []float64
}

func readVariable(g api.Group, name string, unpacked bool) (*variable, error) {
	v, err := g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}
	values, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}
	if unpacked {
		unpack(values, v.Attributes)
	}
	return &variable{name: name, dims: v.Dimensions, attrs: v.Attributes, shape: shape, values: values}, nil
}

func hasVariable(g api.Group, name string) bool {
	for _, v := range g.ListVariables() {
		if v == name {
			return true
		}
	}
	return false
}

// findVariable returns the first variable with the standard name and at
// least minDims dimensions, falling back to the given names.
func findVariable(g api.Group, standardName string, minDims int, names ...string) (*variable, error) {
	if standardName != "" {
		for _, name := range g.ListVariables() {
			v, err := g.GetVariable(name)
			if err != nil {
				continue
			}
			if attrString(v.Attributes, "standard_name") == standardName && len(v.Dimensions) >= minDims {
				return readVariable(g, name, true)
			}
		}
	}
	for _, name := range names {
		if hasVariable(g, name) {
			return readVariable(g, name, true)
		}
	}
	return nil, fmt.Errorf("%w: standard_name %q or name %v", ErrVariableNotFound, standardName, names)
}

// LoadField reads one variable as a gridded time series. Values keep the
// units stored in the file.
func (r *Reader) LoadField(ctx context.Context, path string, v domain.Variable) (*domain.GriddedField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := gonc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	data, err := findVariable(g, v.StandardName, 3, v.ShortName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data.shape) != 3 {
		return nil, fmt.Errorf("%s: %s has shape %v, want (time, y, x)", path, data.name, data.shape)
	}

	grid, err := readGrid(g, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if grid.NY != data.shape[1] || grid.NX != data.shape[2] {
		return nil, fmt.Errorf("%s: %w: coordinates %dx%d, %s %dx%d", path, domain.ErrGridMismatch,
			grid.NY, grid.NX, data.name, data.shape[1], data.shape[2])
	}

	times, _, err := readTime(g, data.dims[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(times) != data.shape[0] {
		return nil, fmt.Errorf("%s: %w: %d time values for %d steps", path, domain.ErrGridMismatch, len(times), data.shape[0])
	}

	meta := v
	meta.Units = attrString(data.attrs, "units")
	field := &domain.GriddedField{
		Variable: meta,
		Grid:     grid,
		Times:    times,
		Data:     make([][]float64, len(times)),
	}
	size := grid.Size()
	for t := range times {
		field.Data[t] = data.values[t*size : (t+1)*size]
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r.logger.Debug("field loaded",
		"path", path,
		"variable", data.name,
		"units", meta.Units,
		"time_steps", len(times),
		"ny", grid.NY,
		"nx", grid.NX,
		"rectilinear", grid.Rectilinear(),
	)
	return field, nil
}

// LoadArea reads a cell-area field in m².
func (r *Reader) LoadArea(ctx context.Context, path string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := gonc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	area, err := findVariable(g, "cell_area", 2, "areacello", "areacella")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(area.shape) != 2 {
		return nil, fmt.Errorf("%s: %s has shape %v, want (y, x)", path, area.name, area.shape)
	}
	r.logger.Debug("cell area loaded", "path", path, "variable", area.name, "cells", len(area.values))
	return area.values, nil
}

// readGrid resolves the horizontal coordinates of a (time, y, x) variable.
func readGrid(g api.Group, data *variable) (*domain.Grid, error) {
	if coords := strings.Fields(attrString(data.attrs, "coordinates")); len(coords) > 0 {
		lat, lon, err := auxiliaryCoordinates(g, coords)
		if err != nil {
			return nil, err
		}
		if lat != nil && lon != nil {
			if len(lat.shape) == 2 && len(lon.shape) == 2 {
				return domain.NewCurvilinearGrid(lat.shape[0], lat.shape[1], lat.values, lon.values)
			}
			if len(lat.shape) == 1 && len(lon.shape) == 1 {
				return rectilinear(g, lat, lon)
			}
		}
	}

	yDim, xDim := data.dims[1], data.dims[2]
	if !hasVariable(g, yDim) || !hasVariable(g, xDim) {
		return nil, fmt.Errorf("%s: no coordinate variables for dimensions %s, %s", data.name, yDim, xDim)
	}
	lat, err := readVariable(g, yDim, false)
	if err != nil {
		return nil, err
	}
	lon, err := readVariable(g, xDim, false)
	if err != nil {
		return nil, err
	}
	return rectilinear(g, lat, lon)
}

func auxiliaryCoordinates(g api.Group, names []string) (lat, lon *variable, err error) {
	for _, name := range names {
		if !hasVariable(g, name) {
			continue
		}
		v, err := readVariable(g, name, false)
		if err != nil {
			return nil, nil, err
		}
		switch coordinateKind(v) {
		case "latitude":
			lat = v
		case "longitude":
			lon = v
		}
	}
	return lat, lon, nil
}

func coordinateKind(v *variable) string {
	switch sn := attrString(v.attrs, "standard_name"); sn {
	case "latitude", "longitude":
		return sn
	}
	switch attrString(v.attrs, "units") {
	case "degrees_north", "degree_north", "degrees_N", "degree_N":
		return "latitude"
	case "degrees_east", "degree_east", "degrees_E", "degree_E":
		return "longitude"
	}
	name := strings.ToLower(v.name)
	switch {
	case strings.Contains(name, "lat"):
		return "latitude"
	case strings.Contains(name, "lon"):
		return "longitude"
	}
	return ""
}

func rectilinear(g api.Group, lat, lon *variable) (*domain.Grid, error) {
	grid := domain.NewRectilinearGrid(lat.values, lon.values)
	var err error
	if grid.LatBounds, err = readBounds(g, lat); err != nil {
		return nil, err
	}
	if grid.LonBounds, err = readBounds(g, lon); err != nil {
		return nil, err
	}
	return grid, nil
}

// readBounds returns nil when the coordinate names no bounds variable.
func readBounds(g api.Group, coord *variable) ([][2]float64, error) {
	name := attrString(coord.attrs, "bounds")
	if name == "" || !hasVariable(g, name) {
		return nil, nil
	}
	b, err := readVariable(g, name, false)
	if err != nil {
		return nil, err
	}
	if len(b.shape) != 2 || b.shape[1] != 2 || b.shape[0] != len(coord.values) {
		return nil, fmt.Errorf("bounds %s has shape %v, want (%d, 2)", name, b.shape, len(coord.values))
	}
	out := make([][2]float64, b.shape[0])
	for i := range out {
		out[i] = [2]float64{b.values[2*i], b.values[2*i+1]}
	}
	return out, nil
}

func readTime(g api.Group, dim string) ([]time.Time, TimeAxis, error) {
	if !hasVariable(g, dim) {
		return nil, TimeAxis{}, fmt.Errorf("no time coordinate %s", dim)
	}
	tv, err := readVariable(g, dim, false)
	if err != nil {
		return nil, TimeAxis{}, err
	}
	axis, err := ParseTimeAxis(attrString(tv.attrs, "units"), attrString(tv.attrs, "calendar"))
	if err != nil {
		return nil, TimeAxis{}, fmt.Errorf("time coordinate %s: %w", dim, err)
	}
	times := make([]time.Time, len(tv.values))
	for i, v := range tv.values {
		times[i] = axis.Decode(v)
	}
	return times, axis, nil
}

// LoadCube reads a named (time, lat, lon) variable on a rectilinear grid,
// unpacked to float64 in the file's units.
func (r *Reader) LoadCube(ctx context.Context, path, name string) (*Cube, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := gonc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	if !hasVariable(g, name) {
		return nil, fmt.Errorf("%s: %w: %s", path, ErrVariableNotFound, name)
	}
	data, err := readVariable(g, name, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data.shape) != 3 {
		return nil, fmt.Errorf("%s: %s has shape %v, want (time, lat, lon)", path, name, data.shape)
	}
	grid, err := readGrid(g, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !grid.Rectilinear() {
		return nil, fmt.Errorf("%s: %s is not on a rectilinear grid", path, name)
	}
	times, axis, err := readTime(g, data.dims[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cube := &Cube{
		Variable: domain.Variable{
			ShortName:    name,
			StandardName: attrString(data.attrs, "standard_name"),
			LongName:     attrString(data.attrs, "long_name"),
			Units:        attrString(data.attrs, "units"),
		},
		Lat:       grid.LatAxis,
		Lon:       grid.LonAxis,
		LatBounds: grid.LatBounds,
		LonBounds: grid.LonBounds,
		Times:     times,
		Axis:      axis,
		Data:      data.values,
	}
	if err := cube.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("cube loaded", "path", path, "variable", name, "time_steps", len(times))
	return cube, nil
}

// ReadClimatology reads back a series written by WriteClimatology.
func (r *Reader) ReadClimatology(ctx context.Context, path, name string) (domain.MonthlyClimatology, error) {
	var clim domain.MonthlyClimatology
	if err := ctx.Err(); err != nil {
		return clim, err
	}
	g, err := gonc.Open(path)
	if err != nil {
		return clim, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()

	if !hasVariable(g, name) {
		return clim, fmt.Errorf("%s: %w: %s", path, ErrVariableNotFound, name)
	}
	v, err := readVariable(g, name, true)
	if err != nil {
		return clim, fmt.Errorf("%s: %w", path, err)
	}
	if len(v.values) != domain.MonthsPerYear {
		return clim, fmt.Errorf("%s: %s has %d values, want %d", path, name, len(v.values), domain.MonthsPerYear)
	}
	clim.Variable = domain.Variable{
		ShortName:    name,
		StandardName: attrString(v.attrs, "standard_name"),
		LongName:     attrString(v.attrs, "long_name"),
		Units:        attrString(v.attrs, "units"),
	}
	copy(clim.Values[:], v.values)
	return clim, nil
}

// GlobalAttribute returns a global text attribute of a file.
func (r *Reader) GlobalAttribute(ctx context.Context, path, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g, err := gonc.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()
	return attrString(g.Attributes(), key), nil
}
