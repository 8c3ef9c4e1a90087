package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// FillValue marks missing float32 data in written files.
const FillValue float32 = 1e20

// Cube is a (time, lat, lon) field on a rectilinear grid, ready to be written.
type Cube struct {
	Variable   domain.Variable
	Lat        []float64
	Lon        []float64
	LatBounds  [][2]float64
	LonBounds  [][2]float64
	Times      []time.Time
	TimeBounds [][2]time.Time
	Axis       TimeAxis
	// Data is time-major, row-major within a step. NaN is written as FillValue.
	Data []float64
	// Attributes are written as global attributes.
	Attributes map[string]string
	// VariableAttributes are extra attributes of the data variable.
	VariableAttributes map[string]string
}

// Validate checks that every array matches the cube shape.
func (c *Cube) Validate() error {
	nt, ny, nx := len(c.Times), len(c.Lat), len(c.Lon)
	switch {
	case nt == 0 || ny == 0 || nx == 0:
		return fmt.Errorf("%s: empty cube %dx%dx%d", c.Variable.ShortName, nt, ny, nx)
	case len(c.Data) != nt*ny*nx:
		return fmt.Errorf("%s: %w: %d values for %dx%dx%d", c.Variable.ShortName, domain.ErrGridMismatch, len(c.Data), nt, ny, nx)
	case c.LatBounds != nil && len(c.LatBounds) != ny,
		c.LonBounds != nil && len(c.LonBounds) != nx,
		c.TimeBounds != nil && len(c.TimeBounds) != nt:
		return fmt.Errorf("%s: %w: bounds do not match coordinates", c.Variable.ShortName, domain.ErrGridMismatch)
	}
	return nil
}

// Writer creates NetCDF classic files.
type Writer struct {
	logger *slog.Logger
	source string
}

// NewWriter creates a Writer that names source in the history attribute.
func NewWriter(logger *slog.Logger, source string) *Writer {
	return &Writer{logger: logger, source: source}
}

func (w *Writer) history() string {
	return fmt.Sprintf("Created on %s by %s", domain.Now().Format(time.RFC3339), w.source)
}

// WriteClimatology writes a 12-month series along a month_number coordinate.
func (w *Writer) WriteClimatology(ctx context.Context, path string, clim domain.MonthlyClimatology, attrs map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := clim.Variable.ShortName
	h := cdf.NewHeader([]string{"month_number"}, []int{domain.MonthsPerYear})
	h.AddVariable("month_number", []string{"month_number"}, []int32{0})
	h.AddAttribute("month_number", "long_name", "month_number")
	h.AddAttribute("month_number", "units", "1")
	h.AddVariable(name, []string{"month_number"}, []float64{0})
	addVariableAttributes(h, name, clim.Variable)
	h.AddAttribute(name, "cell_methods", "time: mean within years time: mean over years")
	addGlobalAttributes(h, w.history(), attrs)
	h.Define()

	months := make([]int32, domain.MonthsPerYear)
	for m := range months {
		months[m] = int32(m + 1)
	}
	err := create(path, h, func(f *cdf.File) error {
		if err := writeAll(f, "month_number", months); err != nil {
			return err
		}
		return writeAll(f, name, clim.Slice())
	})
	if err != nil {
		return err
	}
	w.logger.Debug("climatology written", "path", path, "variable", name)
	return nil
}

// WriteCube writes a (time, lat, lon) variable with float64 coordinates
// and bounds and float32 data.
func (w *Writer) WriteCube(ctx context.Context, path string, c *Cube) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	nt, ny, nx := len(c.Times), len(c.Lat), len(c.Lon)
	name := c.Variable.ShortName

	h := cdf.NewHeader([]string{"time", "lat", "lon", "bnds"}, []int{nt, ny, nx, 2})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "standard_name", "time")
	h.AddAttribute("time", "long_name", "time")
	h.AddAttribute("time", "units", c.Axis.Units())
	h.AddAttribute("time", "calendar", string(c.Axis.Calendar()))
	h.AddAttribute("time", "axis", "T")
	if c.TimeBounds != nil {
		h.AddAttribute("time", "bounds", "time_bnds")
		h.AddVariable("time_bnds", []string{"time", "bnds"}, []float64{0})
	}
	addCoordinate(h, "lat", "latitude", "degrees_north", "Y", c.LatBounds != nil)
	addCoordinate(h, "lon", "longitude", "degrees_east", "X", c.LonBounds != nil)

	h.AddVariable(name, []string{"time", "lat", "lon"}, []float32{0})
	addVariableAttributes(h, name, c.Variable)
	h.AddAttribute(name, "_FillValue", []float32{FillValue})
	h.AddAttribute(name, "missing_value", []float32{FillValue})
	for _, k := range sortedKeys(c.VariableAttributes) {
		h.AddAttribute(name, k, c.VariableAttributes[k])
	}
	addGlobalAttributes(h, w.history(), c.Attributes)
	h.Define()

	times := make([]float64, nt)
	for i, t := range c.Times {
		times[i] = c.Axis.Encode(t)
	}
	data := make([]float32, len(c.Data))
	for i, v := range c.Data {
		if math.IsNaN(v) {
			data[i] = FillValue
		} else {
			data[i] = float32(v)
		}
	}

	err := create(path, h, func(f *cdf.File) error {
		if err := writeAll(f, "time", times); err != nil {
			return err
		}
		if c.TimeBounds != nil {
			tb := make([]float64, 0, 2*nt)
			for _, b := range c.TimeBounds {
				tb = append(tb, c.Axis.Encode(b[0]), c.Axis.Encode(b[1]))
			}
			if err := writeAll(f, "time_bnds", tb); err != nil {
				return err
			}
		}
		if err := writeCoordinate(f, "lat", c.Lat, c.LatBounds); err != nil {
			return err
		}
		if err := writeCoordinate(f, "lon", c.Lon, c.LonBounds); err != nil {
			return err
		}
		return writeAll(f, name, data)
	})
	if err != nil {
		return err
	}
	w.logger.Debug("cube written", "path", path, "variable", name, "time_steps", nt, "ny", ny, "nx", nx)
	return nil
}

// WriteArea writes a (lat, lon) cell-area field named areacello.
func (w *Writer) WriteArea(ctx context.Context, path string, lat, lon, area []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(area) != len(lat)*len(lon) {
		return fmt.Errorf("%w: %d area values for %dx%d grid", domain.ErrGridMismatch, len(area), len(lat), len(lon))
	}
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{len(lat), len(lon)})
	addCoordinate(h, "lat", "latitude", "degrees_north", "Y", false)
	addCoordinate(h, "lon", "longitude", "degrees_east", "X", false)
	h.AddVariable("areacello", []string{"lat", "lon"}, []float64{0})
	h.AddAttribute("areacello", "standard_name", "cell_area")
	h.AddAttribute("areacello", "units", "m2")
	addGlobalAttributes(h, w.history(), nil)
	h.Define()

	return create(path, h, func(f *cdf.File) error {
		if err := writeAll(f, "lat", lat); err != nil {
			return err
		}
		if err := writeAll(f, "lon", lon); err != nil {
			return err
		}
		return writeAll(f, "areacello", area)
	})
}

func addCoordinate(h *cdf.Header, name, standardName, units, axis string, bounds bool) {
	h.AddVariable(name, []string{name}, []float64{0})
	h.AddAttribute(name, "standard_name", standardName)
	h.AddAttribute(name, "long_name", standardName)
	h.AddAttribute(name, "units", units)
	h.AddAttribute(name, "axis", axis)
	if bounds {
		h.AddAttribute(name, "bounds", name+"_bnds")
		h.AddVariable(name+"_bnds", []string{name, "bnds"}, []float64{0})
	}
}

func addVariableAttributes(h *cdf.Header, name string, v domain.Variable) {
	if v.StandardName != "" {
		h.AddAttribute(name, "standard_name", v.StandardName)
	}
	if v.LongName != "" {
		h.AddAttribute(name, "long_name", v.LongName)
	}
	h.AddAttribute(name, "units", v.Units)
}

func addGlobalAttributes(h *cdf.Header, history string, attrs map[string]string) {
	h.AddAttribute("", "Conventions", "CF-1.7")
	for _, k := range sortedKeys(attrs) {
		if k == "Conventions" || k == "history" {
			continue
		}
		h.AddAttribute("", k, attrs[k])
	}
	h.AddAttribute("", "history", history)
}

func writeCoordinate(f *cdf.File, name string, values []float64, bounds [][2]float64) error {
	if err := writeAll(f, name, values); err != nil {
		return err
	}
	if bounds == nil {
		return nil
	}
	flat := make([]float64, 0, 2*len(bounds))
	for _, b := range bounds {
		flat = append(flat, b[0], b[1])
	}
	return writeAll(f, name+"_bnds", flat)
}

func writeAll(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// create writes the header and data and finalizes the record count,
// removing the file on failure.
func create(path string, h *cdf.Header, fill func(*cdf.File) error) (err error) {
	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := ff.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	// cdf.Create leaves numrecs at the streaming marker, which readers reject.
	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("update record count %s: %w", path, err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
