// Package cmorize reformats ERA5 monthly reanalysis files into CMOR
// convention output.
package cmorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/seaice-drift/internal/adapter/netcdf"
	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// ErrUnknownVariable reports a short name with no configuration or no CMOR definition.
var ErrUnknownVariable = errors.New("no CMOR definition")

// CubeReader loads a raw variable.
type CubeReader interface {
	LoadCube(ctx context.Context, path, name string) (*netcdf.Cube, error)
}

// CubeWriter saves a CMORized variable.
type CubeWriter interface {
	WriteCube(ctx context.Context, path string, c *netcdf.Cube) error
}

// CMORizer converts every configured variable of an input directory.
type CMORizer struct {
	cfg    *Config
	reader CubeReader
	writer CubeWriter
	logger *slog.Logger
}

// New creates a CMORizer.
func New(cfg *Config, reader CubeReader, writer CubeWriter, logger *slog.Logger) *CMORizer {
	return &CMORizer{cfg: cfg, reader: reader, writer: writer, logger: logger}
}

// Run converts each variable's matching files in sorted order and returns
// the written paths. The first failure stops the run.
func (c *CMORizer) Run(ctx context.Context, inDir, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string
	for _, short := range c.cfg.ShortNames() {
		v := c.cfg.Variables[short]
		matches, err := filepath.Glob(filepath.Join(inDir, v.File))
		if err != nil {
			return written, fmt.Errorf("variables.%s: bad file pattern %q: %w", short, v.File, err)
		}
		if len(matches) == 0 {
			c.logger.Warn("no input files", "variable", short, "pattern", v.File)
		}
		sort.Strings(matches)
		for _, in := range matches {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			out, err := c.Extract(ctx, in, short, outDir)
			if err != nil {
				return written, err
			}
			written = append(written, out)
		}
		c.logger.Info("variable cmorized", "variable", short, "files", len(matches))
	}
	return written, nil
}

// Extract converts one input file and returns the output path.
func (c *CMORizer) Extract(ctx context.Context, inFile, short, outDir string) (string, error) {
	v, configured := c.cfg.Variables[short]
	def, defined := Definition(short)
	if !configured || !defined {
		return "", fmt.Errorf("cmorize %s: %w", short, ErrUnknownVariable)
	}
	c.logger.Info("cmorizing variable", "variable", short, "input", inFile)

	cube, err := c.reader.LoadCube(ctx, inFile, v.Raw)
	if err != nil {
		return "", fmt.Errorf("cmorize %s: %w", short, err)
	}
	if err := Transform(cube, def); err != nil {
		return "", fmt.Errorf("cmorize %s from %s: %w", short, inFile, err)
	}
	cube.Attributes = GlobalAttributes(c.cfg.Attributes, v.MIP, domain.Now())

	out := filepath.Join(outDir, FileName(c.cfg.Attributes, v.MIP, short, cube.Times))
	c.logger.Info("saving cube",
		"variable", short,
		"path", out,
		"shape", fmt.Sprintf("%dx%dx%d", len(cube.Times), len(cube.Lat), len(cube.Lon)),
		"expected_size_gb", roundTenth(float64(len(cube.Data))*4/(1<<30)),
	)
	if err := c.writer.WriteCube(ctx, out, cube); err != nil {
		return "", fmt.Errorf("cmorize %s: %w", short, err)
	}
	return out, nil
}

// Transform applies the CMOR fixes to a raw cube in place: names, float32
// precision, increasing latitude, guessed lat/lon bounds, monthly time
// bounds and the target unit.
func Transform(c *netcdf.Cube, def domain.Variable) error {
	if err := c.Validate(); err != nil {
		return err
	}
	raw := c.Variable.Units

	for i, v := range c.Data {
		c.Data[i] = float64(float32(v))
	}

	if len(c.Lat) > 1 && c.Lat[0] > c.Lat[len(c.Lat)-1] {
		flipLatitude(c)
	}
	var err error
	if c.LatBounds, err = domain.GuessBounds(c.Lat, true); err != nil {
		return fmt.Errorf("latitude bounds: %w", err)
	}
	if c.LonBounds, err = domain.GuessBounds(c.Lon, false); err != nil {
		return fmt.Errorf("longitude bounds: %w", err)
	}
	c.TimeBounds = MonthlyBounds(c.Times)

	if err := domain.ConvertUnits(c.Data, raw, def.Units); err != nil {
		return err
	}
	c.Variable = def
	return nil
}

// flipLatitude reverses the latitude axis of the coordinate and data.
func flipLatitude(c *netcdf.Cube) {
	ny, nx := len(c.Lat), len(c.Lon)
	for j := 0; j < ny/2; j++ {
		c.Lat[j], c.Lat[ny-1-j] = c.Lat[ny-1-j], c.Lat[j]
	}
	row := make([]float64, nx)
	for t := range c.Times {
		base := t * ny * nx
		for j := 0; j < ny/2; j++ {
			a := c.Data[base+j*nx : base+(j+1)*nx]
			b := c.Data[base+(ny-1-j)*nx : base+(ny-j)*nx]
			copy(row, a)
			copy(a, b)
			copy(b, row)
		}
	}
}

// MonthlyBounds spans each time step from the start of its month to the
// start of the next.
func MonthlyBounds(times []time.Time) [][2]time.Time {
	out := make([][2]time.Time, len(times))
	for i, t := range times {
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		out[i] = [2]time.Time{start, start.AddDate(0, 1, 0)}
	}
	return out
}

// GlobalAttributes builds the global attributes of an output file.
func GlobalAttributes(a Attributes, mip string, now time.Time) map[string]string {
	return map[string]string{
		"title":          a.DatasetID + " data reformatted for seaice-drift",
		"version":        a.Version,
		"tier":           strconv.Itoa(a.Tier),
		"source":         a.Source,
		"reference":      a.Reference,
		"comment":        strings.ReplaceAll(a.Comment, "{year}", strconv.Itoa(now.Year())),
		"user":           sharedcfg.EnvOrDefault("USER", "unknown user"),
		"host":           sharedcfg.EnvOrDefault("HOSTNAME", "unknown host"),
		"project_id":     a.ProjectID,
		"modeling_realm": a.ModelingRealm,
		"mip":            mip,
	}
}

// FileName renders
// {project}_{dataset}_{realm}_{version}_{mip}_{short}_{YYYYMM}-{YYYYMM}.nc.
func FileName(a Attributes, mip, short string, times []time.Time) string {
	span := "unknown"
	if len(times) > 0 {
		span = times[0].Format("200601") + "-" + times[len(times)-1].Format("200601")
	}
	parts := []string{a.ProjectID, a.DatasetID, a.ModelingRealm, a.Version, mip, short, span}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, " ", "-")
	}
	return strings.Join(parts, "_") + ".nc"
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
