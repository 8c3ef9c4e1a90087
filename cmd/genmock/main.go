// Command genmock writes a synthetic reference dataset, a synthetic model
// dataset and a recipe that runs the drift diagnostic over them. Values come
// from a seeded generator and file history uses a fixed clock, so repeated
// runs produce identical files.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
//	RECIPE_FILE=data/mock/recipe.toml go run ./cmd/seaicedrift
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/seaice-drift/internal/adapter/netcdf"
	"github.com/couchcryptid/seaice-drift/internal/config"
	"github.com/couchcryptid/seaice-drift/internal/domain"
)

const earthRadius = 6371e3

var (
	lats = []float64{78, 80, 82, 84, 86, 88}
	lons = []float64{0, 30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330}
)

// mockDataset describes one synthetic dataset. The seasonal cycle of
// concentration and thickness peaks in March; drift speed falls with both.
type mockDataset struct {
	info config.DatasetRecipe
	// driftSlope is the drift response in km/day per unit of concentration.
	driftSlope float64
	concUnits  string
	speedUnits string
	withArea   bool
	seed       uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/mock", "output directory for NetCDF files and recipe.toml")
	startYear := flag.Int("start", 2000, "first year")
	endYear := flag.Int("end", 2004, "last year")
	flag.Parse()

	if *endYear < *startYear {
		return fmt.Errorf("-end %d before -start %d", *endYear, *startYear)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	// Fixed clock for reproducible history attributes.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	datasets := []mockDataset{
		{
			info: config.DatasetRecipe{
				Project: domain.ObservationProject, Dataset: "PIOMAS",
				StartYear: *startYear, EndYear: *endYear,
			},
			driftSlope: -10,
			concUnits:  "1",
			speedUnits: "km day-1",
			seed:       1,
		},
		{
			info: config.DatasetRecipe{
				Project: "CMIP6", Dataset: "MOCK-ESM", Experiment: "historical", Ensemble: "r1i1p1f1",
				StartYear: *startYear, EndYear: *endYear,
			},
			driftSlope: -14,
			concUnits:  "%",
			speedUnits: "m s-1",
			withArea:   true,
			seed:       2,
		},
	}

	writer := netcdf.NewWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), "seaice-drift genmock")
	ctx := context.Background()
	recipe := config.Recipe{
		ReferenceDataset:  "PIOMAS",
		WorkDir:           "work",
		PlotDir:           "plots",
		OutputFileType:    "png",
		LatitudeThreshold: ptr(80.0),
		WritePlots:        ptr(true),
	}

	times := monthlyTimes(*startYear, *endYear)
	for _, d := range datasets {
		info, err := writeDataset(ctx, writer, *outDir, d, times)
		if err != nil {
			return fmt.Errorf("writing %s: %w", d.info.Dataset, err)
		}
		recipe.Datasets = append(recipe.Datasets, info)
		log.Printf("%s: %d time steps on %dx%d grid", d.info.Dataset, len(times), len(lats), len(lons))
	}

	path := filepath.Join(*outDir, "recipe.toml")
	if err := writeRecipe(path, recipe); err != nil {
		return fmt.Errorf("writing recipe: %w", err)
	}
	log.Printf("wrote recipe: %s", path)
	return nil
}

func writeDataset(ctx context.Context, w *netcdf.Writer, outDir string, d mockDataset, times []time.Time) (config.DatasetRecipe, error) {
	rng := rand.New(rand.NewPCG(d.seed, 0x5eace))
	n := len(times) * len(lats) * len(lons)
	conc := make([]float64, 0, n)
	thick := make([]float64, 0, n)
	speed := make([]float64, 0, n)

	for _, t := range times {
		phase := 2 * math.Pi * float64(t.Month()-time.March) / 12
		for _, lat := range lats {
			// more ice and slower drift towards the pole
			poleward := (lat - lats[0]) / (lats[len(lats)-1] - lats[0])
			for range lons {
				c := math.Min(1, 0.75+0.15*math.Cos(phase)+0.08*poleward+0.02*rng.NormFloat64())
				h := math.Max(0.1, 1.8+0.7*math.Cos(phase)+0.6*poleward+0.05*rng.NormFloat64())
				v := math.Max(0.5, 16+d.driftSlope*c+0.3*rng.NormFloat64())
				conc = append(conc, c)
				thick = append(thick, h)
				speed = append(speed, v)
			}
		}
	}
	if d.concUnits == "%" {
		for i := range conc {
			conc[i] *= 100
		}
	}
	if d.speedUnits == "m s-1" {
		for i := range speed {
			speed[i] *= 1000.0 / 86400
		}
	}

	info := d.info
	info.Files = map[string]string{}
	fields := []struct {
		v    domain.Variable
		data []float64
	}{
		{domain.SeaIceConcentration.WithUnits(d.concUnits), conc},
		{domain.SeaIceThickness, thick},
		{domain.SeaIceSpeed.WithUnits(d.speedUnits), speed},
	}
	for _, f := range fields {
		name := fmt.Sprintf("%s_%s_%d-%d.nc", f.v.ShortName, info.Dataset, info.StartYear, info.EndYear)
		cube := &netcdf.Cube{
			Variable:   f.v,
			Lat:        lats,
			Lon:        lons,
			LatBounds:  mustBounds(lats, true),
			LonBounds:  mustBounds(lons, false),
			Times:      times,
			TimeBounds: monthBounds(times),
			Axis:       netcdf.MustTimeAxis("days since 1850-01-01", string(netcdf.CalendarNoLeap)),
			Data:       f.data,
			Attributes: map[string]string{"source_id": info.Dataset, "experiment_id": info.Experiment},
		}
		if err := w.WriteCube(ctx, filepath.Join(outDir, name), cube); err != nil {
			return info, err
		}
		info.Files[f.v.ShortName] = name
	}

	if d.withArea {
		name := fmt.Sprintf("areacello_%s.nc", info.Dataset)
		if err := w.WriteArea(ctx, filepath.Join(outDir, name), lats, lons, cellAreas()); err != nil {
			return info, err
		}
		info.Areacello = name
	}
	return info, nil
}

// cellAreas returns spherical cell areas in m2 for the mock grid.
func cellAreas() []float64 {
	latB, lonB := mustBounds(lats, true), mustBounds(lons, false)
	out := make([]float64, 0, len(lats)*len(lons))
	for _, lb := range latB {
		band := math.Sin(lb[1]*math.Pi/180) - math.Sin(lb[0]*math.Pi/180)
		for _, ob := range lonB {
			out = append(out, earthRadius*earthRadius*band*(ob[1]-ob[0])*math.Pi/180)
		}
	}
	return out
}

func monthlyTimes(start, end int) []time.Time {
	var out []time.Time
	for y := start; y <= end; y++ {
		for m := time.January; m <= time.December; m++ {
			out = append(out, time.Date(y, m, 15, 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}

func monthBounds(times []time.Time) [][2]time.Time {
	out := make([][2]time.Time, len(times))
	for i, t := range times {
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		out[i] = [2]time.Time{first, first.AddDate(0, 1, 0)}
	}
	return out
}

func mustBounds(centres []float64, latitude bool) [][2]float64 {
	b, err := domain.GuessBounds(centres, latitude)
	if err != nil {
		panic(err)
	}
	return b
}

func writeRecipe(path string, r config.Recipe) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ptr[T any](v T) *T { return &v }
