package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

const datasetsTOML = `
[[datasets]]
project = "OBS"
dataset = "PIOMAS"
start_year = 1979
end_year = 2005
[datasets.files]
siconc = "obs/siconc.nc"
sithick = "obs/sithick.nc"
sispeed = "/data/obs/sispeed.nc"

[[datasets]]
project = "CMIP6"
dataset = "MPI-ESM1-2-LR"
exp = "historical"
ensemble = "r1i1p1f1"
start_year = 1979
end_year = 2005
areacello = "model/areacello.nc"
[datasets.files]
siconc = "model/siconc.nc"
sithick = "model/sithick.nc"
sispeed = "model/sispeed.nc"
`

func writeRecipe(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("RECIPE_FILE", path)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeRecipe(t, `
reference_dataset = "PIOMAS"
latitude_threshold = 80.0
`+datasetsTOML)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, path, cfg.RecipeFile)
	assert.Equal(t, "PIOMAS", cfg.ReferenceDataset)
	assert.True(t, cfg.WritePlots)
	assert.Equal(t, "work", cfg.WorkDir)
	assert.Equal(t, "plots", cfg.PlotDir)
	assert.Equal(t, "png", cfg.OutputFileType)
	assert.Equal(t, domain.BoundsGuess, cfg.AreaBounds)
	assert.Equal(t, filepath.Join("work", "metrics.prom"), cfg.MetricsFile)
	assert.Equal(t, 16, cfg.MaskCacheSize)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, domain.LatitudeThreshold(80), cfg.Region)

	require.Len(t, cfg.Datasets, 2)
	dir := filepath.Dir(path)
	obs := cfg.Datasets[0]
	assert.Equal(t, "OBS", obs.Project)
	assert.Empty(t, obs.AreaFile)
	assert.Equal(t, filepath.Join(dir, "obs/siconc.nc"), obs.Files["siconc"])
	assert.Equal(t, "/data/obs/sispeed.nc", obs.Files["sispeed"])

	model := cfg.Datasets[1]
	assert.Equal(t, "historical", model.Experiment)
	assert.Equal(t, "r1i1p1f1", model.Ensemble)
	assert.Equal(t, filepath.Join(dir, "model/areacello.nc"), model.AreaFile)
}

func TestLoad_RecipeValues(t *testing.T) {
	writeRecipe(t, `
reference_dataset = "PIOMAS"
write_plots = false
work_dir = "/out/work"
plot_dir = "/out/plots"
output_file_type = "SVG"
area_bounds = "explicit"

[region]
name = "square"
polygon = [[-10.0, -10.0], [10.0, -10.0], [10.0, 10.0], [-10.0, 10.0]]
`+datasetsTOML)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.WritePlots)
	assert.Equal(t, "/out/work", cfg.WorkDir)
	assert.Equal(t, "/out/plots", cfg.PlotDir)
	assert.Equal(t, "svg", cfg.OutputFileType)
	assert.Equal(t, domain.BoundsExplicit, cfg.AreaBounds)
	assert.Equal(t, "/out/work/metrics.prom", cfg.MetricsFile)
	assert.Equal(t, domain.RegionPolygon, cfg.Region.Kind)
	assert.Equal(t, "square", cfg.Region.Name)
	assert.Equal(t, []domain.LonLat{{Lon: -10, Lat: -10}, {Lon: 10, Lat: -10}, {Lon: 10, Lat: 10}, {Lon: -10, Lat: 10}}, cfg.Region.Vertices)
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeRecipe(t, `
reference_dataset = "PIOMAS"
write_plots = false
latitude_threshold = 80.0
`+datasetsTOML)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("WORK_DIR", "/tmp/w")
	t.Setenv("PLOT_DIR", "/tmp/p")
	t.Setenv("OUTPUT_FILE_TYPE", "pdf")
	t.Setenv("WRITE_PLOTS", "true")
	t.Setenv("AREA_BOUNDS", "explicit")
	t.Setenv("METRICS_FILE", "/tmp/m.prom")
	t.Setenv("MASK_CACHE_SIZE", "4")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/tmp/w", cfg.WorkDir)
	assert.Equal(t, "/tmp/p", cfg.PlotDir)
	assert.Equal(t, "pdf", cfg.OutputFileType)
	assert.True(t, cfg.WritePlots)
	assert.Equal(t, domain.BoundsExplicit, cfg.AreaBounds)
	assert.Equal(t, "/tmp/m.prom", cfg.MetricsFile)
	assert.Equal(t, 4, cfg.MaskCacheSize)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_DefaultSCICEXRegion(t *testing.T) {
	writeRecipe(t, `
reference_dataset = "PIOMAS"
[region]
name = "SCICEX"
`+datasetsTOML)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.SCICEXName, cfg.Region.Name)
	assert.Equal(t, domain.SCICEXVertices, cfg.Region.Vertices)
}

func TestLoad_InvalidMaskCacheSizeFallsBack(t *testing.T) {
	writeRecipe(t, `
reference_dataset = "PIOMAS"
latitude_threshold = 80.0
`+datasetsTOML)
	t.Setenv("MASK_CACHE_SIZE", "-1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaskCacheSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		recipe string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "missing reference",
			recipe: "latitude_threshold = 80.0\n" + datasetsTOML,
			errMsg: "reference_dataset is required",
		},
		{
			name:   "no region",
			recipe: "reference_dataset = \"PIOMAS\"\n" + datasetsTOML,
			errMsg: "one of latitude_threshold or region is required",
		},
		{
			name:   "both region kinds",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n[region]\nname = \"SCICEX\"\n" + datasetsTOML,
			errMsg: "mutually exclusive",
		},
		{
			name:   "bad vertex",
			recipe: "reference_dataset = \"PIOMAS\"\n[region]\nname = \"x\"\npolygon = [[1.0, 2.0, 3.0], [0.0, 0.0], [1.0, 1.0]]\n" + datasetsTOML,
			errMsg: "region.polygon[0]",
		},
		{
			name:   "named region without polygon",
			recipe: "reference_dataset = \"PIOMAS\"\n[region]\nname = \"barents\"\n" + datasetsTOML,
			errMsg: `region "barents" has no polygon`,
		},
		{
			name:   "threshold out of range",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 95.0\n" + datasetsTOML,
			errMsg: "outside [-90, 90)",
		},
		{
			name:   "no datasets",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n",
			errMsg: "recipe lists no datasets",
		},
		{
			name: "missing file",
			recipe: `reference_dataset = "PIOMAS"
latitude_threshold = 80.0
[[datasets]]
project = "OBS"
dataset = "PIOMAS"
start_year = 1979
end_year = 2005
[datasets.files]
siconc = "a.nc"
sithick = "b.nc"
`,
			errMsg: "files.sispeed is required",
		},
		{
			name: "model without ensemble",
			recipe: `reference_dataset = "PIOMAS"
latitude_threshold = 80.0
[[datasets]]
project = "CMIP6"
dataset = "M"
exp = "historical"
start_year = 1979
end_year = 2005
[datasets.files]
siconc = "a.nc"
sithick = "b.nc"
sispeed = "c.nc"
`,
			errMsg: "exp and ensemble are required",
		},
		{
			name:   "unknown key",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_treshold = 80.0\n" + datasetsTOML,
			errMsg: "unknown key latitude_treshold",
		},
		{
			name:   "bad file type",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n" + datasetsTOML,
			env:    map[string]string{"OUTPUT_FILE_TYPE": "bmp"},
			errMsg: "unsupported OUTPUT_FILE_TYPE",
		},
		{
			name:   "bad bounds mode",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n" + datasetsTOML,
			env:    map[string]string{"AREA_BOUNDS": "maybe"},
			errMsg: "invalid AREA_BOUNDS",
		},
		{
			name:   "bad shutdown timeout",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n" + datasetsTOML,
			env:    map[string]string{"SHUTDOWN_TIMEOUT": "banana"},
			errMsg: "invalid SHUTDOWN_TIMEOUT",
		},
		{
			name:   "negative shutdown timeout",
			recipe: "reference_dataset = \"PIOMAS\"\nlatitude_threshold = 80.0\n" + datasetsTOML,
			env:    map[string]string{"SHUTDOWN_TIMEOUT": "-1s"},
			errMsg: "invalid SHUTDOWN_TIMEOUT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeRecipe(t, tt.recipe)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingRecipe(t *testing.T) {
	t.Setenv("RECIPE_FILE", filepath.Join(t.TempDir(), "absent.toml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode recipe")
}
