package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// Config holds the run settings: the decoded recipe plus environment overrides.
type Config struct {
	LogLevel    string
	LogFormat   string
	RecipeFile  string
	MetricsFile string

	// HTTPAddr enables the status server when set.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	ReferenceDataset string
	WritePlots       bool
	WorkDir          string
	PlotDir          string
	OutputFileType   string
	AreaBounds       domain.BoundsMode
	MaskCacheSize    int

	Region   domain.Region
	Datasets []domain.DatasetInfo
}

var supportedFileTypes = map[string]bool{
	"png": true, "svg": true, "pdf": true, "eps": true, "jpg": true, "jpeg": true, "tif": true, "tiff": true,
}

// Recipe is the TOML run description.
type Recipe struct {
	ReferenceDataset  string          `toml:"reference_dataset"`
	WritePlots        *bool           `toml:"write_plots"`
	WorkDir           string          `toml:"work_dir"`
	PlotDir           string          `toml:"plot_dir"`
	OutputFileType    string          `toml:"output_file_type"`
	AreaBounds        string          `toml:"area_bounds"`
	LatitudeThreshold *float64        `toml:"latitude_threshold"`
	Region            *RegionRecipe   `toml:"region"`
	Datasets          []DatasetRecipe `toml:"datasets"`
}

// RegionRecipe names a polygon; an empty polygon with the SCICEX name
// selects the built-in SCICEX box.
type RegionRecipe struct {
	Name    string      `toml:"name"`
	Polygon [][]float64 `toml:"polygon"`
}

// DatasetRecipe is one [[datasets]] table.
type DatasetRecipe struct {
	Project    string            `toml:"project"`
	Dataset    string            `toml:"dataset"`
	Experiment string            `toml:"exp"`
	Ensemble   string            `toml:"ensemble"`
	StartYear  int               `toml:"start_year"`
	EndYear    int               `toml:"end_year"`
	Areacello  string            `toml:"areacello"`
	Files      map[string]string `toml:"files"`
}

// RequiredVariables must have a file in every dataset.
var RequiredVariables = []string{"siconc", "sithick", "sispeed"}

// Load reads configuration from environment variables and the recipe named
// by RECIPE_FILE, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	recipeFile := sharedcfg.EnvOrDefault("RECIPE_FILE", "recipe.toml")
	recipe, err := LoadRecipe(recipeFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		RecipeFile:       recipeFile,
		HTTPAddr:         os.Getenv("HTTP_ADDR"),
		ShutdownTimeout:  shutdownTimeout,
		ReferenceDataset: recipe.ReferenceDataset,
		WorkDir:          sharedcfg.EnvOrDefault("WORK_DIR", defaultString(recipe.WorkDir, "work")),
		PlotDir:          sharedcfg.EnvOrDefault("PLOT_DIR", defaultString(recipe.PlotDir, "plots")),
		OutputFileType:   strings.ToLower(sharedcfg.EnvOrDefault("OUTPUT_FILE_TYPE", defaultString(recipe.OutputFileType, "png"))),
		WritePlots:       true,
		MaskCacheSize:    parseMaskCacheSize(),
	}
	if recipe.WritePlots != nil {
		cfg.WritePlots = *recipe.WritePlots
	}
	if v := os.Getenv("WRITE_PLOTS"); v != "" {
		cfg.WritePlots = v == "true"
	}
	cfg.MetricsFile = sharedcfg.EnvOrDefault("METRICS_FILE", filepath.Join(cfg.WorkDir, "metrics.prom"))

	cfg.AreaBounds, err = domain.ParseBoundsMode(sharedcfg.EnvOrDefault("AREA_BOUNDS", recipe.AreaBounds))
	if err != nil {
		return nil, fmt.Errorf("invalid AREA_BOUNDS: %w", err)
	}

	if cfg.Region, err = recipe.region(); err != nil {
		return nil, err
	}
	if cfg.Datasets, err = recipe.datasets(filepath.Dir(recipeFile)); err != nil {
		return nil, err
	}

	if cfg.ReferenceDataset == "" {
		return nil, errors.New("reference_dataset is required")
	}
	if !supportedFileTypes[cfg.OutputFileType] {
		return nil, fmt.Errorf("unsupported OUTPUT_FILE_TYPE %q", cfg.OutputFileType)
	}
	return cfg, nil
}

// LoadRecipe decodes a recipe file and rejects unknown keys.
func LoadRecipe(path string) (*Recipe, error) {
	var r Recipe
	md, err := toml.DecodeFile(path, &r)
	if err != nil {
		return nil, fmt.Errorf("decode recipe %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("recipe %s: unknown key %s", path, undecoded[0])
	}
	return &r, nil
}

func (r *Recipe) region() (domain.Region, error) {
	switch {
	case r.LatitudeThreshold != nil && r.Region != nil:
		return domain.Region{}, errors.New("latitude_threshold and region are mutually exclusive")
	case r.LatitudeThreshold != nil:
		region := domain.LatitudeThreshold(*r.LatitudeThreshold)
		return region, region.Validate()
	case r.Region != nil:
		name := defaultString(r.Region.Name, domain.SCICEXName)
		if len(r.Region.Polygon) == 0 {
			if name != domain.SCICEXName {
				return domain.Region{}, fmt.Errorf("region %q has no polygon", name)
			}
			return domain.PolygonRegion(name, domain.SCICEXVertices), nil
		}
		vertices := make([]domain.LonLat, len(r.Region.Polygon))
		for i, pair := range r.Region.Polygon {
			if len(pair) != 2 {
				return domain.Region{}, fmt.Errorf("region.polygon[%d]: want [lon, lat], got %d values", i, len(pair))
			}
			vertices[i] = domain.LonLat{Lon: pair[0], Lat: pair[1]}
		}
		region := domain.PolygonRegion(name, vertices)
		return region, region.Validate()
	default:
		return domain.Region{}, errors.New("one of latitude_threshold or region is required")
	}
}

// datasets converts the recipe tables, resolving relative file paths
// against the recipe directory.
func (r *Recipe) datasets(baseDir string) ([]domain.DatasetInfo, error) {
	if len(r.Datasets) == 0 {
		return nil, errors.New("recipe lists no datasets")
	}
	out := make([]domain.DatasetInfo, len(r.Datasets))
	for i, d := range r.Datasets {
		if d.Project == "" || d.Dataset == "" {
			return nil, fmt.Errorf("datasets[%d]: project and dataset are required", i)
		}
		if d.EndYear < d.StartYear {
			return nil, fmt.Errorf("datasets[%d] %s: end_year %d before start_year %d", i, d.Dataset, d.EndYear, d.StartYear)
		}
		if d.Project != domain.ObservationProject && (d.Experiment == "" || d.Ensemble == "") {
			return nil, fmt.Errorf("datasets[%d] %s: exp and ensemble are required for project %s", i, d.Dataset, d.Project)
		}
		for _, v := range RequiredVariables {
			if d.Files[v] == "" {
				return nil, fmt.Errorf("datasets[%d] %s: files.%s is required", i, d.Dataset, v)
			}
		}
		files := make(map[string]string, len(d.Files))
		for v, path := range d.Files {
			files[v] = resolve(baseDir, path)
		}
		out[i] = domain.DatasetInfo{
			Project:    d.Project,
			Dataset:    d.Dataset,
			Experiment: d.Experiment,
			Ensemble:   d.Ensemble,
			StartYear:  d.StartYear,
			EndYear:    d.EndYear,
			AreaFile:   resolve(baseDir, d.Areacello),
			Files:      files,
		}
	}
	return out, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func parseMaskCacheSize() int {
	if s := os.Getenv("MASK_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 16
}

