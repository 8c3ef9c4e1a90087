// Command validate checks the output tree of a drift run: every dataset has
// its climatologies and metric reports, the reports parse with the expected
// header, the climatologies hold twelve finite months, and the metrics agree
// with a fit recomputed from the climatology files.
//
// It reads the same RECIPE_FILE and environment overrides as seaicedrift.
//
// Usage:
//
//	RECIPE_FILE=data/mock/recipe.toml go run ./cmd/validate
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/seaice-drift/internal/adapter/netcdf"
	"github.com/couchcryptid/seaice-drift/internal/adapter/report"
	"github.com/couchcryptid/seaice-drift/internal/config"
	"github.com/couchcryptid/seaice-drift/internal/domain"
	"github.com/couchcryptid/seaice-drift/internal/pipeline"
)

// climFiles lists the climatologies saved per dataset and their units.
var climFiles = []domain.Variable{
	domain.SeaIceSpeed,
	domain.SeaIceConcentration,
	domain.SeaIceVolume,
}

var relationships = []string{pipeline.RelationshipConcentration, pipeline.RelationshipVolume}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// datasetOutput is what one dataset left on disk.
type datasetOutput struct {
	alias   string
	clims   map[string]domain.MonthlyClimatology
	metrics map[string]report.Metric
}

func (d *datasetOutput) isReference() bool { return d.alias == domain.ReferenceAlias }

func main() {
	_ = godotenv.Load()
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	aliases, err := domain.ResolveAliases(cfg.Datasets, cfg.ReferenceDataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: resolve aliases: %v\n", err)
		return 1
	}

	fmt.Println("=== Sea-Ice Drift Output Validation ===")
	fmt.Printf("Work dir: %s\n", cfg.WorkDir)
	fmt.Println()

	reader := netcdf.NewReader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	layout := validateLayout(cfg, aliases)
	outputs, reports := validateReports(cfg.WorkDir, aliases)
	climatologies := validateClimatologies(context.Background(), reader, cfg.WorkDir, outputs)

	phases := []*phase{
		layout,
		reports,
		climatologies,
		validateMetrics(outputs),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Datasets: %d in recipe, %d with output\n", len(aliases), len(outputs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Output Layout ──
// Every dataset has its files, and non-reference datasets their figure.

func validateLayout(cfg *config.Config, aliases []string) *phase {
	p := &phase{name: "Phase 1: Output Layout (files present)"}
	for _, alias := range aliases {
		dir := filepath.Join(cfg.WorkDir, alias)
		var want []string
		for _, v := range climFiles {
			want = append(want, filepath.Join(dir, v.ShortName+"_clim.nc"))
		}
		for _, rel := range relationships {
			want = append(want, filepath.Join(dir, "metric_drift_"+rel+".csv"))
		}
		if cfg.WritePlots && alias != domain.ReferenceAlias {
			want = append(want, filepath.Join(cfg.PlotDir, alias, "drift-strength."+cfg.OutputFileType))
		}
		for _, path := range want {
			info, err := os.Stat(path)
			switch {
			case err != nil:
				p.errorf("%s: missing %s", alias, path)
			case info.Size() == 0:
				p.errorf("%s: %s is empty", alias, path)
			}
		}
	}
	return p
}

// ── Phase 2: Metric Reports ──
// Reports parse; the reference leaves the comparison columns empty.

func validateReports(workDir string, aliases []string) ([]*datasetOutput, *phase) {
	p := &phase{name: "Phase 2: Metric Reports (CSV)"}
	var outputs []*datasetOutput
	for _, alias := range aliases {
		out := &datasetOutput{alias: alias, metrics: map[string]report.Metric{}, clims: map[string]domain.MonthlyClimatology{}}
		ok := true
		for _, rel := range relationships {
			m, err := report.ReadMetric(filepath.Join(workDir, alias, "metric_drift_"+rel+".csv"))
			if err != nil {
				p.errorf("%s %s: %v", alias, rel, err)
				ok = false
				continue
			}
			switch {
			case out.isReference() && m.Comparison != nil:
				p.errorf("%s %s: reference row has slope_ratio=%v error=%v (should be empty)", alias, rel, m.Comparison.SlopeRatio, m.Comparison.Error)
			case !out.isReference() && m.Comparison == nil:
				p.errorf("%s %s: slope_ratio and error are empty", alias, rel)
			}
			if math.IsNaN(m.Slope) || math.IsInf(m.Slope, 0) {
				p.errorf("%s %s: slope is %v", alias, rel, m.Slope)
			}
			out.metrics[rel] = m
		}
		if ok {
			outputs = append(outputs, out)
		}
	}
	return outputs, p
}

// ── Phase 3: Climatologies ──
// Twelve finite months in the expected units.

func validateClimatologies(ctx context.Context, r *netcdf.Reader, workDir string, outputs []*datasetOutput) *phase {
	p := &phase{name: "Phase 3: Climatologies (NetCDF)"}
	for _, out := range outputs {
		for _, v := range climFiles {
			path := filepath.Join(workDir, out.alias, v.ShortName+"_clim.nc")
			clim, err := r.ReadClimatology(ctx, path, v.ShortName)
			if err != nil {
				p.errorf("%s: %v", out.alias, err)
				continue
			}
			if !clim.Finite() {
				p.errorf("%s %s: non-finite months %v", out.alias, v.ShortName, clim.Slice())
			}
			if clim.Variable.Units != v.Units {
				p.errorf("%s %s: units %q, want %q", out.alias, v.ShortName, clim.Variable.Units, v.Units)
			}
			out.clims[v.ShortName] = clim
		}
	}
	return p
}

// ── Phase 4: Metric Consistency ──
// Fits recomputed from the climatology files match the reports.

func validateMetrics(outputs []*datasetOutput) *phase {
	p := &phase{name: "Phase 4: Metric Consistency (refit)"}
	var reference *datasetOutput
	for _, out := range outputs {
		if out.isReference() {
			reference = out
		}
	}
	if reference == nil {
		p.errorf("no reference output to compare against")
		return p
	}

	for _, out := range outputs {
		for _, rel := range relationships {
			x, ok := out.clims[rel]
			y, okY := out.clims[domain.SeaIceSpeed.ShortName]
			if !ok || !okY {
				continue
			}
			fit, err := domain.Fit(x, y)
			if err != nil {
				p.errorf("%s %s: refit: %v", out.alias, rel, err)
				continue
			}
			m := out.metrics[rel]
			if !floatEq(fit.Slope, m.Slope) || !floatEq(fit.Intercept, m.Intercept) {
				p.errorf("%s %s: report slope=%g intercept=%g, refit slope=%g intercept=%g",
					out.alias, rel, m.Slope, m.Intercept, fit.Slope, fit.Intercept)
			}
			if out.isReference() || m.Comparison == nil {
				continue
			}
			checkComparison(p, out, reference, rel, fit)
		}
	}
	return p
}

func checkComparison(p *phase, out, reference *datasetOutput, rel string, fit domain.RegressionResult) {
	xRef, ok := reference.clims[rel]
	yRef, okY := reference.clims[domain.SeaIceSpeed.ShortName]
	if !ok || !okY {
		return
	}
	refFit, err := domain.Fit(xRef, yRef)
	if err != nil {
		p.errorf("reference %s: refit: %v", rel, err)
		return
	}
	want, err := domain.Compare(fit, refFit, out.clims[rel], xRef, out.clims[domain.SeaIceSpeed.ShortName], yRef)
	if err != nil {
		p.errorf("%s %s: compare: %v", out.alias, rel, err)
		return
	}
	got := out.metrics[rel].Comparison
	if !floatEq(got.SlopeRatio, want.SlopeRatio) {
		p.errorf("%s %s: slope_ratio %g, recomputed %g", out.alias, rel, got.SlopeRatio, want.SlopeRatio)
	}
	if !floatEq(got.Error, want.Error) {
		p.errorf("%s %s: error %g, recomputed %g", out.alias, rel, got.Error, want.Error)
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
