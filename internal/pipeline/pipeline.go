package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/seaice-drift/internal/domain"
	"github.com/couchcryptid/seaice-drift/internal/observability"
)

// FieldLoader reads gridded fields and cell areas.
type FieldLoader interface {
	LoadField(ctx context.Context, path string, v domain.Variable) (*domain.GriddedField, error)
	LoadArea(ctx context.Context, path string) ([]float64, error)
}

// ClimatologyWriter persists a monthly climatology.
type ClimatologyWriter interface {
	WriteClimatology(ctx context.Context, path string, clim domain.MonthlyClimatology, attrs map[string]string) error
}

// ReportWriter persists one relationship's metric row.
type ReportWriter interface {
	WriteMetric(ctx context.Context, path string, fit domain.RegressionResult, cmp *domain.Comparison) error
}

// Plotter draws the comparison figure of a dataset against the reference.
type Plotter interface {
	PlotComparison(ctx context.Context, path string, model, reference *DatasetResult) error
}

// Options configures a run.
type Options struct {
	Datasets         []domain.DatasetInfo
	ReferenceDataset string
	Region           domain.Region
	AreaBounds       domain.BoundsMode
	WorkDir          string
	PlotDir          string
	OutputFileType   string
	MaskCacheSize    int
}

// Pipeline runs the drift analysis over every dataset once.
type Pipeline struct {
	opts    Options
	loader  FieldLoader
	store   ClimatologyWriter
	reports ReportWriter
	plotter Plotter
	logger  *slog.Logger
	metrics *observability.Metrics
	masks   *maskCache
	ran     atomic.Bool
	ready   atomic.Bool

	mu       sync.Mutex
	progress Progress
}

// Progress is a snapshot of a run for status endpoints.
type Progress struct {
	Dataset   string `json:"dataset,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Finished  bool   `json:"finished"`
}

// New creates a Pipeline. A nil plotter disables plotting.
func New(opts Options, loader FieldLoader, store ClimatologyWriter, reports ReportWriter, plotter Plotter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		opts:    opts,
		loader:  loader,
		store:   store,
		reports: reports,
		plotter: plotter,
		logger:  logger,
		metrics: metrics,
		masks:   newMaskCache(opts.MaskCacheSize, metrics),
	}
}

// CheckReadiness returns nil once the reference dataset has been processed,
// the point from which every other dataset can be compared.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("reference dataset not processed yet")
	}
	return nil
}

// Progress returns the current run state.
func (p *Pipeline) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Pipeline) updateProgress(fn func(*Progress)) {
	p.mu.Lock()
	fn(&p.progress)
	p.mu.Unlock()
}

// Run processes the reference dataset and then every other dataset in
// input order. A failing non-reference dataset is dropped and reported in
// the summary; alias resolution errors, a failing reference and context
// cancellation end the run with an error.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if p.ran.Swap(true) {
		return nil, ErrAlreadyRun
	}

	aliases, err := domain.ResolveAliases(p.opts.Datasets, p.opts.ReferenceDataset)
	if err != nil {
		return nil, err
	}
	order := make([]int, 0, len(aliases))
	for i, a := range aliases {
		if a == domain.ReferenceAlias {
			order = append([]int{i}, order...)
		} else {
			order = append(order, i)
		}
	}

	p.updateProgress(func(pr *Progress) { pr.Total = len(order) })
	defer p.updateProgress(func(pr *Progress) {
		pr.Dataset, pr.Stage, pr.Finished = "", "", true
	})

	p.logger.Info("pipeline started",
		"datasets", len(order),
		"region", p.opts.Region.Describe(),
		"area_bounds", p.opts.AreaBounds.String(),
	)

	summary := &Summary{}
	var reference *DatasetResult
	for _, i := range order {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return summary, err
		}
		info, alias := p.opts.Datasets[i], aliases[i]

		result, err := p.process(ctx, info, alias, reference)
		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				se = &StageError{Dataset: alias, Stage: StageLoading, Err: err}
			}
			p.metrics.DatasetFailures.WithLabelValues(se.Stage.String()).Inc()
			if alias == domain.ReferenceAlias {
				p.logger.Error("reference dataset failed", "dataset", alias, "stage", se.Stage.String(), "error", se.Err)
				p.cleanup(alias)
				return summary, se
			}
			p.logger.Error("dataset failed, skipping", "dataset", alias, "stage", se.Stage.String(), "error", se.Err)
			p.cleanup(alias)
			summary.Failed = append(summary.Failed, se)
			p.updateProgress(func(pr *Progress) { pr.Failed++ })
			continue
		}
		if result.IsReference() {
			reference = result
			p.ready.Store(true)
		}
		summary.Completed = append(summary.Completed, result)
		p.updateProgress(func(pr *Progress) { pr.Completed++ })
		p.metrics.DatasetsProcessed.Inc()
	}

	p.logger.Info("pipeline finished", "completed", len(summary.Completed), "failed", len(summary.Failed))
	return summary, nil
}

// fields are the loaded inputs of one dataset. Volume is thickness for the
// reference and thickness times concentration otherwise.
type fields struct {
	concentration *domain.GriddedField
	volume        *domain.GriddedField
	drift         *domain.GriddedField
	area          []float64
}

// process takes one dataset through every stage. reference is nil while
// the reference itself is processed.
func (p *Pipeline) process(ctx context.Context, info domain.DatasetInfo, alias string, reference *DatasetResult) (*DatasetResult, error) {
	result := &DatasetResult{Alias: alias, Info: info}
	stage := StageLoading
	var in *fields
	var masks map[*domain.Grid]domain.SpatialWeightMask

	for ; stage < StageDone; stage++ {
		if stage == StagePlotted && (p.plotter == nil || result.IsReference()) {
			continue
		}
		p.metrics.CurrentStage.Set(float64(stage))
		p.updateProgress(func(pr *Progress) { pr.Dataset, pr.Stage = alias, stage.String() })
		start := time.Now()

		var err error
		switch stage {
		case StageLoading:
			in, err = p.load(ctx, info, result.IsReference())
		case StageMaskBuilt:
			masks, err = p.buildMasks(alias, info, in)
		case StageReduced:
			err = reduce(result, in, masks)
			in, masks = nil, nil
		case StageMetricsComputed:
			err = p.computeMetrics(result, reference)
		case StageReported:
			p.report(result)
		case StageSaved:
			err = p.save(ctx, result)
		case StagePlotted:
			err = p.plot(ctx, result, reference)
		}
		p.metrics.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, &StageError{Dataset: alias, Stage: stage, Err: err}
		}
		p.logger.Debug("stage complete", "dataset", alias, "stage", stage.String())
	}
	p.metrics.CurrentStage.Set(float64(StageDone))
	return result, nil
}

func (p *Pipeline) load(ctx context.Context, info domain.DatasetInfo, isReference bool) (*fields, error) {
	in := &fields{}
	var err error
	if in.concentration, err = p.loadField(ctx, info, domain.SeaIceConcentration, "1"); err != nil {
		return nil, err
	}
	thickness, err := p.loadField(ctx, info, domain.SeaIceThickness, "m")
	if err != nil {
		return nil, err
	}
	if in.drift, err = p.loadField(ctx, info, domain.SeaIceSpeed, "km day-1"); err != nil {
		return nil, err
	}

	if isReference {
		in.volume = thickness
		in.volume.Variable = domain.SeaIceVolume.WithUnits(thickness.Variable.Units)
	} else {
		in.volume, err = thickness.Multiply(in.concentration, domain.SeaIceVolume.WithUnits(thickness.Variable.Units))
		if err != nil {
			return nil, fmt.Errorf("thickness times concentration: %w", err)
		}
	}

	if info.AreaFile != "" {
		if in.area, err = p.loader.LoadArea(ctx, info.AreaFile); err != nil {
			return nil, fmt.Errorf("load cell area: %w", err)
		}
	}
	return in, nil
}

func (p *Pipeline) loadField(ctx context.Context, info domain.DatasetInfo, v domain.Variable, units string) (*domain.GriddedField, error) {
	f, err := p.loader.LoadField(ctx, info.Files[v.ShortName], v)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", v.ShortName, err)
	}
	if err := f.ConvertUnits(units); err != nil {
		return nil, fmt.Errorf("load %s: %w", v.ShortName, err)
	}
	return f, nil
}

// buildMasks builds one mask per distinct grid of the dataset.
func (p *Pipeline) buildMasks(alias string, info domain.DatasetInfo, in *fields) (map[*domain.Grid]domain.SpatialWeightMask, error) {
	masks := make(map[*domain.Grid]domain.SpatialWeightMask, 3)
	for _, f := range []*domain.GriddedField{in.concentration, in.volume, in.drift} {
		if _, ok := masks[f.Grid]; ok {
			continue
		}
		m, hit, err := p.masks.mask(f.Grid, p.opts.Region, in.area, info.AreaFile, p.opts.AreaBounds)
		if err != nil {
			return nil, fmt.Errorf("%s mask: %w", f.Variable.ShortName, err)
		}
		if m.Guessed && !hit {
			p.logger.Warn("cell bounds guessed from coordinate midpoints",
				"dataset", alias,
				"variable", f.Variable.ShortName,
			)
		}
		masks[f.Grid] = m
	}
	return masks, nil
}

func reduce(result *DatasetResult, in *fields, masks map[*domain.Grid]domain.SpatialWeightMask) error {
	var err error
	if result.Concentration, err = domain.Reduce(in.concentration, masks[in.concentration.Grid]); err != nil {
		return err
	}
	if result.Volume, err = domain.Reduce(in.volume, masks[in.volume.Grid]); err != nil {
		return err
	}
	result.Drift, err = domain.Reduce(in.drift, masks[in.drift.Grid])
	return err
}

func (p *Pipeline) computeMetrics(result, reference *DatasetResult) error {
	var err error
	rep := &result.Report
	if rep.Concentration.Fit, err = domain.Fit(result.Concentration, result.Drift); err != nil {
		return fmt.Errorf("%s fit: %w", RelationshipConcentration, err)
	}
	if rep.Volume.Fit, err = domain.Fit(result.Volume, result.Drift); err != nil {
		return fmt.Errorf("%s fit: %w", RelationshipVolume, err)
	}
	if reference == nil {
		return nil
	}

	concCmp, err := domain.Compare(rep.Concentration.Fit, reference.Report.Concentration.Fit,
		result.Concentration, reference.Concentration, result.Drift, reference.Drift)
	if err != nil {
		return fmt.Errorf("%s comparison: %w", RelationshipConcentration, err)
	}
	volCmp, err := domain.Compare(rep.Volume.Fit, reference.Report.Volume.Fit,
		result.Volume, reference.Volume, result.Drift, reference.Drift)
	if err != nil {
		return fmt.Errorf("%s comparison: %w", RelationshipVolume, err)
	}
	rep.Concentration.Comparison = &concCmp
	rep.Volume.Comparison = &volCmp

	for name, rel := range map[string]Relationship{
		RelationshipConcentration: rep.Concentration,
		RelationshipVolume:        rep.Volume,
	} {
		p.metrics.SlopeRatio.WithLabelValues(result.Alias, name).Set(rel.Comparison.SlopeRatio)
		p.metrics.Error.WithLabelValues(result.Alias, name).Set(rel.Comparison.Error)
	}
	return nil
}

func (p *Pipeline) report(result *DatasetResult) {
	rep := result.Report
	if result.IsReference() {
		p.logger.Info("reference fitted",
			"dataset", result.Alias,
			"slope_siconc", rep.Concentration.Fit.Slope,
			"slope_sivol", rep.Volume.Fit.Slope,
		)
		return
	}
	p.logger.Info("drift metrics",
		"dataset", result.Alias,
		"region", p.opts.Region.Describe(),
		"slope_ratio_siconc", rep.Concentration.Comparison.SlopeRatio,
		"slope_ratio_sivol", rep.Volume.Comparison.SlopeRatio,
		"error_siconc", rep.Concentration.Comparison.Error,
		"error_sivol", rep.Volume.Comparison.Error,
		"significant_siconc", rep.Concentration.Fit.Significant,
		"significant_sivol", rep.Volume.Fit.Significant,
	)
}

// save writes <work_dir>/<alias>/{sispeed,siconc,sivol}_clim.nc and the
// two metric files.
func (p *Pipeline) save(ctx context.Context, result *DatasetResult) error {
	dir := filepath.Join(p.opts.WorkDir, result.Alias)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	attrs := datasetAttributes(result)
	for _, clim := range []domain.MonthlyClimatology{result.Drift, result.Concentration, result.Volume} {
		path := filepath.Join(dir, clim.Variable.ShortName+"_clim.nc")
		if err := p.store.WriteClimatology(ctx, path, clim, attrs); err != nil {
			return err
		}
	}
	for name, rel := range map[string]Relationship{
		RelationshipConcentration: result.Report.Concentration,
		RelationshipVolume:        result.Report.Volume,
	} {
		path := filepath.Join(dir, "metric_drift_"+name+".csv")
		if err := p.reports.WriteMetric(ctx, path, rel.Fit, rel.Comparison); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) plot(ctx context.Context, result, reference *DatasetResult) error {
	dir := filepath.Join(p.opts.PlotDir, result.Alias)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	return p.plotter.PlotComparison(ctx, filepath.Join(dir, "drift-strength."+p.opts.OutputFileType), result, reference)
}

// cleanup removes the partial output of a failed dataset.
func (p *Pipeline) cleanup(alias string) {
	for _, dir := range []string{filepath.Join(p.opts.WorkDir, alias), filepath.Join(p.opts.PlotDir, alias)} {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("remove partial output failed", "dataset", alias, "path", dir, "error", err)
		}
	}
}

func datasetAttributes(result *DatasetResult) map[string]string {
	info := result.Info
	attrs := map[string]string{
		"alias":      result.Alias,
		"project":    info.Project,
		"dataset":    info.Dataset,
		"start_year": strconv.Itoa(info.StartYear),
		"end_year":   strconv.Itoa(info.EndYear),
	}
	if info.Experiment != "" {
		attrs["exp"] = info.Experiment
	}
	if info.Ensemble != "" {
		attrs["ensemble"] = info.Ensemble
	}
	return attrs
}
