package pipeline

import (
	"errors"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// Relationship names used in file names, metrics and log lines.
const (
	RelationshipConcentration = "siconc"
	RelationshipVolume        = "sivol"
)

// Relationship is the drift regression against one ice variable. Comparison
// is nil for the reference dataset.
type Relationship struct {
	Fit        domain.RegressionResult
	Comparison *domain.Comparison
}

// MetricReport holds both relationships of a dataset.
type MetricReport struct {
	Concentration Relationship
	Volume        Relationship
}

// DatasetResult is everything the pipeline computed for one dataset.
type DatasetResult struct {
	Alias         string
	Info          domain.DatasetInfo
	Concentration domain.MonthlyClimatology
	Volume        domain.MonthlyClimatology
	Drift         domain.MonthlyClimatology
	Report        MetricReport
}

// IsReference reports whether the result belongs to the reference dataset.
func (r *DatasetResult) IsReference() bool { return r.Alias == domain.ReferenceAlias }

// Summary lists the datasets a run completed and the ones it dropped.
type Summary struct {
	Completed []*DatasetResult
	Failed    []*StageError
}

// Err joins the failures, or returns nil when every dataset completed.
func (s *Summary) Err() error {
	errs := make([]error, len(s.Failed))
	for i, f := range s.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}
