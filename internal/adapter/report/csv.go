// Package report writes per-dataset metric files.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/seaice-drift/internal/domain"
)

// Header is the first row of every metric file.
var Header = []string{"slope", "intercept", "slope_ratio", "error"}

// CSVWriter writes one-row metric files.
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// WriteMetric writes the fit and, for non-reference datasets, the
// comparison. A nil comparison leaves slope_ratio and error empty.
func (w *CSVWriter) WriteMetric(ctx context.Context, path string, fit domain.RegressionResult, cmp *domain.Comparison) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := []string{FormatFloat(fit.Slope), FormatFloat(fit.Intercept), "", ""}
	if cmp != nil {
		row[2] = FormatFloat(cmp.SlopeRatio)
		row[3] = FormatFloat(cmp.Error)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	cw := csv.NewWriter(f)
	cw.UseCRLF = true
	if err := cw.WriteAll([][]string{Header, row}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Metric is a parsed metric file.
type Metric struct {
	Slope      float64
	Intercept  float64
	Comparison *domain.Comparison
}

// ReadMetric parses a file written by WriteMetric.
func ReadMetric(path string) (Metric, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metric{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Metric{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) != 2 {
		return Metric{}, fmt.Errorf("%s: %d rows, want header and one data row", path, len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(Header, ",") {
		return Metric{}, fmt.Errorf("%s: header %v, want %v", path, records[0], Header)
	}

	row := records[1]
	var m Metric
	if m.Slope, err = parseFloat(row[0]); err != nil {
		return Metric{}, fmt.Errorf("%s: slope: %w", path, err)
	}
	if m.Intercept, err = parseFloat(row[1]); err != nil {
		return Metric{}, fmt.Errorf("%s: intercept: %w", path, err)
	}
	switch {
	case row[2] == "" && row[3] == "":
	case row[2] == "" || row[3] == "":
		return Metric{}, fmt.Errorf("%s: slope_ratio and error must both be set or both empty", path)
	default:
		var c domain.Comparison
		if c.SlopeRatio, err = parseFloat(row[2]); err != nil {
			return Metric{}, fmt.Errorf("%s: slope_ratio: %w", path, err)
		}
		if c.Error, err = parseFloat(row[3]); err != nil {
			return Metric{}, fmt.Errorf("%s: error: %w", path, err)
		}
		m.Comparison = &c
	}
	return m, nil
}

// FormatFloat renders v the way Python's repr does: shortest round-trip
// digits, positional notation for exponents in [-4, 16), and a trailing
// ".0" on integral values.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

var errEmpty = errors.New("empty value")

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errEmpty
	}
	return strconv.ParseFloat(s, 64)
}
