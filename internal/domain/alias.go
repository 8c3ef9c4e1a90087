package domain

import "fmt"

// ReferenceAlias keys the reference dataset.
const ReferenceAlias = "reference"

// ObservationProject marks observational datasets, which have no experiment or ensemble.
const ObservationProject = "OBS"

// AliasName builds the canonical alias of a dataset.
func AliasName(info DatasetInfo) string {
	if info.Project == ObservationProject {
		return fmt.Sprintf("%s_%s_%d_%d", info.Project, info.Dataset, info.StartYear, info.EndYear)
	}
	return fmt.Sprintf("%s_%s_%s_%s_%d_%d",
		info.Project, info.Dataset, info.Experiment, info.Ensemble, info.StartYear, info.EndYear)
}

// Aliaser maps dataset records to aliases, substituting ReferenceAlias for
// the reference dataset.
type Aliaser struct {
	referenceAlias string
}

// NewAliaser picks the first dataset whose name equals referenceName.
func NewAliaser(datasets []DatasetInfo, referenceName string) (*Aliaser, error) {
	for _, d := range datasets {
		if d.Dataset == referenceName {
			return &Aliaser{referenceAlias: AliasName(d)}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q among %d datasets", ErrReferenceNotFound, referenceName, len(datasets))
}

// Alias returns the alias of a dataset.
func (a *Aliaser) Alias(info DatasetInfo) string {
	name := AliasName(info)
	if name == a.referenceAlias {
		return ReferenceAlias
	}
	return name
}

// IsReference reports whether info is the reference dataset.
func (a *Aliaser) IsReference(info DatasetInfo) bool {
	return AliasName(info) == a.referenceAlias
}

// ReferenceName returns the alias the reference would have had.
func (a *Aliaser) ReferenceName() string { return a.referenceAlias }

// ResolveAliases returns the alias of every dataset in input order.
func ResolveAliases(datasets []DatasetInfo, referenceName string) ([]string, error) {
	a, err := NewAliaser(datasets, referenceName)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int, len(datasets))
	out := make([]string, len(datasets))
	for i, d := range datasets {
		alias := a.Alias(d)
		if prev, ok := seen[alias]; ok {
			return nil, fmt.Errorf("%w: %q for datasets %d and %d", ErrDuplicateAlias, alias, prev, i)
		}
		seen[alias] = i
		out[i] = alias
	}
	return out, nil
}
