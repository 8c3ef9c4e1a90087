package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	era5 = DatasetInfo{Project: "OBS", Dataset: "ERA5", StartYear: 1990, EndYear: 2000}
	cmip = DatasetInfo{Project: "CMIP6", Dataset: "X", Experiment: "historical", Ensemble: "r1i1p1", StartYear: 1990, EndYear: 2000}
)

func TestAliasName(t *testing.T) {
	assert.Equal(t, "OBS_ERA5_1990_2000", AliasName(era5))
	assert.Equal(t, "CMIP6_X_historical_r1i1p1_1990_2000", AliasName(cmip))
}

func TestAliaserMapsReference(t *testing.T) {
	a, err := NewAliaser([]DatasetInfo{cmip, era5}, "ERA5")
	require.NoError(t, err)

	assert.Equal(t, ReferenceAlias, a.Alias(era5))
	assert.Equal(t, "CMIP6_X_historical_r1i1p1_1990_2000", a.Alias(cmip))
	assert.True(t, a.IsReference(era5))
	assert.False(t, a.IsReference(cmip))
	assert.Equal(t, "OBS_ERA5_1990_2000", a.ReferenceName())
}

func TestAliaserFirstMatchWins(t *testing.T) {
	later := era5
	later.StartYear = 2001
	later.EndYear = 2010

	a, err := NewAliaser([]DatasetInfo{era5, later}, "ERA5")
	require.NoError(t, err)
	assert.Equal(t, ReferenceAlias, a.Alias(era5))
	assert.Equal(t, "OBS_ERA5_2001_2010", a.Alias(later))
}

func TestAliaserReferenceNotFound(t *testing.T) {
	_, err := NewAliaser([]DatasetInfo{cmip}, "ERA5")
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestResolveAliases(t *testing.T) {
	got, err := ResolveAliases([]DatasetInfo{cmip, era5}, "ERA5")
	require.NoError(t, err)
	assert.Equal(t, []string{"CMIP6_X_historical_r1i1p1_1990_2000", ReferenceAlias}, got)
}

func TestResolveAliasesDuplicate(t *testing.T) {
	_, err := ResolveAliases([]DatasetInfo{era5, cmip, cmip}, "ERA5")
	require.ErrorIs(t, err, ErrDuplicateAlias)
}
