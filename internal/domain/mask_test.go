package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatitudeThresholdInclusion(t *testing.T) {
	g := NewRectilinearGrid([]float64{70, 85}, []float64{0})

	got, err := LatitudeThreshold(80).Inclusion(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, got)
}

func TestLatitudeThresholdIsStrict(t *testing.T) {
	g := NewRectilinearGrid([]float64{80, 80.5}, []float64{10})

	got, err := LatitudeThreshold(80).Inclusion(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, got)
}

func TestPolygonInclusion(t *testing.T) {
	square := PolygonRegion("square", []LonLat{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}})
	g := NewRectilinearGrid([]float64{0}, []float64{0, 100})

	got, err := square.Inclusion(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got)
}

func TestPolygonInclusionNormalizesLongitude(t *testing.T) {
	square := PolygonRegion("square", []LonLat{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}})
	g := NewRectilinearGrid([]float64{5}, []float64{355, 365, 180})

	got, err := square.Inclusion(g)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 0}, got)
}

func TestSCICEXExcludesSubarcticCells(t *testing.T) {
	g := NewRectilinearGrid([]float64{40, 60}, []float64{-30, 0, 150})

	got, err := PolygonRegion("SCICEX", SCICEXVertices).Inclusion(g)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), got)
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{190, -170},
		{360, 0},
		{-190, 170},
		{540, 180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeLongitude(tt.in), 1e-12, "lon %g", tt.in)
	}
}

func TestRegionDescribe(t *testing.T) {
	assert.Equal(t, "north of 80", LatitudeThreshold(80).Describe())
	assert.Equal(t, "inside SCICEX region", PolygonRegion("SCICEX", SCICEXVertices).Describe())
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{"threshold", LatitudeThreshold(80), false},
		{"threshold at pole", LatitudeThreshold(90), true},
		{"threshold NaN", LatitudeThreshold(math.NaN()), true},
		{"polygon", PolygonRegion("p", SCICEXVertices), false},
		{"polygon too small", PolygonRegion("p", []LonLat{{0, 0}, {1, 1}}), true},
		{"polygon bad latitude", PolygonRegion("p", []LonLat{{0, 0}, {1, 91}, {2, 0}}), true},
		{"unknown kind", Region{Kind: RegionKind(7)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildMaskUsesSuppliedArea(t *testing.T) {
	g := NewRectilinearGrid([]float64{70, 85, 88}, []float64{0})

	mask, err := BuildMask(g, LatitudeThreshold(80), []float64{5, 2, math.NaN()}, BoundsExplicit)
	require.NoError(t, err)
	assert.False(t, mask.Guessed)
	assert.Equal(t, 0.0, mask.Weights[0])
	assert.Equal(t, 2.0, mask.Weights[1])
	assert.True(t, math.IsNaN(mask.Weights[2]))
}

func TestBuildMaskEmptyRegion(t *testing.T) {
	g := NewRectilinearGrid([]float64{10, 20}, []float64{0, 1})

	_, err := BuildMask(g, LatitudeThreshold(80), nil, BoundsGuess)
	require.ErrorIs(t, err, ErrEmptyMask)
}

func TestBuildMaskAreaShapeMismatch(t *testing.T) {
	g := NewRectilinearGrid([]float64{85, 86}, []float64{0})

	_, err := BuildMask(g, LatitudeThreshold(80), []float64{1}, BoundsGuess)
	require.ErrorIs(t, err, ErrGridMismatch)
}

func TestBuildMaskExplicitBoundsRequired(t *testing.T) {
	g := NewRectilinearGrid([]float64{85, 86}, []float64{0, 1})

	_, err := BuildMask(g, LatitudeThreshold(80), nil, BoundsExplicit)
	require.ErrorIs(t, err, ErrMissingBounds)
}

func TestBuildMaskCurvilinearNeedsArea(t *testing.T) {
	g, err := NewCurvilinearGrid(1, 2, []float64{85, 86}, []float64{0, 1})
	require.NoError(t, err)

	_, err = BuildMask(g, LatitudeThreshold(80), nil, BoundsGuess)
	require.ErrorIs(t, err, ErrMissingBounds)
}

func TestCellAreasCoverSphere(t *testing.T) {
	var lat, lon []float64
	for v := -89.0; v < 90; v += 2 {
		lat = append(lat, v)
	}
	for v := -179.0; v < 180; v += 2 {
		lon = append(lon, v)
	}
	g := NewRectilinearGrid(lat, lon)

	areas, guessed, err := CellAreas(g, BoundsGuess)
	require.NoError(t, err)
	assert.True(t, guessed)

	var total float64
	for _, a := range areas {
		total += a
	}
	assert.InEpsilon(t, 4*math.Pi*EarthRadius*EarthRadius, total, 1e-9)
}

func TestCellAreasExplicitBounds(t *testing.T) {
	g := NewRectilinearGrid([]float64{0.5}, []float64{0.5})
	g.LatBounds = [][2]float64{{0, 1}}
	g.LonBounds = [][2]float64{{0, 1}}

	areas, guessed, err := CellAreas(g, BoundsExplicit)
	require.NoError(t, err)
	assert.False(t, guessed)
	want := EarthRadius * EarthRadius * math.Sin(math.Pi/180) * math.Pi / 180
	assert.InEpsilon(t, want, areas[0], 1e-12)
}

func TestGuessBounds(t *testing.T) {
	got, err := GuessBounds([]float64{-89, 0, 89}, true)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{-90, -44.5}, {-44.5, 44.5}, {44.5, 90}}, got)

	got, err = GuessBounds([]float64{0, 10, 20}, false)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{-5, 5}, {5, 15}, {15, 25}}, got)

	_, err = GuessBounds([]float64{1}, false)
	require.ErrorIs(t, err, ErrMissingBounds)
}

func TestParseBoundsMode(t *testing.T) {
	m, err := ParseBoundsMode("")
	require.NoError(t, err)
	assert.Equal(t, BoundsGuess, m)

	m, err = ParseBoundsMode("Explicit")
	require.NoError(t, err)
	assert.Equal(t, BoundsExplicit, m)
	assert.Equal(t, "explicit", m.String())

	_, err = ParseBoundsMode("sometimes")
	require.Error(t, err)
}
