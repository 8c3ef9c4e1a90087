package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// EarthRadius is the sphere radius, in metres, used for cell area weights.
const EarthRadius = 6367470.0

const (
	geographicProj = "+proj=longlat"
	mercatorProj   = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

	// Mercator is singular at the poles.
	maxProjectedLatitude = 89.999999
)

// RegionKind selects how a Region decides cell membership.
type RegionKind int

const (
	RegionThreshold RegionKind = iota
	RegionPolygon
)

// LonLat is a geographic vertex in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

// SCICEXName is the default polygon region name.
const SCICEXName = "SCICEX"

// SCICEXVertices outline the historical SCICEX submarine survey box.
var SCICEXVertices = []LonLat{
	{-15, 87}, {-60, 86.58}, {-130, 80}, {-141, 80}, {-141, 70},
	{-155, 72}, {175, 75.5}, {172, 78.5}, {163, 80.5}, {126, 78.5},
	{110, 84.33}, {80, 84.42}, {57, 85.17}, {33, 83.8}, {8, 84.08},
}

// Region is either a latitude threshold or a polygon.
type Region struct {
	Kind      RegionKind
	Threshold float64
	Name      string
	Vertices  []LonLat
}

// LatitudeThreshold selects every cell north of deg.
func LatitudeThreshold(deg float64) Region {
	return Region{Kind: RegionThreshold, Threshold: deg}
}

// PolygonRegion selects every cell strictly inside the polygon.
func PolygonRegion(name string, vertices []LonLat) Region {
	return Region{Kind: RegionPolygon, Name: name, Vertices: append([]LonLat(nil), vertices...)}
}

// Describe renders the region for log lines.
func (r Region) Describe() string {
	if r.Kind == RegionPolygon {
		return fmt.Sprintf("inside %s region", r.Name)
	}
	return fmt.Sprintf("north of %g", r.Threshold)
}

// Key identifies the region in cache keys.
func (r Region) Key() string {
	if r.Kind == RegionThreshold {
		return fmt.Sprintf("lat>%g", r.Threshold)
	}
	var b strings.Builder
	b.WriteString("poly:")
	for _, v := range r.Vertices {
		fmt.Fprintf(&b, "%g,%g;", v.Lon, v.Lat)
	}
	return b.String()
}

// Validate rejects regions that cannot select anything.
func (r Region) Validate() error {
	switch r.Kind {
	case RegionThreshold:
		if math.IsNaN(r.Threshold) || r.Threshold < -90 || r.Threshold >= 90 {
			return fmt.Errorf("latitude threshold %g outside [-90, 90)", r.Threshold)
		}
	case RegionPolygon:
		if len(r.Vertices) < 3 {
			return fmt.Errorf("polygon %q needs at least 3 vertices, got %d", r.Name, len(r.Vertices))
		}
		for _, v := range r.Vertices {
			if v.Lat < -90 || v.Lat > 90 {
				return fmt.Errorf("polygon %q vertex latitude %g outside [-90, 90]", r.Name, v.Lat)
			}
		}
	default:
		return fmt.Errorf("unknown region kind %d", r.Kind)
	}
	return nil
}

// Inclusion returns a 0/1 indicator per grid cell.
func (r Region) Inclusion(g *Grid) ([]float64, error) {
	out := make([]float64, g.Size())
	switch r.Kind {
	case RegionThreshold:
		for c, lat := range g.Lat {
			if lat > r.Threshold {
				out[c] = 1
			}
		}
		return out, nil
	case RegionPolygon:
		return out, r.polygonInclusion(g, out)
	default:
		return nil, fmt.Errorf("unknown region kind %d", r.Kind)
	}
}

func (r Region) polygonInclusion(g *Grid, out []float64) error {
	toMercator, err := mercatorTransform()
	if err != nil {
		return err
	}

	ring := make([]geom.Point, 0, len(r.Vertices)+1)
	for _, v := range r.Vertices {
		p, err := project(toMercator, v.Lon, v.Lat)
		if err != nil {
			return fmt.Errorf("project polygon vertex (%g, %g): %w", v.Lon, v.Lat, err)
		}
		ring = append(ring, p)
	}
	ring = append(ring, ring[0])
	poly := geom.Polygon{ring}

	for c := range out {
		p, err := project(toMercator, g.Lon[c], g.Lat[c])
		if err != nil {
			return fmt.Errorf("project cell %d: %w", c, err)
		}
		if p.Within(poly) == geom.Inside {
			out[c] = 1
		}
	}
	return nil
}

func mercatorTransform() (proj.Transformer, error) {
	src, err := proj.Parse(geographicProj)
	if err != nil {
		return nil, fmt.Errorf("parse geographic projection: %w", err)
	}
	dst, err := proj.Parse(mercatorProj)
	if err != nil {
		return nil, fmt.Errorf("parse mercator projection: %w", err)
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("create mercator transform: %w", err)
	}
	return t, nil
}

func project(t proj.Transformer, lon, lat float64) (geom.Point, error) {
	lat = math.Max(-maxProjectedLatitude, math.Min(maxProjectedLatitude, lat))
	x, y, err := t(NormalizeLongitude(lon), lat)
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Point{X: x, Y: y}, nil
}

// NormalizeLongitude maps a longitude into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// BoundsMode controls what happens when a grid has no cell bounds.
type BoundsMode int

const (
	// BoundsGuess derives bounds from the midpoints between cell centres.
	BoundsGuess BoundsMode = iota
	// BoundsExplicit requires bounds from the file.
	BoundsExplicit
)

// ParseBoundsMode accepts "guess" and "explicit".
func ParseBoundsMode(s string) (BoundsMode, error) {
	switch strings.ToLower(s) {
	case "", "guess":
		return BoundsGuess, nil
	case "explicit":
		return BoundsExplicit, nil
	}
	return 0, fmt.Errorf("unknown bounds mode %q", s)
}

func (m BoundsMode) String() string {
	if m == BoundsExplicit {
		return "explicit"
	}
	return "guess"
}

// SpatialWeightMask is the per-cell weight area*inclusion, NaN where area is unknown.
type SpatialWeightMask struct {
	Weights []float64
	// Guessed is set when the area came from guessed bounds.
	Guessed bool
}

// BuildMask combines the region indicator with cell area. When area is nil
// the spherical area of each cell is computed from its bounds.
func BuildMask(g *Grid, r Region, area []float64, mode BoundsMode) (SpatialWeightMask, error) {
	if err := r.Validate(); err != nil {
		return SpatialWeightMask{}, err
	}
	inclusion, err := r.Inclusion(g)
	if err != nil {
		return SpatialWeightMask{}, err
	}
	selected := false
	for _, v := range inclusion {
		if v > 0 {
			selected = true
			break
		}
	}
	if !selected {
		return SpatialWeightMask{}, fmt.Errorf("%w: %s", ErrEmptyMask, r.Describe())
	}

	var mask SpatialWeightMask
	if area == nil {
		area, mask.Guessed, err = CellAreas(g, mode)
		if err != nil {
			return SpatialWeightMask{}, err
		}
	} else if len(area) != g.Size() {
		return SpatialWeightMask{}, fmt.Errorf("%w: cell area has %d values, grid has %d cells",
			ErrGridMismatch, len(area), g.Size())
	}

	mask.Weights = make([]float64, g.Size())
	for c := range inclusion {
		a := area[c]
		switch {
		case math.IsNaN(a) || math.IsInf(a, 0):
			mask.Weights[c] = math.NaN()
		case a < 0:
			return SpatialWeightMask{}, fmt.Errorf("negative cell area %g at cell %d", a, c)
		default:
			mask.Weights[c] = a * inclusion[c]
		}
	}
	return mask, nil
}

// CellAreas returns the spherical area of every cell in m². The second
// result reports whether bounds had to be guessed.
func CellAreas(g *Grid, mode BoundsMode) ([]float64, bool, error) {
	if !g.Rectilinear() {
		return nil, false, fmt.Errorf("%w: curvilinear grid needs a cell area file", ErrMissingBounds)
	}
	latB, lonB := g.LatBounds, g.LonBounds
	guessed := false
	if !g.HasBounds() {
		if mode == BoundsExplicit {
			return nil, false, fmt.Errorf("%w: grid has no latitude/longitude bounds", ErrMissingBounds)
		}
		var err error
		if latB, err = GuessBounds(g.LatAxis, true); err != nil {
			return nil, false, fmt.Errorf("guess latitude bounds: %w", err)
		}
		if lonB, err = GuessBounds(g.LonAxis, false); err != nil {
			return nil, false, fmt.Errorf("guess longitude bounds: %w", err)
		}
		guessed = true
	}

	out := make([]float64, g.Size())
	for j := 0; j < g.NY; j++ {
		phi0 := latB[j][0] * math.Pi / 180
		phi1 := latB[j][1] * math.Pi / 180
		band := math.Abs(math.Sin(phi1) - math.Sin(phi0))
		for i := 0; i < g.NX; i++ {
			dLambda := math.Abs(lonB[i][1]-lonB[i][0]) * math.Pi / 180
			out[j*g.NX+i] = EarthRadius * EarthRadius * band * dLambda
		}
	}
	return out, guessed, nil
}

// GuessBounds places cell edges halfway between neighbouring centres and
// extrapolates half a spacing at both ends. Latitude edges are clipped to ±90.
func GuessBounds(centres []float64, latitude bool) ([][2]float64, error) {
	if len(centres) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points to guess bounds, got %d", ErrMissingBounds, len(centres))
	}
	n := len(centres)
	edges := make([]float64, n+1)
	for k := 1; k < n; k++ {
		edges[k] = (centres[k-1] + centres[k]) / 2
	}
	edges[0] = centres[0] - (centres[1]-centres[0])/2
	edges[n] = centres[n-1] + (centres[n-1]-centres[n-2])/2
	if latitude {
		for k := range edges {
			edges[k] = math.Max(-90, math.Min(90, edges[k]))
		}
	}
	out := make([][2]float64, n)
	for k := range out {
		out[k] = [2]float64{edges[k], edges[k+1]}
	}
	return out, nil
}
