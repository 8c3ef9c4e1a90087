// Package domain models the sea-ice drift diagnostic: gridded sea-ice
// fields, spatial masks, monthly climatologies, dataset aliases and the
// regression metrics that relate drift speed to concentration and thickness.
//
// # Variables
//
// Three CMOR variables feed the diagnostic:
//
//	siconc   sea_ice_area_fraction   converted to "1" (fraction, not %)
//	sithick  sea_ice_thickness       "m"
//	sispeed  sea_ice_speed           converted to "km day-1"
//
// For every dataset other than the reference, thickness is multiplied by
// concentration before averaging so the series is a volume proxy (mean ice
// thickness over the whole cell). Reference thickness products already
// describe grid-cell mean thickness and are used as-is. The reduced thickness
// series is written as "sivol".
//
// # Regions
//
// Metrics are computed over a region, either every cell north of a latitude
// threshold or every cell strictly inside a polygon given as (lon, lat)
// vertices. The historical default polygon is the SCICEX box:
//
//	(-15, 87) (-60, 86.58) (-130, 80) (-141, 80) (-141, 70) (-155, 72)
//	(175, 75.5) (172, 78.5) (163, 80.5) (126, 78.5) (110, 84.33)
//	(80, 84.42) (57, 85.17) (33, 83.8) (8, 84.08)
//
// Polygon membership is tested in spherical Mercator after normalizing
// longitudes to (-180, 180].
//
// # Climatologies
//
// Each time step is reduced to an area-weighted mean over the region, then
// the steps are grouped by calendar month and averaged across years. The
// result always has 12 values, January first.
//
// # Metrics
//
// For each dataset two ordinary least-squares fits are computed over the 12
// monthly points, drift against concentration and drift against thickness.
// The slope's standard error uses n-2 = 10 degrees of freedom and the slope
// is flagged significant when |slope/sd| exceeds the two-sided Student's t
// critical value at alpha = 0.05.
//
// Against the reference, every other dataset gets a slope ratio
// (slope/reference slope, 1 means the sensitivity is reproduced) and an
// error score:
//
//	100 * nanmean( (|v - vRef| / nanmean(vRef))^2 + (|d - dRef| / nanmean(dRef))^2 )
//
// The score combines two squared relative deviations and is reported with a
// "%" label for historical reasons; it is not a statistical percentage error.
//
// # Aliases
//
// Datasets are keyed by alias. Observations (project "OBS") use
// project_dataset_start_end, everything else
// project_dataset_experiment_ensemble_start_end. The dataset matching the
// configured reference is keyed "reference".
package domain
