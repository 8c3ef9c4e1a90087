package cmorize

import "github.com/couchcryptid/seaice-drift/internal/domain"

// definitions holds the CMOR names and units of the ERA5 monthly variables
// this tool knows how to reformat.
var definitions = map[string]domain.Variable{
	"tas": {
		ShortName:    "tas",
		StandardName: "air_temperature",
		LongName:     "Near-Surface Air Temperature",
		Units:        "K",
	},
	"tdps": {
		ShortName:    "tdps",
		StandardName: "dew_point_temperature",
		LongName:     "2m Dewpoint Temperature",
		Units:        "K",
	},
	"ts": {
		ShortName:    "ts",
		StandardName: "surface_temperature",
		LongName:     "Surface Temperature",
		Units:        "K",
	},
	"psl": {
		ShortName:    "psl",
		StandardName: "air_pressure_at_mean_sea_level",
		LongName:     "Sea Level Pressure",
		Units:        "Pa",
	},
	"ps": {
		ShortName:    "ps",
		StandardName: "surface_air_pressure",
		LongName:     "Surface Air Pressure",
		Units:        "Pa",
	},
	"uas": {
		ShortName:    "uas",
		StandardName: "eastward_wind",
		LongName:     "Eastward Near-Surface Wind",
		Units:        "m s-1",
	},
	"vas": {
		ShortName:    "vas",
		StandardName: "northward_wind",
		LongName:     "Northward Near-Surface Wind",
		Units:        "m s-1",
	},
	"clt": {
		ShortName:    "clt",
		StandardName: "cloud_area_fraction",
		LongName:     "Total Cloud Cover Percentage",
		Units:        "%",
	},
	"siconc": {
		ShortName:    "siconc",
		StandardName: "sea_ice_area_fraction",
		LongName:     "Sea-Ice Area Percentage (Ocean Grid)",
		Units:        "%",
	},
}

// Definition returns the CMOR definition of a short name.
func Definition(short string) (domain.Variable, bool) {
	v, ok := definitions[short]
	return v, ok
}
