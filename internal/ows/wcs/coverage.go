// Package wcs builds WCS 1.0.0 GetCoverage request URLs for coverage
// export. The catalog never parses WCS capabilities; the coverage name
// and export area come from the owning catalog item.
package wcs

import (
	"fmt"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/ows"
)

// Protocol is the metrics label for WCS fetches.
const Protocol = "wcs"

// Version is the only WCS version the export path speaks.
const Version = "1.0.0"

// DefaultFormat is requested when the options leave the format empty.
const DefaultFormat = "GeoTIFF"

// Export defaults for the requested grid size.
const (
	defaultWidth  = 1024
	defaultHeight = 1024
)

// CoverageOptions configures one GetCoverage export.
type CoverageOptions struct {
	URL      string
	Coverage string

	// Bounds is the export area. Required.
	Bounds domain.Rectangle

	// Width and Height set the grid size; zero means 1024.
	Width  int
	Height int

	// Format defaults to GeoTIFF, CRS to the catalog default.
	Format string
	CRS    string

	// Time selects one slice of a time-varying coverage. Optional.
	Time string

	// Parameters are passed through verbatim, e.g. a server-specific
	// styles or dimension parameter.
	Parameters map[string]string
}

// CoverageURL builds the GetCoverage request for opts.
func CoverageURL(opts CoverageOptions) (string, error) {
	if opts.URL == "" {
		return "", &domain.ConfigError{Field: "url", Message: "a WCS export needs a url"}
	}
	if opts.Coverage == "" {
		return "", &domain.ConfigError{Field: "coverage", Message: "a WCS export needs a coverage name"}
	}
	if opts.Bounds.IsZero() {
		return "", &domain.ConfigError{Field: "bounds", Message: "a WCS export needs a bounding box"}
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	format := opts.Format
	if format == "" {
		format = DefaultFormat
	}
	// Bounds are degrees, so the CRS default must be geographic.
	crs := opts.CRS
	if crs == "" {
		crs = "EPSG:4326"
	}

	params := map[string]string{
		"service":  "WCS",
		"version":  Version,
		"request":  "GetCoverage",
		"coverage": opts.Coverage,
		"crs":      crs,
		"bbox": fmt.Sprintf("%v,%v,%v,%v",
			opts.Bounds.West, opts.Bounds.South, opts.Bounds.East, opts.Bounds.North),
		"width":  fmt.Sprintf("%d", width),
		"height": fmt.Sprintf("%d", height),
		"format": format,
	}
	if opts.Time != "" {
		params["time"] = opts.Time
	}
	for name, value := range opts.Parameters {
		params[name] = value
	}
	return ows.BuildURL(opts.URL, params)
}
