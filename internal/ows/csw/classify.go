package csw

import (
	"regexp"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
)

// resourceFormats are the recognized resource protocols in preference
// order. The pattern is tested against a URI's protocol or scheme
// attribute.
var resourceFormats = []struct {
	Type    catalog.Type
	pattern *regexp.Regexp
}{
	{catalog.TypeWMS, regexp.MustCompile(`(?i)\bwms\b`)},
	{catalog.TypeEsriMapServer, regexp.MustCompile(`(?i)\besri rest\b|\bMapServer\b`)},
	{catalog.TypeKML, regexp.MustCompile(`(?i)\bkml\b`)},
	{catalog.TypeGeoJSON, regexp.MustCompile(`(?i)\bgeojson\b`)},
	{catalog.TypeCSV, regexp.MustCompile(`(?i)\bcsv\b`)},
}

// Resources is the partition of one record's URIs.
type Resources struct {
	// Acceptable holds the first URI seen per recognized type. Later
	// same-type URIs land in Downloads.
	Acceptable map[catalog.Type]URI

	Downloads []catalog.Link
	Legend    *domain.Legend
}

// ClassifyURIs partitions a record's URIs into acceptable (renderable
// through a known protocol), a legend reference and plain downloads.
func ClassifyURIs(rec *Record) Resources {
	res := Resources{Acceptable: make(map[catalog.Type]URI)}
	for _, uri := range rec.AllURIs() {
		if uri.URL == "" {
			continue
		}
		if uri.Description == "LegendUrl" {
			if res.Legend == nil {
				res.Legend = &domain.Legend{URL: uri.URL}
			}
			continue
		}

		typ, ok := classify(uri)
		if ok {
			if _, taken := res.Acceptable[typ]; !taken {
				res.Acceptable[typ] = uri
				continue
			}
		}
		res.Downloads = append(res.Downloads, catalog.Link{
			Title:       uri.Name,
			URL:         uri.URL,
			Description: uri.Description,
		})
	}
	return res
}

func classify(uri URI) (catalog.Type, bool) {
	described := uri.ProtocolOrScheme()
	if described == "" {
		return "", false
	}
	for _, f := range resourceFormats {
		if f.pattern.MatchString(described) {
			return f.Type, true
		}
	}
	return "", false
}

// Best returns the acceptable URI of the highest-priority type.
func (r Resources) Best() (catalog.Type, URI, bool) {
	for _, f := range resourceFormats {
		if uri, ok := r.Acceptable[f.Type]; ok {
			return f.Type, uri, true
		}
	}
	return "", URI{}, false
}
