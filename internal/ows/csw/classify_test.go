package csw

import (
	"testing"

	"github.com/jobrunner/catena/internal/catalog"
)

func TestClassifyURIs(t *testing.T) {
	rec := &Record{
		URIs: []URI{
			{Protocol: "OGC:WMS-1.3.0-http-get-map", Name: "fish:effort", URL: "http://example.com/wms"},
			{Protocol: "OGC:WMS-1.1.1-http-get-map", Name: "fish:effort-old", URL: "http://legacy.example.com/wms"},
			{Protocol: "image/png", Description: "LegendUrl", URL: "http://example.com/legend.png"},
			{Protocol: "WWW:LINK-1.0-http--link", Name: "Metadata", URL: "http://example.com/meta"},
			{Scheme: "csv", Name: "data.csv", URL: "http://example.com/data.csv"},
			{Protocol: "kml", URL: ""},
		},
	}

	res := ClassifyURIs(rec)

	if got := res.Acceptable[catalog.TypeWMS].URL; got != "http://example.com/wms" {
		t.Errorf("wms uri = %q, first acceptable should win", got)
	}
	if got := res.Acceptable[catalog.TypeCSV].URL; got != "http://example.com/data.csv" {
		t.Errorf("csv uri = %q", got)
	}
	if res.Legend == nil || res.Legend.URL != "http://example.com/legend.png" {
		t.Errorf("legend = %+v", res.Legend)
	}

	// The second WMS uri and the plain link are downloads; the legend
	// and the empty uri are not.
	if len(res.Downloads) != 2 {
		t.Fatalf("downloads = %+v", res.Downloads)
	}
	if res.Downloads[0].URL != "http://legacy.example.com/wms" {
		t.Errorf("downloads[0] = %+v", res.Downloads[0])
	}

	typ, uri, ok := res.Best()
	if !ok || typ != catalog.TypeWMS || uri.Name != "fish:effort" {
		t.Errorf("Best = %v/%+v/%v, want the wms uri", typ, uri, ok)
	}
}

func TestClassifyFormats(t *testing.T) {
	tests := []struct {
		described string
		want      catalog.Type
		ok        bool
	}{
		{"OGC:WMS", catalog.TypeWMS, true},
		{"ESRI REST: Map Service", catalog.TypeEsriMapServer, true},
		{"https://host/arcgis/rest/services/x/MapServer", catalog.TypeEsriMapServer, true},
		{"kml", catalog.TypeKML, true},
		{"GeoJSON", catalog.TypeGeoJSON, true},
		{"text/csv", catalog.TypeCSV, true},
		{"WWW:LINK-1.0-http--link", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		typ, ok := classify(URI{Protocol: tt.described, URL: "http://example.com"})
		if ok != tt.ok || typ != tt.want {
			t.Errorf("classify(%q) = %v/%v, want %v/%v", tt.described, typ, ok, tt.want, tt.ok)
		}
	}
}

func TestBestEmpty(t *testing.T) {
	res := ClassifyURIs(&Record{})
	if _, _, ok := res.Best(); ok {
		t.Error("Best on an empty record should report none")
	}
}
