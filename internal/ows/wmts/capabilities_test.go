package wmts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobrunner/catena/internal/domain"
)

func loadFixture(t *testing.T, name string) *Capabilities {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	caps, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse(%s): %v", name, err)
	}
	return caps
}

func TestParse(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	if caps.Version != "1.0.0" {
		t.Errorf("Version = %q", caps.Version)
	}
	if caps.ServiceTitle != "Example WMTS" {
		t.Errorf("ServiceTitle = %q", caps.ServiceTitle)
	}
	if caps.GetTileURL != "http://example.com/wmts?" {
		t.Errorf("GetTileURL = %q", caps.GetTileURL)
	}
	if len(caps.Layers) != 2 {
		t.Fatalf("Layers = %d, want 2", len(caps.Layers))
	}
	if len(caps.TileMatrixSets) != 2 {
		t.Fatalf("TileMatrixSets = %d, want 2", len(caps.TileMatrixSets))
	}

	streets := caps.FindLayer("streets")
	if streets == nil {
		t.Fatal("streets not found")
	}
	if len(streets.Styles) != 2 || !streets.Styles[0].IsDefault {
		t.Errorf("Styles = %+v", streets.Styles)
	}
	if streets.Styles[0].Legend == nil || streets.Styles[0].Legend.URL != "http://example.com/legends/streets.png" {
		t.Errorf("default style legend = %+v", streets.Styles[0].Legend)
	}
	if len(streets.MatrixSets) != 1 || streets.MatrixSets[0] != "GoogleMapsCompatible" {
		t.Errorf("MatrixSets = %v", streets.MatrixSets)
	}
	if len(streets.ResourceURLs) != 1 || streets.ResourceURLs[0].ResourceType != "tile" {
		t.Errorf("ResourceURLs = %+v", streets.ResourceURLs)
	}
	if streets.Rectangle.IsZero() {
		t.Error("Rectangle not parsed")
	}
}

func TestFindLayer(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	tests := []struct {
		ref  string
		want string
	}{
		{"streets", "streets"},
		{"ns:streets", "streets"},
		{"Street Map", "streets"},
		{"Historic Map", "historic"},
		{"nope", ""},
	}
	for _, tt := range tests {
		l := caps.FindLayer(tt.ref)
		switch {
		case tt.want == "" && l != nil:
			t.Errorf("FindLayer(%q) = %q, want nil", tt.ref, l.Identifier)
		case tt.want != "" && l == nil:
			t.Errorf("FindLayer(%q) = nil, want %q", tt.ref, tt.want)
		case l != nil && l.Identifier != tt.want:
			t.Errorf("FindLayer(%q) = %q, want %q", tt.ref, l.Identifier, tt.want)
		}
	}
}

func TestIsWebMercatorAligned(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	if set := caps.TileMatrixSet("GoogleMapsCompatible"); set == nil || !set.IsWebMercatorAligned() {
		t.Error("GoogleMapsCompatible should be aligned")
	}
	if set := caps.TileMatrixSet("WGS84"); set == nil || set.IsWebMercatorAligned() {
		t.Error("a geographic set is never web-mercator aligned")
	}

	t.Run("wrong tile size", func(t *testing.T) {
		set := &TileMatrixSet{
			SupportedCRS: "urn:ogc:def:crs:EPSG::3857",
			TileMatrices: []TileMatrix{{
				TileWidth: 512, TileHeight: 512,
				TopLeftCorner: "-20037508.34278925 20037508.34278925",
			}},
		}
		if set.IsWebMercatorAligned() {
			t.Error("512x512 tiles are not usable")
		}
	})

	t.Run("shifted origin", func(t *testing.T) {
		set := &TileMatrixSet{
			SupportedCRS: "EPSG:3857",
			TileMatrices: []TileMatrix{{
				TileWidth: 256, TileHeight: 256,
				TopLeftCorner: "0 0",
			}},
		}
		if set.IsWebMercatorAligned() {
			t.Error("a set anchored away from the origin is not usable")
		}
	})

	t.Run("legacy 900913 alias", func(t *testing.T) {
		set := &TileMatrixSet{
			SupportedCRS: "urn:ogc:def:crs:EPSG::900913",
			TileMatrices: []TileMatrix{{
				TileWidth: 256, TileHeight: 256,
				TopLeftCorner: "-20037508.342789244 20037508.342789244",
			}},
		}
		if !set.IsWebMercatorAligned() {
			t.Error("the 900913 alias should count as web mercator")
		}
	})

	t.Run("no matrices", func(t *testing.T) {
		set := &TileMatrixSet{SupportedCRS: "EPSG:3857"}
		if set.IsWebMercatorAligned() {
			t.Error("an empty set is not usable")
		}
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("service exception", func(t *testing.T) {
		body := []byte(`<?xml version="1.0"?>
<ExceptionReport xmlns="http://www.opengis.net/ows/1.1">
  <Exception exceptionCode="NoApplicableCode">
    <ExceptionText>internal error</ExceptionText>
  </Exception>
</ExceptionReport>`)
		_, err := Parse(body)
		var exc *domain.ExceptionError
		if !errors.As(err, &exc) {
			t.Fatalf("err = %v, want ExceptionError", err)
		}
	})

	t.Run("no contents", func(t *testing.T) {
		body := []byte(`<?xml version="1.0"?><Capabilities version="1.0.0"></Capabilities>`)
		_, err := Parse(body)
		if !errors.Is(err, domain.ErrMissingCapability) {
			t.Errorf("err = %v, want ErrMissingCapability", err)
		}
	})
}
