package wms

import (
	"strings"
	"testing"

	"github.com/jobrunner/catena/internal/domain"
)

func TestStratumCRSNegotiation(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.3.0.xml")

	t.Run("web mercator variant from inherited set", func(t *testing.T) {
		s := NewItemStratum(caps, ItemOptions{Layers: []string{"nexrad"}})
		if got := s.CRS(); got != "EPSG:900913" {
			t.Errorf("CRS = %q, want EPSG:900913", got)
		}
	})

	t.Run("explicit override wins when advertised", func(t *testing.T) {
		s := NewItemStratum(caps, ItemOptions{
			Layers:       []string{"topp:states"},
			PreferredCRS: "EPSG:4326",
		})
		if got := s.CRS(); got != "EPSG:4326" {
			t.Errorf("CRS = %q, want EPSG:4326", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		s := NewItemStratum(caps, ItemOptions{Layers: []string{"nexrad"}})
		if s.CRS() != s.CRS() {
			t.Error("CRS derivation is not stable")
		}
	})
}

func TestStratumRectangleUnion(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.3.0.xml")

	s := NewItemStratum(caps, ItemOptions{Layers: []string{"topp:states", "nexrad"}})
	got := s.Rectangle()
	if got == nil {
		t.Fatal("Rectangle = nil")
	}
	want := domain.Rectangle{West: -130, South: 20, East: -60, North: 55}
	if *got != want {
		t.Errorf("Rectangle = %+v, want %+v", *got, want)
	}
}

func TestStratumLegendResolution(t *testing.T) {
	t.Run("explicit style legend wins verbatim", func(t *testing.T) {
		caps := loadFixture(t, "capabilities-1.3.0.xml")
		s := NewItemStratum(caps, ItemOptions{
			Layers: []string{"topp:states"},
			Style:  "population",
		})
		legends := s.Legends()
		if len(legends) != 1 {
			t.Fatalf("Legends = %v", legends)
		}
		want := "http://example.com/geoserver/wms/GetLegendGraphic?layer=topp%3Astates&style=population"
		if legends[0].URL != want {
			t.Errorf("legend URL = %q, want %q (no synthesis)", legends[0].URL, want)
		}
	})

	t.Run("no style and no GetLegendGraphic falls back to first style", func(t *testing.T) {
		caps := loadFixture(t, "capabilities-1.1.1.xml")
		s := NewItemStratum(caps, ItemOptions{Layers: []string{"temperature"}})
		legends := s.Legends()
		if len(legends) != 1 {
			t.Fatalf("Legends = %v", legends)
		}
		if legends[0].URL != "http://example.com/legends/temperature.gif" {
			t.Errorf("legend URL = %q", legends[0].URL)
		}
	})

	t.Run("GetLegendGraphic synthesis with GeoServer options", func(t *testing.T) {
		caps := loadFixture(t, "capabilities-1.3.0.xml")
		s := NewItemStratum(caps, ItemOptions{
			Layers:         []string{"nexrad"},
			ThemeTextColor: "#fff",
		})
		legends := s.Legends()
		if len(legends) != 1 {
			t.Fatalf("Legends = %v", legends)
		}
		u := legends[0].URL
		for _, want := range []string{
			"request=GetLegendGraphic",
			"layer=nexrad",
			"format=image%2Fpng",
			"fontColor%3A0xffffff", // 3-digit css color forced to 6 hex digits
		} {
			if !strings.Contains(u, want) {
				t.Errorf("synthesized URL %q missing %q", u, want)
			}
		}
	})
}

func TestStratumFeatureInfoNegotiation(t *testing.T) {
	t.Run("json beats html beats xml", func(t *testing.T) {
		caps := loadFixture(t, "capabilities-1.3.0.xml")
		s := NewItemStratum(caps, ItemOptions{Layers: []string{"topp:states"}})
		format, verb := s.FeatureInfo(0)
		if format != "application/json" {
			t.Errorf("format = %q, want application/json", format)
		}
		if verb != "GetFeatureInfo" {
			t.Errorf("verb = %q", verb)
		}
	})

	t.Run("esri flavour prefers xml over html", func(t *testing.T) {
		caps := loadFixture(t, "capabilities-1.1.1.xml")
		s := NewItemStratum(caps, ItemOptions{
			URL:    "http://example.com/arcgis/services/weather/MapServer/WMSServer",
			Layers: []string{"temperature"},
		})
		format, _ := s.FeatureInfo(0)
		if format != "text/xml" {
			t.Errorf("format = %q, want text/xml", format)
		}
	})

	t.Run("GetTimeseries with multiple steps forces csv", func(t *testing.T) {
		caps := &Capabilities{
			SupportsGetTimeseries: true,
			FeatureInfoFormats:    []string{"application/json"},
		}
		s := NewItemStratum(caps, ItemOptions{})
		format, verb := s.FeatureInfo(2)
		if format != "text/csv" || verb != "GetTimeseries" {
			t.Errorf("got %q/%q, want text/csv/GetTimeseries", format, verb)
		}

		// A single step keeps the normal negotiation.
		format, verb = s.FeatureInfo(1)
		if format != "application/json" || verb != "GetFeatureInfo" {
			t.Errorf("got %q/%q, want application/json/GetFeatureInfo", format, verb)
		}
	})
}

func TestStratumTimes(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.3.0.xml")
	s := NewItemStratum(caps, ItemOptions{Layers: []string{"nexrad"}})

	times := s.Times()
	want := []string{
		"2020-01-01T00:00:00Z",
		"2020-01-02T00:00:00Z",
		"2020-01-03T00:00:00Z",
	}
	if len(times) != len(want) {
		t.Fatalf("Times = %v, want %v", times, want)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("Times[%d] = %q, want %q", i, times[i], want[i])
		}
	}

	traits := s.Traits()
	if traits.CurrentTime != "2020-01-03T00:00:00Z" {
		t.Errorf("CurrentTime = %q, want the dimension default", traits.CurrentTime)
	}
	if traits.Dimensions["elevation"] != "0" {
		t.Errorf("Dimensions = %v, want elevation default 0", traits.Dimensions)
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"#fff", "ffffff"},
		{"#3F3F3F", "3f3f3f"},
		{"3f3f3f", "3f3f3f"},
		{"", "000000"},
		{"#bad", "bbaadd"},
		{"notacolor", "000000"},
	}
	for _, tt := range tests {
		if got := hexColor(tt.input); got != tt.want {
			t.Errorf("hexColor(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
