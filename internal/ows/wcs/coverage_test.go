package wcs

import (
	"errors"
	"strings"
	"testing"

	"github.com/jobrunner/catena/internal/domain"
)

func TestCoverageURL(t *testing.T) {
	got, err := CoverageURL(CoverageOptions{
		URL:      "http://example.com/wcs",
		Coverage: "dem",
		Bounds:   domain.Rectangle{West: 110, South: -45, East: 155, North: -10},
		Time:     "2024-05-01",
	})
	if err != nil {
		t.Fatalf("CoverageURL: %v", err)
	}
	for _, want := range []string{
		"service=WCS",
		"version=1.0.0",
		"request=GetCoverage",
		"coverage=dem",
		"crs=EPSG%3A4326",
		"bbox=110%2C-45%2C155%2C-10",
		"width=1024",
		"height=1024",
		"format=GeoTIFF",
		"time=2024-05-01",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("url %q missing %q", got, want)
		}
	}
}

func TestCoverageURLOverrides(t *testing.T) {
	got, err := CoverageURL(CoverageOptions{
		URL:        "http://example.com/wcs",
		Coverage:   "dem",
		Bounds:     domain.Rectangle{West: 110, South: -45, East: 155, North: -10},
		Width:      256,
		Height:     128,
		Format:     "image/tiff",
		CRS:        "EPSG:3857",
		Parameters: map[string]string{"styles": "shaded"},
	})
	if err != nil {
		t.Fatalf("CoverageURL: %v", err)
	}
	for _, want := range []string{
		"width=256",
		"height=128",
		"format=image%2Ftiff",
		"crs=EPSG%3A3857",
		"styles=shaded",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("url %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "time=") {
		t.Error("no time configured, none should be requested")
	}
}

func TestCoverageURLMissingConfig(t *testing.T) {
	bounds := domain.Rectangle{West: 110, South: -45, East: 155, North: -10}
	tests := []struct {
		name string
		opts CoverageOptions
	}{
		{"missing url", CoverageOptions{Coverage: "dem", Bounds: bounds}},
		{"missing coverage", CoverageOptions{URL: "http://example.com/wcs", Bounds: bounds}},
		{"missing bounds", CoverageOptions{URL: "http://example.com/wcs", Coverage: "dem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CoverageURL(tt.opts)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("err = %v, want invalid configuration", err)
			}
		})
	}
}
