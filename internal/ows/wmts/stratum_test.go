package wmts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
)

func TestStratumStyle(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	t.Run("default style when none configured", func(t *testing.T) {
		s := NewItemStratum(caps, "http://example.com/wmts", "streets", "")
		st := s.Style()
		if st == nil || st.Identifier != "default" {
			t.Errorf("Style = %+v, want default", st)
		}
	})

	t.Run("configured style wins when advertised", func(t *testing.T) {
		s := NewItemStratum(caps, "http://example.com/wmts", "streets", "night")
		st := s.Style()
		if st == nil || st.Identifier != "night" {
			t.Errorf("Style = %+v, want night", st)
		}
	})

	t.Run("unknown style falls back to default", func(t *testing.T) {
		s := NewItemStratum(caps, "http://example.com/wmts", "streets", "nope")
		st := s.Style()
		if st == nil || st.Identifier != "default" {
			t.Errorf("Style = %+v, want default", st)
		}
	})
}

func TestStratumLegends(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	s := NewItemStratum(caps, "http://example.com/wmts", "streets", "")
	legends := s.Legends()
	if len(legends) != 1 {
		t.Fatalf("Legends = %v", legends)
	}
	if legends[0].URL != "http://example.com/legends/streets.png" {
		t.Errorf("legend URL = %q", legends[0].URL)
	}
	if legends[0].Width != 80 || legends[0].Height != 120 {
		t.Errorf("legend size = %dx%d", legends[0].Width, legends[0].Height)
	}

	// The night style carries no legend.
	s = NewItemStratum(caps, "http://example.com/wmts", "streets", "night")
	if got := s.Legends(); got != nil {
		t.Errorf("Legends = %v, want nil", got)
	}
}

func TestStratumTileMatrixSet(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	s := NewItemStratum(caps, "http://example.com/wmts", "streets", "")
	if set := s.TileMatrixSet(); set == nil || set.Identifier != "GoogleMapsCompatible" {
		t.Errorf("TileMatrixSet = %+v", set)
	}

	// historic only links a geographic pyramid.
	s = NewItemStratum(caps, "http://example.com/wmts", "historic", "")
	if set := s.TileMatrixSet(); set != nil {
		t.Errorf("TileMatrixSet = %+v, want nil", set)
	}
}

func TestStratumTileURLTemplate(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")

	t.Run("resource template preferred, style substituted", func(t *testing.T) {
		s := NewItemStratum(caps, "http://example.com/wmts", "streets", "")
		want := "http://example.com/tiles/streets/default/{TileMatrixSet}/{TileMatrix}/{TileRow}/{TileCol}.png"
		if got := s.TileURLTemplate(); got != want {
			t.Errorf("TileURLTemplate =\n  %q\nwant\n  %q", got, want)
		}
	})

	t.Run("kvp fallback without resource urls", func(t *testing.T) {
		s := NewItemStratum(caps, "http://example.com/wmts", "historic", "")
		got := s.TileURLTemplate()
		for _, want := range []string{
			"http://example.com/wmts?",
			"request=GetTile",
			"layer=historic",
			"style=default",
			"format=image%2Fjpeg",
			"TileMatrix={TileMatrix}",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("template %q missing %q", got, want)
			}
		}
	})
}

func TestStratumTraits(t *testing.T) {
	caps := loadFixture(t, "capabilities-1.0.0.xml")
	s := NewItemStratum(caps, "http://example.com/wmts", "streets", "")

	traits := s.Traits()
	if traits.Name != "Street Map" {
		t.Errorf("Name = %q", traits.Name)
	}
	if traits.Style != "default" {
		t.Errorf("Style = %q", traits.Style)
	}
	if traits.TileMatrixSet != "GoogleMapsCompatible" {
		t.Errorf("TileMatrixSet = %q", traits.TileMatrixSet)
	}
	if traits.CRS != domain.DefaultCRS {
		t.Errorf("CRS = %q", traits.CRS)
	}
	if len(traits.AvailableStyles) != 2 {
		t.Errorf("AvailableStyles = %v", traits.AvailableStyles)
	}
	if traits.Rectangle == nil {
		t.Error("Rectangle not derived")
	}
}

func wmtsFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", "capabilities-1.0.0.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadGroupSkipsUnusableLayers(t *testing.T) {
	srv := wmtsFixtureServer(t)

	client := fetch.New(fetch.Options{})
	registry := catalog.NewRegistry()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	group, _ := registry.GetOrCreate("tiles", catalog.TypeWMTSGroup)
	group.SetStratum(catalog.StratumDefinition, catalog.Traits{URL: srv.URL})

	if err := LoadGroup(context.Background(), client, registry, group, logger); err != nil {
		t.Fatalf("LoadGroup: %v", err)
	}

	children := group.Children()
	if len(children) != 1 || children[0] != "tiles/streets" {
		t.Fatalf("children = %v, want only the renderable layer", children)
	}

	item, ok := registry.Get("tiles/streets")
	if !ok {
		t.Fatal("item member missing from registry")
	}
	traits := item.Traits()
	if traits.Name != "Street Map" {
		t.Errorf("item name = %q", traits.Name)
	}
	if traits.TileMatrixSet != "GoogleMapsCompatible" {
		t.Errorf("item tileMatrixSet = %q", traits.TileMatrixSet)
	}
}

func TestLoadItem(t *testing.T) {
	srv := wmtsFixtureServer(t)
	client := fetch.New(fetch.Options{})

	t.Run("renderable layer", func(t *testing.T) {
		member := catalog.NewMember("solo", catalog.TypeWMTS)
		member.SetStratum(catalog.StratumDefinition, catalog.Traits{
			URL:    srv.URL,
			Layers: "streets",
		})
		if err := LoadItem(context.Background(), client, member); err != nil {
			t.Fatalf("LoadItem: %v", err)
		}
		if got := member.Traits().TileURLTemplate; got == "" {
			t.Error("TileURLTemplate not derived")
		}
	})

	t.Run("unknown layer", func(t *testing.T) {
		member := catalog.NewMember("solo2", catalog.TypeWMTS)
		member.SetStratum(catalog.StratumDefinition, catalog.Traits{
			URL:    srv.URL,
			Layers: "nope",
		})
		err := LoadItem(context.Background(), client, member)
		if !errors.Is(err, domain.ErrLayerNotFound) {
			t.Errorf("err = %v, want ErrLayerNotFound", err)
		}
	})

	t.Run("no usable tile matrix set", func(t *testing.T) {
		member := catalog.NewMember("solo3", catalog.TypeWMTS)
		member.SetStratum(catalog.StratumDefinition, catalog.Traits{
			URL:    srv.URL,
			Layers: "historic",
		})
		err := LoadItem(context.Background(), client, member)
		if !errors.Is(err, domain.ErrUnsupported) {
			t.Errorf("err = %v, want ErrUnsupported", err)
		}
	})
}
