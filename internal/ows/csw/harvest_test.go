package csw

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
)

// cswServer answers GetDomain on GET and pages GetRecords POSTs by the
// startPosition carried in the request body.
func cswServer(t *testing.T) *httptest.Server {
	t.Helper()
	page1 := readFixture(t, "records-page1.xml")
	page2 := readFixture(t, "records-page2.xml")
	domainBody := readFixture(t, "domain.xml")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.Method == http.MethodGet {
			_, _ = w.Write(domainBody)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `startPosition="1"`) {
			_, _ = w.Write(page1)
			return
		}
		_, _ = w.Write(page2)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHarvestRecordsPagination(t *testing.T) {
	srv := cswServer(t)
	client := fetch.New(fetch.Options{})

	h, err := HarvestRecords(context.Background(), client, Options{URL: srv.URL})
	if err != nil {
		t.Fatalf("HarvestRecords: %v", err)
	}
	if h.Pages != 2 {
		t.Errorf("Pages = %d, want 2", h.Pages)
	}
	if len(h.Records) != 4 {
		t.Errorf("Records = %d, want the sum of both pages", len(h.Records))
	}
	if h.Groups != nil {
		t.Errorf("Groups = %v, want none without a domain specification", h.Groups)
	}
}

func TestHarvestRecordsWithDomain(t *testing.T) {
	srv := cswServer(t)
	client := fetch.New(fetch.Options{})

	h, err := HarvestRecords(context.Background(), client, Options{
		URL: srv.URL,
		Domain: &DomainSpecification{
			DomainPropertyName: "Subject",
			HierarchySeparator: " | ",
			QueryPropertyName:  "subject",
		},
	})
	if err != nil {
		t.Fatalf("HarvestRecords: %v", err)
	}
	if len(h.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2 roots", len(h.Groups))
	}

	multi := h.Groups[0]
	if multi.Group != "Multiple Use" {
		t.Fatalf("Groups[0] = %q", multi.Group)
	}
	fisheries := multi.Children[0]
	if len(fisheries.Records) != 1 || fisheries.Records[0].Identifier != "rec-fisheries" {
		t.Errorf("fisheries records = %v", identifiers(fisheries.Records))
	}
	if len(multi.Records) != 1 || multi.Records[0].Identifier != "rec-coastline" {
		t.Errorf("multiple-use records = %v", identifiers(multi.Records))
	}
}

func TestHarvestRecordsPageCap(t *testing.T) {
	page1 := readFixture(t, "records-page1.xml")
	// Always answering the first page never advances nextRecord.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write(page1)
	}))
	t.Cleanup(srv.Close)

	client := fetch.New(fetch.Options{})
	_, err := HarvestRecords(context.Background(), client, Options{URL: srv.URL, MaxPages: 3})
	if !errors.Is(err, domain.ErrTooManyPages) {
		t.Errorf("err = %v, want ErrTooManyPages", err)
	}
}

func TestHarvestRecordsMissingURL(t *testing.T) {
	client := fetch.New(fetch.Options{})
	if _, err := HarvestRecords(context.Background(), client, Options{}); err == nil {
		t.Error("harvest without url should fail")
	}
}

func TestLoadGroupBuildsMetadataTree(t *testing.T) {
	srv := cswServer(t)
	client := fetch.New(fetch.Options{})
	registry := catalog.NewRegistry()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	group, _ := registry.GetOrCreate("cswroot", catalog.TypeCSWGroup)
	group.SetStratum(catalog.StratumDefinition, catalog.Traits{URL: srv.URL})

	opts := Options{
		Domain: &DomainSpecification{
			DomainPropertyName: "Subject",
			HierarchySeparator: " | ",
			QueryPropertyName:  "subject",
		},
	}
	if err := LoadGroup(context.Background(), client, registry, group, opts, logger); err != nil {
		t.Fatalf("LoadGroup: %v", err)
	}

	// The Reference branch holds only a record with no mappable uri, so
	// the whole branch is elided.
	children := group.Children()
	if len(children) != 1 || children[0] != "cswroot/Multiple Use" {
		t.Fatalf("children = %v", children)
	}

	multi, ok := registry.Get("cswroot/Multiple Use")
	if !ok {
		t.Fatal("group member missing from registry")
	}
	sub := multi.Children()
	want := []string{
		"cswroot/Multiple Use/Fisheries",
		"cswroot/Multiple Use/Forests",
		"cswroot/Multiple Use/rec-coastline",
	}
	if !equal(sub, want) {
		t.Fatalf("sub-tree = %v, want %v", sub, want)
	}

	item, ok := registry.Get("cswroot/Multiple Use/Fisheries/rec-fisheries")
	if !ok {
		t.Fatal("record item missing from registry")
	}
	if item.Type != catalog.TypeWMS {
		t.Errorf("item type = %q", item.Type)
	}
	traits := item.Traits()
	if traits.URL != "http://example.com/geoserver/wms" {
		t.Errorf("item url = %q", traits.URL)
	}
	if traits.Layers != "fish:effort" {
		t.Errorf("item layers = %q", traits.Layers)
	}
	if len(traits.DownloadLinks) != 2 {
		t.Errorf("download links = %+v", traits.DownloadLinks)
	}
	if len(traits.Legends) != 1 || traits.Legends[0].URL != "http://example.com/legends/effort.png" {
		t.Errorf("legends = %+v", traits.Legends)
	}
	if traits.Rectangle == nil || traits.Rectangle.West != 110 {
		t.Errorf("rectangle = %+v", traits.Rectangle)
	}

	csv, ok := registry.Get("cswroot/Multiple Use/rec-coastline")
	if !ok {
		t.Fatal("csv item missing from registry")
	}
	if csv.Type != catalog.TypeCSV {
		t.Errorf("csv type = %q", csv.Type)
	}
}

func TestLoadGroupFlat(t *testing.T) {
	srv := cswServer(t)
	client := fetch.New(fetch.Options{})
	registry := catalog.NewRegistry()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	group, _ := registry.GetOrCreate("flat", catalog.TypeCSWGroup)
	group.SetStratum(catalog.StratumDefinition, catalog.Traits{URL: srv.URL})

	if err := LoadGroup(context.Background(), client, registry, group, Options{}, logger); err != nil {
		t.Fatalf("LoadGroup: %v", err)
	}

	// Three of four records carry a mappable uri.
	children := group.Children()
	if len(children) != 3 {
		t.Fatalf("children = %v", children)
	}
}
