package csw

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
	"github.com/jobrunner/catena/internal/ports/output"
)

// Protocol is the metrics label for CSW fetches.
const Protocol = "csw"

// DefaultMaxPages bounds the GetRecords pagination loop. A malformed
// server that keeps answering with a positive, non-advancing nextRecord
// would otherwise loop forever.
const DefaultMaxPages = 100

// defaultMaxRecords is the page size requested per GetRecords call.
const defaultMaxRecords = 10

// defaultGetRecordsTemplate is the POST body of one harvest page. The
// start position advances through the template between pages.
const defaultGetRecordsTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<csw:GetRecords xmlns:csw="http://www.opengis.net/cat/csw/2.0.2"
    xmlns:ogc="http://www.opengis.net/ogc"
    service="CSW" version="2.0.2" resultType="results"
    startPosition="{{.StartPosition}}" maxRecords="{{.MaxRecords}}"
    outputFormat="application/xml"
    outputSchema="http://www.opengis.net/cat/csw/2.0.2">
  <csw:Query typeNames="csw:Record">
    <csw:ElementSetName>full</csw:ElementSetName>
  </csw:Query>
</csw:GetRecords>`

// DomainSpecification configures GetDomain-driven grouping.
type DomainSpecification struct {
	// DomainPropertyName is the queryable asked of GetDomain.
	DomainPropertyName string

	// HierarchySeparator splits one domain value into group segments.
	HierarchySeparator string

	// QueryPropertyName is the record property the group rules match.
	QueryPropertyName string
}

// Options configures one harvest.
type Options struct {
	URL string

	// GetRecordsTemplate overrides the POST body template.
	GetRecordsTemplate string

	Domain        *DomainSpecification
	MaxPages      int
	CacheDuration string
	Metrics       output.MetricsCollector
}

// Harvest is the outcome of a full GetRecords run: the flat record
// list, the page count, and the populated metadata-group tree when a
// domain specification was given.
type Harvest struct {
	Records []*Record
	Groups  []*MetadataGroup
	Pages   int
}

// HarvestRecords runs the paginated GetRecords loop and, when
// configured, the GetDomain grouping pass.
func HarvestRecords(ctx context.Context, client *fetch.Client, opts Options) (*Harvest, error) {
	if opts.URL == "" {
		return nil, &domain.ConfigError{Field: "url", Message: "a CSW harvest needs a url"}
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}

	text := opts.GetRecordsTemplate
	if text == "" {
		text = defaultGetRecordsTemplate
	}
	tmpl, err := template.New("getrecords").Parse(text)
	if err != nil {
		return nil, &domain.ConfigError{Field: "getRecordsTemplate", Message: err.Error()}
	}

	h := &Harvest{}
	start := 1
	for {
		if h.Pages >= maxPages {
			return nil, &domain.ServiceError{
				Title: "Catalog service did not finish",
				Message: fmt.Sprintf(
					"The server at %s kept returning more result pages after %d requests.",
					opts.URL, maxPages),
				Err: domain.ErrTooManyPages,
			}
		}

		var buf bytes.Buffer
		err := tmpl.Execute(&buf, map[string]int{
			"StartPosition": start,
			"MaxRecords":    defaultMaxRecords,
		})
		if err != nil {
			return nil, &domain.ConfigError{Field: "getRecordsTemplate", Message: err.Error()}
		}

		body, err := client.Post(ctx, opts.URL, "application/xml", buf.Bytes(), Protocol)
		if err != nil {
			return nil, err
		}
		resp, err := ParseGetRecordsResponse(body)
		if err != nil {
			return nil, domain.FormatError(opts.URL, err)
		}
		h.Pages++
		metrics.IncHarvestPages(opts.URL)

		page := resp.SearchResults.All()
		for i := range page {
			h.Records = append(h.Records, &page[i])
		}

		next := resp.SearchResults.NextRecord
		if next <= 0 || next >= resp.SearchResults.Matched {
			break
		}
		start = next
	}

	if opts.Domain != nil {
		groups, err := fetchMetadataGroups(ctx, client, opts)
		if err != nil {
			return nil, err
		}
		AssignRecords(groups, h.Records)
		h.Groups = groups
	}
	return h, nil
}

func fetchMetadataGroups(ctx context.Context, client *fetch.Client, opts Options) ([]*MetadataGroup, error) {
	spec := opts.Domain
	if spec.DomainPropertyName == "" || spec.HierarchySeparator == "" {
		return nil, &domain.ConfigError{
			Field:   "domainSpecification",
			Message: "domainPropertyName and hierarchySeparator are required",
		}
	}

	ttl, err := fetch.ParseCacheDuration(opts.CacheDuration)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cacheDuration", Message: err.Error()}
	}
	domainURL, err := ows.BuildURL(opts.URL, map[string]string{
		"service":      "CSW",
		"version":      "2.0.2",
		"request":      "GetDomain",
		"propertyname": spec.DomainPropertyName,
	})
	if err != nil {
		return nil, &domain.ConfigError{Field: "url", Message: err.Error()}
	}

	body, err := client.Get(ctx, domainURL, ttl, Protocol)
	if err != nil {
		return nil, err
	}
	resp, err := ParseGetDomainResponse(body)
	if err != nil {
		return nil, domain.FormatError(domainURL, err)
	}

	field := spec.QueryPropertyName
	if field == "" {
		field = spec.DomainPropertyName
	}
	return BuildMetadataGroups(resp.Values, spec.HierarchySeparator, field), nil
}

// LoadGroup is the load entry point for a CSW catalog group. With a
// domain specification the member tree mirrors the metadata groups;
// otherwise all records become direct children. A record without any
// acceptable URI yields no item.
func LoadGroup(ctx context.Context, client *fetch.Client, registry *catalog.Registry, group *catalog.Member, opts Options, logger *slog.Logger) error {
	traits := group.Traits()
	if opts.URL == "" {
		opts.URL = traits.URL
	}
	if opts.CacheDuration == "" {
		opts.CacheDuration = traits.CacheDuration
	}

	h, err := HarvestRecords(ctx, client, opts)
	if err != nil {
		return err
	}

	var children []string
	if len(h.Groups) > 0 {
		for _, g := range h.Groups {
			if id := composeMetadataGroup(registry, group.ID, g, traits, logger); id != "" {
				children = append(children, id)
			}
		}
	} else {
		for _, rec := range h.Records {
			if id := composeRecord(registry, group.ID, rec, traits, logger); id != "" {
				children = append(children, id)
			}
		}
	}
	group.SetChildren(children)
	return nil
}

// composeMetadataGroup creates the member for one metadata group and
// its subtree. Empty branches (no records anywhere below) are elided.
func composeMetadataGroup(registry *catalog.Registry, parentID string, g *MetadataGroup, shared catalog.Traits, logger *slog.Logger) string {
	id := catalog.MemberID(parentID, g.Group)

	var children []string
	for _, sub := range g.Children {
		if childID := composeMetadataGroup(registry, id, sub, shared, logger); childID != "" {
			children = append(children, childID)
		}
	}
	for _, rec := range g.Records {
		if childID := composeRecord(registry, id, rec, shared, logger); childID != "" {
			children = append(children, childID)
		}
	}
	if len(children) == 0 {
		return ""
	}

	member, _ := registry.GetOrCreate(id, catalog.TypeGroup)
	member.SetStratum(catalog.StratumCapabilities, catalog.Traits{Name: g.Group})
	member.SetChildren(children)
	return id
}

// composeRecord creates a catalog item from one record's best
// acceptable URI.
func composeRecord(registry *catalog.Registry, parentID string, rec *Record, shared catalog.Traits, logger *slog.Logger) string {
	res := ClassifyURIs(rec)
	typ, uri, ok := res.Best()
	if !ok {
		logger.Debug("skipping record without a recognized resource uri",
			"record", rec.Identifier, "title", rec.Title)
		return ""
	}

	name := rec.Identifier
	if name == "" {
		name = rec.Title
	}
	if name == "" {
		logger.Warn("skipping record without identifier and title")
		return ""
	}

	id := catalog.MemberID(parentID, name)
	member, _ := registry.GetOrCreate(id, typ)

	definition := catalog.Traits{
		Name:          rec.Title,
		Description:   rec.Abstract,
		URL:           uri.URL,
		DownloadLinks: res.Downloads,
		Hidden:        shared.Hidden,
		UseProxy:      shared.UseProxy,
		CacheDuration: shared.CacheDuration,
	}
	if typ == catalog.TypeWMS && uri.Name != "" {
		definition.Layers = uri.Name
	}
	if res.Legend != nil {
		definition.Legends = []domain.Legend{*res.Legend}
	}
	if r, err := rec.BoundingBox.Rectangle(); err == nil && !r.IsZero() {
		definition.Rectangle = &r
	}
	member.SetStratum(catalog.StratumDefinition, definition)
	return id
}
