package wfs

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

// Protocol is the metrics label for WFS fetches.
const Protocol = "wfs"

// DefaultMaxFeatures bounds GetFeature responses when the item does not
// set its own limit.
const DefaultMaxFeatures = 1000

// jsonOutputFormats are GetFeature output formats that yield GeoJSON,
// in preference order. Anything else is treated as GML and converted
// downstream.
var jsonOutputFormats = []string{
	"application/json",
	"json",
	"JSON",
	"application/geo+json",
}

// ItemStratum derives traits for one WFS feature-type item.
type ItemStratum struct {
	caps *Capabilities
	url  string
	typs []*FeatureType
}

// NewItemStratum resolves typeNames (comma-separated) against the
// capabilities document. Empty typeNames selects every feature type.
func NewItemStratum(caps *Capabilities, serviceURL, typeNames string) *ItemStratum {
	s := &ItemStratum{caps: caps, url: serviceURL}
	if typeNames == "" {
		s.typs = append(s.typs, caps.FeatureTypes...)
		return s
	}
	for _, name := range strings.Split(typeNames, ",") {
		if ft := caps.FindFeatureType(strings.TrimSpace(name)); ft != nil {
			s.typs = append(s.typs, ft)
		}
	}
	return s
}

// FeatureTypes returns the resolved feature types.
func (s *ItemStratum) FeatureTypes() []*FeatureType {
	return s.typs
}

// OutputFormat negotiates the GetFeature output format: a JSON variant
// when the server offers one (per operation metadata or per feature
// type), else GML via the server's default.
func (s *ItemStratum) OutputFormat() string {
	advertised := append([]string(nil), s.caps.OutputFormats...)
	for _, ft := range s.typs {
		advertised = append(advertised, ft.OutputFormats...)
	}
	for _, want := range jsonOutputFormats {
		for _, have := range advertised {
			if strings.EqualFold(have, want) {
				return have
			}
		}
	}
	return "" // server default, GML
}

// SRSName picks the request CRS from the selected types' SRS lists.
func (s *ItemStratum) SRSName() string {
	var advertised []string
	seen := make(map[string]bool)
	for _, ft := range s.typs {
		for _, srs := range ft.SRS {
			if !seen[srs] {
				seen[srs] = true
				advertised = append(advertised, srs)
			}
		}
	}
	// WFS servers virtually always speak geographic coordinates; keep
	// the advertised default when it is supported at all.
	if len(advertised) > 0 && domain.IsSupportedCRS(advertised[0]) {
		return advertised[0]
	}
	return domain.NegotiateCRS("", advertised)
}

// Rectangle unions the selected feature types' WGS84 bounding boxes.
func (s *ItemStratum) Rectangle() *domain.Rectangle {
	var out domain.Rectangle
	for _, ft := range s.typs {
		out = out.Union(ft.Rectangle)
	}
	if out.IsZero() {
		return nil
	}
	return &out
}

// GetFeatureURL builds the GetFeature request URL for the item.
func (s *ItemStratum) GetFeatureURL(maxFeatures int) (string, error) {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	base := s.caps.GetFeatureURL
	if base == "" {
		base = s.url
	}

	var names []string
	for _, ft := range s.typs {
		names = append(names, ft.Name)
	}

	params := map[string]string{
		"service":     "WFS",
		"version":     "1.1.0",
		"request":     "GetFeature",
		"typeName":    strings.Join(names, ","),
		"srsName":     s.SRSName(),
		"maxFeatures": strconv.Itoa(maxFeatures),
	}
	if f := s.OutputFormat(); f != "" {
		params["outputFormat"] = f
	}
	return ows.BuildURL(base, params)
}

// Traits derives the capabilities stratum for the item.
func (s *ItemStratum) Traits() catalog.Traits {
	t := catalog.Traits{
		CRS:          s.SRSName(),
		Rectangle:    s.Rectangle(),
		OutputFormat: s.OutputFormat(),
	}

	var names []string
	for _, ft := range s.typs {
		names = append(names, ft.Name)
	}
	t.TypeNames = strings.Join(names, ",")

	if len(s.typs) > 0 {
		first := s.typs[0]
		t.Name = first.Title
		t.Description = first.Abstract
		t.Keywords = first.Keywords
	}
	if t.Description == "" {
		t.Description = s.caps.ServiceAbstract
	}
	return t
}

// LoadItem is the load entry point for a WFS catalog item.
func LoadItem(ctx context.Context, client *fetch.Client, member *catalog.Member) error {
	traits := member.Traits()
	if traits.URL == "" {
		return &domain.ConfigError{Member: member.ID, Field: "url", Message: "a WFS item needs a url"}
	}

	caps, err := FetchCapabilities(ctx, client, traits.URL, traits.CacheDuration)
	if err != nil {
		return err
	}

	stratum := NewItemStratum(caps, traits.URL, traits.TypeNames)
	member.SetStratum(catalog.StratumCapabilities, stratum.Traits())
	return nil
}

// LoadGroup is the load entry point for a WFS catalog group: one item
// per feature type. One feature type's failure is logged and skipped.
func LoadGroup(ctx context.Context, client *fetch.Client, registry *catalog.Registry, group *catalog.Member, logger *slog.Logger) error {
	traits := group.Traits()
	if traits.URL == "" {
		return &domain.ConfigError{Member: group.ID, Field: "url", Message: "a WFS group needs a url"}
	}

	caps, err := FetchCapabilities(ctx, client, traits.URL, traits.CacheDuration)
	if err != nil {
		return err
	}

	group.SetStratum(catalog.StratumCapabilities, catalog.Traits{
		Name:        caps.ServiceTitle,
		Description: caps.ServiceAbstract,
		Keywords:    caps.ServiceKeywords,
	})

	var children []string
	for _, ft := range caps.FeatureTypes {
		if ft.Name == "" {
			logger.Warn("skipping unnamed wfs feature type", "title", ft.Title, "group", group.ID)
			continue
		}
		id := catalog.MemberID(group.ID, ft.Name)
		member, _ := registry.GetOrCreate(id, catalog.TypeWFS)

		definition := catalog.Traits{
			Name:          ft.Title,
			URL:           traits.URL,
			TypeNames:     ft.Name,
			Hidden:        traits.Hidden,
			UseProxy:      traits.UseProxy,
			CacheDuration: traits.CacheDuration,
		}
		member.SetStratum(catalog.StratumDefinition, definition)
		member.SetStratum(catalog.StratumCapabilities,
			NewItemStratum(caps, traits.URL, ft.Name).Traits())
		children = append(children, id)
	}
	group.SetChildren(children)
	return nil
}

// FetchCapabilities fetches and parses a WFS GetCapabilities document.
func FetchCapabilities(ctx context.Context, client *fetch.Client, base, cacheDuration string) (*Capabilities, error) {
	ttl, err := fetch.ParseCacheDuration(cacheDuration)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cacheDuration", Message: err.Error()}
	}
	capsURL, err := ows.CapabilitiesURL(base, "WFS", "1.1.0")
	if err != nil {
		return nil, &domain.ConfigError{Field: "url", Message: err.Error()}
	}

	body, err := client.Get(ctx, capsURL, ttl, Protocol)
	if err != nil {
		return nil, err
	}
	caps, err := Parse(body)
	if err != nil {
		return nil, domain.FormatError(capsURL, err)
	}
	return caps, nil
}
