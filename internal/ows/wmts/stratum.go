package wmts

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

// Protocol is the metrics label for WMTS fetches.
const Protocol = "wmts"

// DefaultTileFormat is preferred when the server offers it.
const DefaultTileFormat = "image/png"

// ItemStratum derives traits for one WMTS tile-layer item.
type ItemStratum struct {
	caps  *Capabilities
	url   string
	layer *Layer
	style string
}

// NewItemStratum resolves the layer reference against the capabilities
// document. The layer may come out nil; LoadItem turns that into an
// error, derivations tolerate it.
func NewItemStratum(caps *Capabilities, serviceURL, layer, style string) *ItemStratum {
	return &ItemStratum{
		caps:  caps,
		url:   serviceURL,
		layer: caps.FindLayer(layer),
		style: style,
	}
}

// Layer returns the resolved layer, or nil.
func (s *ItemStratum) Layer() *Layer {
	return s.layer
}

// Style picks the rendering style: the configured one when the layer
// advertises it, else the layer's default, else the first.
func (s *ItemStratum) Style() *domain.Style {
	if s.layer == nil {
		return nil
	}
	if s.style != "" {
		if st := domain.FindStyle(s.layer.Styles, s.style); st != nil {
			return st
		}
	}
	for i := range s.layer.Styles {
		if s.layer.Styles[i].IsDefault {
			return &s.layer.Styles[i]
		}
	}
	if len(s.layer.Styles) > 0 {
		return &s.layer.Styles[0]
	}
	return nil
}

// Legends returns the selected style's legend, when it has one.
func (s *ItemStratum) Legends() []domain.Legend {
	st := s.Style()
	if st == nil || st.Legend == nil {
		return nil
	}
	return []domain.Legend{*st.Legend}
}

// TileMatrixSet picks the first linked set that aligns with a standard
// 256x256 web-mercator pyramid. Nil means the layer is not renderable.
func (s *ItemStratum) TileMatrixSet() *TileMatrixSet {
	if s.layer == nil {
		return nil
	}
	for _, id := range s.layer.MatrixSets {
		if set := s.caps.TileMatrixSet(id); set != nil && set.IsWebMercatorAligned() {
			return set
		}
	}
	return nil
}

// Format picks the tile image format: image/png when offered, else the
// first advertised format.
func (s *ItemStratum) Format() string {
	if s.layer == nil {
		return DefaultTileFormat
	}
	for _, f := range s.layer.Formats {
		if strings.EqualFold(f, DefaultTileFormat) {
			return f
		}
	}
	if len(s.layer.Formats) > 0 {
		return s.layer.Formats[0]
	}
	return DefaultTileFormat
}

// TileURLTemplate builds the tile request template. A RESTful
// ResourceURL for the chosen format is preferred; otherwise a KVP
// GetTile template is built against the advertised endpoint. The
// {TileMatrixSet}, {TileMatrix}, {TileRow} and {TileCol} placeholders
// are left for the tile engine, {Style} is substituted here.
func (s *ItemStratum) TileURLTemplate() string {
	if s.layer == nil {
		return ""
	}

	styleID := ""
	if st := s.Style(); st != nil {
		styleID = st.Identifier
	}

	format := s.Format()
	var fallback string
	for _, r := range s.layer.ResourceURLs {
		if r.ResourceType != "tile" || r.Template == "" {
			continue
		}
		if strings.EqualFold(r.Format, format) {
			return substituteStyle(r.Template, styleID)
		}
		if fallback == "" {
			fallback = r.Template
		}
	}
	if fallback != "" {
		return substituteStyle(fallback, styleID)
	}

	base := s.caps.GetTileURL
	if base == "" {
		base = s.url
	}
	base = strings.TrimRight(base, "?&")
	sep := "?"
	if strings.ContainsRune(base, '?') {
		sep = "&"
	}
	return fmt.Sprintf(
		"%s%sservice=WMTS&version=1.0.0&request=GetTile&layer=%s&style=%s&format=%s"+
			"&tilematrixset={TileMatrixSet}&TileMatrix={TileMatrix}&TileRow={TileRow}&TileCol={TileCol}",
		base, sep,
		url.QueryEscape(s.layer.Identifier),
		url.QueryEscape(styleID),
		url.QueryEscape(format))
}

func substituteStyle(template, style string) string {
	return strings.ReplaceAll(template, "{Style}", style)
}

// Rectangle returns the layer's WGS84 bounding box, or nil.
func (s *ItemStratum) Rectangle() *domain.Rectangle {
	if s.layer == nil || s.layer.Rectangle.IsZero() {
		return nil
	}
	r := s.layer.Rectangle
	return &r
}

// Traits derives the capabilities stratum for the item.
func (s *ItemStratum) Traits() catalog.Traits {
	t := catalog.Traits{
		CRS:             domain.DefaultCRS,
		Rectangle:       s.Rectangle(),
		Legends:         s.Legends(),
		TileURLTemplate: s.TileURLTemplate(),
	}
	if s.layer != nil {
		t.Name = s.layer.Title
		t.Description = s.layer.Abstract
		t.AvailableStyles = s.layer.Styles
	}
	if st := s.Style(); st != nil {
		t.Style = st.Identifier
	}
	if set := s.TileMatrixSet(); set != nil {
		t.TileMatrixSet = set.Identifier
	}
	if t.Description == "" {
		t.Description = s.caps.ServiceAbstract
	}
	return t
}

// LoadItem is the load entry point for a WMTS catalog item.
func LoadItem(ctx context.Context, client *fetch.Client, member *catalog.Member) error {
	traits := member.Traits()
	if traits.URL == "" {
		return &domain.ConfigError{Member: member.ID, Field: "url", Message: "a WMTS item needs a url"}
	}
	if traits.Layers == "" {
		return &domain.ConfigError{Member: member.ID, Field: "layer", Message: "a WMTS item needs a layer identifier"}
	}

	caps, err := FetchCapabilities(ctx, client, traits.URL, traits.CacheDuration)
	if err != nil {
		return err
	}

	stratum := NewItemStratum(caps, traits.URL, traits.Layers, traits.Style)
	if stratum.Layer() == nil {
		return &domain.ServiceError{
			Title:   "Layer not found",
			Message: fmt.Sprintf("The server does not offer a layer named %q.", traits.Layers),
			Err:     domain.ErrLayerNotFound,
		}
	}
	if stratum.TileMatrixSet() == nil {
		return &domain.ServiceError{
			Title: "No usable tile matrix set",
			Message: fmt.Sprintf(
				"Layer %q is not offered in a 256x256 web-mercator-aligned tile matrix set.",
				traits.Layers),
			Err: domain.ErrUnsupported,
		}
	}

	member.SetStratum(catalog.StratumCapabilities, stratum.Traits())
	return nil
}

// LoadGroup is the load entry point for a WMTS catalog group: one item
// per renderable layer. Layers without a usable tile matrix set are
// logged and skipped.
func LoadGroup(ctx context.Context, client *fetch.Client, registry *catalog.Registry, group *catalog.Member, logger *slog.Logger) error {
	traits := group.Traits()
	if traits.URL == "" {
		return &domain.ConfigError{Member: group.ID, Field: "url", Message: "a WMTS group needs a url"}
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
	for _, layer := range caps.Layers {
		if layer.Identifier == "" {
			logger.Warn("skipping wmts layer without identifier", "title", layer.Title, "group", group.ID)
			continue
		}
		stratum := NewItemStratum(caps, traits.URL, layer.Identifier, "")
		if stratum.TileMatrixSet() == nil {
			logger.Warn("skipping wmts layer without usable tile matrix set",
				"layer", layer.Identifier, "group", group.ID)
			continue
		}

		id := catalog.MemberID(group.ID, layer.Identifier)
		member, _ := registry.GetOrCreate(id, catalog.TypeWMTS)

		definition := catalog.Traits{
			Name:          layer.Title,
			URL:           traits.URL,
			Layers:        layer.Identifier,
			Hidden:        traits.Hidden,
			UseProxy:      traits.UseProxy,
			CacheDuration: traits.CacheDuration,
		}
		member.SetStratum(catalog.StratumDefinition, definition)
		member.SetStratum(catalog.StratumCapabilities, stratum.Traits())
		children = append(children, id)
	}
	group.SetChildren(children)
	return nil
}

// FetchCapabilities fetches and parses a WMTS GetCapabilities document.
func FetchCapabilities(ctx context.Context, client *fetch.Client, base, cacheDuration string) (*Capabilities, error) {
	ttl, err := fetch.ParseCacheDuration(cacheDuration)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cacheDuration", Message: err.Error()}
	}
	capsURL, err := ows.CapabilitiesURL(base, "WMTS", "1.0.0")
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
