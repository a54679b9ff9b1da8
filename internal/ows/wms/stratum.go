package wms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

// Protocol is the metrics label for WMS fetches.
const Protocol = "wms"

// ItemOptions carries the enclosing catalog item's current trait values
// that influence derivation.
type ItemOptions struct {
	// URL is the base service URL. Query parameters on it act as
	// overrides (crs/srs, styles).
	URL string

	// Layers are the selected layer names. Empty means every top-level
	// named layer.
	Layers []string

	// Style is the user-chosen style identifier, empty for the server
	// default.
	Style string

	// PreferredCRS overrides CRS negotiation when supported and
	// advertised.
	PreferredCRS string

	// MaxRefreshIntervals caps periodic time expansion; zero uses the
	// package default.
	MaxRefreshIntervals int

	// ThemeTextColor is the UI theme's text color (css hex) used for
	// GeoServer legend font styling.
	ThemeTextColor string

	// Palette and ColorScaleRange are forwarded to ncWMS-flavoured
	// legend requests.
	Palette         string
	ColorScaleRange string
}

// ItemStratum derives map-rendering traits for one WMS catalog item from
// a parsed capabilities document. All derivation is pure: the same
// document and options always produce the same traits.
type ItemStratum struct {
	caps *Capabilities
	opts ItemOptions

	layers []*Layer
}

// NewItemStratum resolves the selected layers and returns the stratum.
func NewItemStratum(caps *Capabilities, opts ItemOptions) *ItemStratum {
	s := &ItemStratum{caps: caps, opts: opts}

	names := opts.Layers
	if len(names) == 0 {
		for _, l := range caps.TopLevelNamedLayers {
			s.layers = append(s.layers, l)
		}
		return s
	}
	for _, name := range names {
		if l := caps.FindLayer(name); l != nil {
			s.layers = append(s.layers, l)
		}
	}
	return s
}

// Layers returns the resolved selected layers.
func (s *ItemStratum) Layers() []*Layer {
	return s.layers
}

// Traits derives the full capabilities stratum for the item.
func (s *ItemStratum) Traits() catalog.Traits {
	t := catalog.Traits{
		CRS:             s.CRS(),
		Rectangle:       s.Rectangle(),
		Legends:         s.Legends(),
		AvailableStyles: s.AvailableStyles(),
		Times:           s.Times(),
		Dimensions:      s.StaticDimensions(),
		GetMapURL:       s.caps.GetMapURL,
	}

	if len(s.layers) > 0 {
		first := s.layers[0]
		t.Name = first.Title
		t.Description = first.Abstract
		t.Keywords = first.Keywords
	}
	if t.Description == "" {
		t.Description = s.caps.ServiceAbstract
	}
	if ac := s.caps.AccessConstraints; ac != "" && !strings.EqualFold(ac, "none") {
		t.Attribution = ac
	}

	t.FeatureInfoFormat, t.FeatureInfoVerb = s.FeatureInfo(len(t.Times))
	if t.CurrentTime == "" && len(t.Times) > 0 {
		t.CurrentTime = s.defaultTime(t.Times)
	}
	return t
}

// CRS negotiates the request coordinate reference system from the union
// of the selected layers' inherited CRS sets.
func (s *ItemStratum) CRS() string {
	var advertised []string
	seen := make(map[string]bool)
	for _, l := range s.layers {
		for _, crs := range s.caps.InheritedCRS(l) {
			if !seen[crs] {
				seen[crs] = true
				advertised = append(advertised, crs)
			}
		}
	}
	return domain.NegotiateCRS(s.opts.PreferredCRS, advertised)
}

// Rectangle is the union (not intersection) of the selected layers'
// bounding boxes, each falling back to the nearest ancestor's box.
func (s *ItemStratum) Rectangle() *domain.Rectangle {
	var out domain.Rectangle
	for _, l := range s.layers {
		out = out.Union(s.caps.InheritedRectangle(l))
	}
	if out.IsZero() {
		return nil
	}
	return &out
}

// AvailableStyles lists the styles the first selected layer can be drawn
// with, inherited styles included.
func (s *ItemStratum) AvailableStyles() []domain.Style {
	if len(s.layers) == 0 {
		return nil
	}
	return s.caps.InheritedStyles(s.layers[0])
}

// Legends resolves one legend per selected layer. Resolution order:
// an explicitly selected style carrying a legend URL wins; otherwise a
// GetLegendGraphic URL is synthesized when the server supports it;
// otherwise the first available style's legend is the only option left.
func (s *ItemStratum) Legends() []domain.Legend {
	var out []domain.Legend
	for _, l := range s.layers {
		if legend := s.legendForLayer(l); legend != nil {
			out = append(out, *legend)
		}
	}
	return out
}

func (s *ItemStratum) legendForLayer(l *Layer) *domain.Legend {
	styles := s.caps.InheritedStyles(l)

	if s.opts.Style != "" {
		if style := domain.FindStyle(styles, s.opts.Style); style != nil && style.Legend != nil {
			legend := *style.Legend
			return &legend
		}
	}

	if s.caps.SupportsGetLegendGraphic {
		return s.synthesizeLegend(l)
	}

	// Without GetLegendGraphic there is no way to ask for a "default"
	// legend; the first advertised style's legend is the best available.
	for _, style := range styles {
		if style.Legend != nil {
			legend := *style.Legend
			return &legend
		}
	}
	return nil
}

// synthesizeLegend builds a GetLegendGraphic request URL, adding
// GeoServer font options and ncWMS palette parameters for the matching
// server flavours.
func (s *ItemStratum) synthesizeLegend(l *Layer) *domain.Legend {
	base := s.caps.GetMapURL
	if base == "" {
		base = s.opts.URL
	}

	params := map[string]string{
		"service": "WMS",
		"version": s.requestVersion(),
		"request": "GetLegendGraphic",
		"format":  "image/png",
		"layer":   l.Name,
	}
	if s.opts.Style != "" {
		params["style"] = s.opts.Style
	}

	if s.isGeoServer() {
		params["LEGEND_OPTIONS"] = "fontList:Arial;fontColor:0x" +
			hexColor(s.opts.ThemeTextColor) + ";fontSize:12;forceLabels:on"
		params["transparent"] = "true"
	}
	if s.isNcWMS() {
		if s.opts.Palette != "" {
			params["palette"] = s.opts.Palette
		}
		if s.opts.ColorScaleRange != "" {
			params["colorscalerange"] = s.opts.ColorScaleRange
		}
	}

	legendURL, err := ows.BuildURL(base, params)
	if err != nil {
		return nil
	}
	return &domain.Legend{URL: legendURL, MIMEType: "image/png"}
}

// FeatureInfo negotiates the GetFeatureInfo response format and request
// verb. JSON variants always win; Esri-flavoured servers prefer XML over
// HTML, everyone else HTML/GML over XML; text/plain is last. A server
// with the GetTimeseries extension and more than one time step forces
// CSV output through that verb instead.
func (s *ItemStratum) FeatureInfo(timeSteps int) (format, verb string) {
	if s.caps.SupportsGetTimeseries && timeSteps > 1 {
		return "text/csv", "GetTimeseries"
	}

	preference := []string{
		"application/json",
		"application/geo+json",
		"application/vnd.geo+json",
	}
	if s.isEsri() {
		preference = append(preference, "text/xml", "text/html")
	} else {
		preference = append(preference,
			"text/html", "application/vnd.ogc.gml", "text/xml")
	}
	preference = append(preference, "text/plain")

	for _, want := range preference {
		for _, have := range s.caps.FeatureInfoFormats {
			if strings.EqualFold(have, want) {
				return want, "GetFeatureInfo"
			}
		}
	}
	return "", "GetFeatureInfo"
}

// Times expands the selected layers' time dimensions into discrete
// instants, first layer first, duplicates removed.
func (s *ItemStratum) Times() []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range s.layers {
		dim := s.caps.TimeDimension(l)
		if dim == nil {
			continue
		}
		for _, instant := range domain.ExpandTimeValues(dim.Values, s.opts.MaxRefreshIntervals) {
			if !seen[instant] {
				seen[instant] = true
				out = append(out, instant)
			}
		}
	}
	return out
}

func (s *ItemStratum) defaultTime(times []string) string {
	for _, l := range s.layers {
		if dim := s.caps.TimeDimension(l); dim != nil && dim.Default != "" {
			return dim.Default
		}
	}
	return times[len(times)-1]
}

// StaticDimensions returns the non-time dimension defaults keyed by
// name, for dim_* request parameters.
func (s *ItemStratum) StaticDimensions() map[string]string {
	out := make(map[string]string)
	for _, l := range s.layers {
		for _, d := range s.caps.InheritedDimensions(l) {
			if d.Name == "time" {
				continue
			}
			if _, ok := out[d.Name]; !ok && d.Default != "" {
				out[d.Name] = d.Default
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *ItemStratum) requestVersion() string {
	if s.caps.Version != "" {
		return s.caps.Version
	}
	return "1.3.0"
}

// Server flavour heuristics, from the service URL and metadata.

func (s *ItemStratum) isGeoServer() bool {
	if strings.Contains(strings.ToLower(s.serviceURL()), "geoserver") {
		return true
	}
	for _, kw := range s.caps.ServiceKeywords {
		if strings.EqualFold(kw, "geoserver") {
			return true
		}
	}
	return false
}

func (s *ItemStratum) isNcWMS() bool {
	u := strings.ToLower(s.serviceURL())
	return strings.Contains(u, "ncwms") ||
		strings.Contains(strings.ToLower(s.caps.ServiceTitle), "ncwms")
}

func (s *ItemStratum) isEsri() bool {
	return strings.Contains(strings.ToLower(s.serviceURL()), "mapserver/wmsserver") ||
		strings.Contains(s.caps.ServiceAbstract, "ArcGIS")
}

func (s *ItemStratum) serviceURL() string {
	if s.opts.URL != "" {
		return s.opts.URL
	}
	return s.caps.GetMapURL
}

// hexColor converts a css color (#fff, #3f3f3f) to a 6-digit hex string
// without the hash. Anything unparseable becomes black.
func hexColor(css string) string {
	c := strings.TrimPrefix(strings.TrimSpace(css), "#")
	switch len(c) {
	case 3:
		return strings.ToLower(string([]byte{
			c[0], c[0], c[1], c[1], c[2], c[2],
		}))
	case 6:
		return strings.ToLower(c)
	default:
		return "000000"
	}
}

// LoadItem is the load entry point for a WMS catalog item: it fetches
// and parses the capabilities document, derives the item's traits and
// replaces the member's capabilities stratum.
func LoadItem(ctx context.Context, client *fetch.Client, member *catalog.Member, opts ItemOptions) error {
	traits := member.Traits()
	base := traits.URL
	if base == "" {
		base = opts.URL
	}
	if base == "" {
		return &domain.ConfigError{Member: member.ID, Field: "url", Message: "a WMS item needs a url"}
	}

	caps, err := FetchCapabilities(ctx, client, base, traits.CacheDuration)
	if err != nil {
		return err
	}

	opts.URL = base
	applyURLOverrides(&opts, base)
	if len(opts.Layers) == 0 && traits.Layers != "" {
		opts.Layers = strings.Split(traits.Layers, ",")
	}
	if opts.Style == "" {
		opts.Style = traits.Style
	}

	member.SetStratum(catalog.StratumCapabilities, NewItemStratum(caps, opts).Traits())
	return nil
}

// FetchCapabilities fetches and parses a GetCapabilities document.
func FetchCapabilities(ctx context.Context, client *fetch.Client, base, cacheDuration string) (*Capabilities, error) {
	ttl, err := fetch.ParseCacheDuration(cacheDuration)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cacheDuration", Message: err.Error()}
	}
	capsURL, err := ows.CapabilitiesURL(base, "WMS", "1.3.0")
	if err != nil {
		return nil, &domain.ConfigError{Field: "url", Message: err.Error()}
	}

	body, err := client.Get(ctx, capsURL, ttl, Protocol)
	if err != nil {
		return nil, err
	}
	caps, err := Parse(body)
	if err != nil {
		return nil, wrapParseError(capsURL, err)
	}
	return caps, nil
}

func wrapParseError(url string, err error) error {
	var exc *domain.ExceptionError
	if errors.As(err, &exc) {
		return &domain.ServiceError{
			Title:   "Server reported an error",
			Message: fmt.Sprintf("The WMS server rejected the request: %s", exc.Text),
			Err:     err,
		}
	}
	return domain.FormatError(url, err)
}

// applyURLOverrides reads crs/srs and styles overrides from the item
// URL's query string.
func applyURLOverrides(opts *ItemOptions, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	q := u.Query()
	for name, values := range q {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		switch strings.ToLower(name) {
		case "crs", "srs":
			if opts.PreferredCRS == "" {
				opts.PreferredCRS = values[0]
			}
		case "styles":
			if opts.Style == "" {
				opts.Style = values[0]
			}
		case "layers":
			if len(opts.Layers) == 0 {
				opts.Layers = strings.Split(values[0], ",")
			}
		}
	}
}
