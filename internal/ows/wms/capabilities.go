// Package wms parses WMS GetCapabilities documents (1.1.1 and 1.3.0)
// and derives catalog traits for WMS layers. Version differences are
// folded away at parse time: SRS and LatLonBoundingBox (1.1.1) land in
// the same fields as CRS and EX_GeographicBoundingBox (1.3.0), and
// Extent values are merged into their declaring Dimension.
package wms

import (
	"encoding/xml"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/ows"
)

// raw document shapes. The root element name differs between versions
// (WMS_Capabilities vs WMT_MS_Capabilities), so the XMLName carries no
// name constraint.

type capabilitiesXML struct {
	XMLName    xml.Name
	Version    string         `xml:"version,attr"`
	Service    serviceXML     `xml:"Service"`
	Capability *capabilityXML `xml:"Capability"`
}

type serviceXML struct {
	Name              string          `xml:"Name"`
	Title             string          `xml:"Title"`
	Abstract          string          `xml:"Abstract"`
	KeywordList       ows.KeywordList `xml:"KeywordList"`
	Fees              string          `xml:"Fees"`
	AccessConstraints string          `xml:"AccessConstraints"`
}

type capabilityXML struct {
	Request requestXML `xml:"Request"`
	Layers  []layerXML `xml:"Layer"`
}

type requestXML struct {
	GetMap           operationXML  `xml:"GetMap"`
	GetFeatureInfo   operationXML  `xml:"GetFeatureInfo"`
	GetLegendGraphic *operationXML `xml:"GetLegendGraphic"`
	GetTimeseries    *operationXML `xml:"GetTimeseries"`
}

type operationXML struct {
	Formats []string           `xml:"Format"`
	Get     ows.OnlineResource `xml:"DCPType>HTTP>Get>OnlineResource"`
}

type layerXML struct {
	Queryable string `xml:"queryable,attr"`
	Name      string `xml:"Name"`
	Title     string `xml:"Title"`
	Abstract  string `xml:"Abstract"`

	CRS []string `xml:"CRS"`
	SRS []string `xml:"SRS"`

	GeographicBox *geographicBoxXML `xml:"EX_GeographicBoundingBox"`
	LatLonBox     *latLonBoxXML     `xml:"LatLonBoundingBox"`

	Styles     []styleXML      `xml:"Style"`
	Dimensions []dimensionXML  `xml:"Dimension"`
	Extents    []dimensionXML  `xml:"Extent"`
	Keywords   ows.KeywordList `xml:"KeywordList"`

	Layers []layerXML `xml:"Layer"`
}

type geographicBoxXML struct {
	West  string `xml:"westBoundLongitude"`
	East  string `xml:"eastBoundLongitude"`
	South string `xml:"southBoundLatitude"`
	North string `xml:"northBoundLatitude"`
}

type latLonBoxXML struct {
	MinX string `xml:"minx,attr"`
	MinY string `xml:"miny,attr"`
	MaxX string `xml:"maxx,attr"`
	MaxY string `xml:"maxy,attr"`
}

type styleXML struct {
	Name      string `xml:"Name"`
	Title     string `xml:"Title"`
	Abstract  string `xml:"Abstract"`
	LegendURL *struct {
		Width  int                `xml:"width,attr"`
		Height int                `xml:"height,attr"`
		Format string             `xml:"Format"`
		Online ows.OnlineResource `xml:"OnlineResource"`
	} `xml:"LegendURL"`
}

type dimensionXML struct {
	Name          string `xml:"name,attr"`
	Units         string `xml:"units,attr"`
	UnitSymbol    string `xml:"unitSymbol,attr"`
	Default       string `xml:"default,attr"`
	MultipleValue string `xml:"multipleValues,attr"`
	Values        string `xml:",chardata"`
}

// Layer is one node of the parsed layer tree. A layer with a Title but
// no Name is a non-selectable grouping node; a named layer is directly
// requestable.
type Layer struct {
	Name      string
	Title     string
	Abstract  string
	Queryable bool
	Keywords  []string

	// CRS holds this node's own CRS/SRS values; use InheritedCRS for
	// the effective set.
	CRS        []string
	Rectangle  domain.Rectangle // zero when the layer declares no box
	Styles     []domain.Style
	Dimensions []domain.Dimension

	Children []*Layer
}

// HasName reports whether the layer is directly requestable.
func (l *Layer) HasName() bool {
	return l.Name != ""
}

// Capabilities is the indexed representation of one WMS GetCapabilities
// response. It is immutable after Parse.
type Capabilities struct {
	Version           string
	ServiceTitle      string
	ServiceAbstract   string
	ServiceKeywords   []string
	AccessConstraints string

	GetMapURL          string
	MapFormats         []string
	FeatureInfoURL     string
	FeatureInfoFormats []string

	SupportsGetLegendGraphic bool
	LegendGraphicFormats     []string
	SupportsGetTimeseries    bool

	// RootLayers preserves document order. TopLevelNamedLayers holds,
	// per branch, the first named layer met while every ancestor was
	// still un-named.
	RootLayers          []*Layer
	TopLevelNamedLayers []*Layer

	allLayers []*Layer
	byName    map[string]*Layer
	byTitle   map[string]*Layer
	parent    map[*Layer]*Layer
}

// Parse builds a Capabilities from a raw GetCapabilities response body.
// A server-reported exception document or a document without a
// Capability element is an error.
func Parse(body []byte) (*Capabilities, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}

	var raw capabilitiesXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.Capability == nil {
		return nil, domain.ErrMissingCapability
	}

	c := &Capabilities{
		Version:           raw.Version,
		ServiceTitle:      raw.Service.Title,
		ServiceAbstract:   raw.Service.Abstract,
		ServiceKeywords:   raw.Service.KeywordList.Keywords,
		AccessConstraints: raw.Service.AccessConstraints,

		GetMapURL:          raw.Capability.Request.GetMap.Get.Href,
		MapFormats:         raw.Capability.Request.GetMap.Formats,
		FeatureInfoURL:     raw.Capability.Request.GetFeatureInfo.Get.Href,
		FeatureInfoFormats: raw.Capability.Request.GetFeatureInfo.Formats,

		byName:  make(map[string]*Layer),
		byTitle: make(map[string]*Layer),
		parent:  make(map[*Layer]*Layer),
	}

	if op := raw.Capability.Request.GetLegendGraphic; op != nil {
		c.SupportsGetLegendGraphic = true
		c.LegendGraphicFormats = op.Formats
	}
	if raw.Capability.Request.GetTimeseries != nil {
		c.SupportsGetTimeseries = true
	}

	for i := range raw.Capability.Layers {
		root := c.buildLayer(&raw.Capability.Layers[i], nil)
		c.RootLayers = append(c.RootLayers, root)
		c.collectTopLevelNamed(root)
	}

	return c, nil
}

// buildLayer converts one raw layer node and registers it in the
// indices. The first layer seen wins a name or title collision.
func (c *Capabilities) buildLayer(raw *layerXML, parent *Layer) *Layer {
	l := &Layer{
		Name:      raw.Name,
		Title:     raw.Title,
		Abstract:  raw.Abstract,
		Queryable: raw.Queryable == "1" || strings.EqualFold(raw.Queryable, "true"),
		Keywords:  raw.Keywords.Keywords,
	}

	l.CRS = append(l.CRS, raw.CRS...)
	l.CRS = append(l.CRS, raw.SRS...)

	l.Rectangle = parseRectangle(raw)
	l.Styles = parseStyles(raw.Styles)
	l.Dimensions = mergeDimensions(raw.Dimensions, raw.Extents)

	c.allLayers = append(c.allLayers, l)
	c.parent[l] = parent
	if l.Name != "" {
		if _, taken := c.byName[l.Name]; !taken {
			c.byName[l.Name] = l
		}
	}
	if l.Title != "" {
		if _, taken := c.byTitle[l.Title]; !taken {
			c.byTitle[l.Title] = l
		}
	}

	for i := range raw.Layers {
		l.Children = append(l.Children, c.buildLayer(&raw.Layers[i], l))
	}
	return l
}

func (c *Capabilities) collectTopLevelNamed(l *Layer) {
	if l.HasName() {
		c.TopLevelNamedLayers = append(c.TopLevelNamedLayers, l)
		return
	}
	for _, child := range l.Children {
		c.collectTopLevelNamed(child)
	}
}

func parseRectangle(raw *layerXML) domain.Rectangle {
	if b := raw.GeographicBox; b != nil {
		if r, err := domain.NewRectangle(b.West, b.South, b.East, b.North); err == nil {
			return r
		}
	}
	if b := raw.LatLonBox; b != nil {
		if r, err := domain.NewRectangle(b.MinX, b.MinY, b.MaxX, b.MaxY); err == nil {
			return r
		}
	}
	return domain.Rectangle{}
}

func parseStyles(raw []styleXML) []domain.Style {
	styles := make([]domain.Style, 0, len(raw))
	for _, s := range raw {
		style := domain.Style{
			Identifier: s.Name,
			Title:      s.Title,
			Abstract:   s.Abstract,
		}
		if s.LegendURL != nil && s.LegendURL.Online.Href != "" {
			style.Legend = &domain.Legend{
				URL:      s.LegendURL.Online.Href,
				MIMEType: s.LegendURL.Format,
				Width:    s.LegendURL.Width,
				Height:   s.LegendURL.Height,
			}
		}
		styles = append(styles, style)
	}
	return styles
}

// mergeDimensions folds 1.1.1 Extent elements into their declaring
// Dimension. In 1.3.0 the Dimension itself carries the values; an Extent
// without a matching Dimension still yields a usable dimension.
func mergeDimensions(dims, extents []dimensionXML) []domain.Dimension {
	byName := make(map[string]int)
	var out []domain.Dimension

	add := func(d dimensionXML) {
		name := strings.ToLower(d.Name)
		idx, seen := byName[name]
		if !seen {
			out = append(out, domain.Dimension{Name: name})
			idx = len(out) - 1
			byName[name] = idx
		}
		dim := &out[idx]
		if d.Units != "" {
			dim.Units = d.Units
		}
		if d.UnitSymbol != "" {
			dim.UnitSymbol = d.UnitSymbol
		}
		if d.Default != "" {
			dim.Default = d.Default
		}
		if d.MultipleValue == "1" || strings.EqualFold(d.MultipleValue, "true") {
			dim.MultipleValue = true
		}
		if v := strings.TrimSpace(d.Values); v != "" {
			dim.Values = append(dim.Values, v)
		}
	}

	for _, d := range dims {
		add(d)
	}
	for _, e := range extents {
		add(e)
	}
	return out
}

// FindLayer resolves a layer reference: exact name first; then, when the
// reference carries a namespace prefix, the local part; finally the
// title. Returns nil when nothing matches.
func (c *Capabilities) FindLayer(name string) *Layer {
	if l, ok := c.byName[name]; ok {
		return l
	}
	if local := ows.LocalName(name); local != name {
		if l, ok := c.byName[local]; ok {
			return l
		}
	}
	if l, ok := c.byTitle[name]; ok {
		return l
	}
	return nil
}

// Parent returns the parent of a layer, or nil at a root.
func (c *Capabilities) Parent(l *Layer) *Layer {
	return c.parent[l]
}

// Ancestry returns the chain from l (inclusive) to its root.
func (c *Capabilities) Ancestry(l *Layer) []*Layer {
	var chain []*Layer
	for node := l; node != nil; node = c.parent[node] {
		chain = append(chain, node)
	}
	return chain
}

// Layers returns every layer in document order.
func (c *Capabilities) Layers() []*Layer {
	return c.allLayers
}

// InheritedCRS returns the union of CRS/SRS values along l's ancestry,
// nearest first, first occurrence kept.
func (c *Capabilities) InheritedCRS(l *Layer) []string {
	var out []string
	seen := make(map[string]bool)
	for _, node := range c.Ancestry(l) {
		for _, crs := range node.CRS {
			if !seen[crs] {
				seen[crs] = true
				out = append(out, crs)
			}
		}
	}
	return out
}

// InheritedStyles returns the styles available to l, own styles first,
// then inherited ones, deduplicated by identifier.
func (c *Capabilities) InheritedStyles(l *Layer) []domain.Style {
	var out []domain.Style
	seen := make(map[string]bool)
	for _, node := range c.Ancestry(l) {
		for _, s := range node.Styles {
			if !seen[s.Identifier] {
				seen[s.Identifier] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// InheritedDimensions returns l's dimensions merged with its ancestors';
// the nearest declaration of a dimension name wins.
func (c *Capabilities) InheritedDimensions(l *Layer) []domain.Dimension {
	var out []domain.Dimension
	seen := make(map[string]bool)
	for _, node := range c.Ancestry(l) {
		for _, d := range node.Dimensions {
			if !seen[d.Name] {
				seen[d.Name] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// InheritedRectangle returns l's own bounding box, or the nearest
// ancestor's when l has none.
func (c *Capabilities) InheritedRectangle(l *Layer) domain.Rectangle {
	for _, node := range c.Ancestry(l) {
		if !node.Rectangle.IsZero() {
			return node.Rectangle
		}
	}
	return domain.Rectangle{}
}

// TimeDimension returns the inherited time dimension of l, or nil.
func (c *Capabilities) TimeDimension(l *Layer) *domain.Dimension {
	for _, d := range c.InheritedDimensions(l) {
		if d.Name == "time" {
			dim := d
			return &dim
		}
	}
	return nil
}
