// Package wmts parses WMTS GetCapabilities documents (1.0.0), checks
// tile matrix sets for web-mercator alignment and derives catalog
// traits for tile layers.
package wmts

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/ows"
)

type capabilitiesXML struct {
	XMLName               xml.Name
	Version               string                    `xml:"version,attr"`
	ServiceIdentification ows.ServiceIdentification `xml:"ServiceIdentification"`
	ServiceProvider       ows.ServiceProvider       `xml:"ServiceProvider"`
	OperationsMetadata    ows.OperationsMetadata    `xml:"OperationsMetadata"`
	Layers                []layerXML                `xml:"Contents>Layer"`
	TileMatrixSets        []tileMatrixSetXML        `xml:"Contents>TileMatrixSet"`
}

type layerXML struct {
	Identifier   string               `xml:"Identifier"`
	Title        string               `xml:"Title"`
	Abstract     string               `xml:"Abstract"`
	Formats      []string             `xml:"Format"`
	Styles       []styleXML           `xml:"Style"`
	BoundingBox  ows.WGS84BoundingBox `xml:"WGS84BoundingBox"`
	MatrixLinks  []string             `xml:"TileMatrixSetLink>TileMatrixSet"`
	ResourceURLs []ResourceURL        `xml:"ResourceURL"`
}

type styleXML struct {
	IsDefault  bool      `xml:"isDefault,attr"`
	Identifier string    `xml:"Identifier"`
	Title      string    `xml:"Title"`
	Abstract   string    `xml:"Abstract"`
	Legend     legendXML `xml:"LegendURL"`
}

type legendXML struct {
	Format string `xml:"format,attr"`
	Href   string `xml:"href,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
}

type tileMatrixSetXML struct {
	Identifier   string          `xml:"Identifier"`
	SupportedCRS string          `xml:"SupportedCRS"`
	TileMatrices []tileMatrixXML `xml:"TileMatrix"`
}

type tileMatrixXML struct {
	Identifier       string  `xml:"Identifier"`
	ScaleDenominator float64 `xml:"ScaleDenominator"`
	TopLeftCorner    string  `xml:"TopLeftCorner"`
	TileWidth        int     `xml:"TileWidth"`
	TileHeight       int     `xml:"TileHeight"`
	MatrixWidth      int     `xml:"MatrixWidth"`
	MatrixHeight     int     `xml:"MatrixHeight"`
}

// ResourceURL is a RESTful tile or legend endpoint template.
type ResourceURL struct {
	Format       string `xml:"format,attr"`
	ResourceType string `xml:"resourceType,attr"`
	Template     string `xml:"template,attr"`
}

// TileMatrix is one zoom level of a tile matrix set.
type TileMatrix struct {
	Identifier       string
	ScaleDenominator float64
	TopLeftCorner    string
	TileWidth        int
	TileHeight       int
	MatrixWidth      int
	MatrixHeight     int
}

// TileMatrixSet is a named tile pyramid definition.
type TileMatrixSet struct {
	Identifier   string
	SupportedCRS string
	TileMatrices []TileMatrix
}

// Web mercator tiling origin. Servers round the corner coordinates
// differently, so alignment is checked with a tolerance.
const (
	webMercatorOriginX = -20037508.342789244
	webMercatorOriginY = 20037508.342789244
	originTolerance    = 1.0
)

// IsWebMercatorAligned reports whether the set can back a standard
// 256x256 web-mercator tile pyramid: a web-mercator CRS, 256x256 tiles
// throughout, and every matrix anchored at the web-mercator origin.
func (s *TileMatrixSet) IsWebMercatorAligned() bool {
	if !isWebMercatorCRS(s.SupportedCRS) || len(s.TileMatrices) == 0 {
		return false
	}
	for _, tm := range s.TileMatrices {
		if tm.TileWidth != 256 || tm.TileHeight != 256 {
			return false
		}
		x, y, ok := tm.topLeft()
		if !ok {
			return false
		}
		if math.Abs(x-webMercatorOriginX) > originTolerance ||
			math.Abs(y-webMercatorOriginY) > originTolerance {
			return false
		}
	}
	return true
}

func (tm *TileMatrix) topLeft() (x, y float64, ok bool) {
	fields := strings.Fields(tm.TopLeftCorner)
	if len(fields) != 2 {
		return 0, 0, false
	}
	x, errX := strconv.ParseFloat(fields[0], 64)
	y, errY := strconv.ParseFloat(fields[1], 64)
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return x, y, true
}

// isWebMercatorCRS matches the spellings servers use for EPSG:3857,
// including the URN forms and the legacy 900913 alias.
func isWebMercatorCRS(crs string) bool {
	for _, code := range []string{"3857", "900913"} {
		if strings.HasSuffix(crs, ":"+code) {
			return true
		}
	}
	return false
}

// Layer is one tile layer offered by the service.
type Layer struct {
	Identifier string
	Title      string
	Abstract   string
	Formats    []string
	Styles     []domain.Style
	Rectangle  domain.Rectangle

	// MatrixSets holds the identifiers of the linked tile matrix sets.
	MatrixSets   []string
	ResourceURLs []ResourceURL
}

// Capabilities is the indexed representation of one WMTS
// GetCapabilities response. Immutable after Parse.
type Capabilities struct {
	Version         string
	ServiceTitle    string
	ServiceAbstract string
	ServiceKeywords []string

	Layers         []*Layer
	TileMatrixSets []*TileMatrixSet

	// GetTileURL is the KVP GetTile endpoint, when advertised.
	GetTileURL string

	byName     map[string]*Layer
	byTitle    map[string]*Layer
	matrixSets map[string]*TileMatrixSet
}

// Parse builds a Capabilities from a raw GetCapabilities response body.
func Parse(body []byte) (*Capabilities, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}

	var raw capabilitiesXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw.Layers) == 0 && raw.ServiceIdentification.Title == "" {
		return nil, domain.ErrMissingCapability
	}

	c := &Capabilities{
		Version:         raw.Version,
		ServiceTitle:    raw.ServiceIdentification.Title,
		ServiceAbstract: raw.ServiceIdentification.Abstract,
		ServiceKeywords: raw.ServiceIdentification.Keywords,
		byName:          make(map[string]*Layer),
		byTitle:         make(map[string]*Layer),
		matrixSets:      make(map[string]*TileMatrixSet),
	}

	if op := raw.OperationsMetadata.Find("GetTile"); op != nil {
		c.GetTileURL = op.Get.Href
	}

	for _, raw := range raw.TileMatrixSets {
		set := &TileMatrixSet{
			Identifier:   raw.Identifier,
			SupportedCRS: raw.SupportedCRS,
		}
		for _, tm := range raw.TileMatrices {
			set.TileMatrices = append(set.TileMatrices, TileMatrix(tm))
		}
		c.TileMatrixSets = append(c.TileMatrixSets, set)
		if _, taken := c.matrixSets[set.Identifier]; !taken {
			c.matrixSets[set.Identifier] = set
		}
	}

	for _, raw := range raw.Layers {
		layer := &Layer{
			Identifier:   raw.Identifier,
			Title:        raw.Title,
			Abstract:     raw.Abstract,
			Formats:      raw.Formats,
			MatrixSets:   raw.MatrixLinks,
			ResourceURLs: raw.ResourceURLs,
		}
		for _, s := range raw.Styles {
			style := domain.Style{
				Identifier: s.Identifier,
				Title:      s.Title,
				Abstract:   s.Abstract,
				IsDefault:  s.IsDefault,
			}
			if s.Legend.Href != "" {
				style.Legend = &domain.Legend{
					URL:      s.Legend.Href,
					MIMEType: s.Legend.Format,
					Width:    s.Legend.Width,
					Height:   s.Legend.Height,
				}
			}
			layer.Styles = append(layer.Styles, style)
		}
		if r, err := raw.BoundingBox.Rectangle(); err == nil {
			layer.Rectangle = r
		}

		c.Layers = append(c.Layers, layer)
		if layer.Identifier != "" {
			if _, taken := c.byName[layer.Identifier]; !taken {
				c.byName[layer.Identifier] = layer
			}
		}
		if layer.Title != "" {
			if _, taken := c.byTitle[layer.Title]; !taken {
				c.byTitle[layer.Title] = layer
			}
		}
	}
	return c, nil
}

// FindLayer resolves a layer reference: exact identifier, then the
// local part after a namespace prefix, then the title.
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

// TileMatrixSet returns the set with the given identifier, or nil.
func (c *Capabilities) TileMatrixSet(identifier string) *TileMatrixSet {
	return c.matrixSets[identifier]
}
