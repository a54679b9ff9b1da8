// Package wfs parses WFS GetCapabilities documents (1.1.0) and derives
// catalog traits for feature-type items, including GetFeature request
// URL construction.
package wfs

import (
	"encoding/xml"
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
	FeatureTypes          []featureTypeXML          `xml:"FeatureTypeList>FeatureType"`
}

type featureTypeXML struct {
	Name          string               `xml:"Name"`
	Title         string               `xml:"Title"`
	Abstract      string               `xml:"Abstract"`
	Keywords      []string             `xml:"Keywords>Keyword"`
	DefaultSRS    string               `xml:"DefaultSRS"`
	OtherSRS      []string             `xml:"OtherSRS"`
	OutputFormats []string             `xml:"OutputFormats>Format"`
	BoundingBox   ows.WGS84BoundingBox `xml:"WGS84BoundingBox"`
}

// FeatureType is one requestable feature type.
type FeatureType struct {
	Name          string
	Title         string
	Abstract      string
	Keywords      []string
	SRS           []string // default first, normalized to EPSG:nnnn form
	OutputFormats []string
	Rectangle     domain.Rectangle
}

// Capabilities is the indexed representation of one WFS GetCapabilities
// response. Immutable after Parse.
type Capabilities struct {
	Version         string
	ServiceTitle    string
	ServiceAbstract string
	ServiceKeywords []string

	FeatureTypes []*FeatureType

	// OutputFormats advertised on the GetFeature operation itself.
	OutputFormats []string
	GetFeatureURL string

	byName  map[string]*FeatureType
	byTitle map[string]*FeatureType
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
	if len(raw.FeatureTypes) == 0 && raw.ServiceIdentification.Title == "" {
		return nil, domain.ErrMissingCapability
	}

	c := &Capabilities{
		Version:         raw.Version,
		ServiceTitle:    raw.ServiceIdentification.Title,
		ServiceAbstract: raw.ServiceIdentification.Abstract,
		ServiceKeywords: raw.ServiceIdentification.Keywords,
		byName:          make(map[string]*FeatureType),
		byTitle:         make(map[string]*FeatureType),
	}

	if op := raw.OperationsMetadata.Find("GetFeature"); op != nil {
		c.GetFeatureURL = op.Get.Href
		if p := op.Parameter("outputFormat"); p != nil {
			c.OutputFormats = p.Values()
		}
	}

	for _, raw := range raw.FeatureTypes {
		ft := &FeatureType{
			Name:          raw.Name,
			Title:         raw.Title,
			Abstract:      raw.Abstract,
			Keywords:      raw.Keywords,
			OutputFormats: raw.OutputFormats,
		}
		if raw.DefaultSRS != "" {
			ft.SRS = append(ft.SRS, NormalizeSRS(raw.DefaultSRS))
		}
		for _, srs := range raw.OtherSRS {
			ft.SRS = append(ft.SRS, NormalizeSRS(srs))
		}
		if r, err := raw.BoundingBox.Rectangle(); err == nil {
			ft.Rectangle = r
		}

		c.FeatureTypes = append(c.FeatureTypes, ft)
		if ft.Name != "" {
			if _, taken := c.byName[ft.Name]; !taken {
				c.byName[ft.Name] = ft
			}
		}
		if ft.Title != "" {
			if _, taken := c.byTitle[ft.Title]; !taken {
				c.byTitle[ft.Title] = ft
			}
		}
	}
	return c, nil
}

// FindFeatureType resolves a feature type reference: exact name, then
// the local part after a namespace prefix, then the title.
func (c *Capabilities) FindFeatureType(name string) *FeatureType {
	if ft, ok := c.byName[name]; ok {
		return ft
	}
	if local := ows.LocalName(name); local != name {
		if ft, ok := c.byName[local]; ok {
			return ft
		}
	}
	if ft, ok := c.byTitle[name]; ok {
		return ft
	}
	return nil
}

// NormalizeSRS rewrites URN spellings (urn:ogc:def:crs:EPSG::4326,
// urn:x-ogc:def:crs:EPSG:4326) to the EPSG:nnnn form.
func NormalizeSRS(srs string) string {
	lower := strings.ToLower(srs)
	if !strings.HasPrefix(lower, "urn:") {
		return srs
	}
	i := strings.LastIndexByte(srs, ':')
	if i < 0 || i == len(srs)-1 {
		return srs
	}
	code := srs[i+1:]
	if strings.Contains(lower, "epsg") {
		return "EPSG:" + code
	}
	return srs
}
