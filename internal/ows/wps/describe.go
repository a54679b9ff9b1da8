// Package wps drives WPS 1.0.0 processes: DescribeProcess parsing,
// input-type conversion, Execute requests (GET or POST) and the
// asynchronous job status loop, plus output post-processing.
package wps

import (
	"context"
	"encoding/xml"

	"github.com/jobrunner/catena/internal/catalog"
	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

// Protocol is the metrics label for WPS fetches.
const Protocol = "wps"

type processDescriptionsXML struct {
	XMLName   xml.Name
	Processes []processDescriptionXML `xml:"ProcessDescription"`
}

type processDescriptionXML struct {
	StatusSupported bool       `xml:"statusSupported,attr"`
	StoreSupported  bool       `xml:"storeSupported,attr"`
	Identifier      string     `xml:"Identifier"`
	Title           string     `xml:"Title"`
	Abstract        string     `xml:"Abstract"`
	Inputs          []inputXML `xml:"DataInputs>Input"`
}

type inputXML struct {
	MinOccurs  int             `xml:"minOccurs,attr"`
	Identifier string          `xml:"Identifier"`
	Title      string          `xml:"Title"`
	Abstract   string          `xml:"Abstract"`
	Literal    *literalDataXML `xml:"LiteralData"`
	Complex    *complexDataXML `xml:"ComplexData"`
	Bounding   *boundingXML    `xml:"BoundingBoxData"`
}

type literalDataXML struct {
	AnyValue      *struct{} `xml:"AnyValue"`
	AllowedValues []string  `xml:"AllowedValues>Value"`
	DataType      string    `xml:"DataType"`
}

type complexDataXML struct {
	Default   formatXML   `xml:"Default>Format"`
	Supported []formatXML `xml:"Supported>Format"`
}

type formatXML struct {
	MimeType string `xml:"MimeType"`
	Schema   string `xml:"Schema"`
}

type boundingXML struct {
	DefaultCRS string `xml:"Default>CRS"`
}

// Input is one declared process input.
type Input struct {
	Identifier string
	Title      string
	Abstract   string
	Required   bool

	Literal  *LiteralData
	Complex  *ComplexData
	Bounding *BoundingBoxData
}

// LiteralData describes a literal input.
type LiteralData struct {
	AnyValue      bool
	AllowedValues []string
	DataType      string
}

// ComplexData describes a complex input by its default schema.
type ComplexData struct {
	MimeType string
	Schema   string
}

// BoundingBoxData describes a bounding-box input.
type BoundingBoxData struct {
	DefaultCRS string
}

// ProcessDescription is the parsed DescribeProcess response for one
// process.
type ProcessDescription struct {
	Identifier      string
	Title           string
	Abstract        string
	StatusSupported bool
	StoreSupported  bool
	Inputs          []Input
}

// ParseDescribeProcess parses a DescribeProcess response. Only the
// first described process is returned; the request names exactly one.
func ParseDescribeProcess(body []byte) (*ProcessDescription, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}
	var raw processDescriptionsXML
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if len(raw.Processes) == 0 {
		return nil, domain.ErrProcessNotFound
	}

	p := raw.Processes[0]
	desc := &ProcessDescription{
		Identifier:      p.Identifier,
		Title:           p.Title,
		Abstract:        p.Abstract,
		StatusSupported: p.StatusSupported,
		StoreSupported:  p.StoreSupported,
	}
	for _, in := range p.Inputs {
		input := Input{
			Identifier: in.Identifier,
			Title:      in.Title,
			Abstract:   in.Abstract,
			Required:   in.MinOccurs > 0,
		}
		if in.Literal != nil {
			input.Literal = &LiteralData{
				AnyValue:      in.Literal.AnyValue != nil,
				AllowedValues: in.Literal.AllowedValues,
				DataType:      in.Literal.DataType,
			}
		}
		if in.Complex != nil {
			input.Complex = &ComplexData{
				MimeType: in.Complex.Default.MimeType,
				Schema:   in.Complex.Default.Schema,
			}
		}
		if in.Bounding != nil {
			input.Bounding = &BoundingBoxData{DefaultCRS: in.Bounding.DefaultCRS}
		}
		desc.Inputs = append(desc.Inputs, input)
	}
	return desc, nil
}

// Stratum derives the capabilities stratum for a WPS catalog item.
func (d *ProcessDescription) Stratum() catalog.Traits {
	return catalog.Traits{
		Name:              d.Title,
		Description:       d.Abstract,
		ProcessIdentifier: d.Identifier,
	}
}

// LoadItem is the load entry point for a WPS catalog item.
func LoadItem(ctx context.Context, client *fetch.Client, member *catalog.Member) (*ProcessDescription, error) {
	traits := member.Traits()
	if traits.URL == "" {
		return nil, &domain.ConfigError{Member: member.ID, Field: "url", Message: "a WPS item needs a url"}
	}
	if traits.ProcessIdentifier == "" {
		return nil, &domain.ConfigError{Member: member.ID, Field: "processIdentifier", Message: "a WPS item needs a process identifier"}
	}

	desc, err := FetchDescribeProcess(ctx, client, traits.URL, traits.ProcessIdentifier, traits.CacheDuration)
	if err != nil {
		return nil, err
	}
	member.SetStratum(catalog.StratumCapabilities, desc.Stratum())
	return desc, nil
}

// FetchDescribeProcess fetches and parses a DescribeProcess document.
func FetchDescribeProcess(ctx context.Context, client *fetch.Client, base, identifier, cacheDuration string) (*ProcessDescription, error) {
	ttl, err := fetch.ParseCacheDuration(cacheDuration)
	if err != nil {
		return nil, &domain.ConfigError{Field: "cacheDuration", Message: err.Error()}
	}
	describeURL, err := ows.BuildURL(base, map[string]string{
		"service":    "WPS",
		"version":    "1.0.0",
		"request":    "DescribeProcess",
		"Identifier": identifier,
	})
	if err != nil {
		return nil, &domain.ConfigError{Field: "url", Message: err.Error()}
	}

	body, err := client.Get(ctx, describeURL, ttl, Protocol)
	if err != nil {
		return nil, err
	}
	desc, err := ParseDescribeProcess(body)
	if err != nil {
		return nil, domain.FormatError(describeURL, err)
	}
	return desc, nil
}
