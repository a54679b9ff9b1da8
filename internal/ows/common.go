// Package ows contains the XML shapes shared by all OGC web service
// protocols: service metadata, online resources, operations metadata and
// exception reports. Individual protocols build on these in their own
// packages.
package ows

import (
	"fmt"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
)

// OnlineResource is an xlink reference as used throughout OGC documents.
type OnlineResource struct {
	Type string `xml:"type,attr"`
	Href string `xml:"href,attr"`
}

// KeywordList is a WMS-style keyword list.
type KeywordList struct {
	Keywords []string `xml:"Keyword"`
}

// ServiceIdentification is the ows:ServiceIdentification block shared by
// WFS, WMTS, WPS and CSW capabilities.
type ServiceIdentification struct {
	Title              string   `xml:"Title"`
	Abstract           string   `xml:"Abstract"`
	Keywords           []string `xml:"Keywords>Keyword"`
	ServiceType        string   `xml:"ServiceType"`
	ServiceTypeVersion []string `xml:"ServiceTypeVersion"`
	Fees               string   `xml:"Fees"`
	AccessConstraints  string   `xml:"AccessConstraints"`
}

// ServiceProvider is the ows:ServiceProvider block.
type ServiceProvider struct {
	ProviderName string         `xml:"ProviderName"`
	ProviderSite OnlineResource `xml:"ProviderSite"`
	Contact      ServiceContact `xml:"ServiceContact"`
}

// ServiceContact holds provider contact details.
type ServiceContact struct {
	IndividualName string `xml:"IndividualName"`
	PositionName   string `xml:"PositionName"`
	Phone          string `xml:"ContactInfo>Phone>Voice"`
	Email          string `xml:"ContactInfo>Address>ElectronicMailAddress"`
}

// OperationsMetadata is the ows:OperationsMetadata block.
type OperationsMetadata struct {
	Operations []Operation `xml:"Operation"`
}

// Operation describes one advertised operation and its endpoints.
type Operation struct {
	Name       string         `xml:"name,attr"`
	Get        OnlineResource `xml:"DCP>HTTP>Get"`
	Post       OnlineResource `xml:"DCP>HTTP>Post"`
	Parameters []Parameter    `xml:"Parameter"`
}

// Parameter is an ows:Parameter. OWS 1.0 nests values directly, OWS 1.1
// wraps them in AllowedValues; Values merges both.
type Parameter struct {
	Name          string   `xml:"name,attr"`
	DirectValues  []string `xml:"Value"`
	AllowedValues []string `xml:"AllowedValues>Value"`
}

// Values returns the parameter's values regardless of OWS version.
func (p *Parameter) Values() []string {
	out := append([]string(nil), p.DirectValues...)
	return append(out, p.AllowedValues...)
}

// Parameter returns the named parameter of the operation, or nil.
func (o *Operation) Parameter(name string) *Parameter {
	for i := range o.Parameters {
		if o.Parameters[i].Name == name {
			return &o.Parameters[i]
		}
	}
	return nil
}

// Find returns the operation with the given name, or nil.
func (m *OperationsMetadata) Find(name string) *Operation {
	for i := range m.Operations {
		if m.Operations[i].Name == name {
			return &m.Operations[i]
		}
	}
	return nil
}

// WGS84BoundingBox is the ows:WGS84BoundingBox with space-separated
// corner coordinates in lon/lat order.
type WGS84BoundingBox struct {
	LowerCorner string `xml:"LowerCorner"`
	UpperCorner string `xml:"UpperCorner"`
}

// Rectangle converts the corner strings to a Rectangle.
func (b WGS84BoundingBox) Rectangle() (domain.Rectangle, error) {
	lower, err := splitCorner(b.LowerCorner)
	if err != nil {
		return domain.Rectangle{}, err
	}
	upper, err := splitCorner(b.UpperCorner)
	if err != nil {
		return domain.Rectangle{}, err
	}
	return domain.NewRectangle(lower[0], lower[1], upper[0], upper[1])
}

func splitCorner(s string) ([2]string, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return [2]string{}, fmt.Errorf("corner %q: %w", s, domain.ErrBadResponse)
	}
	return [2]string{fields[0], fields[1]}, nil
}

// LocalName strips a namespace prefix (ns:local -> local). Returns the
// input unchanged when there is no prefix.
func LocalName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
