// Package csw discovers catalog records through CSW 2.0.2: a paginated
// GetRecords harvest, optional GetDomain-driven grouping into a
// metadata tree, and classification of record URIs into catalog items
// and download links.
package csw

import (
	"encoding/xml"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/ows"
)

// URI is one resource reference carried by a record. GeoNetwork-style
// servers describe the linked protocol in the protocol attribute,
// others use scheme.
type URI struct {
	Protocol    string `xml:"protocol,attr"`
	Scheme      string `xml:"scheme,attr"`
	Name        string `xml:"name,attr"`
	Description string `xml:"description,attr"`
	URL         string `xml:",chardata"`
}

// ProtocolOrScheme returns whichever attribute describes the resource.
func (u *URI) ProtocolOrScheme() string {
	if u.Protocol != "" {
		return u.Protocol
	}
	return u.Scheme
}

// Record is one CSW metadata record (Dublin Core element set).
type Record struct {
	Identifier string   `xml:"identifier"`
	Title      string   `xml:"title"`
	Abstract   string   `xml:"abstract"`
	Subjects   []string `xml:"subject"`
	Format     string   `xml:"format"`
	Type       string   `xml:"type"`
	URIs       []URI    `xml:"URI"`
	References []URI    `xml:"references"`

	BoundingBox ows.WGS84BoundingBox `xml:"BoundingBox"`
}

// Values returns the record's values for a queryable property name.
// Only the properties the grouping rules can match on are exposed.
func (r *Record) Values(field string) []string {
	switch field {
	case "subject", "Subject":
		return r.Subjects
	case "title", "Title":
		return []string{r.Title}
	case "type", "Type":
		return []string{r.Type}
	case "identifier", "Identifier":
		return []string{r.Identifier}
	}
	return nil
}

// AllURIs merges dc:URI and dct:references.
func (r *Record) AllURIs() []URI {
	out := append([]URI(nil), r.URIs...)
	return append(out, r.References...)
}

// SearchResults is the csw:SearchResults envelope of one page.
type SearchResults struct {
	Matched    int      `xml:"numberOfRecordsMatched,attr"`
	Returned   int      `xml:"numberOfRecordsReturned,attr"`
	NextRecord int      `xml:"nextRecord,attr"`
	Records    []Record `xml:"Record"`

	// Some servers answer with summary records even when the full
	// element set is requested.
	SummaryRecords []Record `xml:"SummaryRecord"`
}

// All returns the page's records regardless of element set.
func (s *SearchResults) All() []Record {
	out := append([]Record(nil), s.Records...)
	return append(out, s.SummaryRecords...)
}

// GetRecordsResponse is one page of a GetRecords harvest.
type GetRecordsResponse struct {
	XMLName       xml.Name
	SearchResults SearchResults `xml:"SearchResults"`
}

// ParseGetRecordsResponse parses one GetRecords response page.
func ParseGetRecordsResponse(body []byte) (*GetRecordsResponse, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}
	var resp GetRecordsResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.XMLName.Local != "GetRecordsResponse" {
		return nil, domain.ErrMissingCapability
	}
	return &resp, nil
}

// GetDomainResponse carries the value list of one queryable property.
type GetDomainResponse struct {
	XMLName      xml.Name
	PropertyName string   `xml:"DomainValues>PropertyName"`
	Values       []string `xml:"DomainValues>ListOfValues>Value"`
}

// ParseGetDomainResponse parses a GetDomain response.
func ParseGetDomainResponse(body []byte) (*GetDomainResponse, error) {
	if err := ows.CheckForException(body); err != nil {
		return nil, err
	}
	var resp GetDomainResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.XMLName.Local != "GetDomainResponse" {
		return nil, domain.ErrMissingCapability
	}
	return &resp, nil
}
