package ows

import (
	"encoding/xml"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
)

// exceptionReport is the ows:ExceptionReport used by WFS, WMTS, WPS and
// CSW servers.
type exceptionReport struct {
	XMLName    xml.Name `xml:"ExceptionReport"`
	Exceptions []struct {
		Code  string   `xml:"exceptionCode,attr"`
		Texts []string `xml:"ExceptionText"`
	} `xml:"Exception"`
}

// serviceExceptionReport is the WMS ServiceExceptionReport.
type serviceExceptionReport struct {
	XMLName    xml.Name `xml:"ServiceExceptionReport"`
	Exceptions []struct {
		Code string `xml:"code,attr"`
		Text string `xml:",chardata"`
	} `xml:"ServiceException"`
}

// CheckForException inspects a response body for an OGC exception
// document. Returns a *domain.ExceptionError carrying the server's text
// verbatim when one is found, nil otherwise.
func CheckForException(body []byte) error {
	var report exceptionReport
	if err := xml.Unmarshal(body, &report); err == nil && len(report.Exceptions) > 0 {
		first := report.Exceptions[0]
		return &domain.ExceptionError{
			Code: first.Code,
			Text: strings.TrimSpace(strings.Join(first.Texts, "; ")),
		}
	}

	var legacy serviceExceptionReport
	if err := xml.Unmarshal(body, &legacy); err == nil && len(legacy.Exceptions) > 0 {
		first := legacy.Exceptions[0]
		return &domain.ExceptionError{
			Code: first.Code,
			Text: strings.TrimSpace(first.Text),
		}
	}

	return nil
}
