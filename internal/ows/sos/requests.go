// Package sos builds SOAP-wrapped SOS 2.0 requests
// (GetFeatureOfInterest, GetObservation) from Go templates, posts them
// and unwraps the SOAP responses.
package sos

import (
	"bytes"
	"text/template"
	"time"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
)

// Protocol is the metrics label for SOS fetches.
const Protocol = "sos"

// soapContentType is the POST content type for SOAP-wrapped requests.
const soapContentType = "application/soap+xml"

// TemporalFilter restricts GetObservation to [Start, End].
type TemporalFilter struct {
	Start time.Time
	End   time.Time
}

// NewTemporalFilter derives the window [end-duration, end]. duration
// uses catalog cache-duration syntax ("60d", "72h"). The start is
// clamped so it never precedes earliest (ignored when zero).
func NewTemporalFilter(end time.Time, duration string, earliest time.Time) (TemporalFilter, error) {
	d, err := fetch.ParseCacheDuration(duration)
	if err != nil {
		return TemporalFilter{}, &domain.ConfigError{Field: "duration", Message: err.Error()}
	}
	start := end.Add(-d)
	if !earliest.IsZero() && start.Before(earliest) {
		start = earliest
	}
	return TemporalFilter{Start: start, End: end}, nil
}

// RequestOptions parameterizes both request templates.
type RequestOptions struct {
	ObservedProperties []string
	Procedures         []string
	FeaturesOfInterest []string
	Filter             *TemporalFilter
}

const getFeatureOfInterestTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope"
    xmlns:sos="http://www.opengis.net/sos/2.0"
    xmlns:swes="http://www.opengis.net/swes/2.0">
  <soap12:Body>
    <sos:GetFeatureOfInterest service="SOS" version="2.0.0">
{{- range .ObservedProperties}}
      <sos:observedProperty>{{.}}</sos:observedProperty>
{{- end}}
{{- range .Procedures}}
      <sos:procedure>{{.}}</sos:procedure>
{{- end}}
    </sos:GetFeatureOfInterest>
  </soap12:Body>
</soap12:Envelope>`

const getObservationTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope"
    xmlns:sos="http://www.opengis.net/sos/2.0"
    xmlns:fes="http://www.opengis.net/fes/2.0"
    xmlns:gml="http://www.opengis.net/gml/3.2">
  <soap12:Body>
    <sos:GetObservation service="SOS" version="2.0.0">
{{- range .Procedures}}
      <sos:procedure>{{.}}</sos:procedure>
{{- end}}
{{- range .ObservedProperties}}
      <sos:observedProperty>{{.}}</sos:observedProperty>
{{- end}}
{{- range .FeaturesOfInterest}}
      <sos:featureOfInterest>{{.}}</sos:featureOfInterest>
{{- end}}
{{- with .Filter}}
      <sos:temporalFilter>
        <fes:During>
          <fes:ValueReference>om:phenomenonTime</fes:ValueReference>
          <gml:TimePeriod gml:id="tp_1">
            <gml:beginPosition>{{.Start.UTC.Format "2006-01-02T15:04:05Z"}}</gml:beginPosition>
            <gml:endPosition>{{.End.UTC.Format "2006-01-02T15:04:05Z"}}</gml:endPosition>
          </gml:TimePeriod>
        </fes:During>
      </sos:temporalFilter>
{{- end}}
    </sos:GetObservation>
  </soap12:Body>
</soap12:Envelope>`

var (
	foiTemplate = template.Must(template.New("getFeatureOfInterest").Parse(getFeatureOfInterestTemplate))
	obsTemplate = template.Must(template.New("getObservation").Parse(getObservationTemplate))
)

// GetFeatureOfInterestBody renders the GetFeatureOfInterest request.
func GetFeatureOfInterestBody(opts RequestOptions) ([]byte, error) {
	return render(foiTemplate, opts)
}

// GetObservationBody renders the GetObservation request.
func GetObservationBody(opts RequestOptions) ([]byte, error) {
	return render(obsTemplate, opts)
}

func render(tmpl *template.Template, opts RequestOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, &domain.ConfigError{Field: "request", Message: err.Error()}
	}
	return buf.Bytes(), nil
}
