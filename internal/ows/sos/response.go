package sos

import (
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
	"github.com/jobrunner/catena/internal/fetch"
	"github.com/jobrunner/catena/internal/ows"
)

type envelopeXML struct {
	XMLName xml.Name
	Body    *soapBodyXML `xml:"Body"`
}

type soapBodyXML struct {
	Fault *soapFaultXML `xml:"Fault"`
	Inner []byte        `xml:",innerxml"`
}

type soapFaultXML struct {
	Reason string `xml:"Reason>Text"`
	Text   string `xml:"faultstring"`
}

// UnwrapSOAP extracts the payload of a SOAP envelope. A response
// without a Body, with a Fault, or carrying an OGC exception report is
// a domain error.
func UnwrapSOAP(body []byte) ([]byte, error) {
	var env envelopeXML
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.XMLName.Local != "Envelope" || env.Body == nil {
		return nil, &domain.ServiceError{
			Title:   "Invalid server response",
			Message: "The server did not answer with a SOAP envelope.",
			Err:     domain.ErrBadResponse,
		}
	}
	if f := env.Body.Fault; f != nil {
		text := f.Reason
		if text == "" {
			text = f.Text
		}
		return nil, &domain.ExceptionError{Code: "Fault", Text: text}
	}
	if err := ows.CheckForException(env.Body.Inner); err != nil {
		return nil, err
	}
	return env.Body.Inner, nil
}

// FeatureOfInterest is one monitoring site.
type FeatureOfInterest struct {
	Identifier string
	Name       string
	Lat        float64
	Lon        float64
}

type foiResponseXML struct {
	Features []struct {
		Identifier string `xml:"identifier"`
		Name       string `xml:"name"`
		Pos        string `xml:"shape>Point>pos"`
	} `xml:"featureMember>SF_SpatialSamplingFeature"`
}

// ParseFeaturesOfInterest parses an unwrapped GetFeatureOfInterest
// response. Features whose position cannot be read keep zero
// coordinates; they are still listed.
func ParseFeaturesOfInterest(payload []byte) ([]FeatureOfInterest, error) {
	var raw foiResponseXML
	if err := xml.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	out := make([]FeatureOfInterest, 0, len(raw.Features))
	for _, f := range raw.Features {
		foi := FeatureOfInterest{Identifier: f.Identifier, Name: f.Name}
		// gml:pos carries "lat lon".
		if lat, lon, ok := parsePos(f.Pos); ok {
			foi.Lat, foi.Lon = lat, lon
		}
		out = append(out, foi)
	}
	return out, nil
}

func parsePos(pos string) (lat, lon float64, ok bool) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(fields[0], 64)
	lon, errLon := strconv.ParseFloat(fields[1], 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// Observation is one timeseries of measurements for a procedure and
// observed property at one feature of interest.
type Observation struct {
	Procedure         string
	ObservedProperty  string
	FeatureOfInterest string
	UnitOfMeasure     string
	Points            []MeasurementPoint
}

// MeasurementPoint is one (time, value) sample.
type MeasurementPoint struct {
	Time  string
	Value string
}

type observationResponseXML struct {
	Observations []struct {
		Procedure struct {
			Href string `xml:"href,attr"`
		} `xml:"OM_Observation>procedure"`
		ObservedProperty struct {
			Href string `xml:"href,attr"`
		} `xml:"OM_Observation>observedProperty"`
		Feature struct {
			Href string `xml:"href,attr"`
		} `xml:"OM_Observation>featureOfInterest"`
		Unit struct {
			Code string `xml:"code,attr"`
		} `xml:"OM_Observation>result>MeasurementTimeseries>defaultPointMetadata>DefaultTVPMeasurementMetadata>uom"`
		Points []struct {
			Time  string `xml:"MeasurementTVP>time"`
			Value string `xml:"MeasurementTVP>value"`
		} `xml:"OM_Observation>result>MeasurementTimeseries>point"`
	} `xml:"observationData"`
}

// ParseObservations parses an unwrapped GetObservation response with
// WaterML measurement timeseries results.
func ParseObservations(payload []byte) ([]Observation, error) {
	var raw observationResponseXML
	if err := xml.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	out := make([]Observation, 0, len(raw.Observations))
	for _, o := range raw.Observations {
		obs := Observation{
			Procedure:         o.Procedure.Href,
			ObservedProperty:  o.ObservedProperty.Href,
			FeatureOfInterest: o.Feature.Href,
			UnitOfMeasure:     o.Unit.Code,
		}
		for _, p := range o.Points {
			obs.Points = append(obs.Points, MeasurementPoint{Time: p.Time, Value: p.Value})
		}
		out = append(out, obs)
	}
	return out, nil
}

// FetchFeaturesOfInterest posts a GetFeatureOfInterest request and
// parses the response.
func FetchFeaturesOfInterest(ctx context.Context, client *fetch.Client, url string, opts RequestOptions) ([]FeatureOfInterest, error) {
	if url == "" {
		return nil, &domain.ConfigError{Field: "url", Message: "an SOS request needs a url"}
	}
	body, err := GetFeatureOfInterestBody(opts)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(ctx, url, soapContentType, body, Protocol)
	if err != nil {
		return nil, err
	}
	payload, err := UnwrapSOAP(resp)
	if err != nil {
		return nil, wrapUnwrapError(url, err)
	}
	features, err := ParseFeaturesOfInterest(payload)
	if err != nil {
		return nil, domain.FormatError(url, err)
	}
	return features, nil
}

// FetchObservations posts a GetObservation request and parses the
// response.
func FetchObservations(ctx context.Context, client *fetch.Client, url string, opts RequestOptions) ([]Observation, error) {
	if url == "" {
		return nil, &domain.ConfigError{Field: "url", Message: "an SOS request needs a url"}
	}
	body, err := GetObservationBody(opts)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(ctx, url, soapContentType, body, Protocol)
	if err != nil {
		return nil, err
	}
	payload, err := UnwrapSOAP(resp)
	if err != nil {
		return nil, wrapUnwrapError(url, err)
	}
	observations, err := ParseObservations(payload)
	if err != nil {
		return nil, domain.FormatError(url, err)
	}
	return observations, nil
}

// wrapUnwrapError keeps structured errors as-is and wraps raw XML
// errors with the request context.
func wrapUnwrapError(url string, err error) error {
	switch err.(type) {
	case *domain.ServiceError, *domain.ExceptionError:
		return err
	}
	return domain.FormatError(url, err)
}
