package wps

import (
	"fmt"
	"strings"

	"github.com/jobrunner/catena/internal/domain"
)

// ParameterType is the function-parameter kind an input converts to.
type ParameterType string

// Parameter types.
const (
	TypeString      ParameterType = "string"
	TypeEnumeration ParameterType = "enumeration"
	TypeDate        ParameterType = "date"
	TypeDateTime    ParameterType = "dateTime"
	TypePoint       ParameterType = "point"
	TypeLine        ParameterType = "line"
	TypePolygon     ParameterType = "polygon"
	TypeBoundingBox ParameterType = "boundingBox"
	TypeGeoJSON     ParameterType = "geojson"
)

// Parameter is the function-parameter definition derived from one
// process input.
type Parameter struct {
	Identifier string
	Title      string
	Abstract   string
	Type       ParameterType
	Required   bool

	// AllowedValues is set for enumerations.
	AllowedValues []string

	// DefaultCRS is set for bounding boxes.
	DefaultCRS string
}

// converters are tried in order against each input; the first whose
// predicate accepts the input decides the parameter type.
var converters = []struct {
	typ     ParameterType
	matches func(Input) bool
}{
	{TypeEnumeration, func(in Input) bool {
		return in.Literal != nil && len(in.Literal.AllowedValues) > 0
	}},
	{TypeString, func(in Input) bool {
		return in.Literal != nil
	}},
	{TypeDate, complexSchema("#date")},
	{TypeDateTime, complexSchema("#datetime")},
	{TypePoint, complexSchema("#point")},
	{TypeLine, complexSchema("#linestring")},
	{TypePolygon, complexSchema("#polygon")},
	{TypeBoundingBox, func(in Input) bool {
		return in.Bounding != nil
	}},
	{TypeGeoJSON, func(in Input) bool {
		if in.Complex == nil {
			return false
		}
		return strings.Contains(strings.ToLower(in.Complex.Schema), "geojson") ||
			strings.Contains(strings.ToLower(in.Complex.MimeType), "geo+json")
	}},
}

func complexSchema(suffix string) func(Input) bool {
	return func(in Input) bool {
		return in.Complex != nil && strings.HasSuffix(strings.ToLower(in.Complex.Schema), suffix)
	}
}

// ConvertInputs maps the process inputs to function parameters. An
// input no converter accepts fails with a configuration error naming
// the parameter.
func ConvertInputs(member string, inputs []Input) ([]Parameter, error) {
	var out []Parameter
	for _, in := range inputs {
		param, err := convertInput(member, in)
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func convertInput(member string, in Input) (Parameter, error) {
	for _, c := range converters {
		if !c.matches(in) {
			continue
		}
		param := Parameter{
			Identifier: in.Identifier,
			Title:      in.Title,
			Abstract:   in.Abstract,
			Type:       c.typ,
			Required:   in.Required,
		}
		if c.typ == TypeEnumeration {
			param.AllowedValues = in.Literal.AllowedValues
		}
		if c.typ == TypeBoundingBox {
			param.DefaultCRS = in.Bounding.DefaultCRS
		}
		return param, nil
	}
	return Parameter{}, &domain.ConfigError{
		Member:  member,
		Field:   in.Identifier,
		Message: fmt.Sprintf("unsupported parameter type: %s", describeInput(in)),
	}
}

func describeInput(in Input) string {
	switch {
	case in.Complex != nil && in.Complex.Schema != "":
		return "complex data with schema " + in.Complex.Schema
	case in.Complex != nil:
		return "complex data with mime type " + in.Complex.MimeType
	default:
		return "no literal, complex or bounding-box declaration"
	}
}
