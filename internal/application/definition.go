package application

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/catena/internal/catalog"
)

// Definition is one parsed catalog definition file. Each file
// contributes a list of top-level members; groups may nest static
// members or point at an OGC endpoint that is expanded at composition
// time.
type Definition struct {
	Catalog []MemberDefinition `yaml:"catalog"`
}

// MemberDefinition declares one catalog member in a definition file.
type MemberDefinition struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`

	URL           string `yaml:"url"`
	UseProxy      *bool  `yaml:"useProxy"`
	CacheDuration string `yaml:"cacheDuration"`
	Hidden        *bool  `yaml:"hidden"`

	Layers string `yaml:"layers"`
	Style  string `yaml:"style"`
	CRS    string `yaml:"crs"`

	TypeNames    string `yaml:"typeNames"`
	OutputFormat string `yaml:"outputFormat"`
	MaxFeatures  *int   `yaml:"maxFeatures"`

	ProcessIdentifier string `yaml:"processIdentifier"`

	// Domain configures metadata grouping for csw-group members.
	Domain *DomainDefinition `yaml:"domain"`
	// MaxPages caps csw-group pagination; zero uses the default.
	MaxPages int `yaml:"maxPages"`

	// Members nests static children under a plain group.
	Members []MemberDefinition `yaml:"members"`
}

// DomainDefinition configures CSW metadata grouping.
type DomainDefinition struct {
	PropertyName       string `yaml:"propertyName"`
	HierarchySeparator string `yaml:"hierarchySeparator"`
	QueryPropertyName  string `yaml:"queryPropertyName"`
}

// ParseDefinition parses one YAML definition file.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing catalog definition: %w", err)
	}
	if err := validateMembers(def.Catalog, ""); err != nil {
		return nil, err
	}
	return &def, nil
}

func validateMembers(members []MemberDefinition, parent string) error {
	for _, m := range members {
		if m.Name == "" {
			return fmt.Errorf("catalog definition: member under %q has no name", parent)
		}
		if m.Type == "" {
			return fmt.Errorf("catalog definition: member %q has no type", m.Name)
		}
		if err := validateMembers(m.Members, m.Name); err != nil {
			return err
		}
	}
	return nil
}

// traits maps the declared fields onto the member's definition stratum.
func (m MemberDefinition) traits() catalog.Traits {
	return catalog.Traits{
		Name:              m.Name,
		Description:       m.Description,
		Hidden:            m.Hidden,
		URL:               m.URL,
		UseProxy:          m.UseProxy,
		CacheDuration:     m.CacheDuration,
		Layers:            m.Layers,
		Style:             m.Style,
		CRS:               m.CRS,
		TypeNames:         m.TypeNames,
		OutputFormat:      m.OutputFormat,
		MaxFeatures:       m.MaxFeatures,
		ProcessIdentifier: m.ProcessIdentifier,
	}
}
