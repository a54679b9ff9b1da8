// Package catalog implements the layered catalog model: members hold
// named strata of trait values that compose by precedence into the
// member's effective traits. Composition only ever replaces whole strata;
// a stratum owned by one writer (for example user overrides) is never
// touched by another.
package catalog

import "github.com/jobrunner/catena/internal/domain"

// StratumID names one layer of trait values on a member.
type StratumID string

// Strata in precedence order, lowest first. A trait set in a higher
// stratum hides the same trait in lower ones.
const (
	StratumCapabilities StratumID = "capabilities" // derived from remote metadata
	StratumDefinition   StratumID = "definition"   // from the catalog definition file
	StratumUser         StratumID = "user"         // interactive overrides
)

// strataOrder lists strata lowest-precedence first.
var strataOrder = []StratumID{StratumCapabilities, StratumDefinition, StratumUser}

// Link is a titled URL, used for download links and info pages.
type Link struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Traits is the full set of declarative and derived properties a catalog
// member can carry. All fields are optional; nil/zero means "not set in
// this stratum". Pointer fields distinguish "unset" from a meaningful
// zero value.
type Traits struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
	InfoLinks   []Link   `json:"infoLinks,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Hidden      *bool    `json:"hidden,omitempty"`

	// Transport.
	URL           string `json:"url,omitempty"`
	UseProxy      *bool  `json:"useProxy,omitempty"`
	CacheDuration string `json:"cacheDuration,omitempty"`

	// Mapping.
	Layers            string            `json:"layers,omitempty"`
	Style             string            `json:"style,omitempty"`
	AvailableStyles   []domain.Style    `json:"availableStyles,omitempty"`
	Legends           []domain.Legend   `json:"legends,omitempty"`
	CRS               string            `json:"crs,omitempty"`
	Rectangle         *domain.Rectangle `json:"rectangle,omitempty"`
	Times             []string          `json:"times,omitempty"`
	CurrentTime       string            `json:"currentTime,omitempty"`
	Dimensions        map[string]string `json:"dimensions,omitempty"`
	FeatureInfoFormat string            `json:"featureInfoFormat,omitempty"`
	FeatureInfoVerb   string            `json:"featureInfoVerb,omitempty"`
	GetMapURL         string            `json:"getMapUrl,omitempty"`

	// WFS.
	TypeNames    string `json:"typeNames,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
	MaxFeatures  *int   `json:"maxFeatures,omitempty"`

	// WMTS.
	TileURLTemplate string `json:"tileUrlTemplate,omitempty"`
	TileMatrixSet   string `json:"tileMatrixSet,omitempty"`

	// WPS.
	ProcessIdentifier string `json:"processIdentifier,omitempty"`

	// Discovery.
	DownloadLinks []Link `json:"downloadLinks,omitempty"`
}

// merge overlays t onto base: any trait set in t replaces the value in
// base. Slices and maps replace as a whole.
func merge(base, t Traits) Traits {
	out := base
	if t.Name != "" {
		out.Name = t.Name
	}
	if t.Description != "" {
		out.Description = t.Description
	}
	if t.Attribution != "" {
		out.Attribution = t.Attribution
	}
	if t.InfoLinks != nil {
		out.InfoLinks = t.InfoLinks
	}
	if t.Keywords != nil {
		out.Keywords = t.Keywords
	}
	if t.Hidden != nil {
		out.Hidden = t.Hidden
	}
	if t.URL != "" {
		out.URL = t.URL
	}
	if t.UseProxy != nil {
		out.UseProxy = t.UseProxy
	}
	if t.CacheDuration != "" {
		out.CacheDuration = t.CacheDuration
	}
	if t.Layers != "" {
		out.Layers = t.Layers
	}
	if t.Style != "" {
		out.Style = t.Style
	}
	if t.AvailableStyles != nil {
		out.AvailableStyles = t.AvailableStyles
	}
	if t.Legends != nil {
		out.Legends = t.Legends
	}
	if t.CRS != "" {
		out.CRS = t.CRS
	}
	if t.Rectangle != nil {
		out.Rectangle = t.Rectangle
	}
	if t.Times != nil {
		out.Times = t.Times
	}
	if t.CurrentTime != "" {
		out.CurrentTime = t.CurrentTime
	}
	if t.Dimensions != nil {
		out.Dimensions = t.Dimensions
	}
	if t.FeatureInfoFormat != "" {
		out.FeatureInfoFormat = t.FeatureInfoFormat
	}
	if t.FeatureInfoVerb != "" {
		out.FeatureInfoVerb = t.FeatureInfoVerb
	}
	if t.GetMapURL != "" {
		out.GetMapURL = t.GetMapURL
	}
	if t.TypeNames != "" {
		out.TypeNames = t.TypeNames
	}
	if t.OutputFormat != "" {
		out.OutputFormat = t.OutputFormat
	}
	if t.MaxFeatures != nil {
		out.MaxFeatures = t.MaxFeatures
	}
	if t.TileURLTemplate != "" {
		out.TileURLTemplate = t.TileURLTemplate
	}
	if t.TileMatrixSet != "" {
		out.TileMatrixSet = t.TileMatrixSet
	}
	if t.ProcessIdentifier != "" {
		out.ProcessIdentifier = t.ProcessIdentifier
	}
	if t.DownloadLinks != nil {
		out.DownloadLinks = t.DownloadLinks
	}
	return out
}
