package wps

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jobrunner/catena/internal/catalog"
)

// CatalogMemberMime tags a complex output carrying an embedded catalog
// member description.
const CatalogMemberMime = "application/vnd.catena.catalog-member+json"

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s,"<>]+`)
	imagePattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg)(\?\S*)?$`)
)

// FormatLiteralOutput renders a literal output as HTML: URLs become
// links, and URLs with a known image extension are inlined.
func FormatLiteralOutput(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		if imagePattern.MatchString(u) {
			return fmt.Sprintf(`<a href="%s"><img src="%s" alt="%s"/></a>`, u, u, u)
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, u, u)
	})
}

// ChartOutput is a CSV output prepared for charting.
type ChartOutput struct {
	Name string
	CSV  string
}

// EmbeddedMember is the JSON shape of a catalog member delivered as a
// process output.
type EmbeddedMember struct {
	Version     string `json:"version,omitempty"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Layers      string `json:"layers,omitempty"`
}

// LegacyConverter upgrades an embedded member that declares a legacy
// schema version. A nil converter leaves such members untouched.
type LegacyConverter func(EmbeddedMember) EmbeddedMember

// Result is the processed rendering of one output.
type Result struct {
	Identifier string
	Title      string

	HTML        string       // formatted literal or text output
	Chart       *ChartOutput // csv outputs
	MemberID    string       // embedded catalog member
	DownloadURL string       // by-reference outputs
}

// PostProcessOutputs turns raw execute outputs into display-ready
// results. Embedded catalog members are registered under parentID; a
// malformed member is logged and rendered as plain text instead.
func PostProcessOutputs(registry *catalog.Registry, parentID string, outputs []Output, convert LegacyConverter, logger *slog.Logger) []Result {
	var results []Result
	for _, out := range outputs {
		r := Result{Identifier: out.Identifier, Title: out.Title}
		content := strings.TrimSpace(out.Complex.Content)

		switch {
		case out.Reference.Href != "":
			r.DownloadURL = out.Reference.Href

		case out.Literal != "":
			r.HTML = FormatLiteralOutput(out.Literal)

		case out.Complex.MimeType == CatalogMemberMime:
			if id := registerEmbeddedMember(registry, parentID, content, convert, logger); id != "" {
				r.MemberID = id
			} else {
				r.HTML = FormatLiteralOutput(content)
			}

		case strings.Contains(out.Complex.MimeType, "csv"):
			name := out.Title
			if name == "" {
				name = out.Identifier
			}
			r.Chart = &ChartOutput{Name: name, CSV: content}

		case content != "":
			r.HTML = FormatLiteralOutput(content)
		}
		results = append(results, r)
	}
	return results
}

func registerEmbeddedMember(registry *catalog.Registry, parentID, content string, convert LegacyConverter, logger *slog.Logger) string {
	var m EmbeddedMember
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		logger.Warn("embedded catalog member is not valid json", "error", err)
		return ""
	}
	if m.Version != "" && strings.HasPrefix(m.Version, "0.") && convert != nil {
		m = convert(m)
	}
	if m.Name == "" || m.Type == "" {
		logger.Warn("embedded catalog member needs name and type", "name", m.Name, "type", m.Type)
		return ""
	}

	id := catalog.MemberID(parentID, m.Name)
	member, _ := registry.GetOrCreate(id, catalog.Type(m.Type))
	member.SetStratum(catalog.StratumDefinition, catalog.Traits{
		Name:        m.Name,
		Description: m.Description,
		URL:         m.URL,
		Layers:      m.Layers,
	})
	return id
}
