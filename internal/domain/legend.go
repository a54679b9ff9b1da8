package domain

// Legend describes where a layer's legend image comes from.
type Legend struct {
	URL      string `json:"url"`
	MIMEType string `json:"mimeType,omitempty"`
	Title    string `json:"title,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Style is a named rendering style advertised for a layer.
type Style struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title,omitempty"`
	Abstract   string  `json:"abstract,omitempty"`
	Legend     *Legend `json:"legend,omitempty"`
	IsDefault  bool    `json:"isDefault,omitempty"`
}

// FindStyle returns the style with the given identifier, or nil.
func FindStyle(styles []Style, identifier string) *Style {
	for i := range styles {
		if styles[i].Identifier == identifier {
			return &styles[i]
		}
	}
	return nil
}
