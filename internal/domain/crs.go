package domain

// Coordinate reference systems the map engine can render. Web-mercator
// variants are checked before geographic ones when negotiating.
var (
	WebMercatorCRS = []string{"EPSG:3857", "EPSG:900913"}
	GeographicCRS  = []string{"EPSG:4326", "CRS:84", "EPSG:4283"}

	// DefaultCRS is used when a service advertises nothing usable.
	DefaultCRS = "EPSG:3857"
)

// IsSupportedCRS reports whether code is renderable.
func IsSupportedCRS(code string) bool {
	for _, c := range WebMercatorCRS {
		if c == code {
			return true
		}
	}
	for _, c := range GeographicCRS {
		if c == code {
			return true
		}
	}
	return false
}

// NegotiateCRS picks the coordinate reference system for a layer.
// preferred is an explicit override (for example from the item's URL
// query); it wins when it is both supported and advertised. Otherwise the
// first supported CRS present in the advertised set is chosen, web
// mercator before geographic. Falls back to DefaultCRS.
//
// The result is a pure function of its inputs, so repeated negotiation
// over the same capabilities document is stable.
func NegotiateCRS(preferred string, advertised []string) string {
	has := make(map[string]bool, len(advertised))
	for _, c := range advertised {
		has[c] = true
	}

	if preferred != "" && IsSupportedCRS(preferred) && has[preferred] {
		return preferred
	}
	for _, c := range WebMercatorCRS {
		if has[c] {
			return c
		}
	}
	for _, c := range GeographicCRS {
		if has[c] {
			return c
		}
	}
	return DefaultCRS
}
