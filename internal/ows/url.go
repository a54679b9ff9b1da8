package ows

import (
	"net/url"
	"sort"
	"strings"
)

// BuildURL merges params into base's query string. Existing parameters
// with the same name are replaced case-insensitively (OGC query
// parameter names are case-insensitive); other parameters are kept.
// Parameters are emitted in sorted order so built URLs are stable.
func BuildURL(base string, params map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	for name, values := range u.Query() {
		if _, replaced := lookupFold(params, name); replaced {
			continue
		}
		query[name] = values
	}
	for name, value := range params {
		query.Set(name, value)
	}

	u.RawQuery = encodeSorted(query)
	return u.String(), nil
}

// CapabilitiesURL builds a GetCapabilities request URL for a service.
func CapabilitiesURL(base, service, version string) (string, error) {
	return BuildURL(base, map[string]string{
		"service": service,
		"version": version,
		"request": "GetCapabilities",
	})
}

func lookupFold(params map[string]string, name string) (string, bool) {
	for k, v := range params {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func encodeSorted(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}
