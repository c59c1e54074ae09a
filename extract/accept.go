package extract

import "strings"

// Accept decides whether a strategy's raw match is a usable value for a
// field. Rules are deliberately per-field: a confident selector hit can
// still be boilerplate (the site's own name in a page title) or noise
// (a two-character "description").
type Accept func(string) bool

// NonEmpty accepts any match with visible content.
func NonEmpty(v string) bool {
	return strings.TrimSpace(v) != ""
}

// NotBrand rejects empty matches and matches containing the site's own
// brand name. Generic page titles leak the brand into every title-like
// selector.
func (e *Extractor) NotBrand(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.Contains(v, e.Brand)
}

// LongerThan accepts matches whose trimmed length exceeds n.
// Description-like fields use this to reject fragments too short to be
// real descriptions.
func LongerThan(n int) Accept {
	return func(v string) bool {
		return len(strings.TrimSpace(v)) > n
	}
}

// AssetHost accepts only URLs carrying one of the first-party media
// host substrings.
func (e *Extractor) AssetHost(v string) bool {
	for _, host := range e.AssetHosts {
		if strings.Contains(v, host) {
			return true
		}
	}
	return false
}

// AbsoluteHTTP accepts values that are already absolute http(s) URLs.
func AbsoluteHTTP(v string) bool {
	v = strings.TrimSpace(v)
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}

// Contains accepts matches carrying the given substring.
func Contains(sub string) Accept {
	return func(v string) bool {
		return strings.Contains(v, sub)
	}
}
