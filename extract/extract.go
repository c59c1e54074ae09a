// Package extract implements cascading multi-strategy field extraction.
// Every logical field declares an ordered list of strategies; the first
// strategy producing at least one accepted match wins and later, looser
// strategies are never consulted. A field whose strategies are all
// exhausted resolves to its declared default — extraction never fails.
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/use-agent/pinharvest/htmldoc"
	"github.com/use-agent/pinharvest/numfmt"
)

// StrategyKind selects how a strategy pulls raw matches from the scope.
type StrategyKind int

const (
	// SelectText matches the trimmed text of CSS-selected nodes.
	SelectText StrategyKind = iota

	// SelectAttr matches an attribute of CSS-selected nodes.
	SelectAttr

	// RawPattern scans the scope's raw markup with a regular expression.
	// Capture group 1 (or the whole match) is the candidate value.
	RawPattern

	// ScriptJSON pulls a key out of embedded JSON payloads (JSON-LD and
	// similar) selected by CSS.
	ScriptJSON

	// PageExcerpt runs the readability excerpt of the whole page.
	// Last-resort strategy for description-like fields.
	PageExcerpt
)

// Strategy is one extraction attempt for a field.
type Strategy struct {
	Kind     StrategyKind
	Selector string // CSS selector (SelectText, SelectAttr, ScriptJSON)
	Attr     string // attribute name (SelectAttr)
	Pattern  string // regular expression (RawPattern)
	Key      string // dotted JSON path (ScriptJSON)
}

// FieldKind drives post-acceptance shaping of the winning matches.
type FieldKind int

const (
	// Text keeps the first accepted match as-is.
	Text FieldKind = iota

	// Count normalizes the first accepted match to an integer.
	Count

	// Link resolves the first accepted match against the base origin.
	Link

	// List unions every accepted match of the winning strategy, strips a
	// leading "#" sigil, deduplicates, and caps the result.
	List

	// Flag resolves to true when any strategy's selector matches at all.
	Flag
)

// FieldSpec declares one field's extraction contract.
type FieldSpec struct {
	Name       string
	Kind       FieldKind
	Strategies []Strategy

	// Accept filters raw matches. nil accepts any non-empty match.
	Accept Accept

	// Cap bounds List results. Zero means no cap.
	Cap int

	// Default is the resolved value when every strategy misses.
	// Counts default to 0 and Flags to false regardless.
	Default string
}

// Extractor binds the field tables to one site's constants.
type Extractor struct {
	// BaseURL is the origin relative links resolve against.
	BaseURL string

	// Brand is the site's own name; title-like fields reject values
	// containing it (boilerplate leakage from generic page titles).
	Brand string

	// AssetHosts are the first-party media host substrings image URLs
	// must carry.
	AssetHosts []string
}

// NewExtractor creates an Extractor with the production site constants.
func NewExtractor() *Extractor {
	return &Extractor{
		BaseURL:    "https://www.pinterest.com",
		Brand:      "Pinterest",
		AssetHosts: []string{"pinimg", "pinterest"},
	}
}

// Field runs the cascade for one field against the scope and returns the
// resolved value: string, int, bool, or []string depending on Kind.
func (e *Extractor) Field(q htmldoc.Queryable, spec FieldSpec) any {
	if spec.Kind == Flag {
		for _, s := range spec.Strategies {
			if q.Exists(s.Selector) {
				return true
			}
		}
		return false
	}

	accept := spec.Accept
	if accept == nil {
		accept = NonEmpty
	}

	for _, s := range spec.Strategies {
		matches := e.matches(q, s)
		if len(matches) == 0 {
			continue
		}
		accepted := matches[:0:0]
		for _, m := range matches {
			if accept(m) {
				accepted = append(accepted, m)
			}
		}
		if len(accepted) == 0 {
			// The strategy fired but everything it found was noise;
			// fall through to the next, looser strategy.
			continue
		}
		return e.shape(spec, accepted)
	}

	return e.missing(spec)
}

// shape converts the winning strategy's accepted matches into the
// field's final value.
func (e *Extractor) shape(spec FieldSpec, accepted []string) any {
	switch spec.Kind {
	case Count:
		return numfmt.Normalize(accepted[0])
	case Link:
		return e.Resolve(accepted[0])
	case List:
		return capList(dedupeStripped(accepted), spec.Cap)
	default:
		return strings.TrimSpace(accepted[0])
	}
}

// missing resolves the field's documented default.
func (e *Extractor) missing(spec FieldSpec) any {
	switch spec.Kind {
	case Count:
		return 0
	case List:
		return []string{}
	default:
		return spec.Default
	}
}

// matches yields the raw candidate values for one strategy.
func (e *Extractor) matches(q htmldoc.Queryable, s Strategy) []string {
	switch s.Kind {
	case SelectText:
		return q.Texts(s.Selector)
	case SelectAttr:
		return q.Attrs(s.Selector, s.Attr)
	case RawPattern:
		return patternMatches(q.RawHTML(), s.Pattern)
	case ScriptJSON:
		return jsonPayloadValues(q, s.Selector, s.Key)
	case PageExcerpt:
		return pageExcerpt(q, e.BaseURL)
	}
	return nil
}

// Resolve turns a possibly-relative URL into an absolute one against
// the extractor's base origin. Already-absolute values pass through.
func (e *Extractor) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return href
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}

var patternCache sync.Map // pattern string -> *regexp.Regexp (nil = invalid)

func compiledPattern(pattern string) *regexp.Regexp {
	if v, ok := patternCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		patternCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil
	}
	patternCache.Store(pattern, re)
	return re
}

// patternMatches runs a regex over raw markup. Capture group 1 wins when
// present, otherwise the whole match.
func patternMatches(raw, pattern string) []string {
	re := compiledPattern(pattern)
	if re == nil || raw == "" {
		return nil
	}
	var out []string
	for _, m := range re.FindAllStringSubmatch(raw, -1) {
		v := m[0]
		if len(m) > 1 && m[1] != "" {
			v = m[1]
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// dedupeStripped strips a leading "#" sigil and removes duplicates,
// keeping first-seen order.
func dedupeStripped(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "#"))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func capList(values []string, limit int) []string {
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}
