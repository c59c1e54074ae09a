// Package htmldoc wraps a fetched page behind a tolerant query surface:
// structural CSS queries plus the raw markup for pattern-of-last-resort
// scanning. Invalid selectors and unparseable fragments degrade to zero
// matches instead of errors, because field extraction has its own
// fallback discipline and must keep going.
package htmldoc

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Queryable is the scope a field extraction strategy runs against:
// either a whole page or a single element of a listing page.
type Queryable interface {
	// Texts returns the trimmed text of every node matching the
	// selector. An empty selector means the scope's own element
	// (meaningful for element scopes only).
	Texts(selector string) []string

	// Attrs returns the named attribute of every matching node that
	// carries it.
	Attrs(selector, attr string) []string

	// Exists reports whether the selector matches at least one node.
	Exists(selector string) bool

	// RawHTML returns the scope's markup for regex scanning.
	RawHTML() string

	// Scripts returns the text of embedded <script> elements, outermost
	// scope only. Element scopes return nil.
	Scripts() []string
}

// selectors are static table entries compiled once and shared.
var selCache sync.Map // string -> cascadia.Selector (nil entry = invalid)

func compiled(selector string) (cascadia.Selector, bool) {
	if v, ok := selCache.Load(selector); ok {
		sel, valid := v.(cascadia.Selector)
		return sel, valid && sel != nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		selCache.Store(selector, cascadia.Selector(nil))
		return nil, false
	}
	selCache.Store(selector, sel)
	return sel, true
}

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
	raw string

	scriptsOnce sync.Once
	scripts     []string
}

// Parse builds a Document from raw HTML.
func Parse(rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, raw: rawHTML}, nil
}

// Texts implements Queryable.
func (d *Document) Texts(selector string) []string {
	sel, ok := compiled(selector)
	if !ok {
		return nil
	}
	return collectTexts(d.doc.FindMatcher(sel))
}

// Attrs implements Queryable.
func (d *Document) Attrs(selector, attr string) []string {
	sel, ok := compiled(selector)
	if !ok {
		return nil
	}
	return collectAttrs(d.doc.FindMatcher(sel), attr)
}

// Exists implements Queryable.
func (d *Document) Exists(selector string) bool {
	sel, ok := compiled(selector)
	if !ok {
		return false
	}
	return d.doc.FindMatcher(sel).Length() > 0
}

// RawHTML returns the page's original markup.
func (d *Document) RawHTML() string { return d.raw }

// Scripts returns the text content of every <script> element, computed
// once per document.
func (d *Document) Scripts() []string {
	d.scriptsOnce.Do(func() {
		d.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			if text := s.Text(); strings.TrimSpace(text) != "" {
				d.scripts = append(d.scripts, text)
			}
		})
	})
	return d.scripts
}

// Each visits every node matching the selector as an element-scoped
// Fragment. Listing pages use this to walk result cards.
func (d *Document) Each(selector string, fn func(*Fragment)) {
	sel, ok := compiled(selector)
	if !ok {
		return
	}
	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		fn(&Fragment{sel: s})
	})
}

// Fragment is a single element of a page, queried with the same surface
// as a whole Document. An empty selector addresses the element itself.
type Fragment struct {
	sel *goquery.Selection
}

// Texts implements Queryable.
func (f *Fragment) Texts(selector string) []string {
	if selector == "" {
		return collectTexts(f.sel)
	}
	sel, ok := compiled(selector)
	if !ok {
		return nil
	}
	return collectTexts(f.sel.FindMatcher(sel))
}

// Attrs implements Queryable.
func (f *Fragment) Attrs(selector, attr string) []string {
	if selector == "" {
		return collectAttrs(f.sel, attr)
	}
	sel, ok := compiled(selector)
	if !ok {
		return nil
	}
	return collectAttrs(f.sel.FindMatcher(sel), attr)
}

// Exists implements Queryable.
func (f *Fragment) Exists(selector string) bool {
	if selector == "" {
		return f.sel.Length() > 0
	}
	sel, ok := compiled(selector)
	if !ok {
		return false
	}
	return f.sel.FindMatcher(sel).Length() > 0
}

// RawHTML returns the element's outer markup, or "" when it cannot be
// rendered.
func (f *Fragment) RawHTML() string {
	html, err := goquery.OuterHtml(f.sel)
	if err != nil {
		return ""
	}
	return html
}

// Scripts implements Queryable. Element scopes never expose scripts.
func (f *Fragment) Scripts() []string { return nil }

func collectTexts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, n *goquery.Selection) {
		if text := strings.TrimSpace(n.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func collectAttrs(s *goquery.Selection, attr string) []string {
	var out []string
	s.Each(func(_ int, n *goquery.Selection) {
		if v, ok := n.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	})
	return out
}
