// Package fetch retrieves Pinterest pages through a tiered engine
// stack: a plain HTTP engine with a Chrome TLS fingerprint for pages
// that arrive server-rendered, and headless-browser engines for the
// script-built views. A dispatcher escalates between them and a
// politeness throttle paces everything against the site.
package fetch

import (
	"context"
	"time"
)

// PageKind classifies the target page. Engine memory and browser wait
// behavior key off it: listing pages lazy-load their grid and need
// scrolling, detail pages do not.
type PageKind string

const (
	KindPin      PageKind = "pin"
	KindBoard    PageKind = "board"
	KindProfile  PageKind = "profile"
	KindSearch   PageKind = "search"
	KindTrending PageKind = "trending"
	KindListing  PageKind = "listing"
)

// listing reports whether the kind is a grid page that needs scroll
// rounds to materialize content.
func (k PageKind) listing() bool {
	switch k {
	case KindSearch, KindTrending, KindListing:
		return true
	}
	return false
}

// Request describes one page fetch.
type Request struct {
	URL      string
	Kind     PageKind
	Headers  map[string]string
	Timeout  time.Duration
	Stealth  bool
	ProxyURL string

	// ScrollRounds is how many viewports the render engine scrolls on
	// listing pages before capturing HTML. Zero means the default.
	ScrollRounds int
}

// Result is the outcome of a successful fetch.
type Result struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	Engine     string
}

// Engine is one way of turning a URL into page HTML.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "render",
	// "render-stealth").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *Request) (*Result, error)
}
