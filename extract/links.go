package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/pinharvest/htmldoc"
)

// Entity-link discovery on listing pages uses a three-level fallback
// ladder: structural selectors, then URL-shaped patterns in embedded
// script payloads, then anchor-like substrings in the raw markup. Each
// level runs only when the previous one found nothing, and each level
// validates candidate paths before accepting them.

var (
	rePinPath    = regexp.MustCompile(`/pin/\d+/`)
	reBoardPath  = regexp.MustCompile(`["'](/[^"']+/[^"']+/)["']`)
	reBoardHref  = regexp.MustCompile(`href="(https?://(?:www\.)?pinterest\.com/board/[^"]+|/board/[^"]+)"`)
	boardBlocked = []string{"create", "edit", "/search/", "/pin/", "/user/"}
)

var pinLinkSelectors = []string{
	`a[href*="/pin/"]`,
	`[data-test-id="pin"] a`,
	".pinWrapper a",
	".Pin a",
}

// PinLinks discovers pin detail URLs on a listing page, deduplicated
// and capped at limit.
func (e *Extractor) PinLinks(doc *htmldoc.Document, limit int) []string {
	var links []string
	seen := make(map[string]struct{})

	add := func(href string) {
		if !strings.Contains(href, "/pin/") || len(href) <= 10 {
			return
		}
		full := e.Resolve(href)
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}
		links = append(links, full)
	}

	for _, selector := range pinLinkSelectors {
		hrefs := doc.Attrs(selector, "href")
		if len(hrefs) == 0 {
			continue
		}
		slog.Debug("pin links located", "selector", selector, "count", len(hrefs))
		for _, href := range hrefs {
			add(href)
		}
		break // first successful selector wins
	}

	if len(links) == 0 {
		for _, script := range doc.Scripts() {
			if !strings.Contains(strings.ToLower(script), "pin") {
				continue
			}
			for _, match := range rePinPath.FindAllString(script, -1) {
				add(match)
			}
			if len(links) > 0 {
				slog.Debug("pin links recovered from scripts", "count", len(links))
				break
			}
		}
	}

	return capList(links, limit)
}

var boardLinkSelectors = []string{
	`[data-test-id="board-card"] a`,
	`a[href]:not([href*="/search/"]):not([href*="/pin/"]):not([href*="/user/"]):not([href*="/create/"])`,
	".board-card a",
	"a[href]",
}

// BoardLinks discovers board detail URLs on a listing page. Board paths
// take the /<username>/<board-name>/ shape, so candidates go through
// path-shape validation and get rewritten to the canonical
// /board/<username>/<board-name>/ form.
func (e *Extractor) BoardLinks(doc *htmldoc.Document, limit int) []string {
	var links []string
	seen := make(map[string]struct{})

	add := func(boardURL string) {
		if _, ok := seen[boardURL]; ok {
			return
		}
		seen[boardURL] = struct{}{}
		links = append(links, boardURL)
	}

	for _, selector := range boardLinkSelectors {
		hrefs := doc.Attrs(selector, "href")
		if len(hrefs) == 0 {
			continue
		}
		slog.Debug("board links located", "selector", selector, "count", len(hrefs))
		for _, href := range hrefs {
			if len(href) <= 5 {
				continue
			}
			full := e.Resolve(href)
			if boardURL := e.canonicalBoardURL(full); boardURL != "" {
				add(boardURL)
			}
		}
		break
	}

	if len(links) == 0 {
		for _, boardURL := range e.boardLinksFromScripts(doc) {
			add(boardURL)
		}
	}
	if len(links) == 0 {
		for _, boardURL := range e.boardLinksFromText(doc) {
			add(boardURL)
		}
	}

	return capList(links, limit)
}

// canonicalBoardURL validates an absolute candidate URL as a board link
// and rewrites it to /board/<username>/<name>/ form. Returns "" for
// anything that fails the path-shape checks.
func (e *Extractor) canonicalBoardURL(full string) string {
	if !strings.Contains(full, "pinterest.com") || strings.HasSuffix(full, ".mjs") {
		return ""
	}
	for _, blocked := range boardBlocked {
		if strings.Contains(full, blocked) {
			return ""
		}
	}
	if strings.Count(full, "/") < 4 {
		return ""
	}
	if strings.Contains(full, "/board/") {
		return full
	}
	// Rewrite /username/board-name/ to the canonical board URL.
	parts := strings.Split(strings.TrimSuffix(full, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	username, name := parts[len(parts)-2], parts[len(parts)-1]
	if username == "" || name == "" || strings.Contains(username, ".") {
		return ""
	}
	return e.BaseURL + "/board/" + username + "/" + name + "/"
}

// boardLinksFromScripts scans embedded script payloads for board-shaped
// paths.
func (e *Extractor) boardLinksFromScripts(doc *htmldoc.Document) []string {
	var links []string
	seen := make(map[string]struct{})
	for _, script := range doc.Scripts() {
		if !strings.Contains(strings.ToLower(script), "board") {
			continue
		}
		for _, m := range reBoardPath.FindAllStringSubmatch(script, -1) {
			path := strings.TrimSpace(m[1])
			if !validBoardPath(path) {
				continue
			}
			parts := strings.Split(path, "/")
			if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
				continue
			}
			boardURL := e.BaseURL + "/board/" + parts[1] + "/" + parts[2] + "/"
			if _, ok := seen[boardURL]; ok {
				continue
			}
			seen[boardURL] = struct{}{}
			links = append(links, boardURL)
		}
		if len(links) > 0 {
			slog.Debug("board links recovered from scripts", "count", len(links))
			break
		}
	}
	return capList(links, 20)
}

// boardLinksFromText is the last-resort scan of the raw markup for
// anchor-like board URLs.
func (e *Extractor) boardLinksFromText(doc *htmldoc.Document) []string {
	var links []string
	seen := make(map[string]struct{})
	for _, m := range reBoardHref.FindAllStringSubmatch(doc.RawHTML(), -1) {
		full := e.Resolve(m[1])
		if !strings.Contains(full, "pinterest.com") {
			continue
		}
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		links = append(links, full)
	}
	return capList(links, 10)
}

// validBoardPath applies the path-shape rules for script-scanned board
// candidates: enough segments, no blacklisted segments, no asset files.
func validBoardPath(path string) bool {
	if len(path) <= 5 || strings.HasSuffix(path, ".mjs") {
		return false
	}
	for _, blocked := range boardBlocked {
		if strings.Contains(path, blocked) {
			return false
		}
	}
	return strings.Count(path, "/") >= 3
}
