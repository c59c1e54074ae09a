package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/use-agent/pinharvest/htmldoc"
	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/numfmt"
)

// ScraperVersion tags every pin record with the extraction schema
// generation it was produced by.
const ScraperVersion = "1.0"

var (
	rePinID     = regexp.MustCompile(`/pin/(\d+)/`)
	reHashtag   = regexp.MustCompile(`#(\w+)`)
	reDomain    = regexp.MustCompile(`https?://([^/]+)`)
	rePrice     = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	reUserPath  = regexp.MustCompile(`^/([^/]+)/?$`)
	reResultEnd = regexp.MustCompile(`/([^/]+)/?$`)
	reBoardEnd  = regexp.MustCompile(`/([^/]+/[^/]+)/?$`)
)

// BuildPin assembles one raw pin record from a fetched pin page.
// Every declared field is resolved through its strategy cascade or a
// bespoke derivation; the builder itself never fails — trust decisions
// belong to the pipeline.
func (e *Extractor) BuildPin(doc *htmldoc.Document, pinURL string) *models.Record {
	rec := models.NewRecord(models.TypePin)
	rec.Set("pin_url", pinURL)
	rec.Set("pin_id", pinID(pinURL))

	for _, spec := range e.pinFields() {
		rec.Set(spec.Name, e.Field(doc, spec))
	}

	rec.Set("media_type", mediaType(doc))
	rec.Set("source_domain", domainOf(rec.String("source_url")))
	rec.Set("tags", e.tags(doc, rec.String("description")))
	rec.Set("product_price", productPrice(doc))
	rec.Set("scraper_version", ScraperVersion)
	return rec
}

// BuildBoard assembles one raw board record from a fetched board page.
func (e *Extractor) BuildBoard(doc *htmldoc.Document, boardURL string) *models.Record {
	rec := models.NewRecord(models.TypeBoard)
	rec.Set("board_url", boardURL)
	rec.Set("board_id", boardID(boardURL))

	for _, spec := range e.boardFields() {
		rec.Set(spec.Name, e.Field(doc, spec))
	}

	rec.Set("privacy", privacy(doc))
	rec.Set("tags", e.tags(doc, rec.String("description")))
	rec.Set("sample_pins", e.samplePins(doc, 5))
	return rec
}

// BuildUser assembles one raw creator-profile record.
func (e *Extractor) BuildUser(doc *htmldoc.Document, profileURL string) *models.Record {
	rec := models.NewRecord(models.TypeUser)
	rec.Set("profile_url", profileURL)

	username := usernameFromURL(profileURL)
	rec.Set("username", username)

	for _, spec := range e.userFields() {
		rec.Set(spec.Name, e.Field(doc, spec))
	}

	// Profiles rarely expose a numeric ID in markup; the canonical
	// handle is the stable identifier.
	userID := firstNonEmpty(jsonPayloadValues(doc, jsonLD, "mainEntity.identifier"), username)
	rec.Set("user_id", userID)
	return rec
}

// SearchContext is the listing-page state shared by every result record
// extracted from one search page.
type SearchContext struct {
	Query       string
	SearchType  string // "pins", "boards", "users"
	SearchURL   string
	Total       int
	Suggestions []string
}

// NewSearchContext reads the page-level search metadata once so result
// extraction can reuse it.
func (e *Extractor) NewSearchContext(doc *htmldoc.Document, query, searchType, searchURL string) *SearchContext {
	return &SearchContext{
		Query:       query,
		SearchType:  searchType,
		SearchURL:   searchURL,
		Total:       e.totalResults(doc),
		Suggestions: e.searchSuggestions(doc),
	}
}

// resultSelectors per search type, most specific first. Only the first
// selector with matches is walked.
var resultSelectors = map[string][]string{
	"pins":   {`a[href*="/pin/"]`, `[data-test-id="pin"]`, ".pinWrapper", ".Pin"},
	"boards": {`a[href*="/board/"]`, `[data-test-id="board"]`, ".boardWrapper", ".Board"},
	"users":  {`a[href^="/"][href$="/"]`, `[data-test-id="user"]`, ".userWrapper", ".User"},
}

// BuildSearchResults walks the listing page's result elements and
// returns one record per result, capped at limit.
func (e *Extractor) BuildSearchResults(doc *htmldoc.Document, sc *SearchContext, limit int) []*models.Record {
	var out []*models.Record
	for _, selector := range resultSelectors[sc.SearchType] {
		doc.Each(selector, func(f *htmldoc.Fragment) {
			if limit > 0 && len(out) >= limit {
				return
			}
			out = append(out, e.buildSearchResult(f, sc, len(out)+1))
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}

func (e *Extractor) buildSearchResult(f *htmldoc.Fragment, sc *SearchContext, position int) *models.Record {
	rec := models.NewRecord(models.TypeSearchResult)
	rec.Set("search_query", sc.Query)
	rec.Set("search_type", sc.SearchType)
	rec.Set("search_url", sc.SearchURL)
	rec.Set("result_type", strings.TrimSuffix(sc.SearchType, "s"))
	rec.Set("position_in_results", position)
	rec.Set("total_results", sc.Total)
	rec.Set("search_suggestions", sc.Suggestions)

	if hrefs := f.Attrs("a", "href"); len(hrefs) > 0 {
		rec.Set("result_url", e.Resolve(hrefs[0]))
		rec.Set("result_id", resultID(hrefs[0], sc.SearchType))
	} else if hrefs := f.Attrs("", "href"); len(hrefs) > 0 {
		// The result element may itself be the anchor.
		rec.Set("result_url", e.Resolve(hrefs[0]))
		rec.Set("result_id", resultID(hrefs[0], sc.SearchType))
	}

	title := e.Field(f, FieldSpec{
		Name: "result_title", Kind: Text, Accept: LongerThan(2),
		Default: titleCase(strings.TrimSuffix(sc.SearchType, "s")) + " Result",
		Strategies: []Strategy{
			{Kind: SelectAttr, Selector: "", Attr: "alt"},
			{Kind: SelectAttr, Selector: "", Attr: "title"},
			{Kind: SelectText, Selector: ""},
			{Kind: SelectAttr, Selector: "img", Attr: "alt"},
			{Kind: SelectText, Selector: "h3"},
			{Kind: SelectText, Selector: "h4"},
			{Kind: SelectText, Selector: ".title"},
		},
	})
	rec.Set("result_title", title)

	rec.Set("result_description", e.Field(f, FieldSpec{
		Name: "result_description", Kind: Text, Accept: LongerThan(5),
		Strategies: []Strategy{
			{Kind: SelectText, Selector: ".description"},
			{Kind: SelectText, Selector: ".desc"},
			{Kind: SelectText, Selector: "p"},
			{Kind: SelectText, Selector: "span"},
		},
	}))

	rec.Set("thumbnail_url", e.Field(f, FieldSpec{
		Name: "thumbnail_url", Kind: Text, Accept: e.AssetHost,
		Strategies: []Strategy{
			{Kind: SelectAttr, Selector: "img", Attr: "src"},
			{Kind: SelectAttr, Selector: "", Attr: "data-src"},
			{Kind: SelectAttr, Selector: ".image img", Attr: "src"},
		},
	}))

	rec.Set("creator_name", e.Field(f, FieldSpec{
		Name: "creator_name", Kind: Text,
		Strategies: []Strategy{
			{Kind: SelectText, Selector: ".creator"},
			{Kind: SelectText, Selector: ".author"},
			{Kind: SelectText, Selector: ".user-name"},
			{Kind: SelectText, Selector: ".pinner"},
		},
	}))

	rec.Set("search_timestamp", time.Now().Format(time.RFC3339))
	return rec
}

// trendSelectors locate trending entries on the "today" page.
var trendSelectors = []string{".trending-topic", ".trend", `[data-test-id="trending"]`, ".popular-search"}

// BuildTrends walks the trending page and returns one record per trend
// entry, capped at limit. Entries with no readable name are skipped.
func (e *Extractor) BuildTrends(doc *htmldoc.Document, limit int) []*models.Record {
	var out []*models.Record
	for _, selector := range trendSelectors {
		doc.Each(selector, func(f *htmldoc.Fragment) {
			if limit > 0 && len(out) >= limit {
				return
			}
			if rec := e.buildTrend(f, len(out)+1); rec != nil {
				out = append(out, rec)
			}
		})
		if len(out) > 0 {
			break
		}
	}
	return out
}

func (e *Extractor) buildTrend(f *htmldoc.Fragment, position int) *models.Record {
	name, _ := e.Field(f, FieldSpec{
		Name: "trend_name", Kind: Text,
		Strategies: []Strategy{
			{Kind: SelectText, Selector: ""},
			{Kind: SelectText, Selector: "a"},
			{Kind: SelectText, Selector: "h3"},
			{Kind: SelectText, Selector: ".trend-name"},
		},
	}).(string)
	if name == "" {
		return nil
	}

	rec := models.NewRecord(models.TypeTrend)
	rec.Set("trend_name", name)
	rec.Set("position", position)
	rec.Set("trending_period", "today")
	rec.Set("trending_region", "global")
	rec.Set("trend_id", fmt.Sprintf("trend_%d_%s", position, time.Now().Format("20060102")))

	if strings.HasPrefix(name, "#") {
		rec.Set("trend_type", "hashtag")
	} else {
		rec.Set("trend_type", "topic")
	}

	var samples []string
	for _, href := range f.Attrs("a", "href") {
		if strings.Contains(href, "/pin/") {
			samples = append(samples, e.Resolve(href))
		}
	}
	rec.Set("sample_pins", capList(samples, 5))
	return rec
}

// tags unions hashtags found in the already-extracted description with
// dedicated tag elements, capped at 10.
func (e *Extractor) tags(q htmldoc.Queryable, description string) []string {
	var raw []string
	for _, m := range reHashtag.FindAllStringSubmatch(description, -1) {
		raw = append(raw, m[1])
	}
	for _, selector := range []string{".tag", ".hashtag", `[data-test-id="tag"]`} {
		raw = append(raw, q.Texts(selector)...)
	}
	return capList(dedupeStripped(raw), 10)
}

// samplePins collects pin links from the first selector that yields any,
// resolved and capped.
func (e *Extractor) samplePins(doc *htmldoc.Document, limit int) []string {
	for _, selector := range []string{`a[href*="/pin/"]`, `[data-test-id="pin"] a`} {
		var pins []string
		for _, href := range doc.Attrs(selector, "href") {
			if strings.Contains(href, "/pin/") {
				pins = append(pins, e.Resolve(href))
			}
			if len(pins) >= limit {
				break
			}
		}
		if len(pins) > 0 {
			return pins
		}
	}
	return nil
}

func (e *Extractor) totalResults(doc *htmldoc.Document) int {
	for _, selector := range []string{".results-count", `[data-test-id="results-count"]`, `span:contains("result")`} {
		if texts := doc.Texts(selector); len(texts) > 0 {
			return numfmt.Normalize(texts[0])
		}
	}
	// Fallback: count visible result-shaped elements.
	visible := 0
	for _, selector := range []string{"[data-test-id]", ".Pin", ".Board", ".User"} {
		visible += len(doc.Texts(selector))
	}
	return visible
}

func (e *Extractor) searchSuggestions(doc *htmldoc.Document) []string {
	var raw []string
	for _, selector := range []string{".search-suggestion", ".related-search", `[data-test-id="suggestion"]`} {
		raw = append(raw, doc.Texts(selector)...)
	}
	return capList(dedupeStripped(raw), 10)
}

// mediaType classifies a pin as video, image, or unknown by indicator
// elements.
func mediaType(doc *htmldoc.Document) string {
	if doc.Exists("video") || doc.Exists(".video") || doc.Exists(`[data-test-id="video"]`) {
		return "video"
	}
	if doc.Exists("img") || doc.Exists(".image") || doc.Exists(`[data-test-id="image"]`) {
		return "image"
	}
	return "unknown"
}

// privacy reports "secret" when a secret-board indicator is present.
func privacy(doc *htmldoc.Document) string {
	for _, selector := range []string{".secret-board", `[data-test-id="secret"]`, `span:contains("Secret")`} {
		if doc.Exists(selector) {
			return "secret"
		}
	}
	return "public"
}

// productPrice finds the first $-bearing price label on the page.
func productPrice(doc *htmldoc.Document) string {
	for _, selector := range []string{".price", `[data-test-id="price"]`, `span:contains("$")`} {
		for _, text := range doc.Texts(selector) {
			if strings.Contains(text, "$") {
				return rePrice.FindString(text)
			}
		}
	}
	return ""
}

// pinID extracts the numeric pin identifier from a /pin/<id>/ URL.
func pinID(pinURL string) string {
	if m := rePinID.FindStringSubmatch(pinURL); m != nil {
		return m[1]
	}
	return ""
}

// boardID derives the board identifier from a /board/<user>/<name>/
// URL. The owning username namespaces the board.
func boardID(boardURL string) string {
	_, after, found := strings.Cut(boardURL, "/board/")
	if !found {
		return ""
	}
	username, _, _ := strings.Cut(strings.TrimSuffix(after, "/"), "/")
	if username == "" {
		return ""
	}
	return username + "/"
}

// resultID extracts the per-type identifier from a result URL.
func resultID(resultURL, searchType string) string {
	trimmed := strings.TrimSuffix(resultURL, "/")
	switch searchType {
	case "pins":
		if m := rePinID.FindStringSubmatch(resultURL); m != nil {
			return m[1]
		}
	case "boards":
		if m := reBoardEnd.FindStringSubmatch(trimmed); m != nil {
			return m[1]
		}
	default: // users
		if m := reResultEnd.FindStringSubmatch(trimmed); m != nil {
			return m[1]
		}
	}
	return ""
}

// usernameFromURL pulls the handle out of a profile URL's single path
// segment.
func usernameFromURL(profileURL string) string {
	trimmed := strings.TrimPrefix(profileURL, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		if m := reUserPath.FindStringSubmatch(trimmed[i:]); m != nil {
			return m[1]
		}
	}
	return ""
}

// domainOf extracts the host from an absolute URL, or "".
func domainOf(rawURL string) string {
	if m := reDomain.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func firstNonEmpty(values []string, fallback string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return fallback
}
