package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/ysmood/gson"

	"github.com/use-agent/pinharvest/htmldoc"
)

// jsonPayloadValues extracts a dotted key path from embedded JSON
// payloads (JSON-LD blocks and similar) matched by the selector. The
// payload may be a single object or an array of objects; every element
// carrying the path contributes a match. Unparseable payloads are
// skipped silently — markup drift routinely breaks embedded JSON before
// it breaks selectors.
func jsonPayloadValues(q htmldoc.Queryable, selector, key string) []string {
	path := strings.Split(key, ".")
	var out []string
	for _, payload := range q.Texts(selector) {
		payload = strings.TrimSpace(payload)
		if payload == "" || (payload[0] != '{' && payload[0] != '[') {
			continue
		}
		root := gson.NewFrom(payload)
		if arr, ok := root.Val().([]interface{}); ok {
			for i := range arr {
				elem, found := root.Gets(i)
				if !found {
					continue
				}
				if v := jsonPathString(elem, path); v != "" {
					out = append(out, v)
				}
			}
			continue
		}
		if v := jsonPathString(root, path); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func jsonPathString(node gson.JSON, path []string) string {
	for _, p := range path {
		if !node.Has(p) {
			return ""
		}
		node = node.Get(p)
	}
	switch v := node.Val().(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(node.JSON("", ""))
	}
	return ""
}

// pageExcerpt runs the readability algorithm over the whole page and
// returns its excerpt as a single candidate. Only whole-page scopes
// qualify; element fragments lack enough context for readability to
// find anything.
func pageExcerpt(q htmldoc.Queryable, baseURL string) []string {
	raw := q.RawHTML()
	if raw == "" {
		return nil
	}
	parsedURL, err := nurl.Parse(baseURL)
	if err != nil {
		return nil
	}
	article, err := readability.FromReader(strings.NewReader(raw), parsedURL)
	if err != nil {
		slog.Debug("readability excerpt failed", "error", err)
		return nil
	}
	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		return nil
	}
	return []string{excerpt}
}
