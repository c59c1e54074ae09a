// Package harvest orchestrates the three harvest flows: pin harvests
// (search listing to pin detail pages), board harvests (search listing
// to board pages, plus the board owners' profiles), and search
// harvests (result records straight off the listing, plus trending).
// Every flow feeds its records through the processing pipeline.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/pinharvest/cache"
	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/extract"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/htmldoc"
	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/pipeline"
)

const baseURL = "https://www.pinterest.com"

// Fetcher turns a page request into page HTML. Satisfied by
// *fetch.Dispatcher; tests substitute canned pages.
type Fetcher interface {
	Fetch(ctx context.Context, req *fetch.Request) (*fetch.Result, error)
}

// Sink receives extracted records. Satisfied by *pipeline.Pipeline.
type Sink interface {
	Process(rec *models.Record) (*models.Record, error)
}

// Harvester runs harvest flows. Safe for concurrent runs as long as
// each run gets its own Sink.
type Harvester struct {
	fetcher Fetcher
	pages   *cache.Cache
	ext     *extract.Extractor
	cfg     config.HarvestConfig
	log     *slog.Logger
}

// New builds a Harvester. pages may be nil to disable page caching.
func New(fetcher Fetcher, pages *cache.Cache, cfg config.HarvestConfig, log *slog.Logger) *Harvester {
	if log == nil {
		log = slog.Default()
	}
	return &Harvester{
		fetcher: fetcher,
		pages:   pages,
		ext:     extract.NewExtractor(),
		cfg:     cfg,
		log:     log,
	}
}

// Run executes the flow selected by the request, feeding every
// extracted record through the sink. Individual bad records are logged
// and skipped; only fetch failure of the seed page or a sink failure
// aborts the run.
func (h *Harvester) Run(ctx context.Context, req *models.HarvestRequest, sink Sink) error {
	req.Defaults()
	maxItems := req.MaxItems
	if maxItems <= 0 || maxItems > h.cfg.MaxItems*10 {
		maxItems = h.cfg.MaxItems
	}

	h.log.Info("harvest run starting", "kind", req.Kind, "query", req.Query, "max_items", maxItems)

	switch req.Kind {
	case "pins":
		return h.runPins(ctx, req, sink, maxItems)
	case "boards":
		return h.runBoards(ctx, req, sink, maxItems)
	case "search":
		return h.runSearch(ctx, req, sink, maxItems)
	}
	return models.NewHarvestError(models.ErrCodeInvalidInput,
		fmt.Sprintf("unknown harvest kind %q", req.Kind), nil)
}

// runPins walks the pin search listing and follows each discovered pin
// to its detail page.
func (h *Harvester) runPins(ctx context.Context, req *models.HarvestRequest, sink Sink, maxItems int) error {
	listing, err := h.page(ctx, req, searchURL(req.Query, "pins"), fetch.KindListing)
	if err != nil {
		return err
	}

	links := h.ext.PinLinks(listing, maxItems)
	h.log.Info("pin links discovered", "count", len(links))

	for _, pinURL := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc, err := h.page(ctx, req, pinURL, fetch.KindPin)
		if err != nil {
			h.log.Warn("pin page fetch failed, skipping", "url", pinURL, "error", err)
			continue
		}
		if err := h.emit(sink, h.ext.BuildPin(doc, pinURL)); err != nil {
			return err
		}
	}
	return nil
}

// runBoards walks the board search listing, follows each board page,
// and visits each distinct board owner's profile once.
func (h *Harvester) runBoards(ctx context.Context, req *models.HarvestRequest, sink Sink, maxItems int) error {
	listing, err := h.page(ctx, req, searchURL(req.Query, "boards"), fetch.KindListing)
	if err != nil {
		return err
	}

	links := h.ext.BoardLinks(listing, maxItems)
	h.log.Info("board links discovered", "count", len(links))

	seenOwners := make(map[string]struct{})
	for _, boardURL := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		doc, err := h.page(ctx, req, boardURL, fetch.KindBoard)
		if err != nil {
			h.log.Warn("board page fetch failed, skipping", "url", boardURL, "error", err)
			continue
		}
		rec := h.ext.BuildBoard(doc, boardURL)
		if err := h.emit(sink, rec); err != nil {
			return err
		}

		ownerURL := rec.String("owner_url")
		if ownerURL == "" {
			continue
		}
		if _, seen := seenOwners[ownerURL]; seen {
			continue
		}
		seenOwners[ownerURL] = struct{}{}
		if err := h.harvestProfile(ctx, req, sink, ownerURL); err != nil {
			return err
		}
	}
	return nil
}

// harvestProfile fetches one creator profile and emits a user record.
// Fetch failures are non-fatal: the profile is a bonus on top of the
// board harvest.
func (h *Harvester) harvestProfile(ctx context.Context, req *models.HarvestRequest, sink Sink, profileURL string) error {
	doc, err := h.page(ctx, req, profileURL, fetch.KindProfile)
	if err != nil {
		h.log.Warn("profile fetch failed, skipping", "url", profileURL, "error", err)
		return nil
	}
	return h.emit(sink, h.ext.BuildUser(doc, profileURL))
}

// runSearch extracts result records straight off the listing page,
// then harvests the trending page.
func (h *Harvester) runSearch(ctx context.Context, req *models.HarvestRequest, sink Sink, maxItems int) error {
	searchPageURL := searchURL(req.Query, req.SearchType)
	listing, err := h.page(ctx, req, searchPageURL, fetch.KindSearch)
	if err != nil {
		return err
	}

	sc := h.ext.NewSearchContext(listing, req.Query, req.SearchType, searchPageURL)
	results := h.ext.BuildSearchResults(listing, sc, maxItems)
	h.log.Info("search results extracted", "count", len(results), "total_on_page", sc.Total)
	for _, rec := range results {
		if err := h.emit(sink, rec); err != nil {
			return err
		}
	}

	trendingDoc, err := h.page(ctx, req, baseURL+"/today/", fetch.KindTrending)
	if err != nil {
		h.log.Warn("trending page fetch failed, skipping trends", "error", err)
		return nil
	}
	trends := h.ext.BuildTrends(trendingDoc, maxItems)
	h.log.Info("trends extracted", "count", len(trends))
	for _, rec := range trends {
		if err := h.emit(sink, rec); err != nil {
			return err
		}
	}
	return nil
}

// emit pushes one record into the sink. Validation rejections are
// logged and swallowed unless AbortOnInvalid is set; anything else is
// fatal to the run.
func (h *Harvester) emit(sink Sink, rec *models.Record) error {
	kept, err := sink.Process(rec)
	if err != nil {
		if pipeline.IsValidationError(err) && !h.cfg.AbortOnInvalid {
			h.log.Warn("record rejected", "describe", rec.Describe(), "error", err)
			return nil
		}
		return err
	}
	if kept != nil {
		h.log.Debug("record kept", "describe", kept.Describe())
	}
	return nil
}

// page fetches one page, through the cache when one is configured, and
// parses it.
func (h *Harvester) page(ctx context.Context, req *models.HarvestRequest, pageURL string, kind fetch.PageKind) (*htmldoc.Document, error) {
	var key string
	if h.pages != nil {
		key = cache.Key(pageURL, kind)
		if cached, ok := h.pages.Get(key); ok {
			h.log.Debug("page cache hit", "url", pageURL)
			return htmldoc.Parse(cached.HTML)
		}
	}

	result, err := h.fetcher.Fetch(ctx, &fetch.Request{
		URL:          pageURL,
		Kind:         kind,
		Timeout:      time.Duration(req.Timeout) * time.Second,
		Stealth:      req.Stealth,
		ProxyURL:     req.ProxyURL,
		ScrollRounds: h.cfg.MaxPages,
	})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "fetch "+pageURL, err)
	}
	if h.pages != nil {
		h.pages.Set(key, result)
	}
	return htmldoc.Parse(result.HTML)
}

// searchURL builds the Pinterest search URL for a query. The people
// search lives under /search/people/ although its records are typed
// "users".
func searchURL(query, searchType string) string {
	segment := searchType
	if searchType == "users" {
		segment = "people"
	}
	return fmt.Sprintf("%s/search/%s/?q=%s", baseURL, segment, url.QueryEscape(query))
}
