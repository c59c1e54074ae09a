package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/pinharvest/cache"
	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/pipeline"
)

// fakeFetcher serves canned HTML per URL and records every request.
type fakeFetcher struct {
	pages    map[string]string
	fetches  map[string]int
	requests []*fetch.Request
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, fetches: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, req *fetch.Request) (*fetch.Result, error) {
	f.fetches[req.URL]++
	f.requests = append(f.requests, req)
	html, ok := f.pages[req.URL]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &fetch.Result{HTML: html, FinalURL: req.URL, Engine: "http", StatusCode: 200}, nil
}

// recordingSink keeps every record it receives.
type recordingSink struct {
	records []*models.Record
}

func (s *recordingSink) Process(rec *models.Record) (*models.Record, error) {
	s.records = append(s.records, rec)
	return rec, nil
}

func pinPage(title string) string {
	return fmt.Sprintf(`<html><body>
		<h1>%s</h1>
		<img src="https://i.pinimg.com/736x/aa/bb/cc.jpg" alt="Pin image">
		<div class="save-count">500</div>
	</body></html>`, title)
}

func harvestConfig() config.HarvestConfig {
	return config.HarvestConfig{MaxItems: 20, MaxPages: 5}
}

func TestRunPinsFlow(t *testing.T) {
	listing := `<html><body>
		<a href="/pin/111222333444555/">a</a>
		<a href="/pin/666777888999000/">b</a>
	</body></html>`
	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": listing,
		"https://www.pinterest.com/pin/111222333444555/":   pinPage("Tiled Kitchen"),
		"https://www.pinterest.com/pin/666777888999000/":   pinPage("Open Shelving"),
	})

	h := New(fetcher, nil, harvestConfig(), nil)
	sink := &recordingSink{}
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	if err := h.Run(context.Background(), req, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("records = %d, want 2", len(sink.records))
	}
	first := sink.records[0]
	if first.Type != models.TypePin {
		t.Errorf("type = %s, want pin", first.Type)
	}
	if got := first.String("pin_id"); got != "111222333444555" {
		t.Errorf("pin_id = %q", got)
	}
	if got := first.String("title"); got != "Tiled Kitchen" {
		t.Errorf("title = %q", got)
	}
}

func TestRunPinsSkipsFailedDetailPages(t *testing.T) {
	listing := `<html><body>
		<a href="/pin/111222333444555/">a</a>
		<a href="/pin/666777888999000/">b</a>
	</body></html>`
	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": listing,
		"https://www.pinterest.com/pin/666777888999000/":   pinPage("Survivor"),
	})

	h := New(fetcher, nil, harvestConfig(), nil)
	sink := &recordingSink{}
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	if err := h.Run(context.Background(), req, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.records) != 1 || sink.records[0].String("title") != "Survivor" {
		t.Fatalf("records = %v, want only the fetchable pin", sink.records)
	}
}

func TestRunBoardsFollowsOwners(t *testing.T) {
	listing := `<html><body>
		<div data-test-id="board-card"><a href="/maker/workshop-ideas/">Workshop</a></div>
	</body></html>`
	board := `<html><body>
		<h1>Workshop Ideas</h1>
		<a href="/user/maker/">maker</a>
	</body></html>`
	profile := `<html><body><h1>Maker</h1></body></html>`

	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/boards/?q=workshop":   listing,
		"https://www.pinterest.com/board/maker/workshop-ideas/": board,
		"https://www.pinterest.com/user/maker/":                 profile,
	})

	h := New(fetcher, nil, harvestConfig(), nil)
	sink := &recordingSink{}
	req := &models.HarvestRequest{Query: "workshop", Kind: "boards"}
	if err := h.Run(context.Background(), req, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("records = %d, want board + owner profile", len(sink.records))
	}
	if sink.records[0].Type != models.TypeBoard {
		t.Errorf("first record type = %s, want board", sink.records[0].Type)
	}
	if got := sink.records[0].String("board_id"); got != "maker/" {
		t.Errorf("board_id = %q", got)
	}
	if sink.records[1].Type != models.TypeUser {
		t.Errorf("second record type = %s, want user", sink.records[1].Type)
	}
}

func TestRunSearchEmitsResultsAndTrends(t *testing.T) {
	searchPage := `<html><body>
		<a href="/pin/111222333444555/"><img src="https://i.pinimg.com/236x/x.jpg"></a>
	</body></html>`
	trendingPage := `<html><body>
		<div class="trending-topic">#cottagecore</div>
	</body></html>`

	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=decor": searchPage,
		"https://www.pinterest.com/today/":               trendingPage,
	})

	h := New(fetcher, nil, harvestConfig(), nil)
	sink := &recordingSink{}
	req := &models.HarvestRequest{Query: "decor", Kind: "search"}
	if err := h.Run(context.Background(), req, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.records) != 2 {
		t.Fatalf("records = %d, want search result + trend", len(sink.records))
	}
	if sink.records[0].Type != models.TypeSearchResult {
		t.Errorf("first type = %s", sink.records[0].Type)
	}
	if got := sink.records[0].String("search_query"); got != "decor" {
		t.Errorf("search_query = %q", got)
	}
	if sink.records[1].Type != models.TypeTrend {
		t.Errorf("second type = %s", sink.records[1].Type)
	}
}

func TestRunUsesPageCache(t *testing.T) {
	listing := `<html><body><a href="/pin/111222333444555/">a</a></body></html>`
	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": listing,
		"https://www.pinterest.com/pin/111222333444555/":   pinPage("Cached Pin"),
	})
	pages := cache.New(100, time.Minute)

	h := New(fetcher, pages, harvestConfig(), nil)
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	for i := 0; i < 2; i++ {
		if err := h.Run(context.Background(), req, &recordingSink{}); err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
	}

	for url, n := range fetcher.fetches {
		if n != 1 {
			t.Errorf("%s fetched %d times, want 1 (cache)", url, n)
		}
	}
}

func TestRunUnknownKind(t *testing.T) {
	h := New(newFakeFetcher(nil), nil, harvestConfig(), nil)
	req := &models.HarvestRequest{Query: "x", Kind: "videos"}
	if err := h.Run(context.Background(), req, &recordingSink{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRunListingScrollDepth(t *testing.T) {
	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": `<html><body></body></html>`,
	})

	cfg := harvestConfig()
	cfg.MaxPages = 7
	h := New(fetcher, nil, cfg, nil)
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	if err := h.Run(context.Background(), req, &recordingSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fetcher.requests) == 0 {
		t.Fatal("no fetch requests recorded")
	}
	listing := fetcher.requests[0]
	if listing.Kind != fetch.KindListing {
		t.Fatalf("first request kind = %s, want listing", listing.Kind)
	}
	if listing.ScrollRounds != 7 {
		t.Errorf("scroll rounds = %d, want 7", listing.ScrollRounds)
	}
}

func TestRunAbortOnInvalid(t *testing.T) {
	// The detail page has no image, so the pin record misses the
	// required image_url field.
	listing := `<html><body>
		<a href="/pin/111222333444555/">a</a>
	</body></html>`
	pages := map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": listing,
		"https://www.pinterest.com/pin/111222333444555/":   `<html><body><h1>Bare Pin</h1></body></html>`,
	}

	open := func(t *testing.T) *pipeline.Pipeline {
		t.Helper()
		p := pipeline.New(pipeline.Config{OutputDir: t.TempDir()}, nil)
		if err := p.Open("test-run"); err != nil {
			t.Fatal(err)
		}
		return p
	}
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}

	p := open(t)
	h := New(newFakeFetcher(pages), nil, harvestConfig(), nil)
	if err := h.Run(context.Background(), req, p); err != nil {
		t.Fatalf("Run with skip semantics: %v", err)
	}
	p.Close()

	cfg := harvestConfig()
	cfg.AbortOnInvalid = true
	p = open(t)
	h = New(newFakeFetcher(pages), nil, cfg, nil)
	err := h.Run(context.Background(), req, p)
	if err == nil {
		t.Fatal("Run should abort on the invalid record")
	}
	if !pipeline.IsValidationError(err) {
		t.Errorf("error = %v, want validation error", err)
	}
	p.Close()
}

func TestRunPinsIntoPipeline(t *testing.T) {
	listing := `<html><body>
		<a href="/pin/111222333444555/">a</a>
		<a href="/pin/111222333444555/">dup in listing</a>
	</body></html>`
	fetcher := newFakeFetcher(map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": listing,
		"https://www.pinterest.com/pin/111222333444555/":   pinPage("Tiled Kitchen"),
	})

	p := pipeline.New(pipeline.Config{OutputDir: t.TempDir()}, nil)
	if err := p.Open("test-run"); err != nil {
		t.Fatal(err)
	}
	h := New(fetcher, nil, harvestConfig(), nil)
	req := &models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	if err := h.Run(context.Background(), req, p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	stats := p.Stats()
	if stats.Kept != 1 {
		t.Errorf("kept = %d, want 1", stats.Kept)
	}
}
