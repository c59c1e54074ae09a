package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/models"
)

// Browser owns the headless Chrome process and the reusable page pool.
// It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	fetchCfg    config.FetchConfig
	activePages atomic.Int32
}

// NewBrowser launches a headless browser and initialises the page pool.
func NewBrowser(browserCfg config.BrowserConfig, fetchCfg config.FetchConfig) (*Browser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Flags that soften automation tells and background throttling.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "connect to browser", err)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Browser{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		fetchCfg:   fetchCfg,
	}, nil
}

// ActivePages reports the number of tabs currently in use.
func (b *Browser) ActivePages() int {
	return int(b.activePages.Load())
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

// fetch renders one page. Lifecycle order matters: stealth injection
// and the hijack router must be installed before Navigate, and cleanup
// uses the original page reference so it still works after the request
// context expires.
func (b *Browser) fetch(ctx context.Context, req *Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 || timeout > b.fetchCfg.MaxTimeout {
		timeout = b.fetchCfg.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, acquireErr := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "acquire page from pool", acquireErr)
	}
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	// A search-engine referrer gets past some of Pinterest's
	// logged-out interstitials.
	extraHeaders := map[string]string{}
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extraHeaders)}.Call(page)
	}

	router := setupHijack(page, b.fetchCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	// Grid pages build their content as the viewport moves; detail
	// pages arrive complete after the DOM settles.
	if req.Kind.listing() {
		rounds := req.ScrollRounds
		if rounds <= 0 {
			rounds = 4
		}
		scrollFeed(p, rounds)
	} else {
		scrollFeed(p, 1)
	}

	var statusCode int
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       rawHTML,
		Title:      title,
		StatusCode: statusCode,
		FinalURL:   finalURL,
	}, nil
}

// scrollFeed scrolls down by whole viewports with pauses so the lazy
// grid keeps loading.
func scrollFeed(p *rod.Page, rounds int) {
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return
	}
	viewportHeight := float64(res.Value.Int())
	for i := 0; i < rounds; i++ {
		if err := p.Mouse.Scroll(0, viewportHeight, 0); err != nil {
			return
		}
		time.Sleep(400 * time.Millisecond)
	}
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func categorizeError(err error, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeFetch, msg+": timed out", err)
	default:
		return models.NewHarvestError(models.ErrCodeFetch, msg, err)
	}
}

// RenderEngine adapts a Browser to the Engine interface. forceStealth
// distinguishes the plain render tier from the stealth tier.
type RenderEngine struct {
	browser      *Browser
	forceStealth bool
	name         string
}

// NewRenderEngine wraps the shared browser as an Engine.
func NewRenderEngine(browser *Browser, forceStealth bool) *RenderEngine {
	name := "render"
	if forceStealth {
		name = "render-stealth"
	}
	return &RenderEngine{browser: browser, forceStealth: forceStealth, name: name}
}

func (e *RenderEngine) Name() string { return e.name }

func (e *RenderEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	r := *req
	if e.forceStealth {
		r.Stealth = true
	}
	result, err := e.browser.fetch(ctx, &r)
	if err != nil {
		return nil, err
	}
	result.Engine = e.name
	return result, nil
}
