package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Harvest   HarvestConfig
	Export    ExportConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance used by the render
// engine.
type BrowserConfig struct {
	// Enabled toggles the rendering engines. When false only the
	// plain HTTP engine fetches pages.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// FetchConfig controls page fetching behavior.
type FetchConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// HTTPTimeout is the deadline for the pure HTTP engine before the
	// dispatcher escalates to a rendering engine.
	HTTPTimeout time.Duration // default: 8s

	// RequestsPerSecond is the sustained fetch rate against the target
	// site. Pinterest tolerates very little.
	RequestsPerSecond float64 // default: 1

	// UserAgent is sent by the plain HTTP engine.
	UserAgent string

	// BlockedResourceTypes lists browser resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// MemoryTTL is how long a page kind remembers its winning engine.
	MemoryTTL time.Duration // default: 24h
}

// HarvestConfig controls a harvest run.
type HarvestConfig struct {
	// MaxItems caps records per run when the request does not say.
	MaxItems int // default: 20

	// MaxPages is how many result viewports listing pages are scrolled
	// through before link discovery runs. More viewports, more links.
	MaxPages int // default: 5

	// AbortOnInvalid stops a run on the first record that fails
	// required-field validation instead of skipping it.
	AbortOnInvalid bool // default: false

	// NearDupThreshold is the Hamming distance under which kept
	// records are flagged as near-duplicate content. 0 disables.
	NearDupThreshold int // default: 3
}

// ExportConfig controls CSV export.
type ExportConfig struct {
	// OutputDir receives the per-type CSV files.
	OutputDir string // default: "output"

	// StrictHeaders pads rows to the first record's header instead of
	// writing ragged rows.
	StrictHeaders bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API surface.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the fetched-page cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached pages.
	MaxEntries int // default: 500

	// TTL is how long a cached page stays fresh.
	TTL time.Duration // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PINHARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("PINHARVEST_PORT", 8080),
			Mode: envOr("PINHARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:      envBoolOr("PINHARVEST_BROWSER_ENABLED", true),
			Headless:     envBoolOr("PINHARVEST_HEADLESS", true),
			MaxPages:     envIntOr("PINHARVEST_MAX_BROWSER_PAGES", 5),
			DefaultProxy: os.Getenv("PINHARVEST_PROXY"),
			NoSandbox:    envBoolOr("PINHARVEST_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PINHARVEST_BROWSER_BIN"),
		},
		Fetch: FetchConfig{
			DefaultTimeout:    envDurationOr("PINHARVEST_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("PINHARVEST_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("PINHARVEST_NAV_TIMEOUT", 15*time.Second),
			HTTPTimeout:       envDurationOr("PINHARVEST_HTTP_TIMEOUT", 8*time.Second),
			RequestsPerSecond: envFloatOr("PINHARVEST_FETCH_RPS", 1.0),
			UserAgent:         envOr("PINHARVEST_USER_AGENT", defaultUserAgent),
			BlockedResourceTypes: envSliceOr("PINHARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			EscalationDelays: envDurationSliceOr("PINHARVEST_ESCALATION_DELAYS", []time.Duration{
				0, 2 * time.Second, 5 * time.Second,
			}),
			MemoryTTL: envDurationOr("PINHARVEST_ENGINE_MEMORY_TTL", 24*time.Hour),
		},
		Harvest: HarvestConfig{
			MaxItems:         envIntOr("PINHARVEST_MAX_ITEMS", 20),
			MaxPages:         envIntOr("PINHARVEST_MAX_PAGES", 5),
			AbortOnInvalid:   envBoolOr("PINHARVEST_ABORT_ON_INVALID", false),
			NearDupThreshold: envIntOr("PINHARVEST_NEAR_DUP_THRESHOLD", 3),
		},
		Export: ExportConfig{
			OutputDir:     envOr("PINHARVEST_OUTPUT_DIR", "output"),
			StrictHeaders: envBoolOr("PINHARVEST_STRICT_HEADERS", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PINHARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PINHARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PINHARVEST_RATE_RPS", 5.0),
			Burst:             envIntOr("PINHARVEST_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PINHARVEST_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("PINHARVEST_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("PINHARVEST_LOG_LEVEL", "info"),
			Format: envOr("PINHARVEST_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
