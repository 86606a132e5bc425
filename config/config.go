package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Browser    BrowserConfig    `yaml:"browser"`
	Capture    CaptureConfig    `yaml:"capture"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Pagination PaginationConfig `yaml:"pagination"`
	Planner    PlannerConfig    `yaml:"planner"`
	Store      StoreConfig      `yaml:"store"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int `yaml:"max_pages"` // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string `yaml:"default_proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"`

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// ViewportWidth and ViewportHeight set the default page viewport.
	ViewportWidth  int `yaml:"viewport_width"`  // default: 1920
	ViewportHeight int `yaml:"viewport_height"` // default: 1080

	// UserAgent is applied to every page.
	UserAgent string `yaml:"user_agent"`

	// Stealth injects anti-detection JS into every new page.
	Stealth bool `yaml:"stealth"` // default: true

	// AcceptLanguage is sent as an extra header on every page.
	AcceptLanguage string `yaml:"accept_language"` // default: "en-US,en;q=0.9"
}

// CaptureConfig controls response interception.
type CaptureConfig struct {
	// NavigationTimeout bounds the wait for the network to settle.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 60s

	// SettleWindow is the extra wait for late asynchronous responses.
	SettleWindow time.Duration `yaml:"settle_window"` // default: 3s

	// BodyTimeout bounds each response body fetch.
	BodyTimeout time.Duration `yaml:"body_timeout"` // default: 5s

	// DefaultMatch is used when a request carries no match criteria.
	DefaultMatch string `yaml:"default_match"` // default: "/api/"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`

	// BlockAds blocks well-known ad and tracking domains.
	BlockAds bool `yaml:"block_ads"` // default: true
}

// SandboxConfig controls script evaluation.
type SandboxConfig struct {
	// Timeout bounds one script run.
	Timeout time.Duration `yaml:"timeout"` // default: 30s
}

// PaginationConfig controls next-page traversal.
type PaginationConfig struct {
	// NavigationTimeout bounds each click-and-wait step.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	// MaxPagesLimit caps whatever maxPages the planner proposes.
	MaxPagesLimit int `yaml:"max_pages_limit"` // default: 20
}

// PlannerConfig controls the content planner adapter.
type PlannerConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`    // default: "gpt-4o-mini"
	BaseURL string `yaml:"base_url"` // default: "https://api.openai.com/v1"

	// Temperature is part of the cache fingerprint.
	Temperature float64 `yaml:"temperature"` // default: 0

	// Timeout bounds a single planner call.
	Timeout time.Duration `yaml:"timeout"` // default: 60s

	// CacheTTL is the lifetime of a cached planning result.
	CacheTTL time.Duration `yaml:"cache_ttl"` // default: 1h

	// CacheMaxEntries bounds the planner cache.
	CacheMaxEntries int `yaml:"cache_max_entries"` // default: 500
}

// StoreConfig controls the sqlite database.
type StoreConfig struct {
	// Path is the sqlite file path. ":memory:" keeps everything in memory.
	Path string `yaml:"path"` // default: "data/actorkit.db"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 5

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 10
}

// WebhookConfig controls execution-completion notifications.
type WebhookConfig struct {
	// URL receives execution.completed / execution.failed events. Empty disables.
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Browser: BrowserConfig{
			Headless:       true,
			MaxPages:       10,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			UserAgent:      DefaultUserAgent,
			Stealth:        true,
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Capture: CaptureConfig{
			NavigationTimeout:    60 * time.Second,
			SettleWindow:         3 * time.Second,
			BodyTimeout:          5 * time.Second,
			DefaultMatch:         "/api/",
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
			BlockAds:             true,
		},
		Sandbox:    SandboxConfig{Timeout: 30 * time.Second},
		Pagination: PaginationConfig{NavigationTimeout: 30 * time.Second, MaxPagesLimit: 20},
		Planner: PlannerConfig{
			Model:           "gpt-4o-mini",
			BaseURL:         "https://api.openai.com/v1",
			Timeout:         60 * time.Second,
			CacheTTL:        time.Hour,
			CacheMaxEntries: 500,
		},
		Store:     StoreConfig{Path: "data/actorkit.db"},
		Auth:      AuthConfig{Enabled: true},
		RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 10},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// DefaultUserAgent is the desktop Chrome user agent applied to pages.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from an optional YAML file named by ACTORKIT_CONFIG
// and then from environment variables, which win over the file.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("ACTORKIT_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("ACTORKIT_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("ACTORKIT_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("ACTORKIT_MODE", cfg.Server.Mode)

	cfg.Browser.Headless = envBoolOr("ACTORKIT_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.MaxPages = envIntOr("ACTORKIT_MAX_PAGES", cfg.Browser.MaxPages)
	cfg.Browser.DefaultProxy = envOr("ACTORKIT_PROXY", cfg.Browser.DefaultProxy)
	cfg.Browser.NoSandbox = envBoolOr("ACTORKIT_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("ACTORKIT_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.ViewportWidth = envIntOr("ACTORKIT_VIEWPORT_WIDTH", cfg.Browser.ViewportWidth)
	cfg.Browser.ViewportHeight = envIntOr("ACTORKIT_VIEWPORT_HEIGHT", cfg.Browser.ViewportHeight)
	cfg.Browser.UserAgent = envOr("ACTORKIT_USER_AGENT", cfg.Browser.UserAgent)
	cfg.Browser.Stealth = envBoolOr("ACTORKIT_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.AcceptLanguage = envOr("ACTORKIT_ACCEPT_LANGUAGE", cfg.Browser.AcceptLanguage)

	cfg.Capture.NavigationTimeout = envDurationOr("ACTORKIT_NAV_TIMEOUT", cfg.Capture.NavigationTimeout)
	cfg.Capture.SettleWindow = envDurationOr("ACTORKIT_SETTLE_WINDOW", cfg.Capture.SettleWindow)
	cfg.Capture.BodyTimeout = envDurationOr("ACTORKIT_BODY_TIMEOUT", cfg.Capture.BodyTimeout)
	cfg.Capture.DefaultMatch = envOr("ACTORKIT_DEFAULT_MATCH", cfg.Capture.DefaultMatch)
	cfg.Capture.BlockedResourceTypes = envSliceOr("ACTORKIT_BLOCKED_RESOURCES", cfg.Capture.BlockedResourceTypes)
	cfg.Capture.BlockAds = envBoolOr("ACTORKIT_BLOCK_ADS", cfg.Capture.BlockAds)

	cfg.Sandbox.Timeout = envDurationOr("ACTORKIT_SCRIPT_TIMEOUT", cfg.Sandbox.Timeout)

	cfg.Pagination.NavigationTimeout = envDurationOr("ACTORKIT_PAGE_NAV_TIMEOUT", cfg.Pagination.NavigationTimeout)
	cfg.Pagination.MaxPagesLimit = envIntOr("ACTORKIT_MAX_PAGES_LIMIT", cfg.Pagination.MaxPagesLimit)

	cfg.Planner.APIKey = envOr("ACTORKIT_PLANNER_API_KEY", envOr("OPENAI_API_KEY", cfg.Planner.APIKey))
	cfg.Planner.Model = envOr("ACTORKIT_PLANNER_MODEL", cfg.Planner.Model)
	cfg.Planner.BaseURL = envOr("ACTORKIT_PLANNER_BASE_URL", cfg.Planner.BaseURL)
	cfg.Planner.Temperature = envFloatOr("ACTORKIT_PLANNER_TEMPERATURE", cfg.Planner.Temperature)
	cfg.Planner.Timeout = envDurationOr("ACTORKIT_PLANNER_TIMEOUT", cfg.Planner.Timeout)
	cfg.Planner.CacheTTL = envDurationOr("ACTORKIT_PLANNER_CACHE_TTL", cfg.Planner.CacheTTL)
	cfg.Planner.CacheMaxEntries = envIntOr("ACTORKIT_PLANNER_CACHE_MAX", cfg.Planner.CacheMaxEntries)

	cfg.Store.Path = envOr("ACTORKIT_DB_PATH", cfg.Store.Path)

	cfg.Auth.Enabled = envBoolOr("ACTORKIT_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKeys = envSliceOr("ACTORKIT_API_KEYS", cfg.Auth.APIKeys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("ACTORKIT_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("ACTORKIT_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Webhook.URL = envOr("ACTORKIT_WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.Secret = envOr("ACTORKIT_WEBHOOK_SECRET", cfg.Webhook.Secret)

	cfg.Log.Level = envOr("ACTORKIT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("ACTORKIT_LOG_FORMAT", cfg.Log.Format)
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
