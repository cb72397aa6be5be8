package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser      BrowserConfig
	Scraper      ScraperConfig
	Registry     RegistryConfig
	History      HistoryConfig
	Notify       NotifyConfig
	Report       ReportConfig
	MercadoLibre MercadoLibreConfig
	Log          LogConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all browser and HTTP traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth masks automation fingerprints for every target unless the
	// target opts out.
	Stealth bool // default: true
}

// ScraperConfig controls acquisition and recovery behavior.
type ScraperConfig struct {
	// NavigationTimeout bounds a single page.Navigate plus load wait.
	NavigationTimeout time.Duration // default: 60s

	// TargetTimeout bounds all work for one target, retries included.
	TargetTimeout time.Duration // default: 3m

	// SettleWait is the default pause after navigation.
	SettleWait time.Duration // default: 3s

	// ChallengeWait is the default budget for anti-bot challenges.
	ChallengeWait time.Duration // default: 12s

	// InterceptionWait is the default pause after clicking a gate's
	// continue affordance.
	InterceptionWait time.Duration // default: 3s

	// NavigationAttempts is the total number of navigation attempts.
	NavigationAttempts int // default: 3

	// RetryBackoff is the linear backoff step between attempts.
	RetryBackoff time.Duration // default: 2s

	// Pacing is the minimum interval between two target acquisitions.
	Pacing time.Duration // default: 2s

	// BlockedResourceTypes lists resource types to block. Stylesheets are
	// left out on purpose: visibility and text-decoration need them.
	BlockedResourceTypes []string // default: ["Image", "Font", "Media"]

	// BlockAds drops requests to well-known ad and tracking domains.
	BlockAds bool // default: true

	UserAgent      string
	AcceptLanguage string
}

// RegistryConfig points at the target registry file.
type RegistryConfig struct {
	Path string // default: "targets.yaml"
}

// HistoryConfig selects the snapshot store.
type HistoryConfig struct {
	Backend string // "json" or "sqlite"; default: "json"
	Path    string // default: "results.json"
}

// NotifyConfig controls report delivery.
type NotifyConfig struct {
	TelegramToken  string
	TelegramChatID string
	TelegramAPI    string // default: "https://api.telegram.org"

	WebhookURL    string
	WebhookSecret string
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	TopK     int    // default: 3
	Locale   string // default: "es-CL"
	Timezone string // default: "America/Santiago"
}

// MercadoLibreConfig controls API-backed targets.
type MercadoLibreConfig struct {
	BaseURL string        // default: "https://api.mercadolibre.com"
	Timeout time.Duration // default: 15s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:     envBoolOr("PRICEWATCH_HEADLESS", true),
			DefaultProxy: os.Getenv("PRICEWATCH_PROXY"),
			NoSandbox:    envBoolOr("PRICEWATCH_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PRICEWATCH_BROWSER_BIN"),
			Stealth:      envBoolOr("PRICEWATCH_STEALTH", true),
		},
		Scraper: ScraperConfig{
			NavigationTimeout:  envDurationOr("PRICEWATCH_NAV_TIMEOUT", 60*time.Second),
			TargetTimeout:      envDurationOr("PRICEWATCH_TARGET_TIMEOUT", 3*time.Minute),
			SettleWait:         envDurationOr("PRICEWATCH_SETTLE_WAIT", 3*time.Second),
			ChallengeWait:      envDurationOr("PRICEWATCH_CHALLENGE_WAIT", 12*time.Second),
			InterceptionWait:   envDurationOr("PRICEWATCH_INTERCEPTION_WAIT", 3*time.Second),
			NavigationAttempts: envIntOr("PRICEWATCH_NAV_ATTEMPTS", 3),
			RetryBackoff:       envDurationOr("PRICEWATCH_RETRY_BACKOFF", 2*time.Second),
			Pacing:             envDurationOr("PRICEWATCH_PACING", 2*time.Second),
			BlockedResourceTypes: envSliceOr("PRICEWATCH_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds:       envBoolOr("PRICEWATCH_BLOCK_ADS", true),
			UserAgent:      envOr("PRICEWATCH_USER_AGENT", defaultUserAgent),
			AcceptLanguage: envOr("PRICEWATCH_ACCEPT_LANGUAGE", "es-CL,es;q=0.9,en;q=0.8"),
		},
		Registry: RegistryConfig{
			Path: envOr("PRICEWATCH_TARGETS", "targets.yaml"),
		},
		History: HistoryConfig{
			Backend: envOr("PRICEWATCH_HISTORY_BACKEND", "json"),
			Path:    envOr("PRICEWATCH_HISTORY_PATH", "results.json"),
		},
		Notify: NotifyConfig{
			TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
			TelegramAPI:    envOr("PRICEWATCH_TELEGRAM_API", "https://api.telegram.org"),
			WebhookURL:     os.Getenv("PRICEWATCH_WEBHOOK_URL"),
			WebhookSecret:  os.Getenv("PRICEWATCH_WEBHOOK_SECRET"),
		},
		Report: ReportConfig{
			TopK:     envIntOr("PRICEWATCH_TOP_K", 3),
			Locale:   envOr("PRICEWATCH_LOCALE", "es-CL"),
			Timezone: envOr("PRICEWATCH_TIMEZONE", "America/Santiago"),
		},
		MercadoLibre: MercadoLibreConfig{
			BaseURL: envOr("PRICEWATCH_MELI_BASE_URL", "https://api.mercadolibre.com"),
			Timeout: envDurationOr("PRICEWATCH_MELI_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("PRICEWATCH_LOG_LEVEL", "info"),
			Format: envOr("PRICEWATCH_LOG_FORMAT", "text"),
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
