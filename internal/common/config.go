package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Auth        AuthConfig       `toml:"auth"`
	Markets     MarketsConfig    `toml:"markets"`
	Filings     FilingsConfig    `toml:"filings"`
	MarketData  MarketDataConfig `toml:"market_data"`
	Chart       ChartConfig      `toml:"chart"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Refresh     RefreshConfig    `toml:"refresh"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// AuthConfig contains bearer-token authentication configuration
type AuthConfig struct {
	// Tokens maps bearer token -> user id. Loaded from config or the
	// MARKETLENS_AUTH_TOKENS env var ("token1=user1,token2=user2").
	Tokens map[string]string `toml:"tokens"`
}

// MarketsConfig controls symbol normalization defaults
type MarketsConfig struct {
	DefaultExchange   string `toml:"default_exchange"`    // Exchange tag for chart symbols (default: "NSE")
	MarketDataSuffix  string `toml:"market_data_suffix"`  // Suffix for market-data symbols (default: ".NS")
	FilingExchangeURL string `toml:"filing_exchange_url"` // Base URL of the filing repository API
}

// FilingsConfig contains exchange filing retrieval and summarization configuration
type FilingsConfig struct {
	LookbackDays   int    `toml:"lookback_days"`    // How far back to fetch filings (default: 60)
	MaxFilings     int    `toml:"max_filings"`      // Max filings to summarize per refresh (default: 3)
	RequestTimeout string `toml:"request_timeout"`  // HTTP timeout as duration string (default: "30s")
	RateLimit      string `toml:"rate_limit"`       // Min interval between repository requests (default: "500ms")
	MaxPages       int    `toml:"max_pages"`        // Pagination safety cap (default: 10)
	PromptBudget   int    `toml:"prompt_budget"`    // Max extracted-text chars sent to the LLM (default: 12000)
	MinTextLength  int    `toml:"min_text_length"`  // Below this, summaries get the conservative guard (default: 500)
	UserAgent      string `toml:"user_agent"`       // User agent for repository requests
	AttachmentBase string `toml:"attachment_base"`  // Live PDF mirror base URL
	HistoricalBase string `toml:"historical_base"`  // Historical PDF mirror base URL
	ProviderOrder  string `toml:"provider_order"`   // "api,html" - order announcement providers are tried
}

// MarketDataConfig contains fundamentals provider configuration
type MarketDataConfig struct {
	BaseURL        string `toml:"base_url"`        // Fundamentals API base URL
	RequestTimeout string `toml:"request_timeout"` // HTTP timeout (default: "30s")
	RateLimit      string `toml:"rate_limit"`      // Min interval between requests (default: "1s")
	UserAgent      string `toml:"user_agent"`
}

// ChartConfig contains headless chart rendering configuration
type ChartConfig struct {
	BaseURL        string `toml:"base_url"`        // Chart page URL template, %s replaced with the chart id
	Interval       string `toml:"interval"`        // Chart interval (default: "D")
	ViewportWidth  int    `toml:"viewport_width"`  // Browser viewport width (default: 1600)
	ViewportHeight int    `toml:"viewport_height"` // Browser viewport height (default: 900)
	RenderTimeout  string `toml:"render_timeout"`  // Total render timeout (default: "90s")
	SettleWait     string `toml:"settle_wait"`     // Wait after load for chart paint (default: "6s")
}

// GeminiConfig contains Google Gemini API configuration for all AI services
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`      // Google Gemini API key
	Model       string  `toml:"model"`        // Model for AI operations (default: "gemini-3-flash-preview")
	VisionModel string  `toml:"vision_model"` // Model for chart image analysis (defaults to Model)
	Timeout     string  `toml:"timeout"`      // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`   // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"`  // Completion temperature (default: 0.2)
}

// ClaudeConfig contains Anthropic Claude API configuration for AI services
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key for Claude operations
	Model       string  `toml:"model"`       // Model for AI operations (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
	MaxRetries      int         `toml:"max_retries"`      // Retries on transient API errors (default: 3)
}

// RefreshConfig controls aggregation refresh behavior
type RefreshConfig struct {
	Concurrency int    `toml:"concurrency"` // Max symbols refreshed concurrently per request (default: 4)
	Timeout     string `toml:"timeout"`     // Per-symbol refresh timeout (default: "5m")
	Schedule    string `toml:"schedule"`    // Cron schedule for background watchlist refresh ("" = disabled)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in marketlens.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Auth: AuthConfig{
			Tokens: map[string]string{},
		},
		Markets: MarketsConfig{
			DefaultExchange:  "NSE",
			MarketDataSuffix: ".NS",
		},
		Filings: FilingsConfig{
			LookbackDays:   60,
			MaxFilings:     3,
			RequestTimeout: "30s",
			RateLimit:      "500ms",
			MaxPages:       10,
			PromptBudget:   12000,
			MinTextLength:  500,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AttachmentBase: "https://www.bseindia.com/xml-data/corpfiling/AttachLive/",
			HistoricalBase: "https://www.bseindia.com/xml-data/corpfiling/AttachHis/",
			ProviderOrder:  "api,html",
		},
		MarketData: MarketDataConfig{
			BaseURL:        "https://query1.finance.yahoo.com",
			RequestTimeout: "30s",
			RateLimit:      "1s",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Chart: ChartConfig{
			BaseURL:        "https://www.tradingview.com/chart/?symbol=%s",
			Interval:       "D",
			ViewportWidth:  1600,
			ViewportHeight: 900,
			RenderTimeout:  "90s",
			SettleWait:     "6s",
		},
		Gemini: GeminiConfig{
			APIKey:      "", // User must provide API key (no fallback)
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s", // Default to 4s (15 RPM) for free tier
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxRetries:      3,
		},
		Refresh: RefreshConfig{
			Concurrency: 4,
			Timeout:     "5m",
			Schedule:    "", // disabled unless configured
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files. Priority: CLI flags > environment variables > last config
// file > ... > first config file > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MARKETLENS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("MARKETLENS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MARKETLENS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("MARKETLENS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("MARKETLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MARKETLENS_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("MARKETLENS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Auth configuration: "token1=user1,token2=user2"
	if tokens := os.Getenv("MARKETLENS_AUTH_TOKENS"); tokens != "" {
		parsed := map[string]string{}
		for _, pair := range strings.Split(tokens, ",") {
			parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
				parsed[parts[0]] = parts[1]
			}
		}
		if len(parsed) > 0 {
			config.Auth.Tokens = parsed
		}
	}

	// Markets configuration
	if exchange := os.Getenv("MARKETLENS_DEFAULT_EXCHANGE"); exchange != "" {
		config.Markets.DefaultExchange = exchange
	}
	if suffix := os.Getenv("MARKETLENS_MARKET_DATA_SUFFIX"); suffix != "" {
		config.Markets.MarketDataSuffix = suffix
	}

	// Filings configuration
	if lookback := os.Getenv("MARKETLENS_FILINGS_LOOKBACK_DAYS"); lookback != "" {
		if d, err := strconv.Atoi(lookback); err == nil {
			config.Filings.LookbackDays = d
		}
	}
	if maxFilings := os.Getenv("MARKETLENS_FILINGS_MAX"); maxFilings != "" {
		if m, err := strconv.Atoi(maxFilings); err == nil {
			config.Filings.MaxFilings = m
		}
	}
	if rateLimit := os.Getenv("MARKETLENS_FILINGS_RATE_LIMIT"); rateLimit != "" {
		config.Filings.RateLimit = rateLimit
	}

	// Chart configuration
	if interval := os.Getenv("MARKETLENS_CHART_INTERVAL"); interval != "" {
		config.Chart.Interval = interval
	}
	if timeout := os.Getenv("MARKETLENS_CHART_RENDER_TIMEOUT"); timeout != "" {
		config.Chart.RenderTimeout = timeout
	}

	// Gemini configuration
	if apiKey := os.Getenv("MARKETLENS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("MARKETLENS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if rateLimit := os.Getenv("MARKETLENS_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("MARKETLENS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // MARKETLENS_ prefix takes priority
	}
	if model := os.Getenv("MARKETLENS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// LLM provider configuration
	if provider := os.Getenv("MARKETLENS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Refresh configuration
	if concurrency := os.Getenv("MARKETLENS_REFRESH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Refresh.Concurrency = c
		}
	}
	if schedule := os.Getenv("MARKETLENS_REFRESH_SCHEDULE"); schedule != "" {
		config.Refresh.Schedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// configValidation is the subset of config checked with struct tags
type configValidation struct {
	Port            int    `validate:"gte=1,lte=65535"`
	LookbackDays    int    `validate:"gte=1"`
	MaxFilings      int    `validate:"gte=0"`
	Concurrency     int    `validate:"gte=1"`
	DefaultProvider string `validate:"oneof=gemini claude"`
}

// Validate checks config invariants that would otherwise fail at first use
func (c *Config) Validate() error {
	v := validator.New()
	check := configValidation{
		Port:            c.Server.Port,
		LookbackDays:    c.Filings.LookbackDays,
		MaxFilings:      c.Filings.MaxFilings,
		Concurrency:     c.Refresh.Concurrency,
		DefaultProvider: string(c.LLM.DefaultProvider),
	}
	if err := v.Struct(check); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"filings.request_timeout", c.Filings.RequestTimeout},
		{"filings.rate_limit", c.Filings.RateLimit},
		{"market_data.request_timeout", c.MarketData.RequestTimeout},
		{"market_data.rate_limit", c.MarketData.RateLimit},
		{"chart.render_timeout", c.Chart.RenderTimeout},
		{"chart.settle_wait", c.Chart.SettleWait},
		{"refresh.timeout", c.Refresh.Timeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", field.name, err)
		}
	}

	if c.Refresh.Schedule != "" {
		if err := ValidateRefreshSchedule(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("invalid configuration: refresh.schedule: %w", err)
		}
	}

	return nil
}

// ValidateRefreshSchedule validates a cron schedule expression and ensures a
// minimum 5-minute interval so the background refresh cannot hammer sources.
func ValidateRefreshSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// Duration parses a duration config string, falling back to def when the
// string is empty or malformed.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
