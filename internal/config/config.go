package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "PAPER_HARVESTER_CONFIG"
	llmAPIKeyEnv     = "LLM_API_KEY"
	llmModelEnv      = "LLM_MODEL"
	llmEndpointEnv   = "LLM_ENDPOINT"
	ledgerDriverEnv  = "LEDGER_DRIVER"
	ledgerDSNEnv     = "LEDGER_DSN"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv      = "LOG_LEVEL"

	placeholderKeyPrefix = "sk-xxxx"
)

// ErrMissingAPIKey is returned by Validate when no usable LLM credential is set.
var ErrMissingAPIKey = errors.New("LLM_API_KEY is not set to a real key")

// Config holds high-level settings required across the application.
type Config struct {
	Source        SourceConfig       `yaml:"source"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Crawl         CrawlConfig        `yaml:"crawl"`
	Storage       StorageConfig      `yaml:"storage"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Extract       ExtractConfig      `yaml:"extract"`
	LLM           LLMConfig          `yaml:"llm"`
	Report        ReportConfig       `yaml:"report"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// SourceConfig points the crawl at a listing. MaxPages 0 means unbounded.
type SourceConfig struct {
	Scanner  string `yaml:"scanner"`
	StartURL string `yaml:"startUrl"`
	MaxPages *int   `yaml:"maxPages"`
}

// PageLimit returns the page cap; zero (or unset) means unbounded.
func (c SourceConfig) PageLimit() int {
	if c.MaxPages == nil || *c.MaxPages < 0 {
		return 0
	}
	return *c.MaxPages
}

// FetchConfig tunes the page fetcher.
type FetchConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	RequestInterval time.Duration `yaml:"requestInterval"`
	UserAgent       string        `yaml:"userAgent"`
	AcceptLanguage  string        `yaml:"acceptLanguage"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// CrawlConfig toggles cursor-based resume of interrupted runs.
type CrawlConfig struct {
	Resume *bool `yaml:"resume"`
}

// ResumeEnabled defaults to true when unset.
func (c CrawlConfig) ResumeEnabled() bool {
	return c.Resume == nil || *c.Resume
}

// StorageConfig locates the durable archive and its resume cursor.
type StorageConfig struct {
	ArchivePath string `yaml:"archivePath"`
	CursorPath  string `yaml:"cursorPath"`
}

// LedgerConfig describes the optional SQL mirror. Empty DSN disables it.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether a ledger should be opened.
func (l LedgerConfig) Enabled() bool {
	return strings.TrimSpace(l.DSN) != ""
}

// ExtractConfig controls detail-page extraction.
type ExtractConfig struct {
	PDFFallback bool `yaml:"pdfFallback"`
}

// LLMConfig defines how to contact the chat-completions API.
type LLMConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	ScorePattern string        `yaml:"scorePattern"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ReportConfig describes the Markdown report.
type ReportConfig struct {
	Path       string `yaml:"path"`
	Title      string `yaml:"title"`
	RecentDays int    `yaml:"recentDays"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	MinScore int    `yaml:"minScore"`
	// APIBase points at a self-hosted Bot API server; empty means api.telegram.org.
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether both bot token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SchedulerConfig defines whether runs repeat. Interval 0 runs once.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LoggingConfig selects level, console format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads YAML configuration (if present) and applies .env and environment overrides.
// An explicit path wins over the PAPER_HARVESTER_CONFIG variable.
func Load(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate checks settings that must be present before any crawl starts.
func (c Config) Validate() error {
	key := strings.TrimSpace(c.LLM.APIKey)
	if key == "" || strings.HasPrefix(key, placeholderKeyPrefix) {
		return ErrMissingAPIKey
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmEndpointEnv); v != "" {
		c.LLM.Endpoint = v
	}

	if v := os.Getenv(ledgerDriverEnv); v != "" {
		c.Ledger.Driver = v
	}
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Source.Scanner != "" {
		base.Source.Scanner = override.Source.Scanner
	}
	if override.Source.StartURL != "" {
		base.Source.StartURL = override.Source.StartURL
	}
	if override.Source.MaxPages != nil {
		base.Source.MaxPages = override.Source.MaxPages
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.RequestInterval > 0 {
		base.Fetch.RequestInterval = override.Fetch.RequestInterval
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.AcceptLanguage != "" {
		base.Fetch.AcceptLanguage = override.Fetch.AcceptLanguage
	}
	if override.Fetch.MaxBodyBytes > 0 {
		base.Fetch.MaxBodyBytes = override.Fetch.MaxBodyBytes
	}

	if override.Crawl.Resume != nil {
		base.Crawl.Resume = override.Crawl.Resume
	}

	if override.Storage.ArchivePath != "" {
		base.Storage.ArchivePath = override.Storage.ArchivePath
	}
	if override.Storage.CursorPath != "" {
		base.Storage.CursorPath = override.Storage.CursorPath
	}

	if override.Ledger.Driver != "" {
		base.Ledger.Driver = override.Ledger.Driver
	}
	if override.Ledger.DSN != "" {
		base.Ledger.DSN = override.Ledger.DSN
	}

	if override.Extract.PDFFallback {
		base.Extract.PDFFallback = true
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.ScorePattern != "" {
		base.LLM.ScorePattern = override.LLM.ScorePattern
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}

	if override.Report.Path != "" {
		base.Report.Path = override.Report.Path
	}
	if override.Report.Title != "" {
		base.Report.Title = override.Report.Title
	}
	if override.Report.RecentDays > 0 {
		base.Report.RecentDays = override.Report.RecentDays
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.MinScore > 0 {
		base.Notifications.Telegram.MinScore = override.Notifications.Telegram.MinScore
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Source: SourceConfig{
			Scanner:  "arxiv",
			StartURL: "https://arxiv.org/list/cs.RO/recent?show=100",
			MaxPages: intPtr(1),
		},
		Fetch: FetchConfig{
			Timeout:         20 * time.Second,
			RequestInterval: 1200 * time.Millisecond,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			AcceptLanguage:  "en-US,en;q=0.5",
			MaxBodyBytes:    20 << 20,
		},
		Storage: StorageConfig{
			ArchivePath: "arxiv_papers.json",
			CursorPath:  "arxiv_papers.cursor.json",
		},
		Ledger: LedgerConfig{Driver: "sqlite"},
		LLM: LLMConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: defaultSystemPrompt,
			ScorePattern: `(?i)(?:score|分数)\s*[:：]\s*(\d+)`,
			Temperature:  0.3,
			MaxTokens:    500,
			Timeout:      30 * time.Second,
		},
		Report: ReportConfig{
			Path:       "README.md",
			Title:      "arXiv cs.RO paper digest",
			RecentDays: 3,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{MinScore: 4},
		},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Logging:   LoggingConfig{Level: "info", Format: "text", File: "paper_harvester.log"},
	}
}

const defaultSystemPrompt = `You are a robotics researcher. Given a paper's title, abstract and introduction, answer in this format:
[Problems]
1. core problem (at most 40 words)
...
[Approach]
the key idea in 1-8 sentences
[Relevance]
Score: x (an integer from 1 to 5, 5 = most relevant to your research, no justification)
Keep English technical terms and output nothing else.`

func intPtr(v int) *int {
	return &v
}
