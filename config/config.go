package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aluiziolira/autotrader-watch/models"
)

// FetchConfig holds the politeness and retry policy of one fetch client.
type FetchConfig struct {
	UserAgent       string
	Delay           time.Duration
	RandomDelay     time.Duration
	MaxDelay        time.Duration
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	RetryCodes      []int
	RotateHeaders   bool
	FollowRedirects bool
}

// Config holds pipeline configuration.
type Config struct {
	StartURL      string
	PageSize      int
	PageLimit     int
	BlockMarkers  []string
	DedupeMaxSize int
	CommitPartial bool

	Harvest FetchConfig
	Enrich  FetchConfig

	ResetCandidates bool
	DispatchDelay   time.Duration

	CriteriaFile string
	Criteria     []models.Criterion

	StoreBackend   string // memory or mongo
	MongoURI       string
	MongoDatabase  string
	LedgerBackend  string // store or redis
	RedisURL       string
	RedisLedgerKey string
	TelegramToken  string
	LogChatID      int64
	ResultChatID   int64
	OpenAIKey      string
	OpenAIModel    string
	ExportFile     string
	ExportFormat   string // csv, json, or dual; empty disables export
	Schedule       string
	MetricsAddr    string
	Verbose        bool
}

// DefaultRetryCodes are the statuses retried by the fetch client.
var DefaultRetryCodes = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
	522,
	524,
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusForbidden,
}

// DefaultConfig returns conservative defaults for the listing site.
func DefaultConfig() *Config {
	return &Config{
		StartURL:      "https://www.autotrader.ca/cars/on/toronto/?rcp=100&rcs=0&srt=35&prx=100&prv=Ontario&loc=Toronto%2C%20ON&hprc=True&wcp=True&inMarket=advancedSearch",
		PageSize:      100,
		PageLimit:     200,
		BlockMarkers:  []string{"We're sorry, an error occurred", "Request unsuccessful. Incapsula incident"},
		DedupeMaxSize: 100000,
		Harvest: FetchConfig{
			UserAgent:       "Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 5.1)",
			Delay:           time.Second,
			RandomDelay:     0,
			MaxDelay:        5 * time.Second,
			Timeout:         30 * time.Second,
			MaxRetries:      2,
			RetryBackoff:    500 * time.Millisecond,
			RetryBackoffMax: 5 * time.Second,
			RetryCodes:      DefaultRetryCodes,
			FollowRedirects: true,
		},
		Enrich: FetchConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			Delay:           time.Second,
			RandomDelay:     2 * time.Second,
			MaxDelay:        5 * time.Second,
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    time.Second,
			RetryBackoffMax: 5 * time.Second,
			RetryCodes:      DefaultRetryCodes,
			RotateHeaders:   true,
			FollowRedirects: true,
		},
		ResetCandidates: true,
		DispatchDelay:   time.Second,
		CriteriaFile:    "config.json",
		StoreBackend:    "mongo",
		MongoDatabase:   "autotrader",
		LedgerBackend:   "store",
		RedisLedgerKey:  "autotrader:sent_listings",
		OpenAIModel:     "gpt-3.5-turbo",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.PageLimit <= 0 {
		return fmt.Errorf("page limit must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.DispatchDelay < 0 {
		return fmt.Errorf("dispatch delay cannot be negative")
	}
	if err := c.Harvest.Validate(); err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	if err := c.Enrich.Validate(); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}

	switch c.StoreBackend {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("mongo URI cannot be empty with the mongo store")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("mongo database cannot be empty with the mongo store")
		}
	default:
		return fmt.Errorf("store backend must be memory or mongo")
	}

	switch c.LedgerBackend {
	case "store":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("redis URL cannot be empty with the redis ledger")
		}
	default:
		return fmt.Errorf("ledger backend must be store or redis")
	}

	if c.ExportFormat != "" && c.ExportFormat != "csv" && c.ExportFormat != "json" && c.ExportFormat != "dual" {
		return fmt.Errorf("export format must be csv, json, or dual")
	}
	if c.ExportFormat != "" && c.ExportFile == "" {
		return fmt.Errorf("export file cannot be empty when export is enabled")
	}

	for _, crit := range c.Criteria {
		if err := crit.Validate(); err != nil {
			return err
		}
		if crit.UseDescriptionCheck && c.OpenAIKey == "" {
			return fmt.Errorf("criterion %q uses the description check but no OpenAI key is set", crit.Label())
		}
	}

	return nil
}

// Validate ensures the fetch policy is coherent.
func (f FetchConfig) Validate() error {
	if f.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if f.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if f.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if f.MaxDelay < 0 {
		return fmt.Errorf("max delay cannot be negative")
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if f.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if f.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if f.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if f.RetryBackoffMax > 0 && f.RetryBackoff > f.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", f.RetryBackoff, f.RetryBackoffMax)
	}
	return nil
}

type criteriaFile struct {
	StartURL string             `json:"start_url"`
	Cars     []models.Criterion `json:"cars"`
}

// LoadCriteria reads the search criteria (and an optional start URL) from a
// JSON file shaped as {"start_url": "...", "cars": [...]}.
func (c *Config) LoadCriteria(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read criteria file: %w", err)
	}

	var file criteriaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode criteria file %s: %w", path, err)
	}
	if len(file.Cars) == 0 {
		return fmt.Errorf("criteria file %s defines no cars", path)
	}

	c.Criteria = file.Cars
	if file.StartURL != "" {
		c.StartURL = file.StartURL
	}
	c.CriteriaFile = path
	return nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none is
// given). A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and not blank.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvInt64 parses key as a 64-bit integer when it is set.
func EnvInt64(key string) (int64, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// ApplyEnv overrides connection settings and secrets from the environment.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("MONGO_CONNECTION_STRING"); ok {
		c.MongoURI = v
	}
	if v, ok := EnvString("DATABASE_NAME"); ok {
		c.MongoDatabase = v
	}
	if v, ok := EnvString("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := EnvString("TELEGRAM_BOT_TOKEN"); ok {
		c.TelegramToken = v
	}
	if v, ok := EnvString("OPENAI_API_KEY"); ok {
		c.OpenAIKey = v
	}
	if v, ok := EnvString("OPENAI_MODEL"); ok {
		c.OpenAIModel = v
	}

	logChat, ok, err := EnvInt64("TELEGRAM_CHAT_ID_LOGGING")
	if err != nil {
		return err
	}
	if ok {
		c.LogChatID = logChat
	}
	resultChat, ok, err := EnvInt64("TELEGRAM_CHAT_ID_RESULTS")
	if err != nil {
		return err
	}
	if ok {
		c.ResultChatID = resultChat
	}

	limit, ok, err := EnvInt("SCRAPER_PAGE_LIMIT")
	if err != nil {
		return err
	}
	if ok {
		c.PageLimit = limit
	}
	return nil
}
