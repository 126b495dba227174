package app

import (
	"io"
	"time"

	"github.com/hyperifyio/goextract/internal/rules"
)

// Config holds runtime configuration for a run.
type Config struct {
	// Inputs are file paths, "-" for stdin, or http(s) URLs.
	Inputs []string

	// Rules
	RulesPath string
	Rules     []rules.Rule

	// Preprocessing
	HTML      bool
	Normalize bool

	// InputCharset decodes files and stdin from this charset; empty means UTF-8.
	InputCharset string

	// Output
	OutputPath string
	Format     string
	Spans      bool
	FailEmpty  bool

	// Fetch
	UserAgent      string
	RequestTimeout time.Duration
	MaxAttempts    int
	Concurrency    int
	// RequestsPerSecond paces URL fetches; zero disables pacing.
	RequestsPerSecond float64

	// LLM
	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	LLMPrompt       string
	LLMSystemPrompt string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheMaxBytes    int64
	CacheMaxEntries  int
	CacheClear       bool
	CacheBypass      bool
	CacheStrictPerms bool
	HTTPCacheOnly    bool
	LLMCacheOnly     bool

	Verbose bool

	// Stdin and Stdout default to the process streams when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

// Defaults shared by flags and file config overlay.
const (
	defaultFormat      = "text"
	defaultUserAgent   = "goextract/1.0 (+https://github.com/hyperifyio/goextract)"
	defaultCacheDir    = ".goextract-cache"
	defaultConcurrency = 4
	defaultMaxAttempts = 2
	defaultTimeout     = 15 * time.Second
)

// DefaultConfig returns a Config populated with the CLI defaults.
func DefaultConfig() Config {
	return Config{
		Format:         defaultFormat,
		UserAgent:      defaultUserAgent,
		CacheDir:       defaultCacheDir,
		Concurrency:    defaultConcurrency,
		MaxAttempts:    defaultMaxAttempts,
		RequestTimeout: defaultTimeout,
	}
}
