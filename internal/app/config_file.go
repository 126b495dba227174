package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goextract/internal/report"
	"github.com/hyperifyio/goextract/internal/rules"
	"github.com/hyperifyio/goextract/internal/textio"
)

// FileConfig is the single-file configuration schema.
type FileConfig struct {
	Inputs    []string     `yaml:"inputs" json:"inputs"`
	RulesFile string       `yaml:"rulesFile" json:"rulesFile"`
	Rules     []rules.Rule `yaml:"rules" json:"rules"`

	HTML      bool   `yaml:"html" json:"html"`
	Normalize bool   `yaml:"normalize" json:"normalize"`
	Charset   string `yaml:"charset" json:"charset"`

	Output struct {
		Path      string `yaml:"path" json:"path"`
		Format    string `yaml:"format" json:"format"`
		Spans     bool   `yaml:"spans" json:"spans"`
		FailEmpty bool   `yaml:"failEmpty" json:"failEmpty"`
	} `yaml:"output" json:"output"`

	Fetch struct {
		UserAgent         string   `yaml:"userAgent" json:"userAgent"`
		Timeout           Duration `yaml:"timeout" json:"timeout"`
		MaxAttempts       int      `yaml:"maxAttempts" json:"maxAttempts"`
		Concurrency       int      `yaml:"concurrency" json:"concurrency"`
		RequestsPerSecond float64  `yaml:"rps" json:"rps"`
	} `yaml:"fetch" json:"fetch"`

	LLM struct {
		BaseURL      string `yaml:"base" json:"base"`
		Model        string `yaml:"model" json:"model"`
		APIKey       string `yaml:"key" json:"key"`
		Prompt       string `yaml:"prompt" json:"prompt"`
		SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge"`
		MaxBytes    int64    `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int      `yaml:"maxEntries" json:"maxEntries"`
		Clear       bool     `yaml:"clear" json:"clear"`
		Bypass      bool     `yaml:"bypass" json:"bypass"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
		HTTPOnly    bool     `yaml:"httpOnly" json:"httpOnly"`
		LLMOnly     bool     `yaml:"llmOnly" json:"llmOnly"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// Duration is a time.Duration that config files spell as "30s" or "24h".
// Plain integers are read as nanoseconds.
type Duration time.Duration

func parseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	v, err := parseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %s: %w", b, err)
	}
	*d = v
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: duration %q: %w", n.Line, n.Value, err)
	}
	*d = v
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig fills fields of cfg that are unset or still at their
// defaults. Flags parsed before this call keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Inputs) == 0 && len(fc.Inputs) > 0 { cfg.Inputs = append([]string{}, fc.Inputs...) }
	if cfg.RulesPath == "" && fc.RulesFile != "" { cfg.RulesPath = fc.RulesFile }
	if len(cfg.Rules) == 0 && len(fc.Rules) > 0 { cfg.Rules = append([]rules.Rule{}, fc.Rules...) }
	if !cfg.HTML && fc.HTML { cfg.HTML = true }
	if !cfg.Normalize && fc.Normalize { cfg.Normalize = true }
	if cfg.InputCharset == "" && fc.Charset != "" { cfg.InputCharset = fc.Charset }

	if cfg.OutputPath == "" && fc.Output.Path != "" { cfg.OutputPath = fc.Output.Path }
	if (cfg.Format == "" || cfg.Format == defaultFormat) && fc.Output.Format != "" { cfg.Format = fc.Output.Format }
	if !cfg.Spans && fc.Output.Spans { cfg.Spans = true }
	if !cfg.FailEmpty && fc.Output.FailEmpty { cfg.FailEmpty = true }

	if (cfg.UserAgent == "" || cfg.UserAgent == defaultUserAgent) && fc.Fetch.UserAgent != "" { cfg.UserAgent = fc.Fetch.UserAgent }
	if (cfg.RequestTimeout == 0 || cfg.RequestTimeout == defaultTimeout) && fc.Fetch.Timeout > 0 { cfg.RequestTimeout = time.Duration(fc.Fetch.Timeout) }
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == defaultMaxAttempts) && fc.Fetch.MaxAttempts > 0 { cfg.MaxAttempts = fc.Fetch.MaxAttempts }
	if (cfg.Concurrency == 0 || cfg.Concurrency == defaultConcurrency) && fc.Fetch.Concurrency > 0 { cfg.Concurrency = fc.Fetch.Concurrency }
	if cfg.RequestsPerSecond == 0 && fc.Fetch.RequestsPerSecond > 0 { cfg.RequestsPerSecond = fc.Fetch.RequestsPerSecond }

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" { cfg.LLMBaseURL = fc.LLM.BaseURL }
	if cfg.LLMModel == "" && fc.LLM.Model != "" { cfg.LLMModel = fc.LLM.Model }
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" { cfg.LLMAPIKey = fc.LLM.APIKey }
	if cfg.LLMPrompt == "" && fc.LLM.Prompt != "" { cfg.LLMPrompt = fc.LLM.Prompt }
	if cfg.LLMSystemPrompt == "" && fc.LLM.SystemPrompt != "" { cfg.LLMSystemPrompt = fc.LLM.SystemPrompt }

	if (cfg.CacheDir == "" || cfg.CacheDir == defaultCacheDir) && fc.Cache.Dir != "" { cfg.CacheDir = fc.Cache.Dir }
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 { cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge) }
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 { cfg.CacheMaxBytes = fc.Cache.MaxBytes }
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 { cfg.CacheMaxEntries = fc.Cache.MaxEntries }
	if !cfg.CacheClear && fc.Cache.Clear { cfg.CacheClear = true }
	if !cfg.CacheBypass && fc.Cache.Bypass { cfg.CacheBypass = true }
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }
	if !cfg.HTTPCacheOnly && fc.Cache.HTTPOnly { cfg.HTTPCacheOnly = true }
	if !cfg.LLMCacheOnly && fc.Cache.LLMOnly { cfg.LLMCacheOnly = true }

	if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}

// ValidateConfig checks the settings a run cannot do without.
func ValidateConfig(cfg Config) error {
	if len(cfg.Inputs) == 0 && strings.TrimSpace(cfg.LLMPrompt) == "" {
		return errors.New("config: at least one input or an llm prompt is required")
	}
	if strings.TrimSpace(cfg.RulesPath) == "" && len(cfg.Rules) == 0 {
		return errors.New("config: no extraction rule; pass --start/--end or --rules")
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if format == report.FormatPDF && strings.TrimSpace(cfg.OutputPath) == "" {
		return errors.New("config: pdf output requires --output")
	}
	if strings.TrimSpace(cfg.LLMPrompt) != "" && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required with an llm prompt (or set LLM_MODEL)")
	}
	if cs := strings.TrimSpace(cfg.InputCharset); cs != "" && !textio.Supported(cs) {
		return fmt.Errorf("config: unknown charset %q", cs)
	}
	if cfg.HTTPCacheOnly && cfg.CacheBypass {
		return errors.New("config: cache.httpOnly and cache.bypass are mutually exclusive")
	}
	if cfg.Concurrency < 0 || cfg.MaxAttempts < 0 || cfg.RequestTimeout < 0 || cfg.RequestsPerSecond < 0 || cfg.CacheMaxBytes < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
