package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperifyio/goextract/internal/app"
	"github.com/hyperifyio/goextract/internal/rules"
)

// inlineRuleName names the rule built from --start/--end flags.
const inlineRuleName = "default"

// options holds raw flag values. Only flags the user actually set are copied
// onto the config so that env and file values survive otherwise.
type options struct {
	configPath string
	envFiles   []string

	start, end     string
	startRe, endRe string
	include        bool
	single         bool
	noTrim         bool
	rulesPath      string

	html      bool
	normalize bool
	charset   string

	output    string
	format    string
	spans     bool
	failEmpty bool

	userAgent   string
	timeout     time.Duration
	maxAttempts int
	concurrency int
	rps         float64

	llmBase         string
	llmModel        string
	llmKey          string
	llmPrompt       string
	llmPromptFile   string
	llmSystemPrompt string

	cacheDir      string
	cacheMaxAge   time.Duration
	cacheMaxBytes int64
	cacheEntries  int
	cacheClear    bool
	cacheBypass   bool
	cacheStrict   bool
	httpCacheOnly bool
	llmCacheOnly  bool

	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "goextract [flags] [input...]",
		Short: "Extract text between start and end markers",
		Long: `goextract scans files, stdin ("-"), URLs or an LLM completion and prints
the text found between a start and an end boundary. Boundaries are literal
strings (--start/--end) or regular expressions (--start.re/--end.re); named
rule sets can be loaded with --rules.

Configuration precedence: flags, then environment, then --config file.

Exit Codes:
  0  - Success
  1  - Error (invalid configuration, all inputs failed, output failed)
  2  - No matches with --fail-empty`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config(cmd.Flags(), args)
			if err != nil {
				return err
			}
			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			cfg.Stdin = cmd.InOrStdin()
			cfg.Stdout = cmd.OutOrStdout()
			return run(cmd.Context(), cfg)
		},
	}
	o.bind(cmd.Flags())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func (o *options) bind(f *pflag.FlagSet) {
	def := app.DefaultConfig()

	f.StringVar(&o.configPath, "config", os.Getenv("GOEXTRACT_CONFIG"), "Path to YAML or JSON config file")
	f.StringSliceVar(&o.envFiles, "env", []string{".env"}, "Dotenv files to load; later files override earlier ones")

	f.StringVar(&o.start, "start", "", "Literal start boundary")
	f.StringVar(&o.end, "end", "", "Literal end boundary")
	f.StringVar(&o.startRe, "start.re", "", "Regular expression start boundary")
	f.StringVar(&o.endRe, "end.re", "", "Regular expression end boundary")
	f.BoolVar(&o.include, "include", false, "Include the boundaries in each match")
	f.BoolVar(&o.single, "single", false, "Stop after the first match")
	f.BoolVar(&o.noTrim, "no-trim", false, "Keep surrounding whitespace of matches")
	f.StringVar(&o.rulesPath, "rules", "", "Path to a YAML or JSON rules file")

	f.BoolVar(&o.html, "html", false, "Reduce HTML inputs to readable text before scanning")
	f.BoolVar(&o.normalize, "normalize", false, "Normalize inputs to Unicode NFC before scanning")
	f.StringVar(&o.charset, "charset", "", "Charset of file and stdin inputs (e.g. iso-8859-1); default UTF-8")

	f.StringVarP(&o.output, "output", "o", "", "Write the report to this path instead of stdout")
	f.StringVar(&o.format, "format", def.Format, "Output format: text, json, markdown or pdf")
	f.BoolVar(&o.spans, "spans", false, "Include byte offsets in text and json output")
	f.BoolVar(&o.failEmpty, "fail-empty", false, "Exit with status 2 when nothing matched")

	f.StringVar(&o.userAgent, "user-agent", def.UserAgent, "User-Agent for URL inputs")
	f.DurationVar(&o.timeout, "timeout", def.RequestTimeout, "Per-request timeout for URL inputs")
	f.IntVar(&o.maxAttempts, "max-attempts", def.MaxAttempts, "Attempts per URL on transient failures")
	f.IntVar(&o.concurrency, "concurrency", def.Concurrency, "Inputs processed in parallel")
	f.Float64Var(&o.rps, "rps", 0, "Maximum URL requests per second; 0 disables pacing")

	f.StringVar(&o.llmBase, "llm.base", "", "OpenAI-compatible base URL")
	f.StringVar(&o.llmModel, "llm.model", "", "Model name")
	f.StringVar(&o.llmKey, "llm.key", "", "API key for the OpenAI-compatible server")
	f.StringVar(&o.llmPrompt, "llm.prompt", "", "Prompt whose completion is scanned as an extra input")
	f.StringVar(&o.llmPromptFile, "llm.promptFile", "", "Path to a file containing the prompt")
	f.StringVar(&o.llmSystemPrompt, "llm.systemPrompt", "", "System prompt for the completion")

	f.StringVar(&o.cacheDir, "cache.dir", def.CacheDir, "Cache directory path")
	f.DurationVar(&o.cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	f.Int64Var(&o.cacheMaxBytes, "cache.maxBytes", 0, "Evict least recently used cache entries above this size; 0 disables")
	f.IntVar(&o.cacheEntries, "cache.maxEntries", 0, "Evict least recently used cache entries above this count; 0 disables")
	f.BoolVar(&o.cacheClear, "cache.clear", false, "Clear cache directory before run")
	f.BoolVar(&o.cacheBypass, "cache.bypass", false, "Refetch URL inputs without revalidating; fresh responses are still cached")
	f.BoolVar(&o.cacheStrict, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	f.BoolVar(&o.httpCacheOnly, "cache.httpOnly", false, "Serve URL inputs from cache only")
	f.BoolVar(&o.llmCacheOnly, "cache.llmOnly", false, "Serve the LLM completion from cache only")

	f.BoolVarP(&o.verbose, "verbose", "v", false, "Verbose logging")
}

// config layers defaults, the config file, environment and explicitly set
// flags, in increasing precedence.
func (o *options) config(f *pflag.FlagSet, args []string) (app.Config, error) {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return app.Config{}, fmt.Errorf("load env files: %w", err)
	}
	cfg := app.DefaultConfig()
	if strings.TrimSpace(o.configPath) != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return app.Config{}, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	set := f.Changed
	if set("rules") { cfg.RulesPath = o.rulesPath }
	if set("html") { cfg.HTML = o.html }
	if set("normalize") { cfg.Normalize = o.normalize }
	if set("charset") { cfg.InputCharset = o.charset }
	if set("output") { cfg.OutputPath = o.output }
	if set("format") { cfg.Format = o.format }
	if set("spans") { cfg.Spans = o.spans }
	if set("fail-empty") { cfg.FailEmpty = o.failEmpty }
	if set("user-agent") { cfg.UserAgent = o.userAgent }
	if set("timeout") { cfg.RequestTimeout = o.timeout }
	if set("max-attempts") { cfg.MaxAttempts = o.maxAttempts }
	if set("concurrency") { cfg.Concurrency = o.concurrency }
	if set("rps") { cfg.RequestsPerSecond = o.rps }
	if set("llm.base") { cfg.LLMBaseURL = o.llmBase }
	if set("llm.model") { cfg.LLMModel = o.llmModel }
	if set("llm.key") { cfg.LLMAPIKey = o.llmKey }
	if set("llm.prompt") { cfg.LLMPrompt = o.llmPrompt }
	if set("llm.systemPrompt") { cfg.LLMSystemPrompt = o.llmSystemPrompt }
	if set("cache.dir") { cfg.CacheDir = o.cacheDir }
	if set("cache.maxAge") { cfg.CacheMaxAge = o.cacheMaxAge }
	if set("cache.maxBytes") { cfg.CacheMaxBytes = o.cacheMaxBytes }
	if set("cache.maxEntries") { cfg.CacheMaxEntries = o.cacheEntries }
	if set("cache.clear") { cfg.CacheClear = o.cacheClear }
	if set("cache.bypass") { cfg.CacheBypass = o.cacheBypass }
	if set("cache.strictPerms") { cfg.CacheStrictPerms = o.cacheStrict }
	if set("cache.httpOnly") { cfg.HTTPCacheOnly = o.httpCacheOnly }
	if set("cache.llmOnly") { cfg.LLMCacheOnly = o.llmCacheOnly }
	if set("verbose") { cfg.Verbose = o.verbose }

	// A prompt file takes precedence over the inline prompt.
	if strings.TrimSpace(o.llmPromptFile) != "" {
		b, err := os.ReadFile(o.llmPromptFile)
		if err != nil {
			return app.Config{}, fmt.Errorf("read prompt file: %w", err)
		}
		cfg.LLMPrompt = string(b)
	}
	if len(args) > 0 {
		cfg.Inputs = append([]string{}, args...)
	}
	if r, ok := o.inlineRule(f); ok {
		cfg.Rules = []rules.Rule{r}
	}
	return cfg, nil
}

// inlineRule builds a rule from the boundary flags when any of them is set.
func (o *options) inlineRule(f *pflag.FlagSet) (rules.Rule, bool) {
	if o.start == "" && o.end == "" && o.startRe == "" && o.endRe == "" {
		return rules.Rule{}, false
	}
	r := rules.Rule{
		Name:              inlineRuleName,
		Start:             o.start,
		End:               o.end,
		StartPattern:      o.startRe,
		EndPattern:        o.endRe,
		IncludeDelimiters: o.include,
	}
	if f.Changed("single") {
		multiple := !o.single
		r.Multiple = &multiple
	}
	if f.Changed("no-trim") {
		trim := !o.noTrim
		r.Trim = &trim
	}
	return r, true
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.VersionString())
			return err
		},
	}
}
