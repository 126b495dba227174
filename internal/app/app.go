// Package app wires configuration, inputs, rules and output into a run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goextract/internal/cache"
	"github.com/hyperifyio/goextract/internal/extract"
	"github.com/hyperifyio/goextract/internal/fetch"
	"github.com/hyperifyio/goextract/internal/llm"
	"github.com/hyperifyio/goextract/internal/report"
	"github.com/hyperifyio/goextract/internal/rules"
	"github.com/hyperifyio/goextract/internal/textio"
)

// ErrNoMatches is returned when FailEmpty is set and no rule matched in any
// input. The CLI maps it to exit code 2.
var ErrNoMatches = errors.New("no matches")

// llmSourcePrefix names the LLM completion input in reports.
const llmSourcePrefix = "llm:"

const preflightTimeout = 5 * time.Second

type App struct {
	cfg     Config
	log     zerolog.Logger
	runID   string
	rules   []rules.Named
	fetcher *fetch.Client
	asker   *llm.Asker

	stdinOnce sync.Once
	stdin     string
	stdinErr  error
}

// New validates cfg, compiles the rules and prepares caches and clients.
func New(cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	rs := append([]rules.Rule{}, cfg.Rules...)
	if strings.TrimSpace(cfg.RulesPath) != "" {
		loaded, err := rules.Load(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		rs = append(loaded, rs...)
	}
	named, err := rules.Compile(rs)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	runID := uuid.NewString()
	a := &App{
		cfg:   cfg,
		log:   log.With().Str("run_id", runID).Logger(),
		runID: runID,
		rules: named,
	}

	var httpCache *cache.HTTPCache
	var llmCache *cache.LLMCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				a.log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cfg.CacheDir, "http")
		llmDir := filepath.Join(cfg.CacheDir, "llm")
		if cfg.CacheMaxAge > 0 {
			nh, _ := cache.PurgeHTTPCacheByAge(httpDir, cfg.CacheMaxAge)
			nl, _ := cache.PurgeLLMCacheByAge(llmDir, cfg.CacheMaxAge)
			a.log.Debug().Int("http", nh).Int("llm", nl).Msg("cache purged by age")
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxEntries > 0 {
			nh, _ := cache.EnforceHTTPCacheLimits(httpDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries)
			nl, _ := cache.EnforceLLMCacheLimits(llmDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries)
			a.log.Debug().Int("http", nh).Int("llm", nl).Msg("cache evicted to limits")
		}
		httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms}
		llmCache = &cache.LLMCache{Dir: llmDir, StrictPerms: cfg.CacheStrictPerms}
	}

	httpClient := newHTTPClient(cfg.RequestTimeout)
	a.fetcher = &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.MaxAttempts,
		PerRequestTimeout: cfg.RequestTimeout,
		Cache:             httpCache,
		CacheOnly:         cfg.HTTPCacheOnly,
		BypassCache:       cfg.CacheBypass,
		MaxConcurrent:     cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	if strings.TrimSpace(cfg.LLMPrompt) != "" {
		a.asker = &llm.Asker{
			Model:        cfg.LLMModel,
			SystemPrompt: cfg.LLMSystemPrompt,
			Temperature:  0.1,
			Cache:        llmCache,
			CacheOnly:    cfg.LLMCacheOnly,
		}
		if !cfg.LLMCacheOnly {
			a.asker.Client = llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, httpClient)
		}
	}
	return a, nil
}

// RunID identifies this run in logs and reports.
func (a *App) RunID() string { return a.runID }

// Run extracts every rule from every input and writes the report. Inputs
// that fail to load are logged and skipped; the run fails only when all of
// them fail.
func (a *App) Run(ctx context.Context) (report.Report, error) {
	sources := append([]string{}, a.cfg.Inputs...)
	if a.asker != nil {
		a.preflight(ctx)
		sources = append(sources, llmSourcePrefix+a.cfg.LLMModel)
	}

	results := make([][]report.Entry, len(sources))
	errs := make([]error, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Concurrency))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			entries, err := a.process(gctx, src)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.log.Warn().Err(err).Str("source", src).Msg("input skipped")
				errs[i] = fmt.Errorf("%s: %w", src, err)
				return nil
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	rep := report.Report{RunID: a.runID}
	failed := 0
	for i := range sources {
		if errs[i] != nil {
			failed++
			continue
		}
		rep.Entries = append(rep.Entries, results[i]...)
	}
	if len(sources) > 0 && failed == len(sources) {
		return rep, errors.Join(errs...)
	}

	a.log.Info().Int("sources", len(sources)-failed).Int("rules", len(a.rules)).Int("matches", rep.Total()).Msg("extraction complete")
	if err := a.write(rep); err != nil {
		return rep, fmt.Errorf("write output: %w", err)
	}
	if a.cfg.FailEmpty && rep.Total() == 0 {
		return rep, ErrNoMatches
	}
	return rep, nil
}

// preflight lists the server's models as a connectivity check. Failures are
// logged only; the completion request reports its own errors.
func (a *App) preflight(ctx context.Context) {
	lister, ok := a.asker.Client.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) == 0 {
		a.log.Warn().Msg("LLM returned zero models")
		return
	}
	a.log.Info().Int("count", len(models.Models)).Msg("LLM models available")
}

func (a *App) process(ctx context.Context, src string) ([]report.Entry, error) {
	resp, contentType, err := a.load(ctx, src)
	if err != nil {
		return nil, err
	}
	input, err := a.prepare(resp, contentType)
	if err != nil {
		return nil, err
	}
	entries := make([]report.Entry, 0, len(a.rules))
	for _, r := range a.rules {
		res, err := r.Scanner.AsPostProcessor()(input)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		a.log.Debug().Str("source", src).Str("rule", r.Name).Int("matches", len(res.Matches)).Msg("extracted")
		entries = append(entries, report.NewEntry(src, r.Name, res))
	}
	return entries, nil
}

// load returns the raw response for src together with its content type when
// one is known.
func (a *App) load(ctx context.Context, src string) (any, string, error) {
	switch {
	case strings.HasPrefix(src, llmSourcePrefix) && a.asker != nil:
		c, err := a.asker.Ask(ctx, a.cfg.LLMPrompt)
		if err != nil {
			return nil, "", err
		}
		return c, "text/markdown", nil
	case src == "-":
		a.stdinOnce.Do(func() {
			r := a.cfg.Stdin
			if r == nil {
				r = os.Stdin
			}
			b, err := io.ReadAll(r)
			if err != nil {
				a.stdinErr = err
				return
			}
			a.stdin, a.stdinErr = a.decodeLocal(b, false)
		})
		return a.stdin, "", a.stdinErr
	case isURL(src):
		resp, err := a.fetcher.Get(ctx, src)
		if err != nil {
			return nil, "", err
		}
		a.log.Debug().Str("url", src).Bool("cached", resp.FromCache).Int("bytes", len(resp.Body)).Msg("fetched")
		return resp, resp.ContentType, nil
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return nil, "", err
	}
	s, err := a.decodeLocal(b, true)
	if err != nil {
		return nil, "", err
	}
	return s, "", nil
}

// decodeLocal converts file or stdin bytes from the configured charset.
// Files must end up as UTF-8 text without NUL bytes.
func (a *App) decodeLocal(b []byte, requireText bool) (string, error) {
	s := string(b)
	if cs := strings.TrimSpace(a.cfg.InputCharset); cs != "" {
		d, err := textio.Decode(b, "text/plain; charset="+cs)
		if err != nil {
			return "", err
		}
		s = d
	}
	if requireText && !textio.IsText([]byte(s)) {
		return "", errors.New("not a UTF-8 text file; set --charset for other encodings")
	}
	return s, nil
}

// prepare reduces HTML to readable text and normalizes Unicode when asked.
// Without either option the raw response goes to the post-processor as-is.
func (a *App) prepare(resp any, contentType string) (any, error) {
	if !a.cfg.HTML && !a.cfg.Normalize {
		return resp, nil
	}
	var text string
	switch v := resp.(type) {
	case string:
		text = v
	case *fetch.Response:
		t, err := v.Text()
		if err != nil {
			return nil, err
		}
		text = t
	case *llm.Completion:
		text = v.Content
	default:
		return resp, nil
	}
	if a.cfg.HTML && extract.LooksLikeHTML(contentType, []byte(text)) {
		text = extract.FromHTML([]byte(text)).Text
	}
	if a.cfg.Normalize {
		text = textio.Normalize(text)
	}
	return text, nil
}

func (a *App) write(rep report.Report) error {
	format, err := report.ParseFormat(a.cfg.Format)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(a.cfg.OutputPath)
	if path == "" {
		w := a.cfg.Stdout
		if w == nil {
			w = os.Stdout
		}
		return a.render(w, format, rep)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	a.log.Info().Str("out", path).Str("format", string(format)).Msg("writing report")
	return errors.Join(a.render(f, format, rep), f.Close())
}

func (a *App) render(w io.Writer, format report.Format, rep report.Report) error {
	opts := report.Options{Spans: a.cfg.Spans}
	switch format {
	case report.FormatJSON:
		return report.WriteJSON(w, rep, opts)
	case report.FormatMarkdown:
		return report.WriteMarkdown(w, rep)
	case report.FormatPDF:
		return report.WritePDF(w, rep)
	}
	return report.WriteText(w, rep, opts)
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
