package boundary

// Config describes a single extraction. At least one of Start or End must be
// set.
type Config struct {
	Start Matcher
	End   Matcher

	// IncludeDelimiters keeps the matched boundary text in each result.
	IncludeDelimiters bool
	// MultipleMatches extracts every span instead of stopping at the first.
	MultipleMatches bool
	// TrimResult strips leading and trailing whitespace from each result.
	TrimResult bool
}

// DefaultConfig returns a Config with the documented defaults: delimiters
// excluded, multiple matches and trimming enabled.
func DefaultConfig() Config {
	return Config{MultipleMatches: true, TrimResult: true}
}

// Options is the optional-field form of Config used by callers that decode
// settings from files or flags. Nil booleans take the defaults.
type Options struct {
	Start             Matcher
	End               Matcher
	IncludeDelimiters *bool
	MultipleMatches   *bool
	TrimResult        *bool
}

// Config resolves o against DefaultConfig.
func (o Options) Config() Config {
	cfg := DefaultConfig()
	cfg.Start = o.Start
	cfg.End = o.End
	if o.IncludeDelimiters != nil {
		cfg.IncludeDelimiters = *o.IncludeDelimiters
	}
	if o.MultipleMatches != nil {
		cfg.MultipleMatches = *o.MultipleMatches
	}
	if o.TrimResult != nil {
		cfg.TrimResult = *o.TrimResult
	}
	return cfg
}

// Validate returns a *ConfigurationError when neither boundary is present.
func (c Config) Validate() error {
	if !present(c.Start) && !present(c.End) {
		return &ConfigurationError{Reason: "at least one boundary (start or end) must be specified"}
	}
	return nil
}
