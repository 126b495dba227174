package boundary

import (
	"context"
	"encoding/json"
)

// FieldReader is implemented by response values that expose named fields to
// a PostProcessor. Field reports ok=false when the field does not exist.
type FieldReader interface {
	Field(name string) (any, bool)
}

// Fields is a map-backed FieldReader.
type Fields map[string]any

// Field implements FieldReader.
func (f Fields) Field(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

// responseFields lists the fields probed for response text, in priority
// order.
var responseFields = []string{"text", "body", "data"}

// PostProcessor converts a response value into an extraction Result.
type PostProcessor func(response any) (Result, error)

// AsPostProcessor returns a PostProcessor bound to s. Strings and byte slices
// are scanned directly. Values exposing fields (FieldReader or
// map[string]any) are scanned on the first non-empty of text, body and data;
// non-text field values are serialized as JSON first. Anything else is
// serialized as a whole.
func (s *Scanner) AsPostProcessor() PostProcessor {
	return func(response any) (Result, error) {
		text, err := responseText(response)
		if err != nil {
			return Result{Multiple: s.cfg.MultipleMatches}, err
		}
		return s.Extract(text), nil
	}
}

func responseText(response any) (string, error) {
	switch v := response.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case FieldReader:
		if text, found, err := probeFields(v.Field); found || err != nil {
			return text, err
		}
	case map[string]any:
		if text, found, err := probeFields(Fields(v).Field); found || err != nil {
			return text, err
		}
	}
	b, err := json.Marshal(response)
	if err != nil {
		return "", &SerializationError{Err: err}
	}
	return string(b), nil
}

func probeFields(get func(string) (any, bool)) (string, bool, error) {
	for _, name := range responseFields {
		v, ok := get(name)
		if !ok || isBlank(v) {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true, nil
		case []byte:
			return string(t), true, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", true, &SerializationError{Field: name, Err: err}
		}
		return string(b), true, nil
	}
	return "", false, nil
}

// isBlank treats absent-like values as missing so the next field is tried.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	case bool:
		return !t
	}
	return false
}

// Requester performs a request for target and returns the raw response.
type Requester func(ctx context.Context, target string) (any, error)

// Attach builds a scanner from cfg and returns a function that runs req and
// feeds its response through the scanner's PostProcessor. Configuration
// errors are reported here rather than on each call.
func Attach(req Requester, cfg Config) (func(ctx context.Context, target string) (Result, error), error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	post := s.AsPostProcessor()
	return func(ctx context.Context, target string) (Result, error) {
		resp, err := req(ctx, target)
		if err != nil {
			return Result{Multiple: cfg.MultipleMatches}, err
		}
		return post(resp)
	}, nil
}
