package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultConcurrency bounds the number of ids processed at once.
const DefaultConcurrency = 4

// Result represents the result of a single operation in a batch
type Result struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// BatchResult represents the aggregated results of a batch operation
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray parses a parameter that can be a single string, an
// array of strings, or a string holding a JSON array of strings.
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if items, ok := parseJSONArray(v); ok {
			if len(items) == 0 {
				return nil, fmt.Errorf("%s cannot be empty", paramName)
			}
			return checkItems(items, paramName)
		}
		return []string{v}, nil
	case []string:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		return checkItems(v, paramName)
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		result := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			result = append(result, str)
		}
		return checkItems(result, paramName)
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

// ParseOptionalStringOrArray is ParseStringOrArray for parameters that may
// be omitted. A missing or empty parameter yields nil.
func ParseOptionalStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, nil
	}
	if s, ok := param.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return ParseStringOrArray(param, paramName)
}

// parseJSONArray only accepts input that is a well-formed JSON array of
// strings; anything else is treated as a plain value.
func parseJSONArray(s string) ([]string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, false
	}
	var items []string
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil, false
	}
	return items, true
}

func checkItems(items []string, paramName string) ([]string, error) {
	for i, item := range items {
		if item == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
	}
	return items, nil
}

// FormatResults creates a formatted JSON string from batch results
func FormatResults(results []Result) string {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}

	for _, r := range results {
		if r.Status == StatusSuccess {
			br.Successful++
		} else {
			br.Failed++
		}
	}

	jsonBytes, _ := json.MarshalIndent(br, "", "  ")
	return string(jsonBytes)
}

// ProcessBatch runs fn for every id, at most DefaultConcurrency at a time,
// and returns one result per id in input order. A failing id never aborts
// the others. The value fn returns is embedded as JSON.
func ProcessBatch[T any](ctx context.Context, ids []string, fn func(ctx context.Context, id string) (T, error)) []Result {
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(DefaultConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = NewErrorResult(id, err)
				return nil
			}
			value, err := fn(ctx, id)
			if err != nil {
				results[i] = NewErrorResult(id, err)
				return nil
			}
			results[i] = NewSuccessResult(id, value)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// NewSuccessResult creates a success result carrying value as JSON.
func NewSuccessResult(id string, value any) Result {
	data, err := json.Marshal(value)
	if err != nil {
		return NewErrorResult(id, fmt.Errorf("failed to encode result: %w", err))
	}
	return Result{
		ID:     id,
		Status: StatusSuccess,
		Result: data,
	}
}

// NewErrorResult creates an error result
func NewErrorResult(id string, err error) Result {
	return Result{
		ID:     id,
		Status: StatusError,
		Error:  err.Error(),
	}
}
