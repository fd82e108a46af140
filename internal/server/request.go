package server

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/prepworks/mcat-scheduler/internal/calendar"
	"github.com/prepworks/mcat-scheduler/internal/schedule"
)

// requestSchema validates the query parameters after CSV splitting. Weekday
// names and date shapes are enforced here; date ordering is checked afterwards
// in Go.
const requestSchema = `{
	"type": "object",
	"required": ["start_date", "test_date", "priorities", "availability", "fl_weekday"],
	"properties": {
		"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"test_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"priorities": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "pattern": "^\\d+[A-E]$"}
		},
		"availability": {
			"type": "array",
			"minItems": 1,
			"items": {"enum": ["Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"]}
		},
		"fl_weekday": {"enum": ["Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"]}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(requestSchema)

// ValidationError carries every schema violation found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

// parseRequest turns query parameters into an engine request. CSV parameters
// are split before schema validation so the schema sees real arrays.
func parseRequest(q url.Values) (*schedule.Request, error) {
	priorities := splitCSV(q.Get("priorities"))
	availability := splitCSV(q.Get("availability"))

	doc := map[string]any{
		"start_date":   q.Get("start_date"),
		"test_date":    q.Get("test_date"),
		"priorities":   anySlice(priorities),
		"availability": anySlice(availability),
		"fl_weekday":   q.Get("fl_weekday"),
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validating request: %w", err)
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, desc := range result.Errors() {
			verr.Problems = append(verr.Problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return nil, verr
	}

	start, err := calendar.ParseDate(q.Get("start_date"))
	if err != nil {
		return nil, err
	}
	test, err := calendar.ParseDate(q.Get("test_date"))
	if err != nil {
		return nil, err
	}
	if !start.Before(test) {
		return nil, &ValidationError{Problems: []string{"start_date must be before test_date"}}
	}

	return &schedule.Request{
		StartDate:    start,
		TestDate:     test,
		Priorities:   priorities,
		Availability: availability,
		FLWeekday:    q.Get("fl_weekday"),
	}, nil
}

// splitCSV splits a comma-separated parameter, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// anySlice widens for the schema validator, which only accepts JSON-shaped
// documents.
func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
