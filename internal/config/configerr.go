package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ValidationError aggregates schema violations into one error, so a bad
// file reports every problem in a single run.
type ValidationError struct {
	Details []CueErrorDetail
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "invalid configuration"
	}
	msgs := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		if d.Path != "" {
			msgs = append(msgs, d.Path+": "+d.Message)
		} else {
			msgs = append(msgs, d.Message)
		}
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// CueErrorDetail is one schema violation in loggable form.
type CueErrorDetail struct {
	Path    string // e.g. profiles.quick.tool
	Code    string // missing_required | unknown_field | type_mismatch | conflicting_values | validation_error
	Message string
	Raw     string
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
	)
}

var (
	reIncomplete  = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed  = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict    = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`)
	reExpectedGot = regexp.MustCompile(`(?i)expected .* got .*`)
)

func humanize(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	type key struct{ path, code string }
	seen := make(map[key]struct{})

	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		raw, _ := e.Msg()
		path := normalizePath(e.Path())
		code, msg := classify(raw, path)

		k := key{path, code}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		out = append(out, CueErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Raw:     e.Error(),
		})
	}
	return out
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// strip the leading #Config definition
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func classify(raw, path string) (code, msg string) {
	switch {
	case reNotAllowed.MatchString(raw):
		return "unknown_field", fmt.Sprintf("field %s is not allowed", last(path))
	case reIncomplete.MatchString(raw):
		return "missing_required", fmt.Sprintf("field %s is required", last(path))
	case reConflict.MatchString(raw):
		return "conflicting_values", fmt.Sprintf("field %s has a conflicting value", last(path))
	case reExpectedGot.MatchString(raw):
		return "type_mismatch", fmt.Sprintf("field %s has wrong type or value", last(path))
	default:
		return "validation_error", raw
	}
}

func last(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i+1:]
	}
	return p
}
