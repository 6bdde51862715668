package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	MarkSuccess = "✅"
	MarkWarning = "⚠️"
	MarkFailure = "❌"
)

// Outcome classifies a Result so callers branch on kind instead of text.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeWarning
	OutcomeEmpty
	OutcomeNotFound
	OutcomeInvalid
	OutcomeRemoteFailure
	OutcomeAuthFailure
	OutcomeNetworkFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeWarning:
		return "warning"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeRemoteFailure:
		return "remote_failure"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeNetworkFailure:
		return "network_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) Marker() string {
	switch o {
	case OutcomeSuccess:
		return MarkSuccess
	case OutcomeWarning, OutcomeEmpty:
		return MarkWarning
	default:
		return MarkFailure
	}
}

// Failed reports whether the outcome aborted the operation.
func (o Outcome) Failed() bool {
	return o >= OutcomeNotFound
}

// Result is the typed outcome of an Adapter call. Text renders it into the
// marker-prefixed string consumed by the agent layer.
type Result struct {
	Outcome  Outcome
	Message  string
	ID       string
	Warnings []string
	Applied  []AppliedField
	Skipped  []SkippedField
	Lines    []string
	Cause    error
}

func Success(message, id string) Result {
	return Result{Outcome: OutcomeSuccess, Message: message, ID: id}
}

func Warning(message string) Result {
	return Result{Outcome: OutcomeWarning, Message: message}
}

func Empty(message string) Result {
	return Result{Outcome: OutcomeEmpty, Message: message}
}

// NoResults is the fixed message of a search that matched nothing.
const NoResults = "No matching records found"

func NoMatches(query string) Result {
	return Empty(fmt.Sprintf("%s for '%s'", NoResults, strings.TrimSpace(query)))
}

func NotFound(message string) Result {
	return Result{Outcome: OutcomeNotFound, Message: message, Cause: ErrNotFound}
}

func Invalid(message string, cause error) Result {
	if cause == nil {
		cause = ErrValidation
	}
	return Result{Outcome: OutcomeInvalid, Message: message, Cause: cause}
}

// Failure converts err into a failed Result, picking the outcome from the
// sentinel err wraps. Unknown errors are reported as remote failures.
func Failure(err error, message string) Result {
	outcome := OutcomeRemoteFailure
	switch {
	case errors.Is(err, ErrAuth):
		outcome = OutcomeAuthFailure
	case errors.Is(err, ErrNetwork):
		outcome = OutcomeNetworkFailure
	case errors.Is(err, ErrNotFound):
		outcome = OutcomeNotFound
	case errors.Is(err, ErrValidation):
		outcome = OutcomeInvalid
	}
	return Result{Outcome: outcome, Message: message, Cause: err}
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func (r Result) WithWarning(w string) Result {
	r.Warnings = append(r.Warnings, w)
	return r
}

func (r Result) WithLines(lines ...string) Result {
	r.Lines = append(r.Lines, lines...)
	return r
}

// Text renders the result. The first line carries the marker, the message,
// applied and skipped fields, warnings and finally the "(ID: ...)" suffix;
// listing lines follow on their own lines.
func (r Result) Text() string {
	var b strings.Builder
	b.WriteString(r.Outcome.Marker())
	b.WriteString(" ")
	b.WriteString(strings.TrimSpace(r.Message))

	if len(r.Applied) > 0 {
		parts := make([]string, 0, len(r.Applied))
		for _, f := range r.Applied {
			parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Value))
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if len(r.Skipped) > 0 {
		parts := make([]string, 0, len(r.Skipped))
		for _, f := range r.Skipped {
			if f.Reason == "" {
				parts = append(parts, f.Name)
				continue
			}
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Reason))
		}
		b.WriteString(" ")
		b.WriteString(MarkWarning)
		b.WriteString(" Skipped: ")
		b.WriteString(strings.Join(parts, ", "))
	}
	for _, w := range r.Warnings {
		b.WriteString(" ")
		b.WriteString(MarkWarning)
		b.WriteString(" ")
		b.WriteString(w)
	}
	if r.ID != "" {
		fmt.Fprintf(&b, " (ID: %s)", r.ID)
	}
	for _, line := range r.Lines {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

func (r Result) String() string {
	return r.Text()
}

var idSuffixPattern = regexp.MustCompile(`\(ID:\s*([A-Za-z0-9][A-Za-z0-9\-]*)\)`)

// ExtractID returns the id of the last "(ID: ...)" group in text. It exists
// for consumers that only see rendered text; Go callers should use Result.ID.
func ExtractID(text string) (string, bool) {
	matches := idSuffixPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}
