package importer

import "fmt"

// RowError records a per-row failure. Row errors are collected and surfaced
// together after the run; they never stop processing.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// AbortError stops the whole import immediately. It is reserved for the
// conditions where continuing row-by-row would be unsafe: a blank mandatory
// natural key, a pre-existing ambiguous duplicate, an unknown stock column,
// an unresolvable required header, or an empty file.
type AbortError struct {
	Line    int
	Message string
}

func (e *AbortError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("import aborted at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("import aborted: %s", e.Message)
}

func abortf(line int, format string, args ...any) *AbortError {
	return &AbortError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// Summary aggregates the outcome of one import run.
type Summary struct {
	Created  int        `json:"created"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Rejected int        `json:"rejected"`
	Errors   []RowError `json:"errors,omitempty"`
}

func (s *Summary) reject(line int, format string, args ...any) {
	s.Rejected++
	s.Errors = append(s.Errors, RowError{Line: line, Message: fmt.Sprintf(format, args...)})
}

// Message renders the single aggregate line shown to the operator.
func (s Summary) Message() string {
	return fmt.Sprintf("%d created, %d updated, %d skipped, %d rejected", s.Created, s.Updated, s.Skipped, s.Rejected)
}
