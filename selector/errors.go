package selector

// These errors are user errors, not internal errors.  A SyntaxError
// means the pattern text is malformed; a ResolutionError means the text
// is fine but a name in it cannot be found in the environment.  The two
// are distinct types so a caller can report "bad syntax" and "not
// found" differently.

import "fmt"

// SyntaxError reports malformed pattern text, citing the source and
// the offset of the offending token.
type SyntaxError struct {
	// Text is the complete pattern source.
	Text string

	// Offset is the byte offset of the offending token.
	Offset int

	// Token is the offending token's text (may be empty).
	Token string

	// Msg describes the problem.
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d (%q) in %q", e.Msg, e.Offset, e.Token, e.Text)
}

// ResolutionError reports a name in a pattern that cannot be found in
// the supplied environment.
type ResolutionError struct {
	// Name is the name that failed to resolve.
	Name string

	// Kind is what the name was expected to be: "function" or
	// "predicate".
	Kind string

	// Err optionally gives the underlying cause.
	Err error
}

func (e *ResolutionError) Error() string {
	s := fmt.Sprintf("can't resolve %s %q", e.Kind, e.Name)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ResolutionError) Unwrap() error { return e.Err }
