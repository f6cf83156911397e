package interpret

import "fmt"

// MissingValueError reports a variable or capture read before any
// value was logged for it.
type MissingValueError struct {
	// Name is the variable or capture name.
	Name string

	// Fn optionally names the function the variable belongs to.
	Fn string
}

func (e *MissingValueError) Error() string {
	if e.Fn != "" {
		return fmt.Sprintf("no value for %q in %s", e.Name, e.Fn)
	}
	return fmt.Sprintf("no value for %q", e.Name)
}

// AmbiguousCaptureError reports a single-value read of a capture that
// accumulated several values (or names).  Use Capture.Values (or
// .Names) when that is expected.
type AmbiguousCaptureError struct {
	Capture string
	Count   int
}

func (e *AmbiguousCaptureError) Error() string {
	return fmt.Sprintf("capture %q holds %d values; use Values", e.Capture, e.Count)
}

// OverrideError reports an intercept that tried to override a variable
// the instrumented code declared non-overridable.
type OverrideError struct {
	Name string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("the value of %q cannot be overridden", e.Name)
}
