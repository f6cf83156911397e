// Package interpret is the accumulation layer between pattern trees
// and user callbacks: as instrumented calls set variables, Frames route
// the values into Accumulators, which build Capture dictionaries and
// fire the callbacks at the right moments.
//
// Two disciplines are provided.  Immediate fires every time the focal
// variable is set, with the latest value of every other capture.  Total
// fires when the pattern's outer call exits, once per occurrence of the
// focal variable, with everything accumulated on that occurrence's
// path.
package interpret

import (
	"sort"

	"github.com/mila-iqia/ptera-sub000/selector"
)

// Absent is the sentinel for "no value": a variable not yet set, or an
// intercept that declines to override.
var Absent interface{} = absentValue{}

type absentValue struct{}

func (absentValue) String() string { return "<absent>" }

// Capture holds the values accumulated for one pattern element.  A
// concrete element captures one variable; a generic element ("$x") may
// capture several, so names and values are parallel lists.
type Capture struct {
	// Element is the pattern element this capture serves.
	Element *selector.Element

	// Names are the variable names that matched, in match order.
	Names []string

	// Values are the matched values, parallel to Names.
	Values []interface{}
}

// NewCapture returns an empty capture for the given element.
func NewCapture(el *selector.Element) *Capture {
	return &Capture{Element: el}
}

// Name returns the unique captured variable name.  For a generic
// element with several matches, use Names.
func (c *Capture) Name() (string, error) {
	if !c.Element.Wildcard() {
		return c.Element.Name, nil
	}
	switch len(c.Names) {
	case 0:
		return "", &MissingValueError{Name: c.Element.Capture}
	case 1:
		return c.Names[0], nil
	}
	return "", &AmbiguousCaptureError{Capture: c.Element.Capture, Count: len(c.Names)}
}

// Value returns the unique captured value.  With zero or several
// values this is an error; use Values instead.
func (c *Capture) Value() (interface{}, error) {
	switch len(c.Values) {
	case 0:
		return nil, &MissingValueError{Name: c.Element.Capture}
	case 1:
		return c.Values[0], nil
	}
	return nil, &AmbiguousCaptureError{Capture: c.Element.Capture, Count: len(c.Values)}
}

// Accum appends a name and value.
func (c *Capture) Accum(varname string, value interface{}) {
	c.Names = append(c.Names, varname)
	c.Values = append(c.Values, value)
}

// Set overwrites the capture with a single name and value.
func (c *Capture) Set(varname string, value interface{}) {
	c.Names = append(c.Names[:0], varname)
	c.Values = append(c.Values[:0], value)
}

// Snapshot returns a copy unaffected by later accumulation.
func (c *Capture) Snapshot() *Capture {
	return &Capture{
		Element: c.Element,
		Names:   append([]string{}, c.Names...),
		Values:  append([]interface{}{}, c.Values...),
	}
}

// Captures is what callbacks receive: capture name to Capture.
type Captures map[string]*Capture

// Value returns the unique value of the named capture.
func (cs Captures) Value(name string) (interface{}, error) {
	cap, have := cs[name]
	if !have {
		return nil, &MissingValueError{Name: name}
	}
	return cap.Value()
}

// Values returns all values of the named capture (nil when absent).
func (cs Captures) Values(name string) []interface{} {
	cap, have := cs[name]
	if !have {
		return nil
	}
	return cap.Values
}

// Names returns the capture names present, sorted.
func (cs Captures) Names() []string {
	acc := make([]string, 0, len(cs))
	for name := range cs {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// valueMap flattens the captures for value-filter checks.
func (cs Captures) valueMap() map[string][]interface{} {
	acc := make(map[string][]interface{}, len(cs))
	for name, cap := range cs {
		acc[name] = cap.Values
	}
	return acc
}
