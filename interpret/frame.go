package interpret

import (
	"errors"

	"github.com/mila-iqia/ptera-sub000/selector"
	"github.com/mila-iqia/ptera-sub000/tags"
)

// Frame is the per-activation hub for one instrumented call: the
// matching driver registers accumulators on it, and the instrumented
// code reports variable assignments through Interact.
//
// A Frame belongs to one call on one goroutine and is not safe for
// concurrent use.
type Frame struct {
	// fn names the function this frame belongs to, for errors.
	fn string

	// listeners maps variable names to the accumulators watching
	// them; wild holds listeners for generic elements whose
	// variable names are not known up front.
	listeners map[string][]listener
	wild      []listener

	toClose []Accumulator
}

type listener struct {
	element *selector.Element
	acc     Accumulator
}

// NewFrame returns an empty frame for a call to the named function.
func NewFrame(fn string) *Frame {
	return &Frame{
		fn:        fn,
		listeners: make(map[string][]listener, 4),
	}
}

// Fn returns the name of the function this frame belongs to.
func (f *Frame) Fn() string { return f.fn }

// Empty reports whether nothing listens on this frame.
func (f *Frame) Empty() bool {
	return len(f.listeners) == 0 && len(f.wild) == 0 && len(f.toClose) == 0
}

// Register attaches an accumulator for a set of elements.  The capmap
// gives, per element, the concrete variable names it may match; an
// empty list means the names are not known up front (a generic
// element, or variables from an undeclared source), so the element is
// checked against every assignment.
func (f *Frame) Register(acc Accumulator, capmap map[*selector.Element][]string, closeAtExit bool) {
	for el, varnames := range capmap {
		if len(varnames) == 0 {
			f.wild = append(f.wild, listener{element: el, acc: acc})
			continue
		}
		for _, v := range varnames {
			f.listeners[v] = append(f.listeners[v], listener{element: el, acc: acc})
		}
	}
	if closeAtExit && acc.Closes() {
		f.toClose = append(f.toClose, acc)
	}
}

// Interact reports one variable assignment.  It runs the intercepts of
// matching focal listeners (the last override wins), logs the final
// value into every matching accumulator, and fires the focal triggers.
// The returned value is what the instrumented code should assign.
//
// A non-empty key addresses an element of the variable ("x" with key
// "0" is logged as "x.0").
func (f *Frame) Interact(varname, key string, category tags.Value, value interface{}, overridable bool) (interface{}, error) {
	if key != "" {
		varname = varname + "." + key
	}

	matched := f.matching(varname, category)

	override := Absent
	for _, m := range matched {
		if m.element.Focus == 0 || !m.acc.Intercepts() {
			continue
		}
		tmp, err := m.acc.InterceptValue(m.element, varname, category, value)
		if err != nil {
			return nil, err
		}
		if tmp != Absent {
			override = tmp
		}
	}
	if override != Absent {
		if !overridable {
			return nil, &OverrideError{Name: varname}
		}
		value = override
	}
	if value == Absent {
		return nil, &MissingValueError{Name: varname, Fn: f.fn}
	}

	for _, m := range matched {
		m.acc.Log(m.element, varname, category, value)
	}

	var errs []error
	for _, m := range matched {
		if m.element.Focus == 0 || !m.acc.Triggers() {
			continue
		}
		if err := m.acc.Trigger(m.element); err != nil {
			errs = append(errs, err)
		}
	}
	return value, errors.Join(errs...)
}

// matching resolves the listeners for one assignment, picking the
// accumulator instance each one should use (Total forks on the focus
// here).
func (f *Frame) matching(varname string, category tags.Value) []listener {
	var acc []listener
	consider := func(l listener) {
		if !selector.CheckElement(l.element, varname, category) {
			return
		}
		acc = append(acc, listener{
			element: l.element,
			acc:     l.acc.AccumulatorFor(l.element),
		})
	}
	for _, l := range f.listeners[varname] {
		consider(l)
	}
	for _, l := range f.wild {
		consider(l)
	}
	return acc
}

// Exit closes the accumulators registered for closing on this frame.
func (f *Frame) Exit() error {
	var errs []error
	for _, acc := range f.toClose {
		if err := acc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
