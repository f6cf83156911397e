package interpret

import (
	"errors"

	"github.com/mila-iqia/ptera-sub000/selector"
	"github.com/mila-iqia/ptera-sub000/tags"
)

// Handler is a user callback receiving built captures.
type Handler func(caps Captures) error

// Intercept is a user callback that may override the focal variable's
// value.  Return Absent to decline.
type Intercept func(caps Captures) (interface{}, error)

// Events bundles the callbacks attached to a pattern.
type Events struct {
	// Intercept runs before the focal variable is set and may
	// replace its value.
	Intercept Intercept

	// Trigger runs each time the focal variable is set.
	Trigger Handler

	// Close runs when the pattern's outer call exits.
	Close Handler
}

// Accumulator routes logged variable values into Captures and fires
// Events at the right moments.  The two disciplines are Immediate and
// Total.
//
// A registered accumulator starts as a template; the matching driver
// forks it per matching call so concurrent and recursive activations
// accumulate independently.
type Accumulator interface {
	// Pattern is the pattern this accumulator serves.
	Pattern() *selector.Call

	// Template reports whether this instance is the registered
	// template (which never accumulates itself).
	Template() bool

	// Fork clones the accumulator.  Children share what their
	// parents accumulated.
	Fork() Accumulator

	// AccumulatorFor returns the instance that should accumulate
	// an occurrence of the given element.
	AccumulatorFor(el *selector.Element) Accumulator

	// Log records one value for an element.
	Log(el *selector.Element, varname string, category tags.Value, value interface{})

	// InterceptValue runs the intercept callback for a focal
	// occurrence, returning Absent to leave the value alone.
	InterceptValue(el *selector.Element, varname string, category tags.Value, tentative interface{}) (interface{}, error)

	// Trigger fires the trigger callback for a focal occurrence.
	Trigger(el *selector.Element) error

	// Close fires the close callback (Total: once per focal
	// occurrence with complete captures).
	Close() error

	Intercepts() bool
	Triggers() bool
	Closes() bool

	// Failed reports whether a callback returned an error; a failed
	// accumulator stops firing.
	Failed() bool
}

// base carries the state and behavior common to both disciplines.
type base struct {
	pattern  *selector.Call
	ev       Events
	check    bool
	template bool
	parent   *base
	captures Captures
	failed   bool
}

func newBase(pattern *selector.Call, ev Events) base {
	return base{
		pattern:  pattern,
		ev:       ev,
		check:    pattern.HasValueFilters(),
		template: true,
		captures: Captures{},
	}
}

// forked derives the state for a child.  A template's children are
// roots of their own accumulation; a non-template's children share its
// captures through the parent chain.
func (b *base) forked() base {
	var parent *base
	if !b.template {
		parent = b
	}
	return base{
		pattern:  b.pattern,
		ev:       b.ev,
		check:    b.check,
		parent:   parent,
		captures: Captures{},
	}
}

func (b *base) Pattern() *selector.Call { return b.pattern }
func (b *base) Template() bool          { return b.template }
func (b *base) Intercepts() bool        { return b.ev.Intercept != nil }
func (b *base) Triggers() bool          { return b.ev.Trigger != nil }
func (b *base) Closes() bool            { return b.ev.Close != nil }
func (b *base) Failed() bool            { return b.failed }

func (b *base) getcap(el *selector.Element) *Capture {
	cap, have := b.captures[el.Capture]
	if !have {
		cap = NewCapture(el)
		b.captures[el.Capture] = cap
	}
	return cap
}

// build merges the capture dictionaries up the parent chain; nearer
// frames win on conflicts.
func (b *base) build() Captures {
	if b.parent == nil {
		return b.captures
	}
	acc := Captures{}
	for curr := b; curr != nil; curr = curr.parent {
		for name, cap := range curr.captures {
			if _, have := acc[name]; !have {
				acc[name] = cap
			}
		}
	}
	return acc
}

func (b *base) snapshot() Captures {
	built := b.build()
	acc := make(Captures, len(built))
	for name, cap := range built {
		acc[name] = cap.Snapshot()
	}
	return acc
}

// accept applies the pattern's value filters, when it has any.
func (b *base) accept(caps Captures) (bool, error) {
	if !b.check {
		return true, nil
	}
	return b.pattern.CheckCaptures(caps.valueMap())
}

func (b *base) InterceptValue(el *selector.Element, varname string, category tags.Value, tentative interface{}) (interface{}, error) {
	if b.ev.Intercept == nil || b.failed {
		return Absent, nil
	}

	// Present the tentative value as if it had been captured, for
	// the duration of the callback.
	cap := NewCapture(el)
	cap.Set(varname, tentative)
	prev, had := b.captures[el.Capture]
	b.captures[el.Capture] = cap
	defer func() {
		if had {
			b.captures[el.Capture] = prev
		} else {
			delete(b.captures, el.Capture)
		}
	}()

	caps := b.snapshot()
	if ok, err := b.accept(caps); err != nil || !ok {
		return Absent, err
	}
	v, err := b.ev.Intercept(caps)
	if err != nil {
		b.failed = true
		return Absent, err
	}
	return v, nil
}

func (b *base) Trigger(el *selector.Element) error {
	if b.ev.Trigger == nil || b.failed {
		return nil
	}
	caps := b.snapshot()
	if ok, err := b.accept(caps); err != nil || !ok {
		return err
	}
	if err := b.ev.Trigger(caps); err != nil {
		b.failed = true
		return err
	}
	return nil
}

// Immediate fires its trigger every time the focal variable is set,
// with the latest value of every other capture seen so far.
type Immediate struct {
	base
}

// NewImmediate returns a template Immediate accumulator.
func NewImmediate(pattern *selector.Call, ev Events) *Immediate {
	return &Immediate{base: newBase(pattern, ev)}
}

func (a *Immediate) Fork() Accumulator {
	return &Immediate{base: a.base.forked()}
}

// AccumulatorFor returns the accumulator itself: immediacy needs no
// per-occurrence forking, since the event fires with whatever is
// currently captured.
func (a *Immediate) AccumulatorFor(el *selector.Element) Accumulator { return a }

// Log keeps only the latest value per capture.
func (a *Immediate) Log(el *selector.Element, varname string, category tags.Value, value interface{}) {
	a.getcap(el).Set(varname, value)
}

func (a *Immediate) Close() error {
	if a.ev.Close == nil || a.failed {
		return nil
	}
	caps := a.snapshot()
	if ok, err := a.accept(caps); err != nil || !ok {
		return err
	}
	if err := a.ev.Close(caps); err != nil {
		a.failed = true
		return err
	}
	return nil
}

// Total accumulates every value over the dynamic extent of the
// pattern's outer call and fires its close callback when that call
// exits, once per occurrence of the focal variable.
type Total struct {
	base

	// element is non-nil on leaf forks made for one focal
	// occurrence.
	element *selector.Element

	// names is the set of capture names a leaf must cover before
	// its close callback may fire.
	names map[string]bool

	up       *Total
	children []*Total
}

// NewTotal returns a template Total accumulator.
func NewTotal(pattern *selector.Call, ev Events) *Total {
	return &Total{
		base:  newBase(pattern, ev),
		names: pattern.AllCaptures(),
	}
}

func (a *Total) Fork() Accumulator { return a.fork(nil) }

func (a *Total) fork(el *selector.Element) *Total {
	child := &Total{
		base:    a.base.forked(),
		element: el,
		names:   a.names,
	}
	if child.element == nil {
		child.element = a.element
	}
	if child.base.parent != nil {
		child.up = a
		a.children = append(a.children, child)
	}
	return child
}

// AccumulatorFor forks on the focal element: each occurrence of the
// focus gets its own leaf, sharing everything accumulated upstream.
func (a *Total) AccumulatorFor(el *selector.Element) Accumulator {
	if el.Focus > 0 {
		return a.fork(el)
	}
	return a
}

// Log accumulates every value.
func (a *Total) Log(el *selector.Element, varname string, category tags.Value, value interface{}) {
	a.getcap(el).Accum(varname, value)
}

func (a *Total) leaves() []*Total {
	if a.element != nil {
		return []*Total{a}
	}
	var acc []*Total
	for _, child := range a.children {
		acc = append(acc, child.leaves()...)
	}
	return acc
}

// Close fires the close callback once per complete leaf.  Only the
// root closes; leaves reached through it are each a separate set of
// captures.  A leaf missing a declared capture (the focus never set on
// its path) is skipped rather than reported incomplete.
func (a *Total) Close() error {
	if a.up != nil {
		return nil
	}
	leaves := a.leaves()
	if len(leaves) == 0 {
		leaves = []*Total{a}
	}
	var errs []error
	for _, leaf := range leaves {
		if leaf.ev.Close == nil || leaf.failed {
			continue
		}
		caps := leaf.build()
		if !covered(caps, leaf.names) {
			continue
		}
		if ok, err := leaf.accept(caps); err != nil || !ok {
			if err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := leaf.ev.Close(caps); err != nil {
			leaf.failed = true
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func covered(caps Captures, names map[string]bool) bool {
	if len(caps) != len(names) {
		return false
	}
	for name := range caps {
		if !names[name] {
			return false
		}
	}
	return true
}
