// Package overlay is the matching driver: it walks pattern collections
// down a live call stack, forking accumulators as patterns match, and
// gives user code a small API (Overlay, Register) to attach handlers.
package overlay

import (
	"strings"
	"sync"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/selector"
	"github.com/mila-iqia/ptera-sub000/tags"
)

// Fn describes an instrumented function, or one declared by an
// external event stream.  Identity is pointer identity: resolve
// pattern targets to the same *Fn the session enters with.
type Fn struct {
	// Name is the function's name, matched against pattern call
	// targets resolved by name.
	Name string

	// Category optionally tags the function itself.
	Category tags.Value

	// Vars declares the function's variables and their categories.
	// Nil means the declarations are unknown (events from an
	// external stream); generic captures then match dynamically
	// instead of failing the fit test.
	Vars map[string]tags.Value
}

func (f *Fn) FuncName() string                { return f.Name }
func (f *Fn) FuncCategory() tags.Value        { return f.Category }
func (f *Fn) FuncVars() map[string]tags.Value { return f.Vars }

var _ selector.FuncInfo = (*Fn)(nil)

// capmap gives, per capture element, the variable names to listen on.
// A nil list means the names are not known up front.
type capmap = map[*selector.Element][]string

// fits tests whether a call to fn can match the pattern's root, and if
// so computes the capture map to register on the call's frame.
func fits(fn *Fn, pattern *selector.Call) (capmap, bool) {
	el := pattern.Element
	switch ref := el.Fn.(type) {
	case nil:
		if !selector.CheckElement(el, fn.Name, fn.Category) {
			return nil, false
		}
	case *Fn:
		if ref != fn {
			return nil, false
		}
	case tags.Value:
		if !tags.Match(ref, fn.Category) {
			return nil, false
		}
	case selector.FuncRef:
		if ref.FuncName() != fn.Name {
			return nil, false
		}
	default:
		return nil, false
	}

	m := make(capmap, len(pattern.Captures))
	for _, cap := range pattern.Captures {
		if cap.Wildcard() {
			// Generic capture: find the declared variables it
			// can match; fail when there are none (unless
			// declarations are unknown, or the capture may
			// still match deeper).
			if fn.Vars == nil || cap.Deep {
				m[cap] = nil
				continue
			}
			var varnames []string
			for name, category := range fn.Vars {
				if selector.CheckElement(cap, name, category) {
					varnames = append(varnames, name)
				}
			}
			if varnames == nil {
				return nil, false
			}
			m[cap] = varnames
			continue
		}

		// Named capture: the variable must exist in the
		// function's namespace, except for runtime-synthesized
		// "#" names ("#value", "#enter", ...) and keyed names
		// ("x.0" checks "x").
		base := cap.Name
		if i := strings.IndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
		if fn.Vars != nil && !cap.Deep && !strings.HasPrefix(cap.Name, "#") {
			if _, declared := fn.Vars[base]; !declared {
				return nil, false
			}
		}
		m[cap] = []string{cap.Name}
	}
	return m, true
}

// The fit test runs once per (function, pattern) pair; pattern
// interning extends the sharing to structurally equal patterns.
type fitKey struct {
	fn      *Fn
	pattern *selector.Call
}

type fitResult struct {
	capmap capmap
	ok     bool
}

var (
	fitMu    sync.Mutex
	fitCache = make(map[fitKey]fitResult, 64)
)

func fitsCached(fn *Fn, pattern *selector.Call) (capmap, bool) {
	key := fitKey{fn: fn, pattern: pattern}
	fitMu.Lock()
	r, have := fitCache[key]
	fitMu.Unlock()
	if !have {
		r.capmap, r.ok = fits(fn, pattern)
		fitMu.Lock()
		fitCache[key] = r
		fitMu.Unlock()
	}
	return r.capmap, r.ok
}

// pair is one (pattern, accumulator) entry.  The pattern may be a
// subtree of the accumulator's own: after entering f for "f > g > x",
// the next collection maps "g > x" to the same accumulator.
type pair struct {
	pattern *selector.Call
	acc     interpret.Accumulator
}

// Collection is an immutable list of (pattern, accumulator) pairs: the
// set of things that may match at the current stack depth.
type Collection struct {
	pairs []pair
}

// NewCollection builds a collection from handler accumulators, pairing
// each with its own pattern.
func NewCollection(handlers ...interpret.Accumulator) *Collection {
	c := &Collection{pairs: make([]pair, 0, len(handlers))}
	for _, acc := range handlers {
		c.pairs = append(c.pairs, pair{pattern: acc.Pattern(), acc: acc})
	}
	return c
}

// Plus returns a copy with the additional handlers appended.
func (c *Collection) Plus(handlers ...interpret.Accumulator) *Collection {
	if len(handlers) == 0 {
		return c
	}
	out := &Collection{pairs: make([]pair, 0, len(c.pairs)+len(handlers))}
	out.pairs = append(out.pairs, c.pairs...)
	for _, acc := range handlers {
		out.pairs = append(out.pairs, pair{pattern: acc.Pattern(), acc: acc})
	}
	return out
}

// Minus returns a copy without the pairs whose accumulator is in drop.
// Forked descendants of a dropped template are distinct accumulators,
// so matches already in flight keep accumulating.
func (c *Collection) Minus(drop map[interpret.Accumulator]bool) *Collection {
	dropped := 0
	for _, p := range c.pairs {
		if drop[p.acc] {
			dropped++
		}
	}
	if dropped == 0 {
		return c
	}
	out := &Collection{pairs: make([]pair, 0, len(c.pairs)-dropped)}
	for _, p := range c.pairs {
		if !drop[p.acc] {
			out.pairs = append(out.pairs, p)
		}
	}
	return out
}

// Proceed enters a call to fn: it tests every pattern against the
// call, registers the matching accumulators on a fresh frame, and
// returns the collection to use inside the call.
func (c *Collection) Proceed(fn *Fn) (*interpret.Frame, *Collection) {
	fr := interpret.NewFrame(fn.Name)
	var next []pair

	for _, p := range c.pairs {
		if !p.pattern.Immediate {
			// A non-immediate pattern may match at any depth,
			// and "f > x" matches inside "f > f > x", so it
			// stays in play unconditionally.
			next = append(next, p)
		}

		cm, ok := fitsCached(fn, p.pattern)
		if !ok {
			continue
		}

		acc := p.acc
		isTemplate := acc.Template()
		if isTemplate || p.pattern.Focus() != nil {
			// Fork so this activation accumulates its own
			// focal captures while sharing what the parents
			// have.  Templates are never used directly.
			acc = acc.Fork()
		}
		fr.Register(acc, cm, isTemplate)

		for _, child := range p.pattern.Children {
			next = append(next, pair{pattern: child, acc: acc})
		}
		for _, cap := range p.pattern.Captures {
			if cap.Deep {
				next = append(next, pair{pattern: carrierFor(cap), acc: acc})
			}
		}
	}
	return fr, &Collection{pairs: next}
}

// carrierFor wraps a ">>" capture in a non-immediate wildcard call so
// it keeps matching at every depth below the call that introduced it.
func carrierFor(cap *selector.Element) *selector.Call {
	kept := *cap
	kept.Deep = false
	return &selector.Call{
		Element:  &selector.Element{},
		Captures: []*selector.Element{&kept},
	}
}
