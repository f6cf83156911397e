package overlay

import (
	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/tags"
)

// Session tracks one logical call stack.  Use one Session per
// goroutine; a Session is not safe for concurrent use, and frames must
// not be shared across goroutines.
//
// Call boundaries are reported with Enter and Exit (pair them with
// defer so unwinding on error keeps the stack consistent), variable
// assignments with Interact.  Entering a call synthesizes a "#enter"
// event; exiting synthesizes "#value" (when a result is given) and
// "#exit".
type Session struct {
	base  *Collection
	stack []level

	// seen records which global handles this session has spliced
	// in, so reactivations of the registry never duplicate one.
	seen    map[*Handle]bool
	version uint64
}

type level struct {
	coll  *Collection
	frame *interpret.Frame
}

// NewSession starts an empty call stack watched by the given handlers
// (plus whatever the global registry holds at each call entry).
func NewSession(handlers ...interpret.Accumulator) *Session {
	return &Session{
		base: NewCollection(handlers...),
		seen: make(map[*Handle]bool, 4),
	}
}

// Depth returns the current stack depth.
func (s *Session) Depth() int { return len(s.stack) }

func (s *Session) current() *Collection {
	if len(s.stack) == 0 {
		return s.base
	}
	return s.stack[len(s.stack)-1].coll
}

// spliced returns the collection to proceed from, dropping handlers
// deactivated since they were spliced in and adding newly activated
// ones.  At the bottom of the stack the seen set resets, so the
// bookkeeping never outlives a top-level call.
func (s *Session) spliced() *Collection {
	curr := s.current()
	if len(s.stack) == 0 {
		for h := range s.seen {
			delete(s.seen, h)
		}
	}
	if dead := inactiveHandles(s.seen); dead != nil {
		drop := make(map[interpret.Accumulator]bool, len(dead))
		for _, h := range dead {
			drop[h.acc] = true
		}
		if curr = curr.Minus(drop); len(s.stack) > 0 {
			s.stack[len(s.stack)-1].coll = curr
		}
	}
	version := registryVersion()
	if version == s.version && len(s.stack) > 0 {
		return curr
	}
	s.version = version
	added := activeHandles(s.seen)
	if len(added) == 0 {
		return curr
	}
	accs := make([]interpret.Accumulator, len(added))
	for i, h := range added {
		s.seen[h] = true
		accs[i] = h.acc
	}
	return curr.Plus(accs...)
}

// Enter reports a call to fn and returns its frame.  The error, if
// any, comes from handler callbacks fired by the "#enter" event; the
// call stack is pushed regardless, so a deferred Exit stays correct.
func (s *Session) Enter(fn *Fn) (*interpret.Frame, error) {
	fr, next := s.spliced().Proceed(fn)
	s.stack = append(s.stack, level{coll: next, frame: fr})

	var err error
	if !fr.Empty() {
		_, err = fr.Interact("#enter", "", tags.Enter, true, false)
	}
	return fr, err
}

// Exit leaves the current call.  A result other than Absent is
// reported as "#value" first; intercepts may replace it, and the
// (possibly overridden) result is returned.  Close-at-exit
// accumulators registered on the frame fire their close events here.
func (s *Session) Exit(result interface{}) (interface{}, error) {
	if len(s.stack) == 0 {
		return result, ErrNoFrame
	}
	fr := s.stack[len(s.stack)-1].frame
	s.stack = s.stack[:len(s.stack)-1]

	if fr.Empty() {
		return result, nil
	}
	var firstErr error
	if result != interpret.Absent {
		v, err := fr.Interact("#value", "", nil, result, true)
		if err == nil {
			result = v
		} else if firstErr == nil {
			firstErr = err
		}
	}
	if _, err := fr.Interact("#exit", "", tags.Exit, true, false); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := fr.Exit(); err != nil && firstErr == nil {
		firstErr = err
	}
	return result, firstErr
}

// Interact reports a variable assignment in the current call and
// returns the value the instrumented code should use (an intercept may
// have replaced it).
func (s *Session) Interact(varname, key string, category tags.Value, value interface{}, overridable bool) (interface{}, error) {
	if len(s.stack) == 0 {
		if value == interpret.Absent {
			return nil, &interpret.MissingValueError{Name: varname}
		}
		return value, nil
	}
	return s.stack[len(s.stack)-1].frame.Interact(varname, key, category, value, overridable)
}

// apply adds handlers to the session's current scope and returns a
// function restoring the previous state.  Used by Overlay.Do.
func (s *Session) apply(handlers []interpret.Accumulator) func() {
	if len(s.stack) == 0 {
		saved := s.base
		s.base = s.base.Plus(handlers...)
		return func() { s.base = saved }
	}
	top := len(s.stack) - 1
	saved := s.stack[top].coll
	s.stack[top].coll = saved.Plus(handlers...)
	lvl := &s.stack[top]
	return func() { lvl.coll = saved }
}

// Call wraps body in an Enter/Exit pair for fn and returns its result,
// possibly overridden by a "#value" intercept.  Errors from body pass
// through untouched; otherwise the first handler error is returned.
func (s *Session) Call(fn *Fn, body func(fr *interpret.Frame) (interface{}, error)) (interface{}, error) {
	fr, enterErr := s.Enter(fn)
	result, err := body(fr)
	if err != nil {
		s.Exit(interpret.Absent)
		return result, err
	}
	result, exitErr := s.Exit(result)
	if enterErr != nil {
		return result, enterErr
	}
	return result, exitErr
}
