package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/overlay"
	"github.com/mila-iqia/ptera-sub000/tags"
)

// Event is one line of a trace stream.
//
// "enter" opens a call: fn names the function, category optionally
// tags it, and vars optionally declares its variables (name to
// category string, "" for untagged).  "set" assigns a variable in the
// current call; a missing value means the variable was declared
// without one.  "exit" closes the current call, optionally with a
// return value.
type Event struct {
	Op       string            `json:"op"`
	Fn       string            `json:"fn,omitempty"`
	Category string            `json:"category,omitempty"`
	Vars     map[string]string `json:"vars,omitempty"`
	Var      string            `json:"var,omitempty"`
	Key      string            `json:"key,omitempty"`
	Value    *interface{}      `json:"value,omitempty"`
}

// Replayer applies trace events to a session.  Function identities are
// interned by name, category, and declared variables, so repeated
// calls to the same function hit the driver's fit cache.
type Replayer struct {
	session *overlay.Session
	fns     map[string]*overlay.Fn
}

func NewReplayer(handlers ...interpret.Accumulator) *Replayer {
	return &Replayer{
		session: overlay.NewSession(handlers...),
		fns:     make(map[string]*overlay.Fn, 16),
	}
}

func (r *Replayer) Session() *overlay.Session { return r.session }

func (r *Replayer) Apply(ev *Event) error {
	switch ev.Op {
	case "enter":
		if ev.Fn == "" {
			return fmt.Errorf("enter without fn")
		}
		_, err := r.session.Enter(r.fn(ev))
		return err

	case "set":
		if ev.Var == "" {
			return fmt.Errorf("set without var")
		}
		value := interpret.Absent
		if ev.Value != nil {
			value = *ev.Value
		}
		_, err := r.session.Interact(ev.Var, ev.Key, tags.Parse(ev.Category), value, true)
		return err

	case "exit":
		result := interpret.Absent
		if ev.Value != nil {
			result = *ev.Value
		}
		_, err := r.session.Exit(result)
		return err
	}

	return fmt.Errorf("unknown op %q", ev.Op)
}

// Drain exits any calls still open, so close-at-exit probes on a
// truncated stream still fire.
func (r *Replayer) Drain() error {
	var firstErr error
	for 0 < r.session.Depth() {
		if _, err := r.session.Exit(interpret.Absent); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Replayer) fn(ev *Event) *overlay.Fn {
	key := fnKey(ev)
	if fn, have := r.fns[key]; have {
		return fn
	}
	fn := &overlay.Fn{
		Name:     ev.Fn,
		Category: tags.Parse(ev.Category),
	}
	if ev.Vars != nil {
		fn.Vars = make(map[string]tags.Value, len(ev.Vars))
		for name, cat := range ev.Vars {
			fn.Vars[name] = tags.Parse(cat)
		}
	}
	r.fns[key] = fn
	return fn
}

func fnKey(ev *Event) string {
	parts := make([]string, 0, len(ev.Vars)+2)
	parts = append(parts, ev.Fn, ev.Category)
	names := make([]string, 0, len(ev.Vars))
	for name := range ev.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+":"+ev.Vars[name])
	}
	return strings.Join(parts, "|")
}
