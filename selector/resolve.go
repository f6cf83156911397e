package selector

// Symbol resolution happens in a separate pass after parsing, against
// a caller-supplied environment, so callers can tell "bad syntax" from
// "not found".

import (
	"errors"
	"strings"
)

// ErrNotFound is a conventional cause for resolution failures.
var ErrNotFound = errors.New("not found")

// Env resolves bare names in a pattern.
type Env interface {
	// ResolveFunction resolves a call target.  It returns a
	// FuncRef, a tags.Value (to match functions by tag), or nil to
	// match by name.  An error means the name is unknown.
	ResolveFunction(name string) (interface{}, error)

	// ResolvePredicate resolves the operand of "~".
	ResolvePredicate(name string) (func(interface{}) (bool, error), error)
}

// MapEnv is an Env backed by a map.  Values may be FuncRefs,
// tags.Values, or predicate functions.  Names not in the map fail to
// resolve.
type MapEnv map[string]interface{}

func (m MapEnv) ResolveFunction(name string) (interface{}, error) {
	x, have := m[name]
	if !have {
		return nil, ErrNotFound
	}
	return x, nil
}

func (m MapEnv) ResolvePredicate(name string) (func(interface{}) (bool, error), error) {
	x, have := m[name]
	if !have {
		return nil, ErrNotFound
	}
	switch fn := x.(type) {
	case func(interface{}) (bool, error):
		return fn, nil
	case func(interface{}) bool:
		return func(v interface{}) (bool, error) {
			return fn(v), nil
		}, nil
	}
	return nil, errors.New("not a predicate")
}

// NameEnv resolves every function by its bare name and no predicates.
// Useful when events arrive from an external stream and functions have
// no in-process identity.
type NameEnv struct{}

func (NameEnv) ResolveFunction(name string) (interface{}, error) {
	return nil, nil
}

func (NameEnv) ResolvePredicate(name string) (func(interface{}) (bool, error), error) {
	return nil, ErrNotFound
}

// Select parses the pattern text and resolves it against the given
// environment.  Parse errors are *SyntaxError; resolution errors are
// *ResolutionError; a structurally invalid pattern (two focal
// variables) is also rejected here.
func Select(text string, env Env) (*Call, error) {
	c, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := c.Valid(); err != nil {
		return nil, err
	}
	if c, err = resolveCall(c, env); err != nil {
		return nil, err
	}
	return c, nil
}

func resolveCall(c *Call, env Env) (*Call, error) {
	acc := *c

	if name := c.Element.Name; name != "" && !strings.HasPrefix(name, "#") {
		ref, err := env.ResolveFunction(name)
		if err != nil {
			return nil, &ResolutionError{Name: name, Kind: "function", Err: err}
		}
		if ref != nil {
			el := *c.Element
			el.Fn = ref
			acc.Element = &el
		}
	}

	captures := make([]*Element, len(c.Captures))
	for i, el := range c.Captures {
		resolved, err := resolveElement(el, env)
		if err != nil {
			return nil, err
		}
		captures[i] = resolved
	}
	acc.Captures = captures

	children := make([]*Call, len(c.Children))
	for i, child := range c.Children {
		resolved, err := resolveCall(child, env)
		if err != nil {
			return nil, err
		}
		children[i] = resolved
	}
	acc.Children = children

	return &acc, nil
}

func resolveElement(el *Element, env Env) (*Element, error) {
	pred, is := el.Value.(*Predicate)
	if !is || pred.Fn != nil {
		return el, nil
	}
	fn, err := env.ResolvePredicate(pred.Name)
	if err != nil {
		return nil, &ResolutionError{Name: pred.Name, Kind: "predicate", Err: err}
	}
	acc := *el
	acc.Value = &Predicate{Name: pred.Name, Fn: fn}
	return &acc, nil
}
