// Package goja compiles ECMAScript sources into value predicates and
// intercepts, using Goja, a Go implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
//
// A predicate source is an expression over the variable "value":
//
//	value > 0 && value % 2 == 0
//
// An intercept source additionally sees "captures", the current
// capture dictionary as a map of names to lists of values; returning
// null or undefined leaves the focal value alone.
package goja

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/selector"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned when an evaluation hits the
	// interpreter's Timeout.
	Interrupted = errors.New(InterruptedMessage)
)

// Interpreter compiles and runs ECMAScript predicate and intercept
// sources.  The zero value is usable.
type Interpreter struct {
	// Timeout bounds each evaluation.  Zero means no bound, which
	// leaves the process at the mercy of a source with a loop in
	// it.
	Timeout time.Duration
}

// NewInterpreter makes a new Interpreter with a one-second Timeout.
func NewInterpreter() *Interpreter {
	return &Interpreter{Timeout: time.Second}
}

// wrapExpr makes an expression the return value of an anonymous
// function call, so sources stay simple expressions.
func wrapExpr(src string) string {
	return fmt.Sprintf("(function() {\nreturn (%s\n);\n}());\n", src)
}

func (i *Interpreter) run(p *goja.Program, env map[string]interface{}) (goja.Value, error) {
	o := goja.New()
	for k, v := range env {
		o.Set(k, v)
	}
	if 0 < i.Timeout {
		t := time.AfterFunc(i.Timeout, func() {
			o.Interrupt(InterruptedMessage)
		})
		defer t.Stop()
	}
	v, err := o.RunProgram(p)
	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}
	return v, nil
}

// CompilePredicate compiles src into a unary predicate suitable as a
// "~" operand.  The name appears in compilation error messages.
func (i *Interpreter) CompilePredicate(name, src string) (func(interface{}) (bool, error), error) {
	code := wrapExpr(src)
	p, err := goja.Compile(name, code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return func(value interface{}) (bool, error) {
		value, err := canonicalize(value)
		if err != nil {
			return false, err
		}
		v, err := i.run(p, map[string]interface{}{"value": value})
		if err != nil {
			return false, err
		}
		return v.ToBoolean(), nil
	}, nil
}

// CompileIntercept compiles src into an intercept for the pattern's
// focal variable.
func (i *Interpreter) CompileIntercept(pattern *selector.Call, name, src string) (interpret.Intercept, error) {
	focus := pattern.Focus()
	if focus == nil {
		return nil, fmt.Errorf("pattern %q has no focal variable to intercept", pattern.Encode())
	}
	code := wrapExpr(src)
	p, err := goja.Compile(name, code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return func(caps interpret.Captures) (interface{}, error) {
		value, err := caps.Value(focus.Capture)
		if err != nil {
			return nil, err
		}
		if value, err = canonicalize(value); err != nil {
			return nil, err
		}
		captures := make(map[string]interface{}, len(caps))
		for k, cap := range caps {
			vals, err := canonicalize(cap.Values)
			if err != nil {
				return nil, err
			}
			captures[k] = vals
		}
		v, err := i.run(p, map[string]interface{}{
			"value":    value,
			"captures": captures,
		})
		if err != nil {
			return nil, err
		}
		x := v.Export()
		if x == nil {
			return interpret.Absent, nil
		}
		return canonicalize(x)
	}, nil
}

// Env wraps a selector environment so that "~" operands that the base
// cannot resolve are compiled as ECMAScript expressions.  A nil base
// behaves like selector.NameEnv.
func (i *Interpreter) Env(base selector.Env) selector.Env {
	if base == nil {
		base = selector.NameEnv{}
	}
	return &scriptEnv{base: base, interp: i}
}

type scriptEnv struct {
	base   selector.Env
	interp *Interpreter
}

func (e *scriptEnv) ResolveFunction(name string) (interface{}, error) {
	return e.base.ResolveFunction(name)
}

func (e *scriptEnv) ResolvePredicate(name string) (func(interface{}) (bool, error), error) {
	fn, err := e.base.ResolvePredicate(name)
	if err == nil {
		return fn, nil
	}
	fn, compileErr := e.interp.CompilePredicate(name, name)
	if compileErr != nil {
		return nil, err
	}
	return fn, nil
}

// canonicalize round-trips through JSON so values look the same on
// both sides of the runtime (ints become float64, structs become
// maps).
func canonicalize(x interface{}) (interface{}, error) {
	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}
	var y interface{}
	if err = json.Unmarshal(js, &y); err != nil {
		return nil, err
	}
	return y, nil
}
