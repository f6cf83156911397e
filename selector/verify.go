package selector

// Verification is a static pass over a resolved pattern: it finds
// patterns that parse and resolve but can never fire, before any event
// is matched.  Problems are reported in bulk, not one at a time, so a
// probe spec with several bad patterns is diagnosed in one go.

import (
	"fmt"

	"github.com/mila-iqia/ptera-sub000/tags"
)

// Problem is one verification finding for a pattern.
type Problem struct {
	// Pattern is the call the problem was found in (a subtree of
	// the verified pattern).
	Pattern *Call

	// Msg describes the problem.
	Msg string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s in %q", p.Msg, p.Pattern.Encode())
}

// Verify checks a resolved pattern for constructions that can never
// fire.  A nil result means the pattern is usable.
func Verify(c *Call) []Problem {
	var acc []Problem
	if err := c.Valid(); err != nil {
		acc = append(acc, Problem{Pattern: c, Msg: err.Error()})
	}
	if c.Focus() == nil {
		acc = append(acc, Problem{Pattern: c, Msg: "pattern has no focal variable"})
	}
	return verifyCall(c, acc)
}

func verifyCall(c *Call, acc []Problem) []Problem {
	if c.Element.Wildcard() && c.Element.Fn == nil && c.Element.Category == nil {
		acc = append(acc, Problem{
			Pattern: c,
			Msg:     "call target is an unconstrained wildcard",
		})
	}

	var vars map[string]tags.Value
	if info, is := c.Element.Fn.(FuncInfo); is {
		vars = info.FuncVars()
	}
	for _, el := range c.Captures {
		acc = verifyCapture(c, el, vars, acc)
	}

	for _, child := range c.Children {
		acc = verifyCall(child, acc)
	}
	return acc
}

// verifyCapture checks one capture element against the declared
// variables of its call's resolved function.  Declarations are only
// available for in-process functions; with none, every capture is
// plausible and nothing is reported.
func verifyCapture(c *Call, el *Element, vars map[string]tags.Value, acc []Problem) []Problem {
	if vars == nil || el.Deep {
		return acc
	}

	if !el.Wildcard() {
		// Variables named "#enter", "#value" and the like are
		// synthesized at runtime, never declared.
		if el.Name[0] == '#' {
			return acc
		}
		if _, declared := vars[el.Name]; !declared {
			acc = append(acc, Problem{
				Pattern: c,
				Msg:     fmt.Sprintf("no variable %q in %s", el.Name, c.Element.Encode()),
			})
		}
		return acc
	}

	// A generic capture with a category must have at least one
	// declared variable it could match.
	if el.Category == nil {
		return acc
	}
	for name, category := range vars {
		if CheckElement(el, name, category) {
			return acc
		}
	}
	return append(acc, Problem{
		Pattern: c,
		Msg:     fmt.Sprintf("no variable tagged %s in %s", el.Category, c.Element.Encode()),
	})
}
