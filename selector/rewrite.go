package selector

// Tree rewriting serves the runtime: when a pattern has several
// captures, the total-accumulation driver needs a reduced variant of
// the pattern per capture, refocused on that capture alone.

import "github.com/mila-iqia/ptera-sub000/tags"

// Rewrite returns a reduced copy of the pattern keeping only the
// captures named in required, refocused (focus level 2) on the capture
// named by focus.  Subtrees with nothing left to capture are pruned.
// The result is nil when the focus capture does not survive.
func Rewrite(c *Call, required map[string]bool, focus string) *Call {
	out := rewriteCall(c, required, focus)
	if out == nil {
		return nil
	}
	if focus != "" && out.Focus() == nil {
		return nil
	}
	return out
}

func rewriteCall(c *Call, required map[string]bool, focus string) *Call {
	var captures []*Element
	for _, el := range c.Captures {
		if el.Capture == "" || !required[el.Capture] {
			continue
		}
		kept := *el
		if focus == "" {
			captures = append(captures, &kept)
			continue
		}
		if kept.Capture == focus {
			kept.Focus = 2
		} else {
			kept.Focus = 0
		}
		captures = append(captures, &kept)
	}

	var children []*Call
	for _, child := range c.Children {
		if kept := rewriteCall(child, required, focus); kept != nil {
			children = append(children, kept)
		}
	}

	if len(captures) == 0 && len(children) == 0 {
		return nil
	}
	out := *c
	out.Captures = captures
	out.Children = children
	return &out
}

// ElementSpec describes how Specialize fills in a generic capture.
type ElementSpec struct {
	// Name gives the wildcard a concrete variable name.
	Name string

	// Category, when non-nil, replaces the capture's category.
	Category tags.Value

	// Value, when non-nil, adds a value filter.
	Value ValueFilter
}

// Specialize returns a copy of the pattern with generic captures
// (wildcards with capture names) narrowed per the given specs, keyed
// by capture name.  Captures without a spec are unchanged.
func Specialize(c *Call, specs map[string]ElementSpec) *Call {
	out := *c
	out.Captures = make([]*Element, len(c.Captures))
	for i, el := range c.Captures {
		out.Captures[i] = specializeElement(el, specs)
	}
	out.Children = make([]*Call, len(c.Children))
	for i, child := range c.Children {
		out.Children[i] = Specialize(child, specs)
	}
	return &out
}

func specializeElement(el *Element, specs map[string]ElementSpec) *Element {
	if !el.Wildcard() || el.Capture == "" {
		return el
	}
	spec, have := specs[el.Capture]
	if !have {
		return el
	}
	kept := *el
	kept.Name = spec.Name
	if spec.Category != nil {
		kept.Category = spec.Category
	}
	if spec.Value != nil {
		kept.Value = spec.Value
	}
	return &kept
}
