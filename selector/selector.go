// Package selector implements the pattern language for call paths: a
// small operator-precedence parser and the immutable pattern trees it
// produces.
//
// A pattern such as
//
//	f(x) > g(!y:Loss)
//
// selects the variable y (tagged Loss) in calls to g made from inside
// calls to f, also capturing the value of x in the enclosing f.  The
// runtime driver (package overlay) matches these trees against live
// call stacks.
package selector

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mila-iqia/ptera-sub000/tags"
)

// FuncRef is a resolved reference to an instrumented function.  The
// zero case (nil) means "match by name".
type FuncRef interface {
	FuncName() string
}

// FuncInfo optionally extends FuncRef with the function's declared
// variables, for fit tests and verification.  FuncVars may return nil,
// which means the declarations are unknown (for example when events
// arrive from an external stream).
type FuncInfo interface {
	FuncRef
	FuncCategory() tags.Value
	FuncVars() map[string]tags.Value
}

// ValueFilter is a lazy filter on a captured value (the "=" and "~"
// operators).
type ValueFilter interface {
	MatchValue(value interface{}) (bool, error)
	encode() string
}

// EqualValue matches values equal to a literal.  Numbers are
// canonicalized to float64 so 3, 3.0 and int64(3) all compare equal,
// as in JSON.
type EqualValue struct {
	Value interface{}
}

func (f *EqualValue) MatchValue(value interface{}) (bool, error) {
	return canonicalValue(value) == f.Value, nil
}

func (f *EqualValue) encode() string {
	return "=" + encodeLiteral(f.Value)
}

// Predicate matches values satisfying a unary predicate resolved from
// the environment.
type Predicate struct {
	Name string
	Fn   func(interface{}) (bool, error)
}

func (f *Predicate) MatchValue(value interface{}) (bool, error) {
	if f.Fn == nil {
		return false, &ResolutionError{Name: f.Name, Kind: "predicate"}
	}
	return f.Fn(value)
}

func (f *Predicate) encode() string {
	// Script sources used as predicate names need quoting to
	// reparse.
	return "~" + encodeLiteral(f.Name)
}

// canonicalValue casts numbers to float64 (as JSON would).
func canonicalValue(x interface{}) interface{} {
	switch vv := x.(type) {
	case float32:
		return float64(vv)
	case int:
		return float64(vv)
	case int32:
		return float64(vv)
	case int64:
		return float64(vv)
	case uint:
		return float64(vv)
	default:
		return x
	}
}

func encodeLiteral(x interface{}) string {
	switch vv := x.(type) {
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	case string:
		for i := 0; i < len(vv); i++ {
			if !isWordChar(vv[i]) {
				return "'" + vv + "'"
			}
		}
		if len(vv) == 0 {
			return "''"
		}
		return vv
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Element is a pattern atom matching one variable in one call (or,
// when it is a Call's Element, the function identity of the call).
//
// Elements are immutable once built.
type Element struct {
	// Name is the variable (or function) name.  Empty means the
	// wildcard.
	Name string

	// Capture is the name under which matched values are
	// accumulated.  Defaults to Name; "$x" gives a wildcard with
	// capture x; "as" renames it.
	Capture string

	// Focus is 0 for a non-focal element, 1 for "!", 2 for "!!".
	Focus int

	// Category, when non-nil, restricts matches to variables
	// carrying a compatible tag.
	Category tags.Value

	// Value, when non-nil, is a lazy filter on the captured value.
	Value ValueFilter

	// Deep marks a capture introduced by ">>": it may match at any
	// depth below its call, not just directly inside it.
	Deep bool

	// Fn is the resolved function reference (or a tags.Value) when
	// this Element heads a Call.  Nil means match by Name.
	Fn interface{}
}

// Wildcard reports whether this element matches any variable name.
func (e *Element) Wildcard() bool { return e.Name == "" }

func (e *Element) withFocus(level int) *Element {
	if e.Focus >= level {
		return e
	}
	c := *e
	c.Focus = level
	return &c
}

// CheckElement reports whether a variable with the given name and
// category satisfies the element's name and category constraints.
// Value filters are deliberately not consulted here: they are lazy and
// evaluated against values only once the rest already matches.
func CheckElement(e *Element, name string, category tags.Value) bool {
	if e.Name != "" && e.Name != name {
		return false
	}
	return tags.Match(e.Category, category)
}

// Encode renders the element in canonical pattern syntax.
func (e *Element) Encode() string {
	var b strings.Builder
	switch e.Focus {
	case 1:
		b.WriteString("!")
	case 2:
		b.WriteString("!!")
	}
	as := ""
	switch {
	case e.Name == "" && e.Capture != "":
		b.WriteString("$" + e.Capture)
	case e.Name == "":
		b.WriteString("*")
	default:
		b.WriteString(e.Name)
		if e.Capture != "" && e.Capture != e.Name {
			as = " as " + e.Capture
		}
	}
	if e.Category != nil {
		b.WriteString(":" + e.Category.String())
	}
	if e.Value != nil {
		b.WriteString(e.Value.encode())
	}
	b.WriteString(as)
	return b.String()
}

// Call is a pattern atom matching one function activation and the
// variables and nested calls inside it.
//
// Calls are immutable once built; use Intern to hash-cons them.
type Call struct {
	// Element carries the function identity filter: its Name (or
	// resolved Fn), and optionally a Category the function's own
	// annotation must satisfy.
	Element *Element

	// Captures are the variables expected directly inside this
	// call (Deep ones may also match further down).
	Captures []*Element

	// Children are nested call patterns, each scoped to calls made
	// from inside this one.
	Children []*Call

	// Immediate is false when this node keeps watching at every
	// depth: the root of a pattern (a function can be entered at
	// any stack depth, and can call itself), and ">>" children.
	// Children introduced by "(...)" or ">" are immediate.
	Immediate bool
}

// Focus returns the focal element under this call, or nil.  Valid
// trees have at most one.
func (c *Call) Focus() *Element {
	for _, el := range c.Captures {
		if el.Focus > 0 {
			return el
		}
	}
	for _, child := range c.Children {
		if el := child.Focus(); el != nil {
			return el
		}
	}
	return nil
}

func (c *Call) focalCount() int {
	n := 0
	for _, el := range c.Captures {
		if el.Focus > 0 {
			n++
		}
	}
	for _, child := range c.Children {
		n += child.focalCount()
	}
	return n
}

// AllCaptures returns the set of capture names reachable under this
// call.
func (c *Call) AllCaptures() map[string]bool {
	acc := make(map[string]bool, 4)
	c.allCaptures(acc)
	return acc
}

func (c *Call) allCaptures(acc map[string]bool) {
	for _, el := range c.Captures {
		acc[el.Capture] = true
	}
	for _, child := range c.Children {
		child.allCaptures(acc)
	}
}

// HasValueFilters reports whether any element under this call carries
// a "=" or "~" filter.
func (c *Call) HasValueFilters() bool {
	for _, el := range c.Captures {
		if el.Value != nil {
			return true
		}
	}
	for _, child := range c.Children {
		if child.HasValueFilters() {
			return true
		}
	}
	return false
}

// CheckCaptures applies the pattern's value filters to built capture
// values, keyed by capture name.  Every value logged under a filtered
// capture must pass its filter; a filtered capture with no values
// fails.  Patterns without filters accept anything.
func (c *Call) CheckCaptures(values map[string][]interface{}) (bool, error) {
	for _, el := range c.Captures {
		if el.Value == nil {
			continue
		}
		vals, have := values[el.Capture]
		if !have || len(vals) == 0 {
			return false, nil
		}
		for _, v := range vals {
			ok, err := el.Value.MatchValue(v)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	for _, child := range c.Children {
		ok, err := child.CheckCaptures(values)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

// Valid checks the structural invariants: at most one focal descendant
// and no uncaptured non-focal wildcards.
func (c *Call) Valid() error {
	if n := c.focalCount(); 1 < n {
		return fmt.Errorf("pattern %q has %d focal variables", c.Encode(), n)
	}
	return c.validElements()
}

func (c *Call) validElements() error {
	for _, el := range c.Captures {
		if el.Wildcard() && el.Capture == "" && el.Focus == 0 {
			return fmt.Errorf("wildcard in %q is neither focal nor captured", c.Encode())
		}
	}
	for _, child := range c.Children {
		if err := child.validElements(); err != nil {
			return err
		}
	}
	return nil
}

// Encode renders the call in canonical pattern syntax.  The result
// reparses to a structurally equal tree.
func (c *Call) Encode() string {
	var b strings.Builder
	b.WriteString(c.Element.Encode())

	var (
		items []string
		deep  []string
	)
	for _, el := range c.Captures {
		if el.Deep {
			deep = append(deep, el.Encode())
			continue
		}
		items = append(items, el.Encode())
	}
	for _, child := range c.Children {
		if !child.Immediate {
			deep = append(deep, child.Encode())
			continue
		}
		items = append(items, child.Encode())
	}
	if 0 < len(items) {
		b.WriteString("(" + strings.Join(items, ", ") + ")")
	}
	for _, d := range deep {
		b.WriteString(" >> " + d)
	}
	return b.String()
}

// Equal reports structural equality (via canonical encoding).
func (c *Call) Equal(other *Call) bool {
	if c == other {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	return c.Encode() == other.Encode()
}

// Structural interning: equal patterns become identical pointers, so a
// *Call is usable as a cache key.  The cache is content-addressed by
// the canonical encoding.  Resolved function references are not part
// of the key, so don't intern trees resolved against different
// environments that disagree about a name.
var (
	internMu sync.Mutex
	interned = make(map[string]*Call, 16)
)

// Intern returns the canonical instance of this call tree.
func (c *Call) Intern() *Call {
	key := c.Encode()
	internMu.Lock()
	have, ok := interned[key]
	if !ok {
		interned[key] = c
		have = c
	}
	internMu.Unlock()
	return have
}
