// Package tags implements the category lattice used to classify
// variables independently of their names.
//
// A variable can carry a Tag (or a union of Tags built with And), and a
// selector element can filter on one.  Tags are interned: two calls to
// New with the same name return the same *Tag, so Tags can be compared
// with == and used as map keys.
package tags

import (
	"sort"
	"strings"
	"sync"
)

// Value is either a *Tag or a *Set.
type Value interface {
	// Members lists the Tags of this Value.
	Members() []*Tag

	// And returns the union of this Value and the given one.
	And(Value) Value

	String() string
}

// Tag is a single category.
//
// Get one via New (or Get); do not construct Tags directly.
type Tag struct {
	name string
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Tag, 16)
)

// New returns the interned Tag with the given name, creating it if
// necessary.
func New(name string) *Tag {
	registryMu.Lock()
	t, have := registry[name]
	if !have {
		t = &Tag{name: name}
		registry[name] = t
	}
	registryMu.Unlock()
	return t
}

// Get builds a Tag or a Set from the given names.
func Get(names ...string) Value {
	if len(names) == 1 {
		return New(names[0])
	}
	members := make([]*Tag, len(names))
	for i, name := range names {
		members[i] = New(name)
	}
	return newSet(members)
}

func (t *Tag) Name() string { return t.name }

func (t *Tag) Members() []*Tag { return []*Tag{t} }

func (t *Tag) And(v Value) Value {
	if v == nil {
		return t
	}
	return newSet(append(v.Members(), t))
}

func (t *Tag) String() string { return t.name }

// Set is a union of Tags.
type Set struct {
	members map[*Tag]bool
}

func newSet(members []*Tag) Value {
	m := make(map[*Tag]bool, len(members))
	for _, t := range members {
		m[t] = true
	}
	if len(m) == 1 {
		return members[0]
	}
	return &Set{members: m}
}

func (s *Set) Members() []*Tag {
	acc := make([]*Tag, 0, len(s.members))
	for t := range s.members {
		acc = append(acc, t)
	}
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].name < acc[j].name
	})
	return acc
}

func (s *Set) And(v Value) Value {
	if v == nil {
		return s
	}
	return newSet(append(v.Members(), s.Members()...))
}

func (s *Set) Has(t *Tag) bool { return s.members[t] }

func (s *Set) String() string {
	names := make([]string, 0, len(s.members))
	for _, t := range s.Members() {
		names = append(names, t.name)
	}
	return strings.Join(names, "&")
}

// Parse builds a Value from its String form, e.g. "Loss&Metric".  An
// empty string gives nil (no category).
func Parse(s string) Value {
	if s == "" {
		return nil
	}
	return Get(strings.Split(s, "&")...)
}

// Match reports whether a candidate category satisfies a filter.
//
// A nil filter matches anything.  A nil candidate matches nothing (an
// untagged variable never satisfies a category filter).  Otherwise the
// match succeeds when the two sides share at least one member, so a
// filter that is a union matches by membership, not equality.
func Match(filter, candidate Value) bool {
	if filter == nil {
		return true
	}
	if candidate == nil {
		return false
	}
	want := make(map[*Tag]bool, 4)
	for _, t := range filter.Members() {
		want[t] = true
	}
	for _, t := range candidate.Members() {
		if want[t] {
			return true
		}
	}
	return false
}

// Reserved tags for call-boundary events.
var (
	Enter = New("enter")
	Exit  = New("exit")
)
