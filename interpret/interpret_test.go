package interpret

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mila-iqia/ptera-sub000/selector"
	"github.com/mila-iqia/ptera-sub000/tags"
)

func mustParse(t *testing.T, text string) *selector.Call {
	t.Helper()
	c, err := selector.Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// capmapOf registers every direct capture of the pattern under its
// concrete name (generic elements go in as wildcards).
func capmapOf(c *selector.Call) map[*selector.Element][]string {
	m := make(map[*selector.Element][]string, len(c.Captures))
	for _, el := range c.Captures {
		if el.Wildcard() {
			m[el] = nil
		} else {
			m[el] = []string{el.Name}
		}
	}
	return m
}

func TestCapture(t *testing.T) {
	el := &selector.Element{Name: "x", Capture: "x"}
	cap := NewCapture(el)

	if _, err := cap.Value(); err == nil {
		t.Fatal("empty capture should have no value")
	}

	cap.Accum("x", 1)
	v, err := cap.Value()
	if err != nil || v != 1 {
		t.Fatalf("got %v, %v", v, err)
	}

	cap.Accum("x", 2)
	if _, err = cap.Value(); err == nil {
		t.Fatal("two values should be ambiguous")
	}
	var ambiguous *AmbiguousCaptureError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("got %v", err)
	}

	snap := cap.Snapshot()
	cap.Accum("x", 3)
	if len(snap.Values) != 2 {
		t.Fatalf("snapshot grew to %v", snap.Values)
	}
}

func TestCaptureGenericName(t *testing.T) {
	el := &selector.Element{Capture: "x"}
	cap := NewCapture(el)

	if _, err := cap.Name(); err == nil {
		t.Fatal("empty generic capture should have no name")
	}

	cap.Accum("alpha", 1)
	name, err := cap.Name()
	if err != nil || name != "alpha" {
		t.Fatalf("got %q, %v", name, err)
	}

	cap.Accum("beta", 2)
	if _, err = cap.Name(); err == nil {
		t.Fatal("two names should be ambiguous")
	}
}

func TestImmediate(t *testing.T) {
	c := mustParse(t, "f(x, !y)")

	var got []map[string]interface{}
	acc := NewImmediate(c, Events{
		Trigger: func(caps Captures) error {
			x, _ := caps.Value("x")
			y, _ := caps.Value("y")
			got = append(got, map[string]interface{}{"x": x, "y": y})
			return nil
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	for _, ev := range []struct {
		name  string
		value interface{}
	}{
		{"x", 1}, {"y", 2}, {"y", 3}, {"x", 4}, {"y", 5},
	} {
		if _, err := fr.Interact(ev.name, "", nil, ev.value, true); err != nil {
			t.Fatal(err)
		}
	}

	want := []map[string]interface{}{
		{"x": 1, "y": 2},
		{"x": 1, "y": 3},
		{"x": 4, "y": 5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestImmediateValueFilter(t *testing.T) {
	c := mustParse(t, "f(x=3, !y)")

	var got []interface{}
	acc := NewImmediate(c, Events{
		Trigger: func(caps Captures) error {
			y, _ := caps.Value("y")
			got = append(got, y)
			return nil
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	fr.Interact("x", "", nil, 4, true)
	fr.Interact("y", "", nil, 10, true)
	fr.Interact("x", "", nil, 3, true)
	fr.Interact("y", "", nil, 20, true)

	want := []interface{}{20}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestIntercept(t *testing.T) {
	c := mustParse(t, "f(!y)")

	acc := NewImmediate(c, Events{
		Intercept: func(caps Captures) (interface{}, error) {
			y, err := caps.Value("y")
			if err != nil {
				return nil, err
			}
			if y == 5 {
				return 99, nil
			}
			return Absent, nil
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	v, err := fr.Interact("y", "", nil, 5, true)
	if err != nil || v != 99 {
		t.Fatalf("got %v, %v", v, err)
	}

	// The intercept declines: the tentative value stands.
	v, err = fr.Interact("y", "", nil, 7, true)
	if err != nil || v != 7 {
		t.Fatalf("got %v, %v", v, err)
	}

	// Overriding a non-overridable variable is an error.
	_, err = fr.Interact("y", "", nil, 5, false)
	var oe *OverrideError
	if !errors.As(err, &oe) {
		t.Fatalf("got %v", err)
	}
}

func TestInteractMissingValue(t *testing.T) {
	fr := NewFrame("f")
	_, err := fr.Interact("y", "", nil, Absent, true)
	var me *MissingValueError
	if !errors.As(err, &me) {
		t.Fatalf("got %v", err)
	}
	if me.Name != "y" || me.Fn != "f" {
		t.Fatalf("got %#v", me)
	}
}

func TestInteractKey(t *testing.T) {
	c := mustParse(t, "f(!$v)")

	var names []string
	acc := NewImmediate(c, Events{
		Trigger: func(caps Captures) error {
			name, err := caps["v"].Name()
			if err != nil {
				return err
			}
			names = append(names, name)
			return nil
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	fr.Interact("x", "0", nil, 1, true)
	fr.Interact("x", "", nil, 2, true)

	want := []string{"x.0", "x"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v; want %v", names, want)
	}
}

func TestCategoryListener(t *testing.T) {
	c := mustParse(t, "f(!$fruit:Fruit)")

	var got []interface{}
	acc := NewImmediate(c, Events{
		Trigger: func(caps Captures) error {
			v, err := caps.Value("fruit")
			if err != nil {
				return err
			}
			got = append(got, v)
			return nil
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	fr.Interact("a", "", tags.New("Fruit"), "apple", true)
	fr.Interact("b", "", tags.New("Vegetable"), "carrot", true)
	fr.Interact("c", "", nil, "untagged", true)
	fr.Interact("d", "", tags.Get("Fruit", "Red"), "cherry", true)

	want := []interface{}{"apple", "cherry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestTotal(t *testing.T) {
	c := mustParse(t, "f(x, !y)")

	var got []map[string][]interface{}
	template := NewTotal(c, Events{
		Close: func(caps Captures) error {
			got = append(got, map[string][]interface{}{
				"x": caps.Values("x"),
				"y": caps.Values("y"),
			})
			return nil
		},
	})

	acc := template.Fork()
	fr := NewFrame("f")
	fr.Register(acc, capmapOf(c), true)

	fr.Interact("x", "", nil, 1, true)
	fr.Interact("y", "", nil, 2, true)
	fr.Interact("y", "", nil, 3, true)
	fr.Interact("x", "", nil, 4, true)

	if got != nil {
		t.Fatalf("closed early: %v", got)
	}
	if err := fr.Exit(); err != nil {
		t.Fatal(err)
	}

	// One event per occurrence of the focus, each sharing every
	// value of x over the whole call.
	want := []map[string][]interface{}{
		{"x": {1, 4}, "y": {2}},
		{"x": {1, 4}, "y": {3}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestTotalIncomplete(t *testing.T) {
	c := mustParse(t, "f(x, !y)")

	fired := 0
	template := NewTotal(c, Events{
		Close: func(caps Captures) error {
			fired++
			return nil
		},
	})

	// The focus never fires: no event.
	fr := NewFrame("f")
	fr.Register(template.Fork(), capmapOf(c), true)
	fr.Interact("x", "", nil, 1, true)
	if err := fr.Exit(); err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestCallbackFailure(t *testing.T) {
	c := mustParse(t, "f(!y)")

	boom := errors.New("boom")
	calls := 0
	acc := NewImmediate(c, Events{
		Trigger: func(caps Captures) error {
			calls++
			return boom
		},
	})

	fr := NewFrame("f")
	fr.Register(acc.Fork(), capmapOf(c), false)

	if _, err := fr.Interact("y", "", nil, 1, true); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	// A failed accumulator stops firing.
	if _, err := fr.Interact("y", "", nil, 2, true); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("fired %d times", calls)
	}
}
