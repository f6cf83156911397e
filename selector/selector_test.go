package selector

import (
	"testing"

	"github.com/mila-iqia/ptera-sub000/tags"
)

// testFunc is a FuncInfo for tests.
type testFunc struct {
	name     string
	category tags.Value
	vars     map[string]tags.Value
}

func (f *testFunc) FuncName() string                { return f.name }
func (f *testFunc) FuncCategory() tags.Value        { return f.category }
func (f *testFunc) FuncVars() map[string]tags.Value { return f.vars }

func testEnv() MapEnv {
	return MapEnv{
		"f": &testFunc{
			name: "f",
			vars: map[string]tags.Value{
				"x": nil,
				"y": tags.New("Fruit"),
			},
		},
		"g": &testFunc{
			name: "g",
			vars: map[string]tags.Value{
				"z": nil,
			},
		},
		"positive": func(v interface{}) bool {
			f, is := v.(float64)
			return is && 0 < f
		},
	}
}

func TestSelect(t *testing.T) {
	c, err := Select("f(x) > g(!z)", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	if c.Element.Fn == nil {
		t.Fatal("f should have resolved")
	}
	if fn, is := c.Element.Fn.(FuncRef); !is || fn.FuncName() != "f" {
		t.Fatalf("got %#v", c.Element.Fn)
	}
	if c.Children[0].Element.Fn == nil {
		t.Fatal("g should have resolved")
	}
}

func TestSelectUnknownFunction(t *testing.T) {
	_, err := Select("nope(!x)", testEnv())
	re, is := err.(*ResolutionError)
	if !is {
		t.Fatalf("got %v", err)
	}
	if re.Name != "nope" || re.Kind != "function" {
		t.Fatalf("got %#v", re)
	}
}

func TestSelectPredicate(t *testing.T) {
	c, err := Select("f(!x~positive)", testEnv())
	if err != nil {
		t.Fatal(err)
	}
	ok, err := c.Captures[0].Value.MatchValue(float64(3))
	if err != nil || !ok {
		t.Fatalf("positive(3) gave %v, %v", ok, err)
	}
	if ok, _ = c.Captures[0].Value.MatchValue(float64(-3)); ok {
		t.Fatal("positive(-3) should not match")
	}

	if _, err = Select("f(!x~nope)", testEnv()); err == nil {
		t.Fatal("unknown predicate should not resolve")
	}
}

func TestSelectInvalid(t *testing.T) {
	if _, err := Select("f(!x, g(!z))", testEnv()); err == nil {
		t.Fatal("two focal variables should not select")
	}
}

func TestSelectNameEnv(t *testing.T) {
	// NameEnv leaves Fn nil so matching falls back to names.
	c, err := Select("anything(!whatever)", NameEnv{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Element.Fn != nil {
		t.Fatalf("got %#v", c.Element.Fn)
	}
}

func TestVerify(t *testing.T) {
	env := testEnv()

	c, err := Select("f(x) > g(!z)", env)
	if err != nil {
		t.Fatal(err)
	}
	if problems := Verify(c); problems != nil {
		t.Fatalf("got %v", problems)
	}

	// No focal variable.
	c, _ = Select("f(x)", env)
	if problems := Verify(c); len(problems) != 1 {
		t.Fatalf("got %v", problems)
	}

	// Unconstrained wildcard target.
	c, _ = Select("*(!x)", env)
	if problems := Verify(c); len(problems) != 1 {
		t.Fatalf("got %v", problems)
	}

	// Variable not declared by the resolved function.
	c, _ = Select("f(!nope)", env)
	if problems := Verify(c); len(problems) != 1 {
		t.Fatalf("got %v", problems)
	}

	// Category with no declared variable carrying it.
	c, _ = Select("f(!*:Vegetable)", env)
	if problems := Verify(c); len(problems) != 1 {
		t.Fatalf("got %v", problems)
	}
	c, _ = Select("f(!*:Fruit)", env)
	if problems := Verify(c); problems != nil {
		t.Fatalf("got %v", problems)
	}

	// Without declarations every capture is plausible.
	c, _ = Select("f(!whatever)", NameEnv{})
	if problems := Verify(c); problems != nil {
		t.Fatalf("got %v", problems)
	}
}

func TestRewrite(t *testing.T) {
	c := parseOrDie(t, "f(x) > g(!y)")
	required := map[string]bool{"x": true}

	got := Rewrite(c, required, "x")
	if got == nil {
		t.Fatal("rewrite should survive")
	}
	if want := "f(!!x)"; got.Encode() != want {
		t.Fatalf("got %q; want %q", got.Encode(), want)
	}

	got = Rewrite(c, map[string]bool{"y": true}, "y")
	if want := "f(g(!!y))"; got.Encode() != want {
		t.Fatalf("got %q; want %q", got.Encode(), want)
	}

	// A focus that does not survive kills the rewrite.
	if got = Rewrite(c, required, "y"); got != nil {
		t.Fatalf("got %q", got.Encode())
	}
}

func TestSpecialize(t *testing.T) {
	c := parseOrDie(t, "f($x)")
	got := Specialize(c, map[string]ElementSpec{
		"x": {Name: "alpha", Value: &EqualValue{Value: float64(3)}},
	})
	if want := "f(alpha=3 as x)"; got.Encode() != want {
		t.Fatalf("got %q; want %q", got.Encode(), want)
	}
	// The original is untouched.
	if want := "f($x)"; c.Encode() != want {
		t.Fatalf("original mutated to %q", c.Encode())
	}
}

func TestCheckCaptures(t *testing.T) {
	c := parseOrDie(t, "f(x=3, !y)")

	ok, err := c.CheckCaptures(map[string][]interface{}{
		"x": {3},
		"y": {"anything"},
	})
	if err != nil || !ok {
		t.Fatalf("got %v, %v", ok, err)
	}

	// Ints, floats and int64s all compare equal to the literal.
	for _, v := range []interface{}{3, float64(3), int64(3)} {
		ok, _ = c.CheckCaptures(map[string][]interface{}{"x": {v}})
		if !ok {
			t.Fatalf("%#v should match x=3", v)
		}
	}

	if ok, _ = c.CheckCaptures(map[string][]interface{}{"x": {4}}); ok {
		t.Fatal("4 should not match x=3")
	}
	if ok, _ = c.CheckCaptures(map[string][]interface{}{"y": {1}}); ok {
		t.Fatal("a missing filtered capture should fail")
	}
}

func TestAllCaptures(t *testing.T) {
	c := parseOrDie(t, "f(x) > g(!y, $z)")
	got := c.AllCaptures()
	for _, name := range []string{"x", "y", "z"} {
		if !got[name] {
			t.Fatalf("missing %q in %v", name, got)
		}
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
}
