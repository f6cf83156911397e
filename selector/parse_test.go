package selector

import (
	"testing"
)

func parseOrDie(t *testing.T, text string) *Call {
	t.Helper()
	c, err := Parse(text)
	if err != nil {
		t.Fatalf("parsing %q: %v", text, err)
	}
	return c
}

func TestParseRoundTrip(t *testing.T) {
	// The canonical encoding should reparse to the same tree.
	for _, text := range []string{
		"f(!x)",
		"f(!!x)",
		"f(x, !y)",
		"f($x)",
		"f(x as foo)",
		"f(x=3)",
		"f(x=true)",
		"f(x='hello world')",
		"f(x~positive)",
		"f(x:Fruit)",
		"*:Loss(!x)",
		"f(x, g(!y))",
		"f >> g(!y)",
		"f(x) >> g(!y)",
	} {
		first := parseOrDie(t, text).Encode()
		second := parseOrDie(t, first).Encode()
		if first != second {
			t.Fatalf("%q encoded to %q, which reencoded to %q", text, first, second)
		}
	}
}

func TestParseSugar(t *testing.T) {
	// "a > b" is "a(!b)"; ">" is right-associative, so
	// "a > b > c" is "a(b(!c))".
	for _, pair := range [][2]string{
		{"a > b", "a(!b)"},
		{"a > b > c", "a(b(!c))"},
		{"f(x) > g(!y)", "f(x, g(!y))"},
		{"f > !g(y)", "f(g(y))"},
	} {
		got := parseOrDie(t, pair[0])
		want := parseOrDie(t, pair[1])
		if !got.Equal(want) {
			t.Fatalf("%q gave %q; want %q (as in %q)",
				pair[0], got.Encode(), want.Encode(), pair[1])
		}
	}
}

func TestParseImmediate(t *testing.T) {
	// The root watches at every depth; "(...)" and ">" children
	// are immediate; ">>" children are not.
	c := parseOrDie(t, "f(x) > g(!y)")
	if c.Immediate {
		t.Fatal("root should not be immediate")
	}
	if len(c.Children) != 1 || !c.Children[0].Immediate {
		t.Fatalf("child of > should be immediate in %q", c.Encode())
	}

	c = parseOrDie(t, "f >> g(!y)")
	if len(c.Children) != 1 || c.Children[0].Immediate {
		t.Fatalf("child of >> should not be immediate in %q", c.Encode())
	}

	// A ">>" element becomes a Deep capture.
	c = parseOrDie(t, "f >> x")
	if len(c.Captures) != 1 || !c.Captures[0].Deep {
		t.Fatalf("element after >> should be a deep capture in %q", c.Encode())
	}
}

func TestParseElements(t *testing.T) {
	c := parseOrDie(t, "f(!x:Fruit=3, y as z, $w)")

	if got := len(c.Captures); got != 3 {
		t.Fatalf("got %d captures", got)
	}

	x := c.Captures[0]
	if x.Name != "x" || x.Focus != 1 {
		t.Fatalf("bad focal element: %#v", x)
	}
	if x.Category == nil || x.Category.String() != "Fruit" {
		t.Fatalf("bad category: %#v", x.Category)
	}
	if ok, _ := x.Value.MatchValue(3); !ok {
		t.Fatal("x=3 should match 3")
	}
	if ok, _ := x.Value.MatchValue(4); ok {
		t.Fatal("x=3 should not match 4")
	}

	y := c.Captures[1]
	if y.Name != "y" || y.Capture != "z" {
		t.Fatalf("bad renamed element: %#v", y)
	}

	w := c.Captures[2]
	if !w.Wildcard() || w.Capture != "w" {
		t.Fatalf("bad generic element: %#v", w)
	}
}

func TestParseBareElement(t *testing.T) {
	// A bare variable is the capture of a wildcard call: "x" watches
	// writes of x in any function, at any depth.
	got := parseOrDie(t, "x")
	want := parseOrDie(t, "*(!x)")
	if !got.Equal(want) {
		t.Fatalf("got %q; want %q", got.Encode(), want.Encode())
	}
	if got.Element.Name != "" || got.Immediate {
		t.Fatalf("bad root: %#v", got)
	}
	if len(got.Captures) != 1 || got.Captures[0].Focus != 1 {
		t.Fatalf("bad captures: %#v", got.Captures)
	}
}

func TestParseFocusAbsorbed(t *testing.T) {
	// "!" in front of a call is absorbed: the focus is inside.
	c := parseOrDie(t, "f(!g(!y))")
	focus := c.Focus()
	if focus == nil || focus.Capture != "y" {
		t.Fatalf("got focus %#v", focus)
	}
	if n := c.focalCount(); n != 1 {
		t.Fatalf("got %d focal variables", n)
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"f(",
		"f)",
		"a b",
		"f(&x)",
		"f(()",
		"f(=3)",
		"'f'(x)",
	} {
		switch _, err := Parse(text); err.(type) {
		case *SyntaxError:
		case nil:
			t.Fatalf("%q should not parse", text)
		default:
			t.Fatalf("%q gave a non-syntax error: %v", text, err)
		}
	}
}

func TestParseValid(t *testing.T) {
	c := parseOrDie(t, "f(!x, g(!y))")
	if err := c.Valid(); err == nil {
		t.Fatal("two focal variables should be invalid")
	}

	c = parseOrDie(t, "f(*)")
	if err := c.Valid(); err == nil {
		t.Fatal("an uncaptured non-focal wildcard should be invalid")
	}

	c = parseOrDie(t, "f(!*, $x)")
	if err := c.Valid(); err != nil {
		t.Fatalf("focal and captured wildcards should be fine: %v", err)
	}
}

func TestIntern(t *testing.T) {
	a := parseOrDie(t, "f(x) > g(!y)").Intern()
	b := parseOrDie(t, "f(x, g(!y))").Intern()
	if a != b {
		t.Fatal("equal patterns should intern to the same pointer")
	}
}
