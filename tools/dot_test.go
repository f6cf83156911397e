package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mila-iqia/ptera-sub000/selector"
)

func TestDot(t *testing.T) {
	c, err := selector.Parse("f(x) > g(!y) >> h(z)")
	if err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "pattern.dot")
	f, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	if err = Dot(c, f, "a pattern"); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	src := string(bs)
	for _, want := range []string{
		"digraph G {",
		`label="a pattern"`,
		`label=">>"`,
		"#f98b8b", // the focal capture
	} {
		if !strings.Contains(src, want) {
			t.Fatalf("dot lacks %q:\n%s", want, src)
		}
	}
}
