package tools

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/overlay"
	"github.com/mila-iqia/ptera-sub000/tags"
)

var probesYAML = `name: training
doc: |
  Watch the *training* loop.
probes:
  - selector: "f(n, !a)"
    doc: Square per step.
    mode: total
    store: true
  - selector: "f > a"
`

func writeProbes(t *testing.T, src string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "probes.yaml")
	if err := ioutil.WriteFile(filename, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestReadProbes(t *testing.T) {
	ps, err := ReadProbes(writeProbes(t, probesYAML))
	if err != nil {
		t.Fatal(err)
	}
	if ps.Name != "training" {
		t.Fatalf("got %q", ps.Name)
	}
	if len(ps.Probes) != 2 {
		t.Fatalf("got %d probes", len(ps.Probes))
	}
	if !ps.Probes[0].Store || ps.Probes[0].Mode != "total" {
		t.Fatalf("got %#v", ps.Probes[0])
	}
}

func TestReadProbesBadMode(t *testing.T) {
	src := "probes:\n  - selector: \"f(!x)\"\n    mode: sometimes\n"
	if _, err := ReadProbes(writeProbes(t, src)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestReadProbesNoSelector(t *testing.T) {
	src := "probes:\n  - doc: no selector here\n"
	if _, err := ReadProbes(writeProbes(t, src)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestCompileAttach(t *testing.T) {
	ps, err := ReadProbes(writeProbes(t, probesYAML))
	if err != nil {
		t.Fatal(err)
	}
	compiled, err := ps.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}

	fired := make([]int, len(compiled))
	ol := overlay.New()
	for i, p := range compiled {
		i := i
		ol = p.Attach(ol, func(interpret.Captures) error {
			fired[i]++
			return nil
		})
	}

	fn := &overlay.Fn{Name: "f", Vars: map[string]tags.Value{"n": nil, "a": nil}}
	s := overlay.NewSession()
	err = ol.Do(s, func() error {
		s.Enter(fn)
		s.Interact("n", "", nil, 2, true)
		s.Interact("a", "", nil, 4, true)
		_, err := s.Exit(interpret.Absent)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	if fired[0] != 1 || fired[1] != 1 {
		t.Fatalf("fired %v", fired)
	}
}

func TestCompileBadSelector(t *testing.T) {
	ps := &ProbeSet{Probes: []*Probe{{Selector: "f("}}}
	if _, err := ps.Compile(nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRenderProbesPage(t *testing.T) {
	ps, err := ReadProbes(writeProbes(t, probesYAML))
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err = RenderProbesPage(ps, &b, nil); err != nil {
		t.Fatal(err)
	}
	page := b.String()
	for _, want := range []string{
		"<title>training</title>",
		"f(n, !a)",
		"<em>training</em>",
		"probeMode\">total<",
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page lacks %q:\n%s", want, page)
		}
	}
}
