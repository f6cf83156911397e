package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/mila-iqia/ptera-sub000/selector"
)

type dotElement struct {
	Name     string `yaml:"name,omitempty"`
	Capture  string `yaml:"capture,omitempty"`
	Category string `yaml:"category,omitempty"`
	Focus    int    `yaml:"focus,omitempty"`
	Deep     bool   `yaml:"deep,omitempty"`
}

// Dot makes a Graphviz dot file for the given pattern tree.  Calls are
// boxes, captures are notes, and the focal capture is red.
func Dot(pattern *selector.Call, w io.WriteCloser, title string) error {
	fmt.Fprintf(w, "digraph G {\n")
	if title != "" {
		fmt.Fprintf(w, "  label=\"%s\"\n", escape(title))
	}
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	n := 0
	gen := func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}

	var process func(c *selector.Call) (string, error)
	process = func(c *selector.Call) (string, error) {
		id := gen()
		label := c.Element.Encode()
		fillcolor := "#2d93ad"
		if !c.Immediate {
			fillcolor = "#99ddc8"
		}
		fmt.Fprintf(w, "  %s [shape=\"record\", style=\"rounded,filled\", fillcolor=\"%s\", label=\"%s\" ]\n",
			id, fillcolor, escape(escbraces(label)))

		for _, el := range c.Captures {
			elID := gen()
			detail := dotElement{
				Name:    el.Name,
				Capture: el.Capture,
				Focus:   el.Focus,
				Deep:    el.Deep,
			}
			if el.Category != nil {
				detail.Category = el.Category.String()
			}
			bs, err := yaml.Marshal(&detail)
			if err != nil {
				return "", err
			}
			elLabel := strings.Replace(string(bs), "\n", `\l`, -1)
			fillcolor := "#52aa5e"
			if el.Focus > 0 {
				fillcolor = "#f98b8b"
			}
			fmt.Fprintf(w, "  %s [shape=\"note\", style=\"filled\", fillcolor=\"%s\", label=\"%s\" ]\n",
				elID, fillcolor, escape(escbraces(elLabel)))
			style := "solid"
			if el.Deep {
				style = "dashed"
			}
			fmt.Fprintf(w, "  %s -> %s [ style=\"%s\" ]\n", id, elID, style)
		}

		for _, child := range c.Children {
			childID, err := process(child)
			if err != nil {
				return "", err
			}
			style := "solid"
			elabel := ">"
			if !child.Immediate {
				style = "dashed"
				elabel = ">>"
			}
			fmt.Fprintf(w, "  %s -> %s [ style=\"%s\" label=\"%s\" ]\n", id, childID, style, elabel)
		}

		return id, nil
	}

	if _, err := process(pattern); err != nil {
		return err
	}

	fmt.Fprintf(w, "}\n")
	return w.Close()
}

// PNG generates a PNG image based on output from Dot.
//
// This function will write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(pattern *selector.Call, basename, title string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(pattern, dotfile, title); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func escape(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}

func escbraces(s string) string {
	s = strings.Replace(s, "{", "\\{", -1)
	s = strings.Replace(s, "}", "\\}", -1)
	return s
}
