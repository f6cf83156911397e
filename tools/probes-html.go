package tools

import (
	"fmt"
	"io"

	md "github.com/russross/blackfriday/v2"
)

// RenderProbesHTML writes an HTML fragment describing the probe set.
// Docs are rendered as Markdown.
func RenderProbesHTML(ps *ProbeSet, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if ps.Doc != "" {
		f(`<div class="probesDoc doc">%s</div>`, md.Run([]byte(ps.Doc)))
	}

	f(`<div class="probes"><table>`)
	for i, p := range ps.Probes {
		f(`<tr class="probe"><td><div class="probeNum">%d</div></td><td>`, i)
		f(`<code class="selector">%s</code>`, p.Selector)
		if p.Doc != "" {
			f(`<div class="probeDoc doc">%s</div>`, md.Run([]byte(p.Doc)))
		}
		mode := p.Mode
		if mode == "" {
			mode = "each"
		}
		f(`<div>mode: <span class="probeMode">%s</span></div>`, mode)
		if p.Store {
			f(`<div class="probeStore">stored</div>`)
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return nil
}

// RenderProbesPage writes a complete HTML page for the probe set.
func RenderProbesPage(ps *ProbeSet, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/probes.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, ps.Name)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, ps.Name)

	if err := RenderProbesHTML(ps, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderProbesPage reads a probe spec from a YAML file, checks
// that its selectors parse, and renders the page.
func ReadAndRenderProbesPage(filename string, cssFiles []string, out io.Writer) error {
	ps, err := ReadProbes(filename)
	if err != nil {
		return err
	}
	if _, err = ps.Compile(nil); err != nil {
		return err
	}
	return RenderProbesPage(ps, out, cssFiles)
}
