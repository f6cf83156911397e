// Package tools has utilities for working with probe specs: reading
// them from YAML, rendering them as HTML, and drawing pattern trees
// with Graphviz.
package tools

import (
	"fmt"
	"io/ioutil"

	"github.com/jsccast/yaml"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/overlay"
	"github.com/mila-iqia/ptera-sub000/selector"
)

// Probe is one instrumentation point in a probe spec.
type Probe struct {
	// Selector is the pattern text.
	Selector string `json:"selector" yaml:"selector"`

	// Doc is optional Markdown documentation.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Mode is "each" (fire on every focal occurrence, the default)
	// or "total" (fire at call exit with everything accumulated).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Store requests persisting fired captures.
	Store bool `json:"store,omitempty" yaml:"store,omitempty"`
}

// ProbeSet is a named collection of probes, typically read from one
// YAML file.
type ProbeSet struct {
	Name   string   `json:"name" yaml:"name"`
	Doc    string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Probes []*Probe `json:"probes" yaml:"probes"`
}

// ReadProbes reads a probe set from a YAML file.
func ReadProbes(filename string) (*ProbeSet, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var ps ProbeSet
	if err = yaml.Unmarshal(bs, &ps); err != nil {
		return nil, err
	}
	for i, p := range ps.Probes {
		if p == nil || p.Selector == "" {
			return nil, fmt.Errorf("probe %d in %s has no selector", i, filename)
		}
		switch p.Mode {
		case "", "each", "total":
		default:
			return nil, fmt.Errorf("probe %d in %s has unknown mode %q", i, filename, p.Mode)
		}
	}
	return &ps, nil
}

// CompiledProbe pairs a probe with its resolved pattern.
type CompiledProbe struct {
	*Probe
	Pattern *selector.Call
}

// Compile resolves every probe's selector against env (NameEnv when
// nil).
func (ps *ProbeSet) Compile(env selector.Env) ([]*CompiledProbe, error) {
	if env == nil {
		env = selector.NameEnv{}
	}
	acc := make([]*CompiledProbe, 0, len(ps.Probes))
	for _, p := range ps.Probes {
		c, err := selector.Select(p.Selector, env)
		if err != nil {
			return nil, fmt.Errorf("probe %q: %w", p.Selector, err)
		}
		acc = append(acc, &CompiledProbe{Probe: p, Pattern: c})
	}
	return acc, nil
}

// Attach adds the probe to the overlay with the given callback,
// honoring its mode.
func (p *CompiledProbe) Attach(ol *overlay.Overlay, fire interpret.Handler) *overlay.Overlay {
	if p.Mode == "total" {
		return ol.OnTotal(p.Pattern, fire)
	}
	return ol.OnEach(p.Pattern, fire)
}
