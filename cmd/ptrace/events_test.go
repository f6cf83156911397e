package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/selector"
)

var eventStream = `
{"op":"enter","fn":"f","vars":{"n":"","a":""}}
{"op":"set","var":"n","value":3}
{"op":"set","var":"a","value":9}
{"op":"enter","fn":"g","vars":{"y":"Loss"}}
{"op":"set","var":"y","category":"Loss","value":0.5}
{"op":"exit"}
{"op":"exit","value":9}
`

func applyAll(t *testing.T, r *Replayer, stream string) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(stream))
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			t.Fatal(err)
		}
		if err := r.Apply(&ev); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReplay(t *testing.T) {
	c, err := selector.Parse("f(n) >> $v:Loss")
	if err != nil {
		t.Fatal(err)
	}

	var got [][2]interface{}
	r := NewReplayer(interpret.NewImmediate(c, interpret.Events{
		Trigger: func(caps interpret.Captures) error {
			n, err := caps.Value("n")
			if err != nil {
				return err
			}
			v, err := caps.Value("v")
			if err != nil {
				return err
			}
			got = append(got, [2]interface{}{n, v})
			return nil
		},
	}))

	applyAll(t, r, eventStream)

	want := [][2]interface{}{{float64(3), 0.5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
	if r.Session().Depth() != 0 {
		t.Fatalf("depth %d after a balanced stream", r.Session().Depth())
	}
}

func TestReplayReturnValue(t *testing.T) {
	c, err := selector.Parse("f > #value")
	if err != nil {
		t.Fatal(err)
	}

	var got []interface{}
	r := NewReplayer(interpret.NewImmediate(c, interpret.Events{
		Trigger: func(caps interpret.Captures) error {
			v, err := caps.Value("#value")
			if err != nil {
				return err
			}
			got = append(got, v)
			return nil
		},
	}))

	applyAll(t, r, eventStream)

	want := []interface{}{float64(9)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestReplayDrain(t *testing.T) {
	c, err := selector.Parse("f(n, !a)")
	if err != nil {
		t.Fatal(err)
	}

	fired := 0
	r := NewReplayer(interpret.NewTotal(c, interpret.Events{
		Close: func(interpret.Captures) error {
			fired++
			return nil
		},
	}))

	// A truncated stream: the exit never arrives.
	applyAll(t, r, `
{"op":"enter","fn":"f","vars":{"n":"","a":""}}
{"op":"set","var":"n","value":3}
{"op":"set","var":"a","value":9}
`)
	if r.Session().Depth() != 1 {
		t.Fatalf("depth %d", r.Session().Depth())
	}
	if err := r.Drain(); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestReplayBadEvents(t *testing.T) {
	r := NewReplayer()
	for _, ev := range []*Event{
		{Op: "launch"},
		{Op: "enter"},
		{Op: "set"},
	} {
		if err := r.Apply(ev); err == nil {
			t.Fatalf("%#v should be rejected", ev)
		}
	}
}

