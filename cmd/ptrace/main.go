// Package main is a command-line utility that matches probe selectors
// against a stream of trace events.
//
//	ptrace -s 'f(n, !a)' -file events.jsonl
//	ptrace -f probes.yaml -ws ws://localhost:8080/events
//	ptrace -s 'f > a' -parse
//
// Events arrive as JSON lines from stdin, a file, a WebSocket URL, or
// an MQTT topic; one JSON object is printed per match.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/interpreters/goja"
	"github.com/mila-iqia/ptera-sub000/overlay"
	"github.com/mila-iqia/ptera-sub000/selector"
	"github.com/mila-iqia/ptera-sub000/storage"
	"github.com/mila-iqia/ptera-sub000/tools"
	"github.com/mila-iqia/ptera-sub000/util"
)

func main() {
	var (
		probesFile = flag.String("f", "", "probe spec filename (YAML)")
		selectorS  = flag.String("s", "", "a single selector to probe")
		parseOnly  = flag.Bool("parse", false, "parse and verify -s, print its canonical form, and exit")
		dotFile    = flag.String("dot", "", "write a Graphviz rendering of -s to this file and exit")
		htmlOnly   = flag.Bool("html", false, "render the probe spec as an HTML page on stdout and exit")
		dbFile     = flag.String("db", "", "BoltDB filename for probes marked 'store'")
		inFile     = flag.String("file", "", "read events from this file instead of stdin")
		wsURL      = flag.String("ws", "", "read events from this WebSocket URL")
		broker     = flag.String("mq", "", "read events from this MQTT broker (e.g. tcp://localhost:1883)")
		topic      = flag.String("t", "ptrace", "MQTT subscription topic")
		verbose    = flag.Bool("v", false, "verbosity")
	)

	flag.Parse()

	util.Logging = *verbose

	env := goja.NewInterpreter().Env(selector.NameEnv{})

	if *parseOnly {
		if *selectorS == "" {
			log.Fatal("-parse needs -s")
		}
		c, err := selector.Select(*selectorS, env)
		if err != nil {
			log.Fatal(err)
		}
		for _, problem := range selector.Verify(c) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", problem)
		}
		fmt.Printf("%s\n", c.Encode())
		return
	}

	if *dotFile != "" {
		if *selectorS == "" {
			log.Fatal("-dot needs -s")
		}
		c, err := selector.Select(*selectorS, env)
		if err != nil {
			log.Fatal(err)
		}
		f, err := os.Create(*dotFile)
		if err != nil {
			log.Fatal(err)
		}
		if err = tools.Dot(c, f, *selectorS); err != nil {
			log.Fatal(err)
		}
		return
	}

	ps := &tools.ProbeSet{Name: "ptrace"}
	if *probesFile != "" {
		read, err := tools.ReadProbes(*probesFile)
		if err != nil {
			log.Fatal(err)
		}
		ps = read
	}
	if *selectorS != "" {
		ps.Probes = append(ps.Probes, &tools.Probe{Selector: *selectorS})
	}
	if len(ps.Probes) == 0 {
		log.Fatal("no probes; give -f or -s")
	}

	if *htmlOnly {
		if err := tools.RenderProbesPage(ps, os.Stdout, nil); err != nil {
			log.Fatal(err)
		}
		return
	}

	compiled, err := ps.Compile(env)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range compiled {
		for _, problem := range selector.Verify(p.Pattern) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", problem)
		}
	}

	var db *storage.Storage
	for _, p := range compiled {
		if p.Store && *dbFile != "" {
			if db, err = storage.NewStorage(*dbFile); err != nil {
				log.Fatal(err)
			}
			db.Debug = *verbose
			if err = db.Open(); err != nil {
				log.Fatal(err)
			}
			defer db.Close()
			break
		}
	}

	ol := overlay.New()
	for _, p := range compiled {
		p := p
		ol = p.Attach(ol, func(caps interpret.Captures) error {
			emit(p, caps)
			if p.Store && db != nil {
				return db.Log(p.Pattern, caps)
			}
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		lines <-chan []byte
		stop  func()
	)
	switch {
	case *wsURL != "":
		lines, stop, err = wsLines(ctx, *wsURL)
	case *broker != "":
		lines, stop, err = mqttLines(ctx, *broker, *topic)
	case *inFile != "":
		var f *os.File
		if f, err = os.Open(*inFile); err == nil {
			lines, stop = readerLines(ctx, f)
		}
	default:
		lines, stop = readerLines(ctx, os.Stdin)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer stop()

	r := NewReplayer()
	err = ol.Do(r.Session(), func() error {
		replay(ctx, r, lines)
		return r.Drain()
	})
	if err != nil {
		log.Fatal(err)
	}
}

// emit prints one match as a JSON line.
func emit(p *tools.CompiledProbe, caps interpret.Captures) {
	captures := make(map[string]interface{}, len(caps))
	for name, cap := range caps {
		captures[name] = map[string]interface{}{
			"names":  cap.Names,
			"values": cap.Values,
		}
	}
	fmt.Printf("%s\n", util.JS(map[string]interface{}{
		"probe":    p.Selector,
		"captures": captures,
	}))
}

// replay applies events from lines until the channel closes or the
// context is canceled.  A bad line is reported and skipped.
func replay(ctx context.Context, r *Replayer, lines <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				log.Printf("bad event %s: %s", line, err)
				continue
			}
			if err := r.Apply(&ev); err != nil {
				log.Printf("event %s: %s", line, err)
			}
		}
	}
}

// readerLines forwards lines from an io.Reader, closing the channel at
// EOF.
func readerLines(ctx context.Context, in io.Reader) (<-chan []byte, func()) {
	lines := make(chan []byte, 10)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := append([]byte{}, scanner.Bytes()...)
			select {
			case <-ctx.Done():
				return
			case lines <- line:
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("read error: %s", err)
		}
	}()
	return lines, func() {}
}
