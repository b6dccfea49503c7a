// Command replay feeds saved getstationsdata responses through the diff
// engine, in order, and prints the resulting change events as JSON lines.
// State carries over from one file to the next, so a sequence of captures
// replays a run of polling cycles.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -aliases "70:ee:50:00:00:01=living-room" \
//	  -now 2024-04-26T10:00:00Z \
//	  -out events.jsonl \
//	  internal/adapter/netatmo/testdata/getstationsdata.json
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/netatmo-bridge/internal/adapter/netatmo"
	"github.com/couchcryptid/netatmo-bridge/internal/config"
	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	aliasSpec := fs.String("aliases", "", "inline raw=friendly pairs or a YAML/JSON alias file")
	nowFlag := fs.String("now", "", "RFC 3339 time used to stamp battery events (default: current time)")
	step := fs.Duration("step", 10*time.Minute, "clock advance between input files")
	outPath := fs.String("out", "", "write events to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("at least one getstationsdata JSON file is required")
	}

	aliases, err := config.LoadAliases(*aliasSpec)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	if *nowFlag != "" {
		start, err = time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
	}
	clock := clockwork.NewFakeClockAt(start)
	engine := domain.NewEngine(domain.NewStateTable(), clock)

	out := stdout
	if *outPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
			return err
		}
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)

	total := 0
	for i, path := range fs.Args() {
		if i > 0 {
			clock.Advance(*step)
		}
		n, err := replayFile(engine, aliases, path, w)
		if err != nil {
			return fmt.Errorf("replay %s: %w", path, err)
		}
		log.Printf("%s: %d events", path, n)
		total += n
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	log.Printf("total: %d events from %d snapshots, %d devices tracked", total, fs.NArg(), engine.State().Len())
	return nil
}

func replayFile(engine *domain.Engine, aliases domain.Aliases, path string, w io.Writer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	snapshot, err := netatmo.DecodeStationsData(f)
	if err != nil {
		return 0, err
	}

	events, err := engine.Diff(snapshot, aliases)
	if err != nil {
		return 0, err
	}

	for _, ev := range events {
		out, err := domain.SerializeChangeEvent(ev)
		if err != nil {
			return 0, err
		}
		if _, err := fmt.Fprintf(w, "%s\n", out.Value); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}
