// Replays a recorded match event log and prints the ownership timeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	persistlog "kothmode/internal/persistence/log"
)

func main() {
	var (
		path     = flag.String("events", "", "path to events-<match>.jsonl.zst")
		tickRate = flag.Int("tick_rate", 30, "simulation tick rate for timestamps")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)
	if *path == "" {
		logger.Fatalf("-events is required")
	}

	events, err := persistlog.ReadEvents(*path)
	if err != nil {
		logger.Fatalf("read events: %v", err)
	}

	for _, e := range events {
		secs := float64(e.Tick) / float64(*tickRate)
		fmt.Printf("%8d  %7.1fs  alliance %-3d %s\n", e.Tick, secs, e.AllianceID, e.Kind)
	}
	fmt.Printf("%d events\n", len(events))
}
