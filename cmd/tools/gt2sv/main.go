// Command gt2sv wraps a ground truth trace as a sensor view trace, the
// container most simulators emit. Moving objects are renumbered
// sequentially and the selected host vehicle is marked.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/scenario.report/internal/trace"
)

func main() {
	input := flag.String("in", "", "input ground truth trace")
	output := flag.String("out", "", "output sensor view trace")
	host := flag.Uint64("host", 1, "moving object ID to mark as host vehicle")
	flag.Parse()

	if *input == "" || *output == "" {
		log.Fatal("-in and -out are required")
	}

	n, err := trace.WrapGroundTruth(*input, *output, *host)
	if err != nil {
		log.Fatalf("wrap: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames)", *output, n)
}
