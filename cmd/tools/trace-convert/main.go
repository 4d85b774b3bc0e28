// Command trace-convert copies a trace into another container layout:
// .osi length-prefixed streams, .mcap, or their compressed variants.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/scenario.report/internal/trace"
)

func main() {
	input := flag.String("in", "", "input trace path")
	output := flag.String("out", "", "output trace path; the extension picks the layout")
	topic := flag.String("topic", "", "channel topic to select from multi-channel input")
	flag.Parse()

	if *input == "" || *output == "" {
		log.Fatal("-in and -out are required")
	}

	n, err := trace.Convert(*input, *output, *topic)
	if err != nil {
		log.Fatalf("convert: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames)", *output, n)
}
