// Command trace-strip drops the static road description from every
// frame of a trace: lanes, lane boundaries, logical lanes, reference
// lines and environmental conditions. Useful for shrinking recordings
// down to the moving objects the comparison pipeline reads.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/scenario.report/internal/trace"
)

func main() {
	input := flag.String("in", "", "input trace path")
	output := flag.String("out", "", "output trace path")
	flag.Parse()

	if *input == "" || *output == "" {
		log.Fatal("-in and -out are required")
	}

	n, err := trace.Strip(*input, *output)
	if err != nil {
		log.Fatalf("strip: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames)", *output, n)
}
