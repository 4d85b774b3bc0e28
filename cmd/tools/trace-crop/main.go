// Command trace-crop copies the frames of a trace that fall inside a
// time window.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/scenario.report/internal/trace"
)

func main() {
	input := flag.String("in", "", "input trace path")
	output := flag.String("out", "", "output trace path")
	start := flag.Float64("start", 0, "window start in seconds")
	end := flag.Float64("end", -1, "window end in seconds (less than start: unbounded)")
	flag.Parse()

	if *input == "" || *output == "" {
		log.Fatal("-in and -out are required")
	}

	n, err := trace.Crop(*input, *output, *start, *end)
	if err != nil {
		log.Fatalf("crop: %v", err)
	}
	if n == 0 {
		log.Fatalf("no frames inside the window starting at %gs", *start)
	}
	log.Printf("✓ Created: %s (%d frames)", *output, n)
}
