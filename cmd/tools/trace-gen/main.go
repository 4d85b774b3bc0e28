// Command trace-gen writes synthetic trace recordings for tests and
// demos: straight lines, arcs, or crossing objects.
package main

import (
	"flag"
	"log"

	"github.com/banshee-data/scenario.report/internal/dataset"
)

func main() {
	output := flag.String("out", "synthetic.osi", "output trace path (.osi or .mcap)")
	shape := flag.String("shape", "line", "trajectory shape: line, arc, crossing")
	objects := flag.Int("objects", 1, "number of moving objects")
	frames := flag.Int("frames", 60, "number of frames")
	step := flag.Float64("step", 0.05, "seconds between frames")
	speed := flag.Float64("speed", 10, "object speed in m/s")
	flag.Parse()

	s, err := dataset.ParseShape(*shape)
	if err != nil {
		log.Fatal(err)
	}

	opts := dataset.GenerateOptions{
		Shape:   s,
		Objects: *objects,
		Frames:  *frames,
		Step:    *step,
		Speed:   *speed,
	}
	if err := dataset.Generate(*output, opts); err != nil {
		log.Fatalf("generate: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames of %d objects)", *output, *frames, *objects)
}
