// Command trace-info prints a per-channel summary of a trace recording:
// frame counts, time window, average step, interface version and how
// many moving objects appear. With -graph it also renders the speed
// profile of every tracked object as a terminal chart.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/trace"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

func main() {
	tracePath := flag.String("trace", "", "trace file to inspect (.osi, .mcap or compressed variants)")
	channel := flag.String("channel", "", "restrict output to one channel topic")
	graph := flag.Bool("graph", false, "render per-object speed profiles")
	flag.Parse()

	if *tracePath == "" {
		log.Fatal("-trace is required")
	}

	info, err := trace.Summarize(*tracePath)
	if err != nil {
		log.Fatalf("Error summarizing trace: %v", err)
	}

	fmt.Printf("=== Trace: %s ===\n", info.Path)
	fmt.Printf("Format: %s   Size: %s\n", info.Format, humanSize(info.Size))

	shown := 0
	for _, ch := range info.Channels {
		if *channel != "" && ch.Topic != *channel {
			continue
		}
		shown++
		printChannel(ch)
	}
	if shown == 0 {
		if *channel != "" {
			log.Fatalf("no channel with topic %q (trace has %d channels)", *channel, len(info.Channels))
		}
		log.Fatal("trace has no channels")
	}

	if *graph {
		if err := printSpeedGraphs(*tracePath, *channel); err != nil {
			log.Fatalf("Error rendering graphs: %v", err)
		}
	}
}

func printChannel(ch trace.ChannelInfo) {
	name := ch.Topic
	if name == "" {
		name = "(single channel)"
	}
	fmt.Printf("\n--- Channel %s ---\n", name)
	fmt.Printf("Message type:   %s\n", ch.MessageType)
	if ch.OSIVersion != "" {
		fmt.Printf("OSI version:    %s\n", ch.OSIVersion)
	}
	fmt.Printf("Frames:         %d\n", ch.Frames)
	if ch.Frames > 0 {
		fmt.Printf("Window:         %.3fs .. %.3fs\n", ch.Start, ch.Stop)
	}
	if ch.AvgStep > 0 {
		fmt.Printf("Average step:   %.1fms (%.1f Hz)\n", ch.AvgStep*1000, 1/ch.AvgStep)
	}
	fmt.Printf("Moving objects: %d\n", ch.MovingObjects)
	if len(ch.Metadata) > 0 {
		keys := make([]string, 0, len(ch.Metadata))
		for k := range ch.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Metadata:")
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, ch.Metadata[k])
		}
	}
}

func printSpeedGraphs(path, topic string) error {
	r, err := trace.OpenChannel(path, topic)
	if err != nil {
		return err
	}
	defer r.Close()

	coll, err := trajectory.Collect(r, trajectory.CollectOptions{
		Offset:      trajectory.NormalizePolicy{Mode: trajectory.OffsetOff},
		SkipInvalid: true,
	})
	if err != nil {
		return err
	}
	for _, tr := range coll.Tracks {
		speeds := speedProfile(tr)
		if len(speeds) == 0 {
			continue
		}
		caption := fmt.Sprintf("object %d speed (m/s)", tr.ID)
		if tr.Host {
			caption = fmt.Sprintf("object %d speed (m/s, host)", tr.ID)
		}
		fmt.Printf("\n%s\n", report.Sparkline(speeds, caption))
	}
	return nil
}

// speedProfile derives per-step speeds from consecutive positions.
func speedProfile(tr *trajectory.ObjectTrack) []float64 {
	if len(tr.Samples) < 2 {
		return nil
	}
	out := make([]float64, 0, len(tr.Samples)-1)
	for i := 1; i < len(tr.Samples); i++ {
		a, b := tr.Samples[i-1], tr.Samples[i]
		dt := b.T - a.T
		if dt <= 0 {
			continue
		}
		out = append(out, geom.Distance(a.Position, b.Position)/dt)
	}
	return out
}

func humanSize(n int64) string {
	const kb = 1024
	switch {
	case n >= kb*kb:
		return fmt.Sprintf("%.1f MiB", float64(n)/(kb*kb))
	case n >= kb:
		return fmt.Sprintf("%.1f KiB", float64(n)/kb)
	}
	return fmt.Sprintf("%d B", n)
}
