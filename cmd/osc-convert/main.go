// Command osc-convert turns an OSI trace into an OpenSCENARIO document:
// one vehicle entity and one follow-trajectory behavior per moving
// object. The trace may be a local file, a builtin:<name> fixture, a
// zip archive member or an http(s) URL.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/scenario"
	"github.com/banshee-data/scenario.report/internal/trace"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Config holds configuration for one conversion. Flags override the
// -config file, which overrides built-in defaults.
type Config struct {
	Trace       string
	Output      string
	Channel     string
	Profile     string
	RoadNetwork string
	Origin      string
	NoOffset    bool
	Start       float64
	End         float64
	SkipInvalid bool
	Author      string
	Description string
	ConfigFile  string
	CacheDir    string
}

func main() {
	cfg := parseFlags()

	if cfg.Trace == "" {
		log.Fatal("-trace is required")
	}
	if cfg.Output == "" {
		log.Fatal("-out is required")
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Trace, "trace", "", "trace source: file path, builtin:<name>, zip member or http(s) URL")
	flag.StringVar(&cfg.Output, "out", "scenario.xosc", "output scenario path")
	flag.StringVar(&cfg.Channel, "channel", "", "channel topic for multi-channel traces")
	flag.StringVar(&cfg.Profile, "profile", "", "engine profile: none, init-actions, road-network-ego")
	flag.StringVar(&cfg.RoadNetwork, "road-network", "", "OpenDRIVE file referenced by the document")
	flag.StringVar(&cfg.Origin, "origin", "", "fixed rebase origin as \"x,y,z\"")
	flag.BoolVar(&cfg.NoOffset, "no-offset", false, "keep source coordinates untouched")
	flag.Float64Var(&cfg.Start, "start", 0, "crop window start in seconds")
	flag.Float64Var(&cfg.End, "end", -1, "crop window end in seconds (less than start: unbounded)")
	flag.BoolVar(&cfg.SkipInvalid, "skip-invalid", false, "drop objects that violate track invariants instead of failing")
	flag.StringVar(&cfg.Author, "author", "", "file header author")
	flag.StringVar(&cfg.Description, "description", "", "file header description")
	flag.StringVar(&cfg.ConfigFile, "config", "", "validation config JSON supplying defaults")
	flag.StringVar(&cfg.CacheDir, "cache", defaultCacheDir(), "cache directory for fetched sources")

	flag.Parse()

	return cfg
}

func run(cfg Config) error {
	vcfg := config.EmptyValidationConfig()
	if cfg.ConfigFile != "" {
		loaded, err := config.LoadValidationConfig(cfg.ConfigFile)
		if err != nil {
			return err
		}
		vcfg = loaded
	}

	opts := vcfg.BuildOptions()
	if cfg.Profile != "" {
		p, err := scenario.ParseProfile(cfg.Profile)
		if err != nil {
			return err
		}
		opts.Profile = p
	}
	if cfg.RoadNetwork != "" {
		opts.RoadNetwork = cfg.RoadNetwork
	}
	if cfg.Author != "" {
		opts.Author = cfg.Author
	}
	if cfg.Description != "" {
		opts.Description = cfg.Description
	}

	policy, err := offsetPolicy(cfg, vcfg)
	if err != nil {
		return err
	}
	skipInvalid := cfg.SkipInvalid || vcfg.GetSkipInvalidObjects()

	tracePath, err := dataset.Resolve(cfg.Trace, cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("resolve trace %s: %w", cfg.Trace, err)
	}

	// Probe once: validates that the trace opens and the channel
	// exists, and pins the message type scratch copies lose with their
	// conventional filenames.
	probe, err := trace.OpenChannel(tracePath, cfg.Channel)
	if err != nil {
		return err
	}
	srcType := probe.MessageType()
	probe.Close()

	refPath := tracePath
	cropping := cfg.Start > 0 || cfg.End >= cfg.Start
	if cfg.Channel != "" || cropping {
		scratch, err := os.MkdirTemp("", "osc-convert-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(scratch)

		if cfg.Channel != "" {
			sel := filepath.Join(scratch, "channel.osi")
			if _, err := trace.Convert(refPath, sel, cfg.Channel); err != nil {
				return fmt.Errorf("select channel %s: %w", cfg.Channel, err)
			}
			refPath = sel
		}
		if cropping {
			cropped := filepath.Join(scratch, "cropped.osi")
			n, err := trace.Crop(refPath, cropped, cfg.Start, cfg.End)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no frames inside the window starting at %gs", cfg.Start)
			}
			refPath = cropped
		}
	}

	r, err := trace.Open(refPath)
	if err != nil {
		return err
	}
	defer r.Close()
	if r.MessageType() == trace.MessageTypeUnknown {
		r.SetMessageType(srcType)
	}
	coll, err := trajectory.Collect(r, trajectory.CollectOptions{Offset: policy, SkipInvalid: skipInvalid})
	if err != nil {
		return err
	}

	doc, err := scenario.Build(coll.Tracks, opts)
	if err != nil {
		return err
	}
	if err := scenario.WriteFile(doc, cfg.Output); err != nil {
		return err
	}

	printSummary(cfg, opts.Profile, coll)
	return nil
}

func offsetPolicy(cfg Config, vcfg *config.ValidationConfig) (trajectory.NormalizePolicy, error) {
	if cfg.NoOffset && cfg.Origin != "" {
		return trajectory.NormalizePolicy{}, fmt.Errorf("-no-offset and -origin are mutually exclusive")
	}
	if cfg.NoOffset {
		return trajectory.NormalizePolicy{Mode: trajectory.OffsetOff}, nil
	}
	if cfg.Origin != "" {
		origin, err := parseOrigin(cfg.Origin)
		if err != nil {
			return trajectory.NormalizePolicy{}, err
		}
		return trajectory.NormalizePolicy{Mode: trajectory.OffsetOrigin, Origin: origin}, nil
	}
	return vcfg.GetOffsetPolicy(), nil
}

func parseOrigin(s string) (geom.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("origin %q: want \"x,y,z\"", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("origin %q: %w", s, err)
		}
		v[i] = f
	}
	return geom.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func printSummary(cfg Config, profile scenario.Profile, coll *trajectory.Collection) {
	fmt.Println("\n=== Conversion Summary ===")
	fmt.Printf("Trace: %s\n", cfg.Trace)
	fmt.Printf("Profile: %s\n", profile)
	if coll.Shifted {
		o := coll.Offset
		fmt.Printf("Coordinate offset: (%.3f, %.3f, %.3f)\n", o.X, o.Y, o.Z)
	} else {
		fmt.Println("Coordinate offset: none")
	}

	fmt.Printf("\n--- Entities (%d) ---\n", len(coll.Tracks))
	for _, tr := range coll.Tracks {
		host := ""
		if tr.Host {
			host = " (host)"
		}
		fmt.Printf("object %d%s: %d samples over %.2fs\n", tr.ID, host, len(tr.Samples), tr.Duration())
	}
	if len(coll.Skipped) > 0 {
		fmt.Printf("\n--- Skipped Objects (%d) ---\n", len(coll.Skipped))
		for _, verr := range coll.Skipped {
			fmt.Printf("%v\n", verr)
		}
	}

	fmt.Printf("\n✓ Created: %s\n", cfg.Output)
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "scenario-report")
}
