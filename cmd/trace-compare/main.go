// Command trace-compare checks a candidate trace against a reference:
// tracks are paired, their time bases verified sample for sample and
// each pair reduced to deviation metrics with a verdict. Exits with
// status 1 when any pair exceeds its tolerances.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/runstore"
	"github.com/banshee-data/scenario.report/internal/trace"
	"github.com/banshee-data/scenario.report/internal/trajectory"
	"github.com/banshee-data/scenario.report/internal/units"
)

// Config holds configuration for one comparison.
type Config struct {
	Reference string
	Candidate string

	PosTol   float64
	AngTol   float64
	CurveTol float64
	TimeTol  float64

	PairBy      string
	SkipInvalid bool

	OutputJSON string
	PlotPNG    string
	PlotDir    string
	HTMLChart  string
	SpeedUnits string

	DBPath string
	Record bool
	Name   string

	ConfigFile string
	CacheDir   string
}

// ComparisonExport is the JSON document written by -json. It matches
// the /api/compare response shape, so downstream tooling can consume
// either.
type ComparisonExport struct {
	Run     *runstore.Run          `json:"run"`
	Details []*runstore.PairDetail `json:"details"`
	Saved   bool                   `json:"saved"`
}

func main() {
	cfg, set := parseFlags()

	if cfg.Reference == "" || cfg.Candidate == "" {
		log.Fatal("-ref and -cand are required")
	}
	if cfg.Record && cfg.DBPath == "" {
		log.Fatal("-record requires -db")
	}
	if !units.IsValid(cfg.SpeedUnits) {
		log.Fatalf("invalid units %q. Valid options: %s", cfg.SpeedUnits, units.GetValidUnitsString())
	}
	if cfg.ConfigFile != "" {
		vcfg, err := config.LoadValidationConfig(cfg.ConfigFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		applyConfig(&cfg, vcfg, set)
	}

	pairs, results, err := runComparison(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("%s vs %s", filepath.Base(cfg.Reference), filepath.Base(cfg.Candidate))
	}
	run := &runstore.Run{
		Name:          name,
		ReferencePath: cfg.Reference,
		CandidatePath: cfg.Candidate,
	}
	details := runstore.Summarize(run, results)

	printResults(cfg, run, details, results)
	writeArtifacts(cfg, pairs, results)

	if cfg.Record {
		if err := recordRun(cfg.DBPath, run, details); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
		log.Printf("Run recorded: %s", run.ID)
	}

	if cfg.OutputJSON != "" {
		if err := exportJSON(&ComparisonExport{Run: run, Details: details, Saved: cfg.Record}, cfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", cfg.OutputJSON)
		}
	}

	if !run.Pass {
		os.Exit(1)
	}
}

func parseFlags() (Config, map[string]bool) {
	cfg := Config{}

	flag.StringVar(&cfg.Reference, "ref", "", "reference trace source: file path, builtin:<name>, zip member or http(s) URL")
	flag.StringVar(&cfg.Candidate, "cand", "", "candidate trace source")
	flag.Float64Var(&cfg.PosTol, "pos-tol", 0.1, "position tolerance in meters")
	flag.Float64Var(&cfg.AngTol, "ang-tol", 0.05, "yaw tolerance in radians")
	flag.Float64Var(&cfg.CurveTol, "curve-tol", 0, "whole-curve tolerance for area, curve length and MAE (0: off)")
	flag.Float64Var(&cfg.TimeTol, "time-tol", metrics.DefaultTimeTolerance, "timestamp match tolerance in seconds")
	flag.StringVar(&cfg.PairBy, "pair-by", "id", "track pairing mode: id or start")
	flag.BoolVar(&cfg.SkipInvalid, "skip-invalid", false, "drop objects that violate track invariants instead of failing")
	flag.StringVar(&cfg.OutputJSON, "json", "", "output JSON filename (e.g., results.json)")
	flag.StringVar(&cfg.PlotPNG, "plot", "", "write a trajectory overlay PNG")
	flag.StringVar(&cfg.PlotDir, "plot-dir", "", "write per-metric deviation PNGs into this directory")
	flag.StringVar(&cfg.HTMLChart, "html", "", "write an interactive deviation chart")
	flag.StringVar(&cfg.SpeedUnits, "units", units.MPS, "speed units for chart annotations (mps, mph, kmph, kph)")
	flag.StringVar(&cfg.DBPath, "db", "", "runs database path")
	flag.BoolVar(&cfg.Record, "record", false, "persist the run to the database")
	flag.StringVar(&cfg.Name, "name", "", "run name (defaults to \"<ref> vs <cand>\")")
	flag.StringVar(&cfg.ConfigFile, "config", "", "validation config JSON supplying defaults")
	flag.StringVar(&cfg.CacheDir, "cache", defaultCacheDir(), "cache directory for fetched sources")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return cfg, set
}

// applyConfig fills flag values the command line left untouched from
// the config file.
func applyConfig(cfg *Config, vcfg *config.ValidationConfig, set map[string]bool) {
	if !set["pos-tol"] {
		cfg.PosTol = vcfg.GetPositionTolerance()
	}
	if !set["ang-tol"] {
		cfg.AngTol = vcfg.GetAngleTolerance()
	}
	if !set["time-tol"] {
		cfg.TimeTol = vcfg.GetTimeTolerance()
	}
	if !set["curve-tol"] && vcfg.CurveTolerance != nil {
		cfg.CurveTol = *vcfg.CurveTolerance
	}
	if !set["pair-by"] {
		cfg.PairBy = vcfg.GetPairMode().String()
	}
	if !set["skip-invalid"] {
		cfg.SkipInvalid = vcfg.GetSkipInvalidObjects()
	}
}

func runComparison(ctx context.Context, cfg Config) ([]*metrics.AlignedPair, []*metrics.Result, error) {
	refPath, err := dataset.Resolve(cfg.Reference, cfg.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve reference %s: %w", cfg.Reference, err)
	}
	candPath, err := dataset.Resolve(cfg.Candidate, cfg.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve candidate %s: %w", cfg.Candidate, err)
	}
	pairMode, err := trajectory.ParsePairMode(cfg.PairBy)
	if err != nil {
		return nil, nil, err
	}

	// Comparisons never rebase: the whole-curve measures are not
	// translation-invariant, so both sides stay in the recorded frame.
	policy := trajectory.NormalizePolicy{Mode: trajectory.OffsetOff}

	refCol, err := collect(refPath, policy, cfg.SkipInvalid)
	if err != nil {
		return nil, nil, fmt.Errorf("reference: %w", err)
	}
	candCol, err := collect(candPath, policy, cfg.SkipInvalid)
	if err != nil {
		return nil, nil, fmt.Errorf("candidate: %w", err)
	}

	trackPairs, err := trajectory.PairTracks(refCol.Tracks, candCol.Tracks, pairMode)
	if err != nil {
		return nil, nil, err
	}
	aligned := make([]*metrics.AlignedPair, len(trackPairs))
	for i, p := range trackPairs {
		ap, err := metrics.Align(p.Ref, p.Cand, cfg.TimeTol)
		if err != nil {
			return nil, nil, err
		}
		aligned[i] = ap
	}

	tols := metrics.Tolerances{Position: cfg.PosTol, Angle: cfg.AngTol}
	if cfg.CurveTol > 0 {
		tols.Curve = &cfg.CurveTol
	}
	results, err := metrics.CompareAll(ctx, aligned, tols)
	if err != nil {
		return nil, nil, err
	}
	return aligned, results, nil
}

func collect(path string, policy trajectory.NormalizePolicy, skipInvalid bool) (*trajectory.Collection, error) {
	r, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return trajectory.Collect(r, trajectory.CollectOptions{Offset: policy, SkipInvalid: skipInvalid})
}

func printResults(cfg Config, run *runstore.Run, details []*runstore.PairDetail, results []*metrics.Result) {
	fmt.Println("\n=== Trajectory Comparison ===")
	fmt.Printf("Reference: %s\n", cfg.Reference)
	fmt.Printf("Candidate: %s\n", cfg.Candidate)
	fmt.Printf("Tolerances: position %.3f m, yaw %.3f rad\n", cfg.PosTol, cfg.AngTol)
	if cfg.CurveTol > 0 {
		fmt.Printf("Curve tolerance: %.3f\n", cfg.CurveTol)
	}

	fmt.Printf("\n--- Pairs (%d) ---\n", len(details))
	fmt.Printf("%-10s %8s %12s %12s %12s  %s\n", "object", "samples", "max pos", "mean pos", "max yaw", "verdict")
	for _, d := range details {
		fmt.Printf("%-10d %8d %12.4f %12.4f %12.4f  %s\n",
			d.ObjectID, d.Samples, d.MaxPosDev, d.MeanPosDev, d.MaxAngDev, verdict(d))
	}

	for _, res := range results {
		if len(res.PosDev) < 2 {
			continue
		}
		caption := fmt.Sprintf("object %d position deviation (m)", res.ObjectID)
		fmt.Printf("\n%s\n", report.Sparkline(res.PosDev, caption))
	}

	fmt.Println("\n--- Overall ---")
	if run.Pass {
		fmt.Printf("PASS: max pos dev %.4f m, max yaw dev %.4f rad over %d pairs\n",
			run.MaxPosDev, run.MaxAngDev, len(details))
	} else {
		fmt.Printf("FAIL: max pos dev %.4f m, max yaw dev %.4f rad\n", run.MaxPosDev, run.MaxAngDev)
	}
}

func verdict(d *runstore.PairDetail) string {
	if d.Pass {
		return "PASS"
	}
	v := fmt.Sprintf("FAIL: %s %.4f", d.FailMetric, d.FailValue)
	if d.FailIndex >= 0 {
		v += fmt.Sprintf(" at sample %d", d.FailIndex)
	}
	return v
}

func writeArtifacts(cfg Config, pairs []*metrics.AlignedPair, results []*metrics.Result) {
	if cfg.PlotPNG != "" {
		if err := report.PlotTrajectories(pairs, cfg.PlotPNG); err != nil {
			log.Printf("Warning: failed to render trajectory plot: %v", err)
		} else {
			log.Printf("Trajectory plot written to: %s", cfg.PlotPNG)
		}
	}
	if cfg.PlotDir != "" {
		n, err := report.WriteDeviationPlots(results, cfg.PlotDir)
		if err != nil {
			log.Printf("Warning: failed to render deviation plots: %v", err)
		} else {
			log.Printf("%d deviation plots written to: %s", n, cfg.PlotDir)
		}
	}
	if cfg.HTMLChart != "" {
		if err := writeChart(cfg, results); err != nil {
			log.Printf("Warning: failed to render deviation chart: %v", err)
		} else {
			log.Printf("Deviation chart written to: %s", cfg.HTMLChart)
		}
	}
}

func writeChart(cfg Config, results []*metrics.Result) error {
	f, err := os.Create(cfg.HTMLChart)
	if err != nil {
		return err
	}
	opt := report.ChartOptions{Title: cfg.Name, SpeedUnits: cfg.SpeedUnits}
	if err := report.DeviationChart(results, opt, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRun(path string, run *runstore.Run, details []*runstore.PairDetail) error {
	store, err := runstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Insert(run, details)
}

func exportJSON(result *ComparisonExport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "scenario-report")
}
