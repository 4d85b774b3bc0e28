// Command osc-validate runs a YAML validation suite: every case
// converts a reference trace to a scenario document, hands the document
// to an engine and scores the engine's output against the reference.
// Exits with status 1 when any case fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/scenario.report/internal/runstore"
	"github.com/banshee-data/scenario.report/internal/suite"
)

var (
	suitePath = flag.String("suite", "", "suite definition file")
	parallel  = flag.Int("parallel", 0, "concurrent cases (0: GOMAXPROCS)")
	workDir   = flag.String("work", "", "work directory for scratch files (default: a temporary directory, removed afterwards)")
	dbPath    = flag.String("db", "", "record case runs in this database")
)

func main() {
	flag.Parse()

	if *suitePath == "" {
		log.Fatal("-suite is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	pass, err := run(ctx)
	stop()
	if err != nil {
		log.Fatalf("Suite run failed: %v", err)
	}
	if !pass {
		os.Exit(1)
	}
}

func run(ctx context.Context) (bool, error) {
	s, err := suite.Load(*suitePath)
	if err != nil {
		return false, err
	}

	work := *workDir
	if work == "" {
		tmp, err := os.MkdirTemp("", "osc-validate-*")
		if err != nil {
			return false, err
		}
		defer os.RemoveAll(tmp)
		work = tmp
	}

	report, err := suite.Run(ctx, s, suite.RunOptions{WorkDir: work, Parallel: *parallel})
	if err != nil {
		return false, err
	}

	printReport(s, report)

	if *dbPath != "" {
		if err := recordReport(*dbPath, s, report); err != nil {
			return false, fmt.Errorf("record runs: %w", err)
		}
	}
	return report.Pass(), nil
}

func printReport(s *suite.Suite, rep *suite.Report) {
	fmt.Printf("\n=== Suite: %s (%d cases) ===\n\n", rep.Suite, len(rep.Cases))
	for i := range rep.Cases {
		printCase(&rep.Cases[i])
	}

	fmt.Println("\n--- Summary ---")
	passed := 0
	for i := range rep.Cases {
		if rep.Cases[i].Pass() {
			passed++
		}
	}
	fmt.Printf("%d/%d passed in %.1fs\n", passed, len(rep.Cases), rep.Elapsed.Seconds())
	if failed := rep.Failed(); len(failed) > 0 {
		fmt.Print("Failing:")
		for _, name := range failed {
			fmt.Printf(" %s", name)
		}
		fmt.Println()
	}
}

func printCase(res *suite.CaseResult) {
	switch {
	case res.Err != nil:
		fmt.Printf("✗ %-32s %6.2fs  error: %v\n", res.Case, res.Elapsed.Seconds(), res.Err)
	case res.Pass():
		fmt.Printf("✓ %-32s %6.2fs  %d pairs\n", res.Case, res.Elapsed.Seconds(), len(res.Results))
	default:
		fmt.Printf("✗ %-32s %6.2fs  %s\n", res.Case, res.Elapsed.Seconds(), firstFailure(res))
	}
}

func firstFailure(res *suite.CaseResult) string {
	for _, r := range res.Results {
		if r.Pass {
			continue
		}
		msg := fmt.Sprintf("FAIL: object %d %s %.4f", r.ObjectID, r.FailMetric, r.FailValue)
		if r.FailIndex >= 0 {
			msg += fmt.Sprintf(" at sample %d", r.FailIndex)
		}
		return msg
	}
	return "FAIL"
}

// recordReport persists one run per completed case. Cases that stopped
// before a verdict have no comparison to record and are skipped.
func recordReport(path string, s *suite.Suite, rep *suite.Report) error {
	store, err := runstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	for i := range rep.Cases {
		res := &rep.Cases[i]
		if res.Err != nil {
			continue
		}
		c := &s.Cases[i]
		run := &runstore.Run{
			Name:          fmt.Sprintf("%s/%s", s.Name, res.Case),
			ReferencePath: c.Trace,
			CandidatePath: res.Candidate,
			ScenarioPath:  res.Scenario,
			Profile:       caseProfile(s, c),
		}
		details := runstore.Summarize(run, res.Results)
		if err := store.Insert(run, details); err != nil {
			return err
		}
		log.Printf("Run recorded: %s (%s)", run.ID, res.Case)
	}
	return nil
}

func caseProfile(s *suite.Suite, c *suite.Case) string {
	if c.Profile != nil {
		return *c.Profile
	}
	return s.Defaults.Profile
}
