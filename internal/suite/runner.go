package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/scenario"
	"github.com/banshee-data/scenario.report/internal/timeutil"
	"github.com/banshee-data/scenario.report/internal/trace"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// RunOptions control suite execution.
type RunOptions struct {
	// WorkDir is the root for per-case scratch directories and the
	// shared source cache: materialized reference traces, emitted
	// documents, engine output, fetched fixtures.
	WorkDir string
	// Parallel caps concurrent cases. Zero or negative means GOMAXPROCS.
	Parallel int
	// Clock stamps document headers. Nil means wall clock.
	Clock timeutil.Clock
}

// CaseResult is the outcome of one case. Err covers everything that
// stopped the pipeline before a verdict: unreadable traces, document
// emission failures, engine crashes, unalignable tracks. A case with
// Err == nil still fails when any paired track exceeds tolerance.
type CaseResult struct {
	Case      string
	Scenario  string // emitted document path
	Candidate string // engine output trace path
	Results   []*metrics.Result
	Err       error
	Elapsed   time.Duration
}

// Pass reports whether the case completed and every track pair stayed
// within tolerance.
func (r *CaseResult) Pass() bool {
	if r.Err != nil {
		return false
	}
	for _, res := range r.Results {
		if !res.Pass {
			return false
		}
	}
	return true
}

// Report is the outcome of a whole suite run.
type Report struct {
	Suite   string
	Cases   []CaseResult
	Elapsed time.Duration
}

// Pass reports whether every case passed.
func (r *Report) Pass() bool {
	for i := range r.Cases {
		if !r.Cases[i].Pass() {
			return false
		}
	}
	return true
}

// Failed lists the names of failing cases in suite order.
func (r *Report) Failed() []string {
	var names []string
	for i := range r.Cases {
		if !r.Cases[i].Pass() {
			names = append(names, r.Cases[i].Case)
		}
	}
	return names
}

// Run executes every case of the suite. Cases run concurrently up to
// opts.Parallel; a failing case is recorded in its CaseResult and
// never stops the others. The returned error covers only setup
// problems with the work directory itself.
func Run(ctx context.Context, s *Suite, opts RunOptions) (*Report, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("suite %s: work directory is required", s.Name)
	}
	if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("suite %s: %w", s.Name, err)
	}
	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	start := time.Now()

	// Remote and generated sources are materialized up front, so
	// parallel cases sharing a source never race on the cache. A source
	// that cannot be resolved fails its cases, not the run.
	cache := filepath.Join(opts.WorkDir, "download")
	paths := make([]string, len(s.Cases))
	errs := make([]error, len(s.Cases))
	seen := make(map[string]int, len(s.Cases))
	for i := range s.Cases {
		src := s.Cases[i].Trace
		if j, ok := seen[src]; ok {
			paths[i], errs[i] = paths[j], errs[j]
			continue
		}
		seen[src] = i
		paths[i], errs[i] = dataset.Resolve(src, cache)
	}

	report := &Report{Suite: s.Name, Cases: make([]CaseResult, len(s.Cases))}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range s.Cases {
		c := &s.Cases[i]
		g.Go(func() error {
			if errs[i] != nil {
				report.Cases[i] = CaseResult{
					Case: c.Name,
					Err:  fmt.Errorf("resolve trace %s: %w", c.Trace, errs[i]),
				}
				return nil
			}
			report.Cases[i] = s.runCase(ctx, c, paths[i], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

func (s *Suite) runCase(ctx context.Context, c *Case, tracePath string, opts RunOptions) (res CaseResult) {
	start := time.Now()
	res.Case = c.Name
	defer func() { res.Elapsed = time.Since(start) }()
	fail := func(err error) CaseResult {
		res.Err = err
		return res
	}

	caseDir := filepath.Join(opts.WorkDir, sanitizeName(c.Name))
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return fail(err)
	}

	// Probe the source once: validates that the trace opens and the
	// channel exists, and pins the message type that materialized
	// scratch copies lose with their conventional filenames.
	probe, err := trace.OpenChannel(tracePath, c.Channel)
	if err != nil {
		return fail(err)
	}
	srcType := probe.MessageType()
	probe.Close()

	// Materialize the exact reference stream as a single-channel file.
	// The same file feeds both the conversion and the replay engine, so
	// a replay case can never see frames the reference did not.
	refPath := tracePath
	if c.Channel != "" {
		sel := filepath.Join(caseDir, "channel.osi")
		if _, err := trace.Convert(refPath, sel, c.Channel); err != nil {
			return fail(fmt.Errorf("select channel %s: %w", c.Channel, err))
		}
		refPath = sel
	}
	if c.StartTime != nil {
		cropped := filepath.Join(caseDir, "reference.osi")
		n, err := trace.Crop(refPath, cropped, *c.StartTime, -1)
		if err != nil {
			return fail(fmt.Errorf("crop at %gs: %w", *c.StartTime, err))
		}
		if n == 0 {
			return fail(fmt.Errorf("crop at %gs: no frames remain", *c.StartTime))
		}
		refPath = cropped
	}

	policy := s.offsetPolicy()
	refCol, err := collect(refPath, srcType, policy, s.Defaults.SkipInvalidObjects)
	if err != nil {
		return fail(fmt.Errorf("reference %s: %w", refPath, err))
	}

	doc, err := scenario.Build(refCol.Tracks, scenario.BuildOptions{
		Profile:     s.profile(c),
		RoadNetwork: s.roadNetwork(c),
		Description: c.Name,
		Clock:       opts.Clock,
	})
	if err != nil {
		return fail(fmt.Errorf("build document: %w", err))
	}
	scnPath := filepath.Join(caseDir, "scenario.xosc")
	if err := scenario.WriteFile(doc, scnPath); err != nil {
		return fail(err)
	}
	res.Scenario = scnPath

	engine, err := ParseEngine(c.Engine, refPath)
	if err != nil {
		return fail(err)
	}
	candPath, err := engine.Run(ctx, scnPath, caseDir)
	if err != nil {
		return fail(err)
	}
	res.Candidate = candPath

	// A replayed candidate is the reference file itself and keeps its
	// message type; anything else follows the trace-file convention.
	candType := trace.MessageTypeUnknown
	if candPath == refPath {
		candType = srcType
	}
	candCol, err := collect(candPath, candType, policy, s.Defaults.SkipInvalidObjects)
	if err != nil {
		return fail(fmt.Errorf("candidate %s: %w", candPath, err))
	}

	pairs, err := trajectory.PairTracks(refCol.Tracks, candCol.Tracks, s.pairMode())
	if err != nil {
		return fail(err)
	}
	timeTol := s.timeTolerance()
	aligned := make([]*metrics.AlignedPair, len(pairs))
	for i, p := range pairs {
		ap, err := metrics.Align(p.Ref, p.Cand, timeTol)
		if err != nil {
			return fail(err)
		}
		aligned[i] = ap
	}
	results, err := metrics.CompareAll(ctx, aligned, s.tolerances(c))
	if err != nil {
		return fail(err)
	}
	res.Results = results
	return res
}

func collect(path string, mtype trace.MessageType, policy trajectory.NormalizePolicy, skipInvalid bool) (*trajectory.Collection, error) {
	r, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if r.MessageType() == trace.MessageTypeUnknown && mtype != trace.MessageTypeUnknown {
		r.SetMessageType(mtype)
	}
	return trajectory.Collect(r, trajectory.CollectOptions{Offset: policy, SkipInvalid: skipInvalid})
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
