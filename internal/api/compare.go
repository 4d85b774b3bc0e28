package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/httputil"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/report"
	"github.com/banshee-data/scenario.report/internal/runstore"
	"github.com/banshee-data/scenario.report/internal/security"
	"github.com/banshee-data/scenario.report/internal/trace"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Matched to config/validation.defaults.json.
const (
	defaultPositionTolerance = 0.1
	defaultAngleTolerance    = 0.05
)

type compareRequest struct {
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`

	PositionTolerance *float64 `json:"position_tolerance,omitempty"`
	AngleTolerance    *float64 `json:"angle_tolerance,omitempty"`
	CurveTolerance    *float64 `json:"curve_tolerance,omitempty"`
	TimeTolerance     *float64 `json:"time_tolerance,omitempty"`

	OffsetMode         string   `json:"offset_mode,omitempty"`
	OriginX            *float64 `json:"origin_x,omitempty"`
	OriginY            *float64 `json:"origin_y,omitempty"`
	OriginZ            *float64 `json:"origin_z,omitempty"`
	PairBy             string   `json:"pair_by,omitempty"`
	SkipInvalidObjects bool     `json:"skip_invalid_objects,omitempty"`

	Save bool   `json:"save,omitempty"`
	Name string `json:"name,omitempty"`
}

type compareResponse struct {
	Run     *runstore.Run          `json:"run"`
	Details []*runstore.PairDetail `json:"details"`
	Saved   bool                   `json:"saved"`
}

// compareParams is a validated comparison request.
type compareParams struct {
	reference string
	candidate string
	policy    trajectory.NormalizePolicy
	pairMode  trajectory.PairMode
	skip      bool
	tols      metrics.Tolerances
	timeTol   float64
}

// checkTracePath rejects paths outside the configured trace directory.
func (s *Server) checkTracePath(path string) error {
	if s.traceDir == "" {
		return fmt.Errorf("compare endpoints disabled: no trace directory configured")
	}
	if path == "" {
		return fmt.Errorf("missing trace path")
	}
	return security.ValidatePathWithinDirectory(path, s.traceDir)
}

// compareOffsetPolicy resolves the offset mode for a comparison.
// Comparisons default to no rebasing: the whole-curve measures are not
// translation-invariant, so both sides must stay in the frame the
// traces were recorded in unless the caller says otherwise.
func compareOffsetPolicy(mode string, origin geom.Vec3) (trajectory.NormalizePolicy, error) {
	if mode == "" {
		return trajectory.NormalizePolicy{Mode: trajectory.OffsetOff}, nil
	}
	m, err := trajectory.ParseOffsetMode(mode)
	if err != nil {
		return trajectory.NormalizePolicy{}, err
	}
	pol := trajectory.NormalizePolicy{Mode: m}
	if m == trajectory.OffsetOrigin {
		pol.Origin = origin
	}
	return pol, nil
}

func comparePairMode(mode string) (trajectory.PairMode, error) {
	if mode == "" {
		return trajectory.PairByID, nil
	}
	return trajectory.ParsePairMode(mode)
}

func collectTracks(path string, policy trajectory.NormalizePolicy, skipInvalid bool) (*trajectory.Collection, error) {
	r, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return trajectory.Collect(r, trajectory.CollectOptions{Offset: policy, SkipInvalid: skipInvalid})
}

// executeCompare runs the comparison pipeline: collect both traces
// under the same offset policy, pair the tracks, verify the time base
// and reduce each pair to metrics.
func executeCompare(ctx context.Context, p compareParams) ([]*metrics.AlignedPair, []*metrics.Result, error) {
	refCol, err := collectTracks(p.reference, p.policy, p.skip)
	if err != nil {
		return nil, nil, fmt.Errorf("reference: %w", err)
	}
	candCol, err := collectTracks(p.candidate, p.policy, p.skip)
	if err != nil {
		return nil, nil, fmt.Errorf("candidate: %w", err)
	}

	pairs, err := trajectory.PairTracks(refCol.Tracks, candCol.Tracks, p.pairMode)
	if err != nil {
		return nil, nil, err
	}

	aligned := make([]*metrics.AlignedPair, 0, len(pairs))
	for _, pair := range pairs {
		ap, err := metrics.Align(pair.Ref, pair.Cand, p.timeTol)
		if err != nil {
			return nil, nil, err
		}
		aligned = append(aligned, ap)
	}

	results, err := metrics.CompareAll(ctx, aligned, p.tols)
	if err != nil {
		return nil, nil, err
	}
	return aligned, results, nil
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Reference == "" || req.Candidate == "" {
		httputil.BadRequest(w, "reference and candidate are required")
		return
	}
	if err := s.checkTracePath(req.Reference); err != nil {
		httputil.WriteJSONError(w, http.StatusForbidden, fmt.Sprintf("reference: %v", err))
		return
	}
	if err := s.checkTracePath(req.Candidate); err != nil {
		httputil.WriteJSONError(w, http.StatusForbidden, fmt.Sprintf("candidate: %v", err))
		return
	}

	origin := geom.Vec3{X: floatOr(req.OriginX, 0), Y: floatOr(req.OriginY, 0), Z: floatOr(req.OriginZ, 0)}
	policy, err := compareOffsetPolicy(req.OffsetMode, origin)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	pairMode, err := comparePairMode(req.PairBy)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	params := compareParams{
		reference: req.Reference,
		candidate: req.Candidate,
		policy:    policy,
		pairMode:  pairMode,
		skip:      req.SkipInvalidObjects,
		tols: metrics.Tolerances{
			Position: floatOr(req.PositionTolerance, defaultPositionTolerance),
			Angle:    floatOr(req.AngleTolerance, defaultAngleTolerance),
			Curve:    req.CurveTolerance,
		},
		timeTol: floatOr(req.TimeTolerance, metrics.DefaultTimeTolerance),
	}

	_, results, err := executeCompare(r.Context(), params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	run := &runstore.Run{
		Name:          req.Name,
		ReferencePath: req.Reference,
		CandidatePath: req.Candidate,
	}
	details := runstore.Summarize(run, results)

	saved := false
	if req.Save {
		if s.store == nil {
			httputil.BadRequest(w, "cannot save: run persistence is disabled")
			return
		}
		if err := s.store.Insert(run, details); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to save run: %v", err))
			return
		}
		saved = true
	}

	httputil.WriteJSONOK(w, compareResponse{Run: run, Details: details, Saved: saved})
}

// chartParams parses the shared query parameters of the chart
// endpoints.
func (s *Server) chartParams(r *http.Request) (compareParams, report.ChartOptions, error) {
	q := r.URL.Query()

	params := compareParams{
		reference: q.Get("reference"),
		candidate: q.Get("candidate"),
		timeTol:   metrics.DefaultTimeTolerance,
		tols: metrics.Tolerances{
			Position: defaultPositionTolerance,
			Angle:    defaultAngleTolerance,
		},
	}

	if err := s.checkTracePath(params.reference); err != nil {
		return params, report.ChartOptions{}, fmt.Errorf("reference: %w", err)
	}
	if err := s.checkTracePath(params.candidate); err != nil {
		return params, report.ChartOptions{}, fmt.Errorf("candidate: %w", err)
	}

	policy, err := compareOffsetPolicy(q.Get("offset_mode"), geom.Vec3{})
	if err != nil {
		return params, report.ChartOptions{}, err
	}
	params.policy = policy

	pairMode, err := comparePairMode(q.Get("pair_by"))
	if err != nil {
		return params, report.ChartOptions{}, err
	}
	params.pairMode = pairMode

	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"position_tolerance", &params.tols.Position},
		{"angle_tolerance", &params.tols.Angle},
	} {
		if v := q.Get(p.key); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed < 0 {
				return params, report.ChartOptions{}, fmt.Errorf("invalid %q parameter", p.key)
			}
			*p.dst = parsed
		}
	}

	speedUnits := q.Get("units")
	if speedUnits == "" {
		speedUnits = s.units
	}
	opt := report.ChartOptions{
		Title:      q.Get("title"),
		SpeedUnits: speedUnits,
	}
	return params, opt, nil
}

func (s *Server) handleDeviationChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	params, opt, err := s.chartParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	_, results, err := executeCompare(r.Context(), params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.DeviationChart(results, opt, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	params, opt, err := s.chartParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	pairs, _, err := executeCompare(r.Context(), params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := report.TrajectoryScatter(pairs, opt, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// runParams rebuilds the comparison a stored run describes so its
// charts can be rendered again. Only paths and tolerances persist on a
// run; offset and pairing follow the comparison defaults.
func (s *Server) runParams(run *runstore.Run) (compareParams, error) {
	if err := s.checkTracePath(run.ReferencePath); err != nil {
		return compareParams{}, fmt.Errorf("reference: %w", err)
	}
	if err := s.checkTracePath(run.CandidatePath); err != nil {
		return compareParams{}, fmt.Errorf("candidate: %w", err)
	}
	return compareParams{
		reference: run.ReferencePath,
		candidate: run.CandidatePath,
		policy:    trajectory.NormalizePolicy{Mode: trajectory.OffsetOff},
		pairMode:  trajectory.PairByID,
		tols: metrics.Tolerances{
			Position: run.PosTolerance,
			Angle:    run.AngTolerance,
		},
		timeTol: metrics.DefaultTimeTolerance,
	}, nil
}

// runComparison loads a stored run and re-executes it, shared by the
// per-run chart handlers. A nil run means the response was already
// written.
func (s *Server) runComparison(w http.ResponseWriter, r *http.Request, runID string) (*runstore.Run, []*metrics.AlignedPair, []*metrics.Result) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, nil, nil
	}
	run, _, err := s.store.Get(runID)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return nil, nil, nil
	}
	params, err := s.runParams(run)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusForbidden, err.Error())
		return nil, nil, nil
	}
	pairs, results, err := executeCompare(r.Context(), params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return nil, nil, nil
	}
	return run, pairs, results
}

func (s *Server) runReport(w http.ResponseWriter, r *http.Request, runID string) {
	run, _, results := s.runComparison(w, r, runID)
	if run == nil {
		return
	}
	var buf bytes.Buffer
	if err := report.DeviationChart(results, report.ChartOptions{Title: run.Name, SpeedUnits: s.units}, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) runPlot(w http.ResponseWriter, r *http.Request, runID string) {
	run, pairs, _ := s.runComparison(w, r, runID)
	if run == nil {
		return
	}
	var buf bytes.Buffer
	if err := report.RenderTrajectoryPNG(pairs, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}
