package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func postCompare(t *testing.T, s *Server, body compareRequest) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/compare", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(w, req)
	return w
}

func decodeCompare(t *testing.T, w *httptest.ResponseRecorder) compareResponse {
	t.Helper()
	var resp compareResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHandleCompareSelf(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := postCompare(t, s, compareRequest{Reference: tracePath, Candidate: tracePath})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	resp := decodeCompare(t, w)
	if !resp.Run.Pass {
		t.Error("self comparison did not pass")
	}
	if resp.Run.MaxPosDev != 0 {
		t.Errorf("MaxPosDev = %v, want 0", resp.Run.MaxPosDev)
	}
	if len(resp.Details) != 2 {
		t.Fatalf("len(details) = %d, want 2", len(resp.Details))
	}
	if resp.Details[0].Samples != 3 {
		t.Errorf("Samples = %d, want 3", resp.Details[0].Samples)
	}
	if resp.Saved {
		t.Error("Saved = true without save flag")
	}
}

func TestHandleCompareDeviation(t *testing.T) {
	s, dir := newTestServer(t)
	refPath := writeTestTrace(t, dir, "ref", 0)
	candPath := writeTestTrace(t, dir, "cand", 1.0)

	w := postCompare(t, s, compareRequest{Reference: refPath, Candidate: candPath})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	resp := decodeCompare(t, w)
	if resp.Run.Pass {
		t.Error("1m deviation passed the 0.1m default tolerance")
	}
	if resp.Run.FailIndex != 0 {
		t.Errorf("FailIndex = %d, want 0", resp.Run.FailIndex)
	}
	if resp.Run.MaxPosDev != 1.0 {
		t.Errorf("MaxPosDev = %v, want 1.0", resp.Run.MaxPosDev)
	}
	for _, d := range resp.Details {
		if d.FailMetric != "position" {
			t.Errorf("object %d FailMetric = %q, want position", d.ObjectID, d.FailMetric)
		}
		if d.FailValue != 1.0 {
			t.Errorf("object %d FailValue = %v, want 1.0", d.ObjectID, d.FailValue)
		}
	}
}

func TestHandleCompareSaves(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := postCompare(t, s, compareRequest{
		Reference: tracePath,
		Candidate: tracePath,
		Save:      true,
		Name:      "self-check",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decodeCompare(t, w)
	if !resp.Saved {
		t.Error("Saved = false, want true")
	}
	if resp.Run.ID == "" {
		t.Error("saved run has no ID")
	}

	stored, _, err := s.store.Get(resp.Run.ID)
	if err != nil {
		t.Fatalf("stored run not found: %v", err)
	}
	if stored.Name != "self-check" {
		t.Errorf("stored name = %q, want self-check", stored.Name)
	}
}

func TestHandleCompareWiderTolerancePasses(t *testing.T) {
	s, dir := newTestServer(t)
	refPath := writeTestTrace(t, dir, "ref", 0)
	candPath := writeTestTrace(t, dir, "cand", 1.0)

	tol := 1.5
	w := postCompare(t, s, compareRequest{
		Reference:         refPath,
		Candidate:         candPath,
		PositionTolerance: &tol,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decodeCompare(t, w)
	if !resp.Run.Pass {
		t.Error("1m deviation failed a 1.5m tolerance")
	}
	if resp.Run.PosTolerance != 1.5 {
		t.Errorf("PosTolerance = %v, want 1.5", resp.Run.PosTolerance)
	}
}

func TestHandleCompareRejectsMissingPaths(t *testing.T) {
	s, _ := newTestServer(t)

	w := postCompare(t, s, compareRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCompareRejectsOutsideTraceDir(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := postCompare(t, s, compareRequest{Reference: "/etc/passwd", Candidate: tracePath})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestHandleCompareDisabledWithoutTraceDir(t *testing.T) {
	s := NewServer(nil, "", "mps")

	w := postCompare(t, s, compareRequest{Reference: "a.osi", Candidate: "b.osi"})
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no trace directory") {
		t.Errorf("body = %s, want trace directory message", w.Body.String())
	}
}

func TestHandleCompareUnknownOffsetMode(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := postCompare(t, s, compareRequest{
		Reference:  tracePath,
		Candidate:  tracePath,
		OffsetMode: "center",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCompareSaveWithoutStore(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(nil, dir, "mps")
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := postCompare(t, s, compareRequest{
		Reference: tracePath,
		Candidate: tracePath,
		Save:      true,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "persistence is disabled") {
		t.Errorf("body = %s, want persistence message", w.Body.String())
	}
}

func chartURL(path, ref, cand string, extra url.Values) string {
	q := url.Values{}
	q.Set("reference", ref)
	q.Set("candidate", cand)
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return path + "?" + q.Encode()
}

func TestHandleDeviationChart(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := doRequest(t, s, http.MethodGet, chartURL("/charts/deviation", tracePath, tracePath, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "object 1") {
		t.Error("chart missing object series")
	}
}

func TestHandleTrajectoryChart(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := doRequest(t, s, http.MethodGet, chartURL("/charts/trajectory", tracePath, tracePath, url.Values{
		"units": {"kph"},
		"title": {"self check"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "reference") || !strings.Contains(body, "candidate") {
		t.Error("chart missing reference/candidate series")
	}
	if !strings.Contains(body, "self check") {
		t.Error("chart missing title")
	}
	if !strings.Contains(body, "kph") {
		t.Error("chart missing speed units")
	}
}

func TestChartRejectsBadTolerance(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)

	w := doRequest(t, s, http.MethodGet, chartURL("/charts/deviation", tracePath, tracePath, url.Values{
		"position_tolerance": {"-1"},
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func savedRunID(t *testing.T, s *Server, ref, cand, name string) string {
	t.Helper()
	w := postCompare(t, s, compareRequest{Reference: ref, Candidate: cand, Save: true, Name: name})
	if w.Code != http.StatusOK {
		t.Fatalf("save run: status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeCompare(t, w)
	if resp.Run.ID == "" {
		t.Fatal("saved run has no id")
	}
	return resp.Run.ID
}

func TestHandleRunReport(t *testing.T) {
	s, dir := newTestServer(t)
	tracePath := writeTestTrace(t, dir, "ref", 0)
	id := savedRunID(t, s, tracePath, tracePath, "nightly self check")

	w := doRequest(t, s, http.MethodGet, "/runs/"+id+"/report")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "object 1") {
		t.Error("report missing object series")
	}
	if !strings.Contains(body, "nightly self check") {
		t.Error("report missing run name as title")
	}
}

func TestHandleRunPlot(t *testing.T) {
	s, dir := newTestServer(t)
	refPath := writeTestTrace(t, dir, "ref", 0)
	candPath := writeTestTrace(t, dir, "cand", 1.0)
	id := savedRunID(t, s, refPath, candPath, "")

	w := doRequest(t, s, http.MethodGet, "/runs/"+id+"/plot")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("plot body is not a PNG")
	}
}

func TestHandleRunChartUnknownRun(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/runs/no-such-run/report")
	if w.Code != http.StatusNotFound {
		t.Errorf("report status = %d, want 404", w.Code)
	}
	w = doRequest(t, s, http.MethodGet, "/runs/no-such-run/bogus")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown subpath status = %d, want 404", w.Code)
	}
}
