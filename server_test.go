package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scalar-grad-explorer/autograd"
	"scalar-grad-explorer/journal"
)

func newTestServer(t *testing.T, withJournal bool) http.Handler {
	t.Helper()
	var j *journal.Journal
	if withJournal {
		var err error
		if j, err = journal.Open(":memory:"); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { j.Close() })
	}
	mux := http.NewServeMux()
	NewServer(j, log.New(io.Discard, "", 0)).RegisterRoutes(mux, nil)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

var andInit = InitRequest{
	Layers: []int{2, 1},
	Seed:   1,
	Inputs: [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	Labels: []float64{0, 0, 0, 1},
}

func TestServerTrainPredict(t *testing.T) {
	h := newTestServer(t, true)

	if rec := do(t, h, http.MethodPost, "/api/train", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 before init, got %d", rec.Code)
	}

	initResp := decode[InitResponse](t, do(t, h, http.MethodPost, "/api/init", andInit))
	if initResp.Params != 9 || initResp.TrainRows != 4 || initResp.TestRows != 0 {
		t.Fatalf("unexpected init response %+v", initResp)
	}

	tr := decode[TrainResponse](t, do(t, h, http.MethodPost, "/api/train", TrainRequest{
		Epochs: 200, BatchSize: 4, LearningRate: 3,
	}))
	if tr.TotalEpochs != 200 || len(tr.EpochLoss) != 200 {
		t.Fatalf("unexpected train response: %d epochs, %d losses", tr.TotalEpochs, len(tr.EpochLoss))
	}
	if tr.Loss >= tr.EpochLoss[0] {
		t.Errorf("expected final loss %f below first %f", tr.Loss, tr.EpochLoss[0])
	}
	if tr.Eval == nil || tr.Eval.Accuracy != 1 || tr.Eval.Rows != 4 {
		t.Errorf("expected all 4 rows classified, got %+v", tr.Eval)
	}
	if tr.RunID == 0 {
		t.Error("expected the run to be journalled")
	}

	// An empty body trains with defaults and continues the epoch count.
	tr2 := decode[TrainResponse](t, do(t, h, http.MethodPost, "/api/train", nil))
	if tr2.TotalEpochs != 210 {
		t.Errorf("expected 210 total epochs, got %d", tr2.TotalEpochs)
	}

	pred := decode[PredictResponse](t, do(t, h, http.MethodPost, "/api/predict", PredictRequest{
		Inputs: [][]float64{{1, 1}, {0, 0}},
	}))
	if len(pred.Outputs) != 2 || pred.Outputs[0][0] < 0.5 || pred.Outputs[1][0] >= 0.5 {
		t.Errorf("unexpected predictions %v", pred.Outputs)
	}

	if rec := do(t, h, http.MethodPost, "/api/predict", PredictRequest{Inputs: [][]float64{{1}}}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for short input, got %d", rec.Code)
	}

	runs := decode[RunsResponse](t, do(t, h, http.MethodGet, fmt.Sprintf("/api/runs?run=%d", tr.RunID), nil))
	if len(runs.Runs) != 2 || runs.Runs[1].ID != tr.RunID || runs.Runs[1].Arch != "2-2-1" {
		t.Errorf("unexpected runs %+v", runs.Runs)
	}
	if len(runs.Losses) != 200 || runs.Losses[199] != tr.Loss {
		t.Errorf("expected 200 losses ending in %f, got %d", tr.Loss, len(runs.Losses))
	}
	if runs := decode[RunsResponse](t, do(t, h, http.MethodGet, "/api/runs?limit=1", nil)); len(runs.Runs) != 1 {
		t.Errorf("expected 1 run with limit=1, got %d", len(runs.Runs))
	}
}

func TestServerGraph(t *testing.T) {
	h := newTestServer(t, false)
	decode[InitResponse](t, do(t, h, http.MethodPost, "/api/init", andInit))

	label := 1.0
	rec := do(t, h, http.MethodPost, "/api/graph", GraphRequest{Input: []float64{1, 1}, Label: &label, RankDir: "TB"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("unexpected content type %q", ct)
	}
	for _, want := range []string{"digraph", "rankdir=TB", "shape=record"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected DOT output to contain %q:\n%s", want, rec.Body.String())
		}
	}

	for name, req := range map[string]GraphRequest{
		"rankdir": {Input: []float64{1, 1}, RankDir: "BT"},
		"width":   {Input: []float64{1}},
	} {
		if rec := do(t, h, http.MethodPost, "/api/graph", req); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}

	if rec := do(t, h, http.MethodGet, "/api/runs", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a journal, got %d", rec.Code)
	}
}

func TestServerInit(t *testing.T) {
	h := newTestServer(t, false)

	resp := decode[InitResponse](t, do(t, h, http.MethodPost, "/api/init", InitRequest{
		CSV:       "age,output,chol\n40,1,200\n60,0,300\n50,1,250\n70,0,200\n",
		Layers:    []int{3, 1},
		Hidden:    "tanh",
		TestSplit: 0.25,
	}))
	if resp.TrainRows != 3 || resp.TestRows != 1 || strings.Join(resp.Columns, ",") != "age,chol" {
		t.Errorf("unexpected init response %+v", resp)
	}
	if resp.Params != 3*3+4 {
		t.Errorf("expected 13 parameters, got %d", resp.Params)
	}

	for name, req := range map[string]InitRequest{
		"two outputs": {Layers: []int{2, 2}, Inputs: andInit.Inputs, Labels: andInit.Labels},
		"activation":  {Hidden: "softmax", Inputs: andInit.Inputs, Labels: andInit.Labels},
		"no target":   {CSV: "a,b\n1,2\n"},
		"no rows":     {Layers: []int{1}},
		"no training rows": {
			Layers:    []int{1},
			TestSplit: 0.25,
			Inputs:    [][]float64{{0, 1}},
			Labels:    []float64{1},
		},
	} {
		if rec := do(t, h, http.MethodPost, "/api/init", req); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestServerGraphLossOutOfRange(t *testing.T) {
	h := newTestServer(t, false)
	decode[InitResponse](t, do(t, h, http.MethodPost, "/api/init", InitRequest{
		Layers: []int{2, 1},
		Hidden: "linear",
		Output: "linear",
		Seed:   1,
		Inputs: andInit.Inputs,
		Labels: andInit.Labels,
	}))

	// A linear network driven this hard lands far outside [0, 1], where
	// the cross-entropy has no real value.
	label := 1.0
	rec := do(t, h, http.MethodPost, "/api/graph", GraphRequest{Input: []float64{1e6, 1e6}, Label: &label})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestErrorStatus(t *testing.T) {
	err := fmt.Errorf("example 0: %w", &autograd.OpError{Op: autograd.OpLog, Operand: -1, Err: autograd.ErrDomain})
	if got := errorStatus(err); got != http.StatusBadRequest {
		t.Errorf("expected 400 for a domain error, got %d", got)
	}
	if got := errorStatus(io.ErrUnexpectedEOF); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for an unknown error, got %d", got)
	}
}
