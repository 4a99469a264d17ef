package main

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"scalar-grad-explorer/autograd"
	"scalar-grad-explorer/dataset"
	"scalar-grad-explorer/journal"
	"scalar-grad-explorer/metrics"
	"scalar-grad-explorer/nn"
	"scalar-grad-explorer/train"
)

// Server owns HTTP handlers and shared application state.
type Server struct {
	mu      sync.RWMutex
	session *session

	journal *journal.Journal // nil disables /api/runs and run recording
	logger  *log.Logger
}

// session is one initialised experiment. Its mutex serialises every
// forward/backward/update on the model.
type session struct {
	mu     sync.Mutex
	exp    *experiment
	seed   int64
	epochs int
}

// NewServer creates an API server with no model loaded.
func NewServer(j *journal.Journal, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{journal: j, logger: logger}
}

// RegisterRoutes attaches all endpoints to the provided mux. webRoot may be
// nil when there is no frontend to serve.
func (s *Server) RegisterRoutes(mux *http.ServeMux, webRoot fs.FS) {
	mux.HandleFunc("POST /api/init", s.handleInit)
	mux.HandleFunc("POST /api/train", s.handleTrain)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("POST /api/graph", s.handleGraph)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	if webRoot != nil {
		mux.Handle("/", http.FileServer(http.FS(webRoot)))
	}
}

func (s *Server) snapshot() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Server) setSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
}

// writeJSON is a helper to consistently send JSON responses.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeOptionalJSON decodes JSON when body is present.
// Empty bodies are treated as "use defaults" rather than errors.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

// errorStatus maps caller mistakes to 400 and everything else to 500.
func errorStatus(err error) int {
	for _, target := range []error{
		nn.ErrDimensionMismatch,
		nn.ErrInvalidArchitecture,
		nn.ErrInvalidTarget,
		train.ErrShape,
		train.ErrInvalidConfig,
		dataset.ErrColumn,
		autograd.ErrInvalidRankDir,
		autograd.ErrDomain,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		d   *dataset.Dataset
		err error
	)
	if req.CSV != "" {
		target := req.Target
		if target == "" {
			target = "output"
		}
		d, err = dataset.Load(strings.NewReader(req.CSV), target)
	} else {
		d, err = dataset.New(req.Inputs, req.Labels)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hidden, err := nn.ParseActivation(req.Hidden)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	output, err := nn.ParseActivation(req.Output)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	layers := req.Layers
	if len(layers) == 0 {
		layers = []int{15, 15, 1}
	}

	exp, err := newExperiment(d, layers, nn.Config{Seed: req.Seed, Hidden: hidden, Output: output}, req.TestSplit, req.Seed)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	s.setSession(&session{exp: exp, seed: req.Seed})
	s.logger.Printf("initialized %s network with %d parameters on %d rows", journal.Arch(exp.model), exp.model.NumParams(), d.Len())

	writeJSON(w, http.StatusOK, InitResponse{
		Status:    "initialized",
		Params:    exp.model.NumParams(),
		Widths:    exp.model.Widths(),
		Columns:   d.Columns,
		TrainRows: exp.train.Len(),
		TestRows:  exp.test.Len(),
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	sess := s.snapshot()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	req := TrainRequest{}
	if err := decodeOptionalJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg := train.Config{
		Epochs:       req.Epochs,
		BatchSize:    req.BatchSize,
		LearningRate: req.LearningRate,
		NoShuffle:    req.Shuffle != nil && !*req.Shuffle,
		Optimizer:    req.Optimizer,
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}

	// Lock the model during forward/backward/update to avoid concurrent mutation.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Continue the shuffle sequence instead of replaying it on every call.
	cfg.Seed = sess.seed + int64(sess.epochs)

	callbacks := []train.Callback{train.PrintProgress(s.logger, cfg.Epochs)}
	var rec *journal.Recorder
	if s.journal != nil {
		rec = journal.NewRecorder(s.journal)
		callbacks = append(callbacks, rec)
	}

	res, err := sess.exp.fit(cfg, callbacks...)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	sess.epochs += res.Epochs

	resp := TrainResponse{
		TotalEpochs: sess.epochs,
		EpochLoss:   res.EpochLoss,
		Loss:        res.FinalLoss,
	}
	if rec != nil {
		if err := rec.Err(); err != nil {
			s.logger.Printf("journal: %v", err)
		} else {
			resp.RunID = rec.RunID()
		}
	}
	if c, err := sess.exp.evaluate(); err == nil {
		resp.Eval = newEval(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func newEval(c metrics.Confusion) *Eval {
	return &Eval{
		Rows:      c.Total(),
		TP:        c.TP,
		FP:        c.FP,
		TN:        c.TN,
		FN:        c.FN,
		Accuracy:  c.Accuracy(),
		Precision: c.Precision(),
		Recall:    c.Recall(),
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess := s.snapshot()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	rows, err := sess.exp.scale(req.Inputs)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	resp := PredictResponse{Outputs: make([][]float64, len(rows))}
	for i, x := range rows {
		if resp.Outputs[i], err = sess.exp.model.Predict(x); err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGraph answers with the Graphviz DOT source of one example's graph.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	sess := s.snapshot()
	if sess == nil {
		http.Error(w, "Model not initialized", http.StatusBadRequest)
		return
	}

	var req GraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	rows, err := sess.exp.scale([][]float64{req.Input})
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	root, err := sess.exp.model.Output(rows[0])
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	name := "output"
	if req.Label != nil {
		if root, err = nn.BinaryCrossEntropy(*req.Label, root); err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		name = "loss"
	}
	nn.ZeroGrad(sess.exp.model.Parameters())
	root.Backward()

	out, err := autograd.MarshalDOT(root, autograd.DOTOptions{Name: name, RankDir: req.RankDir})
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	_, _ = w.Write(out)
}

// handleRuns lists journalled runs, newest first. ?limit=N caps the list and
// ?run=ID adds that run's epoch losses.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "No journal configured", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "bad limit: "+err.Error(), http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.journal.Runs(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := RunsResponse{Runs: runs}
	if v := q.Get("run"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "bad run id: "+err.Error(), http.StatusBadRequest)
			return
		}
		if resp.Losses, err = s.journal.EpochLosses(id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
