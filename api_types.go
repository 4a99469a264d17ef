package main

import "scalar-grad-explorer/journal"

// InitRequest is the payload for /api/init.
// It carries the network shape and the training data, either as CSV text
// or as inline rows.
type InitRequest struct {
	Layers    []int   `json:"layers"`
	Hidden    string  `json:"hidden"` // activation name, default "sigmoid"
	Output    string  `json:"output"`
	Seed      int64   `json:"seed"`
	TestSplit float64 `json:"test_split"`

	CSV    string `json:"csv"`
	Target string `json:"target"`

	Inputs [][]float64 `json:"inputs"`
	Labels []float64   `json:"labels"`
}

// InitResponse reports the model that /api/init created.
type InitResponse struct {
	Status    string   `json:"status"`
	Params    int      `json:"params"`
	Widths    []int    `json:"widths"`
	Columns   []string `json:"columns"`
	TrainRows int      `json:"train_rows"`
	TestRows  int      `json:"test_rows"`
}

// TrainRequest controls how much work /api/train performs in one call.
//
// All fields are optional; server uses safe defaults when omitted.
type TrainRequest struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	Shuffle      *bool   `json:"shuffle"`
	Optimizer    string  `json:"optimizer"`
}

// TrainResponse summarises one /api/train call.
type TrainResponse struct {
	TotalEpochs int       `json:"total_epochs"`
	EpochLoss   []float64 `json:"epoch_loss"`
	Loss        float64   `json:"loss"`
	RunID       int64     `json:"run_id,omitempty"`
	Eval        *Eval     `json:"eval,omitempty"`
}

// Eval scores the model on the held-out rows at a 0.5 threshold.
type Eval struct {
	Rows      int     `json:"rows"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	TN        int     `json:"tn"`
	FN        int     `json:"fn"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// PredictRequest holds raw, unscaled feature rows.
type PredictRequest struct {
	Inputs [][]float64 `json:"inputs"`
}

type PredictResponse struct {
	Outputs [][]float64 `json:"outputs"`
}

// GraphRequest asks for the computation graph of one example. With a
// label the graph ends in the loss and carries its gradients.
type GraphRequest struct {
	Input   []float64 `json:"input"`
	Label   *float64  `json:"label"`
	RankDir string    `json:"rankdir"`
}

// RunsResponse is returned by /api/runs.
type RunsResponse struct {
	Runs   []journal.Run `json:"runs"`
	Losses []float64     `json:"losses,omitempty"` // only with ?run=<id>
}
