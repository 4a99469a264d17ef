package train

import (
	"log"

	"scalar-grad-explorer/nn"
)

// Callback is notified as training progresses.
type Callback interface {
	OnTrainBegin(m *nn.MLP, cfg Config)
	OnEpochEnd(epoch int, loss float64) (stop bool) // epoch is 0-indexed
	OnTrainEnd(r *Result)
}

// progress logs the epoch loss every few epochs.
type progress struct {
	logger *log.Logger
	every  int
	epochs int
}

// PrintProgress logs the loss every `every` epochs, and always the last one.
func PrintProgress(logger *log.Logger, every int) Callback {
	if every < 1 {
		every = 1
	}
	return &progress{logger: logger, every: every}
}

func (p *progress) OnTrainBegin(m *nn.MLP, cfg Config) {
	p.epochs = cfg.Epochs
	p.logger.Printf("training %d parameters, widths %v, %d epochs, batch %d, lr %g",
		m.NumParams(), m.Widths(), cfg.Epochs, cfg.BatchSize, cfg.LearningRate)
}

func (p *progress) OnEpochEnd(epoch int, loss float64) bool {
	if (epoch+1)%p.every == 0 || epoch+1 == p.epochs {
		p.logger.Printf("epoch %d/%d, loss: %.6f", epoch+1, p.epochs, loss)
	}
	return false
}

func (p *progress) OnTrainEnd(r *Result) {
	p.logger.Printf("training complete after %d epochs, final loss %.6f", r.Epochs, r.FinalLoss)
}

// History records every epoch loss.
type History struct {
	Loss []float64
}

func NewHistory() *History { return &History{} }

func (h *History) OnTrainBegin(*nn.MLP, Config) { h.Loss = h.Loss[:0] }

func (h *History) OnEpochEnd(_ int, loss float64) bool {
	h.Loss = append(h.Loss, loss)
	return false
}

func (h *History) OnTrainEnd(*Result) {}

// earlyStopping stops once the loss has failed to improve by more than
// minDelta for patience epochs in a row, then puts back the best weights.
type earlyStopping struct {
	patience int
	minDelta float64

	model *nn.MLP
	best  float64
	snap  [][]float64
	wait  int
}

func EarlyStopping(patience int, minDelta float64) Callback {
	return &earlyStopping{patience: patience, minDelta: minDelta}
}

func (e *earlyStopping) OnTrainBegin(m *nn.MLP, _ Config) {
	e.model = m
	e.snap = nil
	e.wait = 0
}

func (e *earlyStopping) OnEpochEnd(_ int, loss float64) bool {
	if e.snap == nil || loss < e.best-e.minDelta {
		e.best = loss
		e.snap = e.model.Snapshot()
		e.wait = 0
		return false
	}
	e.wait++
	return e.wait >= e.patience
}

func (e *earlyStopping) OnTrainEnd(*Result) {
	if e.snap != nil {
		// Snapshot came from the same model, so shapes always match.
		_ = e.model.Restore(e.snap)
	}
}
