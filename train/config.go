package train

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("train: invalid config")

	// ErrShape is returned when inputs and labels cannot be paired up.
	ErrShape = errors.New("train: shape mismatch")
)

// Config holds the hyperparameters of a training run. Epochs, BatchSize
// and LearningRate must be set. Examples are reshuffled every epoch unless
// NoShuffle is set.
type Config struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
	NoShuffle    bool    `json:"no_shuffle"` // keep input order every epoch
	Seed         int64   `json:"seed"`
	Optimizer    string  `json:"optimizer"` // "sgd" (default) or "adam"
}

// Validate checks all required fields are set.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("%w: Epochs must be > 0, got %d", ErrInvalidConfig, c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: BatchSize must be > 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return fmt.Errorf("%w: LearningRate must be a positive number, got %g", ErrInvalidConfig, c.LearningRate)
	}
	if _, err := newOptimizer(c.Optimizer, c.LearningRate); err != nil {
		return err
	}
	return nil
}
