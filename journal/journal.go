// Package journal keeps a SQLite record of training runs and their
// per-epoch losses.
package journal

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scalar-grad-explorer/nn"
	"scalar-grad-explorer/train"
)

// Run is one row of the runs table.
type Run struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"time"`
	Arch         string    `json:"arch"`
	Epochs       int       `json:"epochs"`
	BatchSize    int       `json:"batch_size"`
	LearningRate float64   `json:"learning_rate"`
	Seed         int64     `json:"seed"`
}

// Journal wraps the database handle. It is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			arch TEXT NOT NULL,
			epochs INTEGER NOT NULL,
			batch_size INTEGER NOT NULL,
			learning_rate REAL NOT NULL,
			seed INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create runs: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS epochs(
			run_id INTEGER NOT NULL REFERENCES runs(id),
			epoch INTEGER NOT NULL,
			loss REAL NOT NULL,
			PRIMARY KEY(run_id, epoch)
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create epochs: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// StartRun inserts a run and returns its id.
func (j *Journal) StartRun(arch string, cfg train.Config) (int64, error) {
	res, err := j.db.Exec(
		"INSERT INTO runs(ts, arch, epochs, batch_size, learning_rate, seed) VALUES(?,?,?,?,?,?)",
		float64(time.Now().UnixMilli())/1000.0, arch, cfg.Epochs, cfg.BatchSize, cfg.LearningRate, cfg.Seed)
	if err != nil {
		return 0, fmt.Errorf("journal: start run: %w", err)
	}
	return res.LastInsertId()
}

// RecordEpoch stores the mean loss of a 0-indexed epoch.
func (j *Journal) RecordEpoch(runID int64, epoch int, loss float64) error {
	_, err := j.db.Exec("INSERT INTO epochs(run_id, epoch, loss) VALUES(?,?,?)", runID, epoch, loss)
	if err != nil {
		return fmt.Errorf("journal: record epoch %d of run %d: %w", epoch, runID, err)
	}
	return nil
}

// Runs lists up to limit runs, newest first. limit <= 0 lists them all.
func (j *Journal) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		"SELECT id, ts, arch, epochs, batch_size, learning_rate, seed FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var ts float64
		if err := rows.Scan(&r.ID, &ts, &r.Arch, &r.Epochs, &r.BatchSize, &r.LearningRate, &r.Seed); err != nil {
			return nil, err
		}
		r.Time = time.UnixMilli(int64(ts * 1000))
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// EpochLosses returns the recorded losses of a run in epoch order.
func (j *Journal) EpochLosses(runID int64) ([]float64, error) {
	rows, err := j.db.Query("SELECT loss FROM epochs WHERE run_id = ? ORDER BY epoch ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("journal: losses of run %d: %w", runID, err)
	}
	defer rows.Close()

	var losses []float64
	for rows.Next() {
		var l float64
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		losses = append(losses, l)
	}
	return losses, rows.Err()
}

// Arch describes a network as its layer sizes from input to output,
// e.g. "13-8-1".
func Arch(m *nn.MLP) string {
	parts := []string{strconv.Itoa(m.InputDim())}
	for _, w := range m.Widths() {
		parts = append(parts, strconv.Itoa(w))
	}
	return strings.Join(parts, "-")
}

// Recorder is a train.Callback that journals every run it sees. Callbacks
// cannot fail, so the first error is kept and later writes are skipped.
type Recorder struct {
	j     *Journal
	runID int64
	err   error
}

func NewRecorder(j *Journal) *Recorder { return &Recorder{j: j} }

// RunID is the id of the most recent run, 0 before any.
func (r *Recorder) RunID() int64 { return r.runID }

// Err returns the first write error.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) OnTrainBegin(m *nn.MLP, cfg train.Config) {
	r.runID, r.err = r.j.StartRun(Arch(m), cfg)
}

func (r *Recorder) OnEpochEnd(epoch int, loss float64) bool {
	if r.err == nil {
		r.err = r.j.RecordEpoch(r.runID, epoch, loss)
	}
	return false
}

func (r *Recorder) OnTrainEnd(*train.Result) {}
