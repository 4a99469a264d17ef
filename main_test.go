package main

import (
	"os"
	"path/filepath"
	"testing"

	"scalar-grad-explorer/journal"
	"scalar-grad-explorer/nn"
)

const andCSV = `a,b,output
0,0,0
0,1,0
1,0,0
1,1,1
0,0,0
0,1,0
1,0,0
1,1,1
`

func testOptions(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "and.csv")
	if err := os.WriteFile(csvPath, []byte(andCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return options{
		csv:       csvPath,
		target:    "output",
		layers:    []int{2, 1},
		hidden:    nn.Sigmoid,
		epochs:    5,
		batch:     4,
		lr:        0.5,
		optimizer: "sgd",
		testSplit: 0.25,
		journal:   filepath.Join(dir, "runs.sqlite"),
		logEvery:  5,
	}
}

func TestStartRecordsRun(t *testing.T) {
	opts := testOptions(t)
	if err := start(opts); err != nil {
		t.Fatal(err)
	}

	j, err := journal.Open(opts.journal)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	runs, err := j.Runs(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Arch != "2-2-1" || runs[0].Epochs != 5 {
		t.Fatalf("unexpected runs %+v", runs)
	}
	losses, err := j.EpochLosses(runs[0].ID)
	if err != nil || len(losses) != 5 {
		t.Errorf("expected 5 recorded losses, got %v (%v)", losses, err)
	}
}

func TestStartReturnsErrorsAfterOpeningJournal(t *testing.T) {
	opts := testOptions(t)
	opts.csv = filepath.Join(t.TempDir(), "missing.csv")
	if err := start(opts); err == nil {
		t.Fatal("expected error for missing CSV")
	}

	// The journal was created, closed and is usable again.
	j, err := journal.Open(opts.journal)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if runs, err := j.Runs(0); err != nil || len(runs) != 0 {
		t.Errorf("expected an empty journal, got %v (%v)", runs, err)
	}
}
