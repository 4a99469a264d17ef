// Command scalar-grad-explorer trains a small binary classifier on a CSV
// file with a scalar autograd engine, or serves the same workflow over HTTP.
//
//	scalar-grad-explorer -csv heart.csv -target output -layers 15,15,1
//	scalar-grad-explorer -serve :8080 -journal runs.sqlite
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"scalar-grad-explorer/dataset"
	"scalar-grad-explorer/journal"
	"scalar-grad-explorer/nn"
	"scalar-grad-explorer/train"
)

type options struct {
	csv       string
	target    string
	layers    []int
	hidden    nn.Activation
	epochs    int
	batch     int
	lr        float64
	optimizer string
	seed      int64
	testSplit float64
	journal   string
	serve     string
	logEvery  int
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}
	if err := start(opts); err != nil {
		log.Fatal(err)
	}
}

// start opens the journal, if any, and either serves or trains. The
// journal is closed before start returns, whatever the outcome.
func start(opts options) (err error) {
	var j *journal.Journal
	if opts.journal != "" {
		if j, err = journal.Open(opts.journal); err != nil {
			return err
		}
		defer func() {
			if cerr := j.Close(); err == nil {
				err = cerr
			}
		}()
	}

	if opts.serve != "" {
		mux := http.NewServeMux()
		NewServer(j, log.Default()).RegisterRoutes(mux, nil)
		log.Printf("Server starting on %s...", opts.serve)
		return http.ListenAndServe(opts.serve, mux)
	}
	return run(opts, j)
}

func parseFlags() (options, error) {
	var (
		opts   options
		layers string
		hidden string
	)
	flag.StringVar(&opts.csv, "csv", "", "CSV file with a header row")
	flag.StringVar(&opts.target, "target", "output", "name of the label column")
	flag.StringVar(&layers, "layers", "15,15,1", "comma-separated layer widths; the last must be 1")
	flag.StringVar(&hidden, "hidden", "sigmoid", "hidden activation: sigmoid, tanh, relu or linear")
	flag.IntVar(&opts.epochs, "epochs", 50, "training epochs")
	flag.IntVar(&opts.batch, "batch", 64, "mini-batch size")
	flag.Float64Var(&opts.lr, "lr", 0.1, "learning rate")
	flag.StringVar(&opts.optimizer, "optimizer", "sgd", "sgd or adam")
	flag.Int64Var(&opts.seed, "seed", 0, "seed for weights, split and shuffling")
	flag.Float64Var(&opts.testSplit, "test-split", 0.25, "fraction of rows held out for evaluation")
	flag.StringVar(&opts.journal, "journal", "", "SQLite file to record runs in")
	flag.StringVar(&opts.serve, "serve", "", "serve the HTTP API on this address instead of training")
	flag.IntVar(&opts.logEvery, "log-every", 1, "log the loss every N epochs")
	flag.Parse()

	var err error
	if opts.layers, err = parseLayers(layers); err != nil {
		return opts, err
	}
	if opts.hidden, err = nn.ParseActivation(hidden); err != nil {
		return opts, err
	}
	if opts.serve == "" && opts.csv == "" {
		return opts, errors.New("one of -csv or -serve is required")
	}
	return opts, nil
}

func parseLayers(s string) ([]int, error) {
	var widths []int
	for _, f := range strings.Split(s, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("bad -layers %q: %w", s, err)
		}
		widths = append(widths, w)
	}
	return widths, nil
}

// run loads the CSV, trains, and prints the confusion matrix of the
// held-out rows.
func run(opts options, j *journal.Journal) error {
	d, err := dataset.LoadFile(opts.csv, opts.target)
	if err != nil {
		return err
	}
	exp, err := newExperiment(d, opts.layers, nn.Config{Seed: opts.seed, Hidden: opts.hidden}, opts.testSplit, opts.seed)
	if err != nil {
		return err
	}
	log.Printf("loaded %d rows with %d features from %s (%d train, %d test)",
		d.Len(), len(d.Columns), opts.csv, exp.train.Len(), exp.test.Len())

	callbacks := []train.Callback{train.PrintProgress(log.Default(), opts.logEvery)}
	var rec *journal.Recorder
	if j != nil {
		rec = journal.NewRecorder(j)
		callbacks = append(callbacks, rec)
	}

	cfg := train.Config{
		Epochs:       opts.epochs,
		BatchSize:    opts.batch,
		LearningRate: opts.lr,
		Seed:         opts.seed,
		Optimizer:    opts.optimizer,
	}
	if _, err := exp.fit(cfg, callbacks...); err != nil {
		return err
	}
	if rec != nil {
		if err := rec.Err(); err != nil {
			return err
		}
		log.Printf("recorded run %d in %s", rec.RunID(), opts.journal)
	}

	c, err := exp.evaluate()
	if err != nil {
		return err
	}
	fmt.Println(c)
	fmt.Printf("Accuracy  = %.4f\nPrecision = %.4f\nRecall    = %.4f\n", c.Accuracy(), c.Precision(), c.Recall())
	return nil
}
