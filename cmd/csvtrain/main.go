// Command csvtrain trains a flat network on a CSV file.
//
//	csvtrain -data iris.csv -header -labels 4,5,6 -hidden 8 -strategy rprop -args TYPE=iRPROP+
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/train"
	"golang.org/x/exp/rand"
)

func main() {
	var (
		dataFile   = flag.String("data", "", "CSV training file (required)")
		labels     = flag.String("labels", "", "comma separated ideal column indices (required)")
		header     = flag.Bool("header", false, "skip the first CSV line")
		normalize  = flag.Bool("normalize", false, "min-max scale every input column to [0,1]")
		split      = flag.Float64("split", 1, "fraction of records used for training, the rest validates")
		hidden     = flag.String("hidden", "8", "comma separated hidden layer sizes")
		act        = flag.String("activation", "sigmoid", "linear, tanh or sigmoid")
		strategy   = flag.String("strategy", "rprop", "backprop, rprop or manhattan")
		args       = flag.String("args", "", "strategy parameters, e.g. LR=0.5,MOM=0.1")
		threads    = flag.Int("threads", 0, "CPU workers, 0 for one per CPU")
		accel      = flag.Int("accelerators", 0, "batched matrix workers")
		iterations = flag.Int("iterations", 1000, "maximum iterations")
		minError   = flag.Float64("error", 0.01, "stop below this training error")
		interval   = flag.Int("log", 100, "print progress every n iterations")
		csvLog     = flag.String("csvlog", "", "write progress rows to this CSV file")
		checkpoint = flag.String("checkpoint", "", "save the best network to this file")
		out        = flag.String("out", "model.gob", "trained network file")
		seed       = flag.Uint64("seed", 1, "weight initialization seed")
	)
	flag.Parse()

	if *dataFile == "" || *labels == "" {
		flag.Usage()
		os.Exit(2)
	}

	labelCols, err := parseInts(*labels)
	if err != nil {
		log.Fatalf("Invalid -labels: %v", err)
	}
	hiddenSizes, err := parseInts(*hidden)
	if err != nil {
		log.Fatalf("Invalid -hidden: %v", err)
	}
	actType, err := activations.Parse(*act)
	if err != nil {
		log.Fatalf("Invalid -activation: %v", err)
	}

	dataset, err := data.LoadCSV(*dataFile, labelCols, *header)
	if err != nil {
		log.Fatalf("Failed to load CSV: %v", err)
	}
	if *normalize {
		dataset.Normalize()
	}
	fmt.Printf("Loaded %d records, %d inputs, %d ideals\n", dataset.Count(), dataset.InputSize(), dataset.IdealSize())

	training, validation := dataset, (*data.Basic)(nil)
	if *split < 1 {
		if training, validation, err = dataset.Split(*split); err != nil {
			log.Fatalf("Failed to split dataset: %v", err)
		}
		fmt.Printf("Training on %d records, validating on %d\n", training.Count(), validation.Count())
	}

	counts := append([]int{dataset.InputSize()}, hiddenSizes...)
	counts = append(counts, dataset.IdealSize())
	network, err := flat.NewFeedforward(actType, counts...)
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}
	network.Randomize(-1, 1, rand.NewSource(*seed))

	s, err := opt.Parse(*strategy, *args)
	if err != nil {
		log.Fatalf("Invalid strategy: %v", err)
	}

	trainer, err := train.New(network, training, s, train.Config{
		NumThreads:   *threads,
		Accelerators: *accel,
	})
	if err != nil {
		log.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Dispose()

	callbacks := []train.Callback{
		train.Logger{Interval: *interval},
		train.NewEndIterations(*iterations),
		train.NewEndMinError(*minError),
	}
	if *csvLog != "" {
		callbacks = append(callbacks, train.NewCSVLogger(*csvLog, false))
	}
	if *checkpoint != "" {
		callbacks = append(callbacks, train.NewCheckpoint(*checkpoint))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Training %v network with %T...\n", counts, s)
	if err := train.Fit(ctx, trainer, callbacks...); err != nil && ctx.Err() == nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Printf("Finished after %d iterations, training error %.6f\n", trainer.IterationNumber(), trainer.Error())

	if validation != nil {
		e, err := network.CalculateError(validation)
		if err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		fmt.Printf("Validation error: %.6f\n", e)
	}

	if err := network.Save(*out); err != nil {
		log.Fatalf("Error saving network: %v", err)
	}
	fmt.Printf("Network saved to %s\n", *out)
}

func parseInts(s string) ([]int, error) {
	var values []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
