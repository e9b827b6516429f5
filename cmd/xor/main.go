package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/FlavioCFOliveira/FlatNeuron/internal/activations"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/data"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/flat"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/opt"
	"github.com/FlavioCFOliveira/FlatNeuron/internal/train"
	"golang.org/x/exp/rand"
)

func main() {
	fmt.Println("=== XOR Training Example ===")

	// 2 inputs -> 2 hidden -> 1 output, all sigmoid.
	// XOR is not linearly separable, so the hidden layer is required.
	network, err := flat.NewFeedforward(activations.Sigmoid, 2, 2, 1)
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}
	network.Randomize(-1, 1, rand.NewSource(42))

	fmt.Printf("Network layers (output first): %v\n", network.LayerCounts())
	fmt.Printf("Weights: %d\n", network.WeightCount())
	fmt.Println("Strategy: RPROP+")

	trainX := [][]float64{
		{0, 0},
		{0, 1},
		{1, 0},
		{1, 1},
	}
	trainY := [][]float64{
		{0},
		{1},
		{1},
		{0},
	}
	dataset, err := data.NewBasic(trainX, trainY)
	if err != nil {
		log.Fatalf("Failed to build dataset: %v", err)
	}

	trainer, err := train.New(network, dataset, opt.NewResilient(opt.RPROPPlus), train.Config{})
	if err != nil {
		log.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Dispose()

	err = train.Fit(context.Background(), trainer,
		train.Logger{Interval: 50},
		train.NewEndMinError(0.01),
		train.NewEndIterations(5000),
	)
	if err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Printf("Stopped after %d iterations, error %.6f\n", trainer.IterationNumber(), trainer.Error())

	fmt.Println("\nTesting trained network:")
	out := make([]float64, 1)
	for i := range trainX {
		if err := network.Compute(trainX[i], out); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Input: %v, Predicted: %.4f, Target: %v\n", trainX[i], out[0], trainY[i][0])
	}

	fmt.Println("\nSaving network to disk...")
	filename := "xor_network.gob"
	if err := network.Save(filename); err != nil {
		log.Fatalf("Error saving network: %v", err)
	}
	defer os.Remove(filename)

	loaded, err := flat.Load(filename)
	if err != nil {
		log.Fatalf("Error loading network: %v", err)
	}

	fmt.Println("Verifying loaded network:")
	allMatch := true
	loadedOut := make([]float64, 1)
	for i := range trainX {
		_ = network.Compute(trainX[i], out)
		_ = loaded.Compute(trainX[i], loadedOut)
		match := "OK"
		if math.Abs(out[0]-loadedOut[0]) > 1e-12 {
			match = "MISMATCH"
			allMatch = false
		}
		fmt.Printf("Input: %v, Original: %.4f, Loaded: %.4f [%s]\n", trainX[i], out[0], loadedOut[0], match)
	}

	if allMatch {
		fmt.Println("\nSUCCESS: All predictions match between original and loaded network!")
	} else {
		fmt.Println("\nFAILURE: Predictions differ between original and loaded network!")
	}
}
