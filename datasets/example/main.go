package main

// Example command that loads the contact point array, splits it with the data
// module and converts the first training batch into gomlx tensors.
//
// Usage:
//   PROJECT_ROOT=/path/to/project go run ./datasets/example
//
// The array is read from <project_root>/data/bc_3_trainingData.npy. If it is
// missing the example prints an error and exits.

import (
	"fmt"
	"log"

	"github.com/Noofbiz/contactPoint/datamodule"
	"github.com/Noofbiz/contactPoint/datasets"
)

func main() {
	ds, err := datasets.NewContactPointDataset("")
	if err != nil {
		log.Fatalf("failed to load contact point dataset: %v", err)
	}
	fmt.Printf("Loaded %s: %d samples, %d inputs, %d outputs\n", ds.Name(), ds.Len(), ds.InputDim(), ds.OutputDim())

	// Show the first few rows directly from the dataset
	n := min(3, ds.Len())
	for i := range n {
		in, out, err := ds.Example(i)
		if err != nil {
			log.Fatalf("failed to read example %d: %v", i, err)
		}
		fmt.Printf("  sample %d: first input %.4f, contact (%.4f, %.4f, %.4f)\n", i, in[0], out[0], out[1], out[2])
	}

	cfg := datamodule.DefaultConfig()
	cfg.NumWorkers = 0
	dm, err := datamodule.New(ds, cfg)
	if err != nil {
		log.Fatalf("failed to create data module: %v", err)
	}
	if err := dm.Setup(datamodule.StageFit); err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	train, val, test := dm.Splits()
	fmt.Printf("Split sizes: train=%d val=%d test=%d\n", train.Len(), val.Len(), test.Len())

	loader, err := dm.TrainLoader()
	if err != nil {
		log.Fatalf("failed to create train loader: %v", err)
	}
	defer loader.Close()

	flat, err := loader.Next()
	if err != nil {
		log.Fatalf("no training batch available: %v", err)
	}
	inT, outT, err := flat.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to tensors: %v", err)
	}
	fmt.Printf("First training batch: inputs %s, outputs %s\n", inT.Shape(), outT.Shape())
}
