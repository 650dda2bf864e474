// Command inspect loads a contact point dataset, splits it the way training
// does and walks every loader once per epoch, reporting batch counts, tensor
// shapes and contact location statistics per split.
//
// Usage:
//
//	go run ./cmd/inspect -data bc_3_trainingData.npy -batch-size 64 -plot plots/contacts.png
//
// The dataset is looked up under <project_root>/data, where the project root
// is $PROJECT_ROOT or the closest parent directory holding a .project-root
// file. Use -path to point at a file directly.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Noofbiz/contactPoint/datamodule"
	"github.com/Noofbiz/contactPoint/datasets"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	dataFlag := flag.String("data", datasets.DefaultDataName, "array file name under <project_root>/data")
	pathFlag := flag.String("path", "", "explicit path of the array file (overrides -data)")
	configFlag := flag.String("config", "", "path to a JSON data module config (optional)")

	// Data module tunables; explicit flags override the JSON config.
	batchSize := flag.Int("batch-size", datamodule.DefaultBatchSize, "global batch size")
	workers := flag.Int("workers", datamodule.DefaultNumWorkers, "prefetching workers per loader (0 = synchronous)")
	pinMemory := flag.Bool("pin-memory", false, "record pin_memory in the hyperparameters")
	trainRatio := flag.Float64("train-ratio", datamodule.DefaultTrainRatio, "fraction of samples in the train split")
	valRatio := flag.Float64("val-ratio", datamodule.DefaultValRatio, "fraction of samples in the validation split")
	seed := flag.Int64("seed", datamodule.DefaultSeed, "split permutation seed (0 = default seed)")
	shuffleSeed := flag.Int64("shuffle-seed", 0, "train shuffling seed (0 = time based)")

	worldSize := flag.Int("world-size", 1, "number of devices the batch is divided across")
	epochs := flag.Int("epochs", 1, "number of epochs to iterate every loader")
	plotPath := flag.String("plot", "", "if set, write a PNG scatter plot of contact locations per split")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")

	flag.Parse()

	cfg := datamodule.DefaultConfig()
	if *configFlag != "" {
		var err error
		if cfg, err = datamodule.LoadConfig(*configFlag); err != nil {
			klog.Exitf("failed to load config: %v", err)
		}
		klog.Infof("Loaded data module config from %s", *configFlag)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "workers":
			cfg.NumWorkers = *workers
		case "pin-memory":
			cfg.PinMemory = *pinMemory
		case "train-ratio":
			cfg.TrainRatio = *trainRatio
		case "val-ratio":
			cfg.ValRatio = *valRatio
		case "seed":
			cfg.Seed = *seed
		case "shuffle-seed":
			cfg.ShuffleSeed = *shuffleSeed
		}
	})

	if *printEffectiveConfig {
		out, err := json.MarshalIndent(cfg.HParams(), "", "  ")
		if err != nil {
			klog.Exitf("failed to encode config: %v", err)
		}
		fmt.Println(string(out))
		fmt.Printf("world_size: %d\n", *worldSize)
		return
	}

	var (
		ds  *datasets.ContactPointDataset
		err error
	)
	if *pathFlag != "" {
		ds, err = datasets.LoadContactPointDataset(*pathFlag)
	} else {
		ds, err = datasets.NewContactPointDataset(*dataFlag)
	}
	if err != nil {
		klog.Exitf("failed to open contact point dataset: %v", err)
	}
	klog.Infof("Dataset %s loaded: %d samples, input dim %d, output dim %d, %s in memory",
		ds.Name(), ds.Len(), ds.InputDim(), ds.OutputDim(), humanize.Bytes(uint64(ds.SizeBytes())))

	dm, err := setupModule(ds, cfg, *worldSize, flagSet("world-size"))
	if err != nil {
		klog.Exitf("failed to set up data module: %v", err)
	}
	defer func() {
		if err := dm.Teardown(datamodule.StageFit); err != nil {
			klog.Warningf("teardown: %v", err)
		}
	}()

	train, val, test := dm.Splits()
	splits := []namedSplit{{"train", train}, {"val", val}, {"test", test}}
	for _, s := range splits {
		st, err := outputStats(s.ds)
		if err != nil {
			klog.Exitf("%s statistics: %v", s.name, err)
		}
		klog.Infof("Split %-5s: %d samples, contact mean=(%.4f, %.4f, %.4f) std=(%.4f, %.4f, %.4f)",
			s.name, s.ds.Len(),
			st[0].Mean, st[1].Mean, st[2].Mean, st[0].Std, st[1].Std, st[2].Std)
	}

	loaders := []func() (*datamodule.Loader, error){dm.TrainLoader, dm.ValLoader, dm.TestLoader}
	for _, get := range loaders {
		l, err := get()
		if err != nil {
			klog.Exitf("loader: %v", err)
		}
		if err := walkLoader(l, *epochs); err != nil {
			klog.Exitf("%s loader: %v", l.Name(), err)
		}
	}

	if *plotPath != "" {
		if err := plotContacts(*plotPath, splits); err != nil {
			klog.Exitf("failed to write plot: %v", err)
		}
		klog.Infof("Wrote contact location plot to %s", *plotPath)
	}
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// setupModule builds a data module over ds and runs it up to Setup. An
// explicit world size, even an invalid one, attaches a trainer so Setup
// validates it.
func setupModule(ds datasets.Dataset, cfg datamodule.Config, worldSize int, attach bool) (*datamodule.DataModule, error) {
	dm, err := datamodule.New(ds, cfg)
	if err != nil {
		return nil, err
	}
	if attach {
		dm.Attach(datamodule.StaticTrainer(worldSize))
	}
	if err := dm.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	if err := dm.Setup(datamodule.StageFit); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	return dm, nil
}

type namedSplit struct {
	name string
	ds   datasets.Dataset
}

// walkLoader consumes epochs of l through its train.Dataset interface.
func walkLoader(l *datamodule.Loader, epochs int) error {
	defer l.Close()
	opts := l.Options()
	for epoch := range epochs {
		batches := 0
		for {
			_, inputs, labels, err := l.Yield()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if batches == 0 && epoch == 0 {
				klog.Infof("Loader %-5s: input tensor %s, label tensor %s",
					l.Name(), inputs[0].Shape(), labels[0].Shape())
			}
			batches++
		}
		klog.Infof("Loader %-5s epoch %d: %d batches of %d (shuffle=%t, drop_last=%t, workers=%d, pin_memory=%t)",
			l.Name(), epoch, batches, opts.BatchSize, opts.Shuffle, opts.DropLast, opts.NumWorkers, opts.PinMemory)
		l.Reset()
	}
	if l.Len() == 0 {
		klog.Warningf("Loader %s yields no batch: split has fewer samples than the batch size", l.Name())
	}
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
}
