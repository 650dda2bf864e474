// Package datamodule splits a contact point dataset into train, validation and
// test subsets and serves each of them through batch loaders.
//
// A DataModule follows a fixed lifecycle driven by an orchestrator:
//
//	dm.Prepare()
//	dm.Setup(datamodule.StageFit)
//	train, _ := dm.TrainLoader()
//	val, _ := dm.ValLoader()
//	...
//	dm.Teardown(datamodule.StageFit)
//
// Setup must run before any loader is requested. The loaders implement gomlx's
// train.Dataset and can be handed directly to a gomlx training loop.
package datamodule

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Noofbiz/contactPoint/datasets"
	"k8s.io/klog/v2"
)

// Stage names the phase an orchestrator is preparing for.
type Stage string

const (
	StageFit      Stage = "fit"
	StageValidate Stage = "validate"
	StageTest     Stage = "test"
	StagePredict  Stage = "predict"
)

// ErrNotSetup is returned when a loader is requested before Setup.
var ErrNotSetup = errors.New("data module is not set up")

// State is the checkpointed state of a Module.
type State map[string]any

// Module is the lifecycle an orchestrator drives, in this order: Prepare,
// Setup, any of the loaders, Teardown. SaveState and LoadState may be called
// at any point after construction.
type Module interface {
	Prepare() error
	Setup(stage Stage) error
	TrainLoader() (*Loader, error)
	ValLoader() (*Loader, error)
	TestLoader() (*Loader, error)
	Teardown(stage Stage) error
	SaveState() (State, error)
	LoadState(state State) error
}

// Trainer is the orchestrator a DataModule may be attached to.
type Trainer interface {
	// WorldSize returns the number of devices the global batch is spread over.
	WorldSize() int
}

// StaticTrainer is a Trainer with a fixed number of devices.
type StaticTrainer int

func (t StaticTrainer) WorldSize() int { return int(t) }

// DataModule implements Module over a datasets.Dataset.
type DataModule struct {
	ds      datasets.Dataset
	cfg     Config
	trainer Trainer

	batchSizePerDevice int

	train *datasets.Subset
	val   *datasets.Subset
	test  *datasets.Subset

	mu      sync.Mutex
	loaders []*Loader // handed out since the last Teardown
}

var _ Module = (*DataModule)(nil)

// New creates a data module for ds. Zero fields of cfg take their defaults
// (see Config.WithDefaults) and the result must pass Config.Validate.
func New(ds datasets.Dataset, cfg Config) (*DataModule, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DataModule{
		ds:                 ds,
		cfg:                cfg,
		batchSizePerDevice: cfg.BatchSize,
	}, nil
}

// Config returns the hyperparameters of the module.
func (dm *DataModule) Config() Config { return dm.cfg }

// Attach binds the orchestrator whose world size Setup divides the batch by.
// A nil trainer detaches.
func (dm *DataModule) Attach(t Trainer) { dm.trainer = t }

// BatchSizePerDevice returns the batch size each loader yields.
func (dm *DataModule) BatchSizePerDevice() int { return dm.batchSizePerDevice }

// Prepare has nothing to download or preprocess.
func (dm *DataModule) Prepare() error { return nil }

// Setup computes the per-device batch size and splits the dataset. The split
// happens once per module; later calls keep it.
func (dm *DataModule) Setup(stage Stage) error {
	if dm.trainer != nil {
		worldSize := dm.trainer.WorldSize()
		if worldSize < 1 {
			return fmt.Errorf("%w: world size must be positive, got %d", ErrInvalidConfig, worldSize)
		}
		if dm.cfg.BatchSize%worldSize != 0 {
			return fmt.Errorf("%w: batch size (%d) is not divisible by the number of devices (%d)",
				ErrInvalidConfig, dm.cfg.BatchSize, worldSize)
		}
		dm.batchSizePerDevice = dm.cfg.BatchSize / worldSize
	} else {
		dm.batchSizePerDevice = dm.cfg.BatchSize
	}

	if dm.train != nil && dm.val != nil && dm.test != nil {
		return nil
	}

	n := dm.ds.Len()
	trainLen, valLen, testLen := SplitLengths(n, dm.cfg.TrainRatio, dm.cfg.ValRatio)
	subsets, err := RandomSplit(dm.ds, []int{trainLen, valLen, testLen}, dm.cfg.Seed)
	if err != nil {
		return fmt.Errorf("failed to split dataset: %w", err)
	}
	dm.train, dm.val, dm.test = subsets[0], subsets[1], subsets[2]

	klog.V(1).Infof("setup(%s): split %d samples into train=%d val=%d test=%d (seed %d), batch size per device %d",
		stage, n, trainLen, valLen, testLen, dm.cfg.Seed, dm.batchSizePerDevice)
	return nil
}

// Splits returns the train, validation and test subsets, nil before Setup.
func (dm *DataModule) Splits() (train, val, test *datasets.Subset) {
	return dm.train, dm.val, dm.test
}

// TrainLoader returns a new shuffling loader over the train split.
func (dm *DataModule) TrainLoader() (*Loader, error) {
	return dm.loader("train", dm.train, true)
}

// ValLoader returns a new loader over the validation split, in split order.
func (dm *DataModule) ValLoader() (*Loader, error) {
	return dm.loader("val", dm.val, false)
}

// TestLoader returns a new loader over the test split, in split order.
func (dm *DataModule) TestLoader() (*Loader, error) {
	return dm.loader("test", dm.test, false)
}

func (dm *DataModule) loader(name string, subset *datasets.Subset, shuffle bool) (*Loader, error) {
	if subset == nil {
		return nil, fmt.Errorf("%s loader: %w", name, ErrNotSetup)
	}
	l, err := NewLoader(name, subset, LoaderOptions{
		BatchSize:  dm.batchSizePerDevice,
		NumWorkers: dm.cfg.NumWorkers,
		PinMemory:  dm.cfg.PinMemory,
		Shuffle:    shuffle,
		DropLast:   true,
		Seed:       dm.cfg.ShuffleSeed,
	})
	if err != nil {
		return nil, err
	}
	dm.mu.Lock()
	dm.loaders = append(dm.loaders, l)
	dm.mu.Unlock()
	return l, nil
}

// Teardown closes every loader handed out since the previous Teardown,
// stopping their prefetch workers. The split is kept. It must not run while
// those loaders are being consumed.
func (dm *DataModule) Teardown(stage Stage) error {
	dm.mu.Lock()
	loaders := dm.loaders
	dm.loaders = nil
	dm.mu.Unlock()

	for _, l := range loaders {
		if err := l.Close(); err != nil {
			return err
		}
	}
	klog.V(1).Infof("teardown(%s): closed %d loaders", stage, len(loaders))
	return nil
}

// SaveState returns an empty state: the split is reproducible from the
// config alone. Use Config().HParams() to store the hyperparameters.
func (dm *DataModule) SaveState() (State, error) { return State{}, nil }

// LoadState accepts any state saved by SaveState.
func (dm *DataModule) LoadState(state State) error { return nil }
