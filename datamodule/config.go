package datamodule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Defaults applied by Config.WithDefaults to zero-valued fields.
const (
	DefaultTrainRatio = 0.5
	DefaultValRatio   = 0.2
	DefaultBatchSize  = 128
	DefaultNumWorkers = 4
	DefaultSeed       = 42
)

// ErrInvalidConfig is returned for configurations the data module cannot run with.
var ErrInvalidConfig = errors.New("invalid data module config")

// Config holds the hyperparameters of a DataModule. It is copied into the
// module at construction and never changed afterwards.
type Config struct {
	// TrainRatio and ValRatio are the fractions of the dataset assigned to the
	// train and validation splits. The test split takes the remainder, so
	// their sum must stay below 1.
	TrainRatio float64 `json:"train_ratio"`
	ValRatio   float64 `json:"val_ratio"`

	// BatchSize is the global batch size, divided evenly across devices.
	BatchSize int `json:"batch_size"`

	// NumWorkers bounds the goroutines prefetching batches. Zero collates
	// batches synchronously.
	NumWorkers int `json:"num_workers"`

	// PinMemory is carried for checkpoint portability.
	PinMemory bool `json:"pin_memory"`

	// Seed of the split permutation. Zero means unset and becomes
	// DefaultSeed, so 0 itself cannot be used as a seed.
	Seed int64 `json:"seed"`

	// ShuffleSeed seeds the train loader shuffling. Zero uses a time-based seed.
	ShuffleSeed int64 `json:"shuffle_seed"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{NumWorkers: DefaultNumWorkers}.WithDefaults()
}

// WithDefaults returns a copy of c with zero ratios, batch size and seed
// replaced by defaults. NumWorkers is kept as is since zero is meaningful.
func (c Config) WithDefaults() Config {
	if c.TrainRatio == 0 && c.ValRatio == 0 {
		c.TrainRatio = DefaultTrainRatio
		c.ValRatio = DefaultValRatio
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	return c
}

// Validate reports whether the configuration can drive a split.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("%w: number of workers must not be negative, got %d", ErrInvalidConfig, c.NumWorkers)
	}
	if c.TrainRatio < 0 || c.ValRatio < 0 {
		return fmt.Errorf("%w: split ratios must not be negative, got (%g, %g)", ErrInvalidConfig, c.TrainRatio, c.ValRatio)
	}
	if c.TrainRatio+c.ValRatio >= 1 {
		return fmt.Errorf("%w: train and validation ratios (%g, %g) leave no room for a test split",
			ErrInvalidConfig, c.TrainRatio, c.ValRatio)
	}
	return nil
}

// LoadConfig reads a JSON config file. Fields absent from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg.WithDefaults(), nil
}

// HParams returns the configuration as plain key-value data, suitable for
// storing next to a checkpoint.
func (c Config) HParams() map[string]any {
	return map[string]any{
		"train_ratio":  c.TrainRatio,
		"val_ratio":    c.ValRatio,
		"batch_size":   c.BatchSize,
		"num_workers":  c.NumWorkers,
		"pin_memory":   c.PinMemory,
		"seed":         c.Seed,
		"shuffle_seed": c.ShuffleSeed,
	}
}

// ConfigFromHParams rebuilds a Config from HParams output, including output
// that went through a JSON round trip.
func ConfigFromHParams(hp map[string]any) (Config, error) {
	data, err := json.Marshal(hp)
	if err != nil {
		return Config{}, fmt.Errorf("failed to encode hparams: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode hparams: %w", err)
	}
	return cfg, nil
}
