package datamodule

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/Noofbiz/contactPoint/datasets"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"k8s.io/klog/v2"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	BatchSize  int
	NumWorkers int  // prefetching goroutines, 0 = synchronous
	PinMemory  bool // recorded only: host backends have no pinned allocations
	Shuffle    bool // reshuffle at the start of every epoch
	DropLast   bool // drop the trailing partial batch

	// Seed for shuffling. Zero uses a time-based seed.
	Seed int64
}

// Loader iterates a dataset in batches, one epoch at a time. It implements
// gomlx's train.Dataset: Yield returns io.EOF at the end of an epoch and
// Reset starts the next one.
//
// A Loader is meant to be consumed by a single goroutine.
type Loader struct {
	name string
	ds   datasets.Dataset
	opts LoaderOptions
	rng  *rand.Rand

	epoch   int
	started bool
	order   []int // dataset positions for the current epoch
	pos     int   // next batch to hand out
	pf      *prefetcher
}

var _ train.Dataset = (*Loader)(nil)

// NewLoader creates a loader over ds.
func NewLoader(name string, ds datasets.Dataset, opts LoaderOptions) (*Loader, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, opts.BatchSize)
	}
	if opts.NumWorkers < 0 {
		return nil, fmt.Errorf("%w: number of workers must not be negative, got %d", ErrInvalidConfig, opts.NumWorkers)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Loader{
		name: name,
		ds:   ds,
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

// Name implements train.Dataset.
func (l *Loader) Name() string { return l.name }

// Len returns the number of batches in one epoch.
func (l *Loader) Len() int {
	n := l.ds.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Options returns the options the loader was created with.
func (l *Loader) Options() LoaderOptions { return l.opts }

// Epoch returns the number of completed Reset calls.
func (l *Loader) Epoch() int { return l.epoch }

// Next returns the next batch of the current epoch, or io.EOF once the epoch
// is exhausted.
func (l *Loader) Next() (*datasets.BatchFlat, error) {
	if !l.started {
		l.startEpoch()
	}
	if l.pos >= l.Len() {
		return nil, io.EOF
	}
	k := l.pos
	l.pos++
	if l.pf != nil {
		return l.pf.get(k)
	}
	return l.collate(l.order, k)
}

// Yield implements train.Dataset, returning one input and one label tensor
// per batch.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	in, out, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return l, []*tensors.Tensor{in}, []*tensors.Tensor{out}, nil
}

// Reset implements train.Dataset. It abandons the current epoch, if any; the
// next call to Next or Yield starts a new one.
func (l *Loader) Reset() {
	l.stopPrefetch()
	l.started = false
	l.epoch++
}

// Close stops prefetching goroutines. It may be called on an idle or already
// closed loader; a later Next starts a new epoch.
func (l *Loader) Close() error {
	l.stopPrefetch()
	return nil
}

func (l *Loader) startEpoch() {
	// a fresh slice per epoch: workers of an abandoned epoch may still read the old one
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	l.order = order
	l.pos = 0
	l.started = true

	nb := l.Len()
	if l.opts.NumWorkers > 0 && nb > 0 {
		l.pf = startPrefetch(nb, l.opts.NumWorkers, func(k int) (*datasets.BatchFlat, error) {
			return l.collate(order, k)
		})
	}
	klog.V(2).Infof("%s: epoch %d, %d batches of %d (workers=%d, shuffle=%t)",
		l.name, l.epoch, nb, l.opts.BatchSize, l.opts.NumWorkers, l.opts.Shuffle)
}

// collate builds batch k of an epoch order. It only reads immutable state and
// is called concurrently by prefetch workers.
func (l *Loader) collate(order []int, k int) (*datasets.BatchFlat, error) {
	start := k * l.opts.BatchSize
	end := min(start+l.opts.BatchSize, len(order))
	inputs, outputs, err := l.ds.Batch(order[start:end])
	if err != nil {
		return nil, fmt.Errorf("%s: batch %d: %w", l.name, k, err)
	}
	return datasets.MakeBatchFlat(inputs, outputs)
}

func (l *Loader) stopPrefetch() {
	if l.pf != nil {
		l.pf.close()
		l.pf = nil
	}
}

type batchResult struct {
	batch *datasets.BatchFlat
	err   error
}

// prefetcher collates the batches of one epoch on a pool of workers, at most
// 2*workers batches ahead of the consumer. Results are handed out in batch
// order regardless of completion order.
type prefetcher struct {
	slots []chan batchResult // one buffered slot per batch, written once
	sem   chan struct{}      // batches dispatched but not yet consumed
	stop  chan struct{}
	wg    sync.WaitGroup
}

func startPrefetch(nb, workers int, build func(k int) (*datasets.BatchFlat, error)) *prefetcher {
	p := &prefetcher{
		slots: make([]chan batchResult, nb),
		sem:   make(chan struct{}, 2*workers),
		stop:  make(chan struct{}),
	}
	for k := range p.slots {
		p.slots[k] = make(chan batchResult, 1)
	}
	workers = min(workers, nb)
	jobs := make(chan int)

	p.wg.Add(workers + 1)
	go func() {
		defer p.wg.Done()
		defer close(jobs)
		for k := range nb {
			select {
			case p.sem <- struct{}{}:
			case <-p.stop:
				return
			}
			select {
			case jobs <- k:
			case <-p.stop:
				return
			}
		}
	}()
	for range workers {
		go func() {
			defer p.wg.Done()
			for k := range jobs {
				batch, err := build(k)
				p.slots[k] <- batchResult{batch: batch, err: err}
			}
		}()
	}
	return p
}

// get waits for batch k. Batches must be requested in order.
func (p *prefetcher) get(k int) (*datasets.BatchFlat, error) {
	r := <-p.slots[k]
	<-p.sem
	return r.batch, r.err
}

func (p *prefetcher) close() {
	close(p.stop)
	p.wg.Wait()
}
