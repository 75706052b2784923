// Package dataloader groups the samples of a dataset.RandomAccessDataset into
// fixed-size batches, fetching the samples of a batch over a worker pool.
package dataloader

import (
	"fmt"
	"io"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/mtvector/CREsted/dataset"
	"github.com/mtvector/CREsted/seq"
)

// Opts configures a DataLoader.
type Opts struct {
	// BatchSize is the number of samples per batch.
	BatchSize int
	// Shuffle reshuffles the dataset between epochs, if it supports it.
	Shuffle bool
	// DropRemainder drops the last, short, batch of an epoch.
	DropRemainder bool
	// Parallelism bounds the number of concurrent Get calls.  Values <= 0
	// mean runtime.NumCPU().
	Parallelism int
}

// DefaultOpts is the default Opts.
var DefaultOpts = Opts{
	BatchSize: 256,
}

// Shuffler is implemented by datasets whose sample order can be reshuffled
// between epochs.
type Shuffler interface {
	ShuffleIndices()
}

// Batch holds the samples of one batch.
type Batch struct {
	// X is the one-hot sequences, row-major (Size, SeqLen, 4).
	X []float32
	// Y is the targets, row-major (Size, NumOutputs).
	Y          []float32
	Size       int
	SeqLen     int
	NumOutputs int
	// Aux holds the auxiliary fields of every sample, or nil.
	Aux []map[string]interface{}
}

// DataLoader iterates over a dataset in batches.
type DataLoader struct {
	ds   dataset.RandomAccessDataset
	opts Opts
	next int
	done bool
}

// New creates a DataLoader over ds.
func New(ds dataset.RandomAccessDataset, opts Opts) (*DataLoader, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("dataloader: batch size must be > 0, got %d", opts.BatchSize))
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.Shuffle {
		if _, ok := ds.(Shuffler); !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataloader: %T cannot be shuffled", ds))
		}
	}
	return &DataLoader{ds: ds, opts: opts}, nil
}

// Len returns the number of batches per epoch.
func (l *DataLoader) Len() int {
	n := l.ds.Len() / l.opts.BatchSize
	if !l.opts.DropRemainder && l.ds.Len()%l.opts.BatchSize != 0 {
		n++
	}
	return n
}

// Batch returns the b'th batch of the current epoch.
func (l *DataLoader) Batch(b int) (Batch, error) {
	if b < 0 || b >= l.Len() {
		return Batch{}, errors.E(errors.Invalid, fmt.Sprintf("dataloader: batch %d out of range [0, %d)", b, l.Len()))
	}
	start := b * l.opts.BatchSize
	end := start + l.opts.BatchSize
	if end > l.ds.Len() {
		end = l.ds.Len()
	}
	samples := make([]dataset.Sample, end-start)
	parallelism := l.opts.Parallelism
	if parallelism > len(samples) {
		parallelism = len(samples)
	}
	err := traverse.Each(parallelism, func(worker int) error {
		for i := worker; i < len(samples); i += parallelism {
			s, err := l.ds.Get(start + i)
			if err != nil {
				return err
			}
			samples[i] = s
		}
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	return collate(samples)
}

func collate(samples []dataset.Sample) (Batch, error) {
	first := samples[0]
	batch := Batch{
		Size:       len(samples),
		SeqLen:     first.SeqLen,
		NumOutputs: len(first.Y),
		X:          make([]float32, 0, len(samples)*first.SeqLen*seq.NumChannels),
		Y:          make([]float32, 0, len(samples)*len(first.Y)),
	}
	for i, s := range samples {
		if s.SeqLen != batch.SeqLen || len(s.Y) != batch.NumOutputs {
			return Batch{}, errors.E(errors.Invalid,
				fmt.Sprintf("dataloader: sample %d has shape (%d, %d), expected (%d, %d); regions in a batch must have equal length",
					i, s.SeqLen, len(s.Y), batch.SeqLen, batch.NumOutputs))
		}
		batch.X = append(batch.X, s.Sequence...)
		batch.Y = append(batch.Y, s.Y...)
		if s.Aux != nil {
			if batch.Aux == nil {
				batch.Aux = make([]map[string]interface{}, len(samples))
			}
			batch.Aux[i] = s.Aux
		}
	}
	return batch, nil
}

// Next returns the next batch, or io.EOF at the end of an epoch.  The call
// after io.EOF starts a new epoch, reshuffling the dataset first if
// opts.Shuffle is set.
func (l *DataLoader) Next() (Batch, error) {
	if l.done {
		l.done = false
		l.next = 0
		if l.opts.Shuffle {
			l.ds.(Shuffler).ShuffleIndices()
		}
	}
	if l.next >= l.Len() {
		l.done = true
		return Batch{}, io.EOF
	}
	b, err := l.Batch(l.next)
	if err != nil {
		return Batch{}, err
	}
	l.next++
	return b, nil
}
