package dataset

import (
	"math/rand"

	"github.com/grailbio/base/errors"
)

// SequenceLoaderOpts configures a SequenceLoader.
type SequenceLoaderOpts struct {
	// InMemory pre-fetches every augmented key at construction.
	InMemory bool
	// AlwaysReverseComplement caches the reverse strand of every region as
	// well.  Only meaningful with InMemory.
	AlwaysReverseComplement bool
	// MaxStochasticShift is the number of bases fetched on either side of a
	// region so that it can later be cropped at a random offset.
	MaxStochasticShift int
	// DeterministicShift, NShifts and ShiftStride describe the shifted
	// variants to cache.  See IndexOpts.
	DeterministicShift bool
	NShifts            int
	ShiftStride        int
	// CompressCache stores cached sequences snappy-compressed.
	CompressCache bool
	// Parallelism bounds the number of concurrent fetches while filling the
	// cache.  Values <= 0 mean runtime.NumCPU().
	Parallelism int
}

func (o SequenceLoaderOpts) indexOpts() IndexOpts {
	return IndexOpts{
		AlwaysReverseComplement: o.AlwaysReverseComplement,
		DeterministicShift:      o.DeterministicShift,
		NShifts:                 o.NShifts,
		ShiftStride:             o.ShiftStride,
	}
}

// IndexOpts configures an IndexManager.
type IndexOpts struct {
	// AlwaysReverseComplement adds the opposite strand of every key.
	AlwaysReverseComplement bool
	// DeterministicShift expands every region into 2*NShifts+1 variants
	// moved by -NShifts*ShiftStride, ..., +NShifts*ShiftStride bases.
	DeterministicShift bool
	NShifts            int
	ShiftStride        int
}

// DefaultIndexOpts is the default IndexOpts.
var DefaultIndexOpts = IndexOpts{
	ShiftStride: 50,
}

func (o IndexOpts) validate() error {
	if o.NShifts < 0 {
		return errors.E(errors.Invalid, "dataset: NShifts must be >= 0")
	}
	if o.DeterministicShift && o.NShifts > 0 && o.ShiftStride <= 0 {
		return errors.E(errors.Invalid, "dataset: ShiftStride must be > 0 with DeterministicShift")
	}
	return nil
}

// AnnDatasetOpts configures an AnnDataset.
type AnnDatasetOpts struct {
	// Split selects the variables whose "split" label equals Split.  Empty
	// means all variables; the split column is then not required.
	Split string
	// InMemory pre-fetches all sequences at construction.
	InMemory bool
	// RandomReverseComplement reverse-complements each returned sequence with
	// probability 0.5.  Mutually exclusive with AlwaysReverseComplement.
	RandomReverseComplement bool
	// AlwaysReverseComplement doubles the dataset with the opposite strand of
	// every region.
	AlwaysReverseComplement bool
	// MaxStochasticShift bounds the random shift drawn, independently, on
	// every Get.
	MaxStochasticShift int
	DeterministicShift bool
	NShifts            int
	ShiftStride        int
	// Aux lists extra per-sample fields.
	Aux []AuxField
	// Seed seeds the random source when Rand is nil.
	Seed int64
	// Rand, if set, is the source of shifts and random reverse complements.
	// It is wrapped in a mutex, so it need not be safe for concurrent use.
	Rand rand.Source
	// Parallelism bounds cache filling.  Values <= 0 mean runtime.NumCPU().
	Parallelism int
	// CompressCache stores cached sequences snappy-compressed.
	CompressCache bool
}

// DefaultAnnDatasetOpts is the default AnnDatasetOpts.
var DefaultAnnDatasetOpts = AnnDatasetOpts{
	InMemory:    true,
	ShiftStride: 50,
}

func (o AnnDatasetOpts) indexOpts() IndexOpts {
	return IndexOpts{
		AlwaysReverseComplement: o.AlwaysReverseComplement,
		DeterministicShift:      o.DeterministicShift,
		NShifts:                 o.NShifts,
		ShiftStride:             o.ShiftStride,
	}
}

func (o AnnDatasetOpts) loaderOpts() SequenceLoaderOpts {
	return SequenceLoaderOpts{
		InMemory:                o.InMemory,
		AlwaysReverseComplement: o.AlwaysReverseComplement,
		MaxStochasticShift:      o.MaxStochasticShift,
		DeterministicShift:      o.DeterministicShift,
		NShifts:                 o.NShifts,
		ShiftStride:             o.ShiftStride,
		CompressCache:           o.CompressCache,
		Parallelism:             o.Parallelism,
	}
}

func (o AnnDatasetOpts) validate() error {
	if o.RandomReverseComplement && o.AlwaysReverseComplement {
		return errors.E(errors.Invalid,
			"dataset: only one of RandomReverseComplement and AlwaysReverseComplement can be set")
	}
	if o.MaxStochasticShift < 0 {
		return errors.E(errors.Invalid, "dataset: MaxStochasticShift must be >= 0")
	}
	return o.indexOpts().validate()
}
