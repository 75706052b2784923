package dataloader

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/mtvector/CREsted/dataset"
	"gonum.org/v1/gonum/floats"
)

// WeightedSampler draws indices with replacement according to a probability
// vector, such as dataset.MetaAnnDataset.Probs.
type WeightedSampler struct {
	// cdf holds the unnormalized cumulative weights.
	cdf  []float64
	// last is the largest index with a positive weight.
	last int
	rng  *rand.Rand
}

// NewWeightedSampler creates a sampler over weights, which need not be
// normalized but must be non-negative with a positive sum.
func NewWeightedSampler(weights []float64, src rand.Source) (*WeightedSampler, error) {
	if len(weights) == 0 {
		return nil, errors.E(errors.Invalid, "dataloader: no weights")
	}
	for i, w := range weights {
		if w < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataloader: weight %d is negative (%v)", i, w))
		}
	}
	cdf := floats.CumSum(make([]float64, len(weights)), weights)
	if cdf[len(cdf)-1] <= 0 {
		return nil, errors.E(errors.Invalid, "dataloader: weights sum to zero")
	}
	last := len(weights) - 1
	for weights[last] == 0 {
		last--
	}
	return &WeightedSampler{cdf: cdf, last: last, rng: rand.New(src)}, nil
}

// Sample draws one index.  Indices with zero weight are never drawn.
func (s *WeightedSampler) Sample() int {
	u := s.rng.Float64() * s.cdf[len(s.cdf)-1]
	i := sort.Search(len(s.cdf), func(i int) bool { return s.cdf[i] > u })
	if i > s.last {
		i = s.last
	}
	return i
}

// Indices draws n indices.
func (s *WeightedSampler) Indices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = s.Sample()
	}
	return idx
}

// Resampled is a view of a dataset whose samples are drawn, with
// replacement, by a WeightedSampler.  ShuffleIndices redraws them, so a
// DataLoader with Shuffle set sees a fresh draw every epoch.
type Resampled struct {
	ds      dataset.RandomAccessDataset
	sampler *WeightedSampler
	idx     []int
}

// NewResampled draws n samples of ds.  The sampler must have one weight per
// sample of ds.
func NewResampled(ds dataset.RandomAccessDataset, sampler *WeightedSampler, n int) (*Resampled, error) {
	if len(sampler.cdf) != ds.Len() {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dataloader: sampler has %d weights for %d samples", len(sampler.cdf), ds.Len()))
	}
	r := &Resampled{ds: ds, sampler: sampler}
	r.idx = sampler.Indices(n)
	return r, nil
}

// Len implements dataset.RandomAccessDataset.
func (r *Resampled) Len() int { return len(r.idx) }

// Get implements dataset.RandomAccessDataset.
func (r *Resampled) Get(i int) (dataset.Sample, error) {
	if i < 0 || i >= len(r.idx) {
		return dataset.Sample{}, errors.E(errors.Invalid, fmt.Sprintf("dataloader: index %d out of range [0, %d)", i, len(r.idx)))
	}
	return r.ds.Get(r.idx[i])
}

// Indices returns the drawn indices into the underlying dataset.
func (r *Resampled) Indices() []int { return r.idx }

// ShuffleIndices redraws the samples.
func (r *Resampled) ShuffleIndices() { r.idx = r.sampler.Indices(len(r.idx)) }
