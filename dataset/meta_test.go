package dataset_test

import (
	"math"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/mtvector/CREsted/dataset"
	"gonum.org/v1/gonum/floats"
)

func TestMetaAnnDatasetEmpty(t *testing.T) {
	_, err := dataset.NewMetaAnnDataset(nil)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestMetaAnnDatasetProbs(t *testing.T) {
	a, _ := newDataset(t, testAnnData(t, testRegions[:2], nil, []float64{0.5, 0.5}), dataset.DefaultAnnDatasetOpts)
	b, _ := newDataset(t, testAnnData(t, testRegions[2:3], nil, nil), dataset.DefaultAnnDatasetOpts)
	m, err := dataset.NewMetaAnnDataset([]*dataset.AnnDataset{a, b})
	assert.NoError(t, err)
	expect.EQ(t, m.Len(), 3)
	expect.EQ(t, m.Probs(), []float64{0.25, 0.25, 0.5})
	expect.EQ(t, m.GlobalIndices(), []dataset.GlobalIndex{{Dataset: 0, Local: 0}, {Dataset: 0, Local: 1}, {Dataset: 1, Local: 0}})

	s, err := m.Get(2)
	assert.NoError(t, err)
	want, err := b.Get(0)
	assert.NoError(t, err)
	expect.EQ(t, s.Y, want.Y)
	expect.EQ(t, s.Sequence, want.Sequence)
	_, err = m.Get(3)
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.True(t, strings.HasPrefix(m.String(), "MetaAnnDataset(n_samples=3, "))
}

func TestMetaAnnDatasetZeroWeights(t *testing.T) {
	a, _ := newDataset(t, testAnnData(t, testRegions[:2], nil, []float64{0, 0}), dataset.DefaultAnnDatasetOpts)
	b, _ := newDataset(t, testAnnData(t, testRegions[2:], nil, []float64{0, -1}), dataset.DefaultAnnDatasetOpts)
	m, err := dataset.NewMetaAnnDataset([]*dataset.AnnDataset{a, b})
	assert.NoError(t, err)
	expect.EQ(t, m.Probs(), []float64{0.25, 0.25, 0.25, 0.25})
}

func TestMetaAnnDatasetShuffle(t *testing.T) {
	weights := []float64{1, 2, 3, 4}
	opts := dataset.DefaultAnnDatasetOpts
	opts.AlwaysReverseComplement = true
	a, _ := newDataset(t, testAnnData(t, testRegions, nil, weights), opts)
	b, _ := newDataset(t, testAnnData(t, testRegions[:3], nil, nil), opts)
	m, err := dataset.NewMetaAnnDataset([]*dataset.AnnDataset{a, b})
	assert.NoError(t, err)
	expect.EQ(t, m.Len(), 14)
	for iter := 0; iter < 3; iter++ {
		expect.True(t, math.Abs(floats.Sum(m.Probs())-1) < 1e-9)
		// 2*(1+2+3+4) + 6*1.
		const total = 26.0
		for i, g := range m.GlobalIndices() {
			w := 1.0
			if g.Dataset == 0 {
				w = weights[a.Index().Logical(g.Local)]
			}
			expect.True(t, math.Abs(m.Probs()[i]-w/total) < 1e-12, "%d: %v", i, m.Probs()[i])
		}
		m.ShuffleIndices()
	}
}

func TestMetaAnnDatasetShuffleKeepsEarlierResults(t *testing.T) {
	opts := dataset.DefaultAnnDatasetOpts
	opts.AlwaysReverseComplement = true
	a, _ := newDataset(t, testAnnData(t, testRegions, nil, []float64{1, 2, 3, 4}), opts)
	m, err := dataset.NewMetaAnnDataset([]*dataset.AnnDataset{a})
	assert.NoError(t, err)
	probs, global := m.Probs(), m.GlobalIndices()
	wantProbs := append([]float64(nil), probs...)
	wantGlobal := append([]dataset.GlobalIndex(nil), global...)
	for iter := 0; iter < 5; iter++ {
		m.ShuffleIndices()
	}
	expect.EQ(t, probs, wantProbs)
	expect.EQ(t, global, wantGlobal)
	expect.EQ(t, len(m.Probs()), len(probs))
}
