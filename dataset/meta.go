package dataset

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// GlobalIndex addresses one sample of a MetaAnnDataset.
type GlobalIndex struct {
	Dataset int
	Local   int
}

// MetaAnnDataset merges several AnnDatasets into one index space.  Samples
// are ordered by dataset, then by position within the dataset.  Datasets
// without weights contribute 1 per sample; the concatenated weights are
// normalized over the union.
type MetaAnnDataset struct {
	datasets []*AnnDataset
	global   []GlobalIndex
	probs    []float64
}

// NewMetaAnnDataset merges datasets, which must be nonempty.
func NewMetaAnnDataset(datasets []*AnnDataset) (*MetaAnnDataset, error) {
	if len(datasets) == 0 {
		return nil, errors.E(errors.Invalid, "dataset: MetaAnnDataset needs at least one dataset")
	}
	m := &MetaAnnDataset{datasets: datasets}
	m.rebuild()
	return m, nil
}

func (m *MetaAnnDataset) rebuild() {
	n := 0
	for _, d := range m.datasets {
		n += d.Len()
	}
	m.global = make([]GlobalIndex, 0, n)
	m.probs = make([]float64, 0, n)
	for i, d := range m.datasets {
		w := d.AugmentedProbs()
		for j := 0; j < d.Len(); j++ {
			m.global = append(m.global, GlobalIndex{Dataset: i, Local: j})
			if w == nil {
				m.probs = append(m.probs, 1)
			} else {
				m.probs = append(m.probs, w[j])
			}
		}
	}
	normalize(m.probs)
}

// Len returns the total number of samples.
func (m *MetaAnnDataset) Len() int { return len(m.global) }

// Datasets returns the merged datasets.
func (m *MetaAnnDataset) Datasets() []*AnnDataset { return m.datasets }

// GlobalIndices returns the (dataset, local) pair of every sample.  The
// caller must not modify the result.  ShuffleIndices replaces it, so a result
// obtained earlier keeps describing the order at that time.
func (m *MetaAnnDataset) GlobalIndices() []GlobalIndex { return m.global }

// Probs returns the normalized sampling probability of every sample,
// parallel to GlobalIndices.  The caller must not modify the result.  Like
// GlobalIndices, it is replaced rather than updated by ShuffleIndices.
func (m *MetaAnnDataset) Probs() []float64 { return m.probs }

// Get returns sample i.
func (m *MetaAnnDataset) Get(i int) (Sample, error) {
	if i < 0 || i >= len(m.global) {
		return Sample{}, errors.E(errors.Invalid, fmt.Sprintf("dataset: index %d out of range [0, %d)", i, len(m.global)))
	}
	g := m.global[i]
	return m.datasets[g.Dataset].Get(g.Local)
}

// ShuffleIndices reshuffles every dataset and recomputes the probabilities,
// which follow the samples' new positions.
func (m *MetaAnnDataset) ShuffleIndices() {
	for _, d := range m.datasets {
		d.ShuffleIndices()
	}
	m.rebuild()
}

func (m *MetaAnnDataset) String() string {
	parts := make([]string, len(m.datasets))
	for i, d := range m.datasets {
		parts[i] = d.String()
	}
	return fmt.Sprintf("MetaAnnDataset(n_samples=%d, datasets=[%s])", m.Len(), strings.Join(parts, ", "))
}
