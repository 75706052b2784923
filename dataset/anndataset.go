package dataset

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/mtvector/CREsted/anndata"
	"github.com/mtvector/CREsted/genome"
	"github.com/mtvector/CREsted/seq"
	"gonum.org/v1/gonum/floats"
)

// Sample is one training example.
type Sample struct {
	// Sequence is the one-hot encoded window, row-major (SeqLen, 4).
	Sequence []float32
	SeqLen   int
	// Y holds the targets of the sample's region, one per observation.
	Y []float32
	// Aux holds the configured auxiliary fields, by name.
	Aux map[string]interface{}
}

// RandomAccessDataset is the interface consumed by data loaders and training
// framework adapters.
type RandomAccessDataset interface {
	Len() int
	Get(i int) (Sample, error)
}

var (
	_ RandomAccessDataset = (*AnnDataset)(nil)
	_ RandomAccessDataset = (*MetaAnnDataset)(nil)
)

// AnnDataset serves (sequence, target) samples for the regions of an
// AnnData.
type AnnDataset struct {
	ad     *anndata.AnnData
	opts   AnnDatasetOpts
	loader *SequenceLoader
	index  *IndexManager
	rng    *rand.Rand
	aux    []auxExtractor

	// regionByName maps a var name to its first position.
	regionByName map[string]int
	// regionWeights is the clipped sample_prob of every region, or nil.
	regionWeights []float64
	shuffle       bool
}

// NewAnnDataset creates a dataset over the variables of ad selected by
// opts.Split.  ad itself is not modified.
func NewAnnDataset(ctx context.Context, ad *anndata.AnnData, g genome.Accessor, opts AnnDatasetOpts) (*AnnDataset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := ad.Validate(); err != nil {
		return nil, err
	}
	if opts.Split != "" {
		idx, err := ad.SplitIndices(opts.Split)
		if err != nil {
			return nil, errors.E(err, "dataset: run anndata.TrainValTestSplit first")
		}
		if len(idx) == 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: split %q selects no regions", opts.Split))
		}
		if ad, err = ad.SubsetVar(idx); err != nil {
			return nil, err
		}
	}
	if ad.NVar() == 0 {
		return nil, errors.E(errors.Invalid, "dataset: no regions")
	}
	if opts.MaxStochasticShift > 0 && len(g.ChromSizes()) == 0 {
		log.Error.Printf("dataset: no chromosome sizes while shifting; windows near contig ends will be N-padded instead of slid")
	}

	d := &AnnDataset{
		ad:           ad,
		opts:         opts,
		rng:          newRand(opts.Rand, opts.Seed),
		regionByName: make(map[string]int, ad.NVar()),
	}
	var err error
	if d.index, err = NewIndexManager(ad.VarNames, opts.indexOpts()); err != nil {
		return nil, err
	}
	if d.aux, err = newAuxExtractors(ad, opts.Aux); err != nil {
		return nil, err
	}
	if d.loader, err = NewSequenceLoader(ctx, g, opts.loaderOpts(), ad.VarNames); err != nil {
		return nil, err
	}
	for j := len(ad.VarNames) - 1; j >= 0; j-- {
		d.regionByName[ad.VarNames[j]] = j
	}
	if ad.HasVar(anndata.SampleProbColumn) {
		col, _ := ad.VarColumn(anndata.SampleProbColumn)
		d.regionWeights = col.Float()
		for j, w := range d.regionWeights {
			if w < 0 || math.IsNaN(w) {
				d.regionWeights[j] = 0
			}
		}
	}
	log.Debug.Printf("dataset: %v", d)
	return d, nil
}

// Len returns the number of augmented samples.
func (d *AnnDataset) Len() int { return d.index.Len() }

// NumOutputs is the length of every target vector.
func (d *AnnDataset) NumOutputs() int { return d.ad.NObs() }

// AnnData returns the (split) annotated data backing d.
func (d *AnnDataset) AnnData() *anndata.AnnData { return d.ad }

// Index returns the index manager.  Callers must not shuffle it directly.
func (d *AnnDataset) Index() *IndexManager { return d.index }

// Split returns the split that d was built from.
func (d *AnnDataset) Split() string { return d.opts.Split }

// InMemory reports whether sequences are cached.
func (d *AnnDataset) InMemory() bool { return d.loader.InMemory() }

func (d *AnnDataset) checkIndex(i int) error {
	if i < 0 || i >= d.Len() {
		return errors.E(errors.Invalid, fmt.Sprintf("dataset: index %d out of range [0, %d)", i, d.Len()))
	}
	return nil
}

// sequence draws the stochastic shift and random strand flip for sample i.
func (d *AnnDataset) sequence(i int) (string, error) {
	shift := 0
	if m := d.opts.MaxStochasticShift; m > 0 {
		shift = d.rng.Intn(2*m+1) - m
	}
	s, err := d.loader.sequence(d.index.Key(i), shift)
	if err != nil {
		return "", err
	}
	if d.opts.RandomReverseComplement && d.rng.Float64() < 0.5 {
		s = seq.ReverseComplement(s)
	}
	return s, nil
}

func (d *AnnDataset) target(logical int) []float32 {
	y := make([]float32, d.NumOutputs())
	d.ad.Column(logical, y)
	return y
}

// GetSequence returns the sequence and target of sample i as a string.
// Shift and reverse complement are drawn as in Get.
func (d *AnnDataset) GetSequence(i int) (string, []float32, error) {
	if err := d.checkIndex(i); err != nil {
		return "", nil, err
	}
	s, err := d.sequence(i)
	if err != nil {
		return "", nil, err
	}
	return s, d.target(d.index.Logical(i)), nil
}

// Get returns sample i.  Every call draws a fresh shift and, with
// RandomReverseComplement, a fresh strand flip.
func (d *AnnDataset) Get(i int) (Sample, error) {
	s, y, err := d.GetSequence(i)
	if err != nil {
		return Sample{}, err
	}
	sample := Sample{
		Sequence: seq.OneHot(s),
		SeqLen:   len(s),
		Y:        y,
	}
	if len(d.aux) > 0 {
		logical := d.index.Logical(i)
		sample.Aux = make(map[string]interface{}, len(d.aux))
		for _, ex := range d.aux {
			sample.Aux[ex.name] = ex.get(logical)
		}
	}
	return sample, nil
}

// Target returns the target vector of a logical region by name.
func (d *AnnDataset) Target(name string) ([]float32, error) {
	j, ok := d.regionByName[name]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("dataset: no target for region %q", name))
	}
	return d.target(j), nil
}

// SetShuffle controls whether Iterator reshuffles between epochs.
func (d *AnnDataset) SetShuffle(shuffle bool) { d.shuffle = shuffle }

// Shuffle reports the value set by SetShuffle.
func (d *AnnDataset) Shuffle() bool { return d.shuffle }

// ShuffleIndices permutes the augmented samples using the dataset's random
// source.  It must not run concurrently with Get.
func (d *AnnDataset) ShuffleIndices() { d.index.ShuffleIndices(d.rng) }

// AugmentedProbs returns the unnormalized weight of every augmented sample,
// in visiting order, or nil if the AnnData has no sample_prob column.
func (d *AnnDataset) AugmentedProbs() []float64 {
	if d.regionWeights == nil {
		return nil
	}
	probs := make([]float64, d.Len())
	for i := range probs {
		probs[i] = d.regionWeights[d.index.Logical(i)]
	}
	return probs
}

// SampleProbs returns AugmentedProbs normalized to sum to 1.  Without
// weights, or if they are all zero, the result is uniform.
func (d *AnnDataset) SampleProbs() []float64 {
	w := d.AugmentedProbs()
	if w == nil {
		w = make([]float64, d.Len())
	}
	return normalize(w)
}

// normalize scales w in place to sum to 1, falling back to uniform when the
// sum is not positive.
func normalize(w []float64) []float64 {
	sum := floats.Sum(w)
	if sum <= 0 {
		for i := range w {
			w[i] = 1 / float64(len(w))
		}
		return w
	}
	floats.Scale(1/sum, w)
	return w
}

func (d *AnnDataset) String() string {
	nObs, nVar := d.ad.Shape()
	split := d.opts.Split
	if split == "" {
		split = "None"
	}
	return fmt.Sprintf("AnnDataset(anndata_shape=(%d, %d), n_samples=%d, num_outputs=%d, split=%s, in_memory=%v)",
		nObs, nVar, d.Len(), d.NumOutputs(), split, d.InMemory())
}
