package anndata

import (
	"fmt"
	"math/rand"

	"github.com/go-gota/gota/series"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/mtvector/CREsted/region"
)

// Split labels.
const (
	Train = "train"
	Val   = "val"
	Test  = "test"
)

// Split strategies.
const (
	// StrategyRegion assigns a random fraction of the regions to val and test.
	StrategyRegion = "region"
	// StrategyChr assigns whole chromosomes to val and test.
	StrategyChr = "chr"
)

// SplitOpts controls TrainValTestSplit.
type SplitOpts struct {
	Strategy string
	// ValSize and TestSize are fractions of the regions, for StrategyRegion.
	ValSize, TestSize float64
	// ValChroms and TestChroms list chromosomes, for StrategyChr.
	ValChroms, TestChroms []string
	// Shuffle permutes regions before slicing off val and test.  Otherwise
	// val and test are taken from the end of the region list.
	Shuffle bool
	Seed    int64
}

// DefaultSplitOpts holds the defaults for TrainValTestSplit.
var DefaultSplitOpts = SplitOpts{
	Strategy: StrategyRegion,
	ValSize:  0.1,
	TestSize: 0.1,
	Shuffle:  true,
}

// TrainValTestSplit writes a SplitColumn Var column labelling each region
// Train, Val or Test.
func TrainValTestSplit(ad *AnnData, opts SplitOpts) error {
	labels := make([]string, ad.NVar())
	for j := range labels {
		labels[j] = Train
	}
	switch opts.Strategy {
	case StrategyRegion:
		if opts.ValSize < 0 || opts.TestSize < 0 || opts.ValSize+opts.TestSize >= 1 {
			return errors.E(errors.Invalid, fmt.Sprintf("split: invalid val size %v, test size %v", opts.ValSize, opts.TestSize))
		}
		n := ad.NVar()
		order := make([]int, n)
		for j := range order {
			order[j] = j
		}
		if opts.Shuffle {
			r := rand.New(rand.NewSource(opts.Seed))
			r.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
		}
		nVal := int(float64(n) * opts.ValSize)
		nTest := int(float64(n) * opts.TestSize)
		for _, j := range order[n-nVal-nTest : n-nTest] {
			labels[j] = Val
		}
		for _, j := range order[n-nTest:] {
			labels[j] = Test
		}
	case StrategyChr:
		if len(opts.ValChroms) == 0 && len(opts.TestChroms) == 0 {
			return errors.E(errors.Invalid, "split: chr strategy needs val or test chromosomes")
		}
		assign := map[string]string{}
		for _, c := range opts.ValChroms {
			assign[c] = Val
		}
		for _, c := range opts.TestChroms {
			if assign[c] == Val {
				return errors.E(errors.Invalid, fmt.Sprintf("split: chromosome %s is in both val and test", c))
			}
			assign[c] = Test
		}
		for j, name := range ad.VarNames {
			r, err := region.Parse(name)
			if err != nil {
				return err
			}
			if label, ok := assign[r.Chrom]; ok {
				labels[j] = label
			}
		}
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("split: unknown strategy %q", opts.Strategy))
	}
	counts := map[string]int{}
	for _, l := range labels {
		counts[l]++
	}
	log.Printf("split (%s): %d train, %d val, %d test", opts.Strategy, counts[Train], counts[Val], counts[Test])
	return ad.SetVarColumn(series.New(labels, series.String, SplitColumn))
}
