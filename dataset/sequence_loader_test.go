package dataset_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/mtvector/CREsted/dataset"
	"github.com/mtvector/CREsted/region"
)

func newLoader(t *testing.T, withSizes bool, opts dataset.SequenceLoaderOpts, regions []string) (*dataset.SequenceLoader, map[string]string) {
	g, seqs := testGenome(t, withSizes)
	l, err := dataset.NewSequenceLoader(vcontext.Background(), g, opts, regions)
	assert.NoError(t, err)
	return l, seqs
}

func TestGetSequenceWindow(t *testing.T) {
	for _, inMemory := range []bool{false, true} {
		for _, compress := range []bool{false, true} {
			l, seqs := newLoader(t, true, dataset.SequenceLoaderOpts{
				InMemory:                inMemory,
				AlwaysReverseComplement: true,
				MaxStochasticShift:      10,
				CompressCache:           compress,
				Parallelism:             3,
			}, []string{"chr1:100-200"})
			chr1 := seqs["chr1"]
			tests := []struct {
				strand region.Strand
				shift  int
				want   string
			}{
				// The extended window is chr1:90-210 and shift 0 crops [10, 110).
				{region.Unstranded, 0, chr1[100:200]},
				{region.Forward, 5, chr1[105:205]},
				{region.Forward, -10, chr1[90:190]},
				{region.Reverse, 0, dataset.ReverseComplement(chr1[100:200])},
				{region.Reverse, 5, dataset.ReverseComplement(chr1[95:195])},
				{region.Reverse, -10, dataset.ReverseComplement(chr1[110:210])},
			}
			for _, test := range tests {
				got, err := l.GetSequence("chr1:100-200", test.strand, test.shift)
				assert.NoError(t, err)
				expect.EQ(t, got, test.want, "inMemory=%v compress=%v strand=%v shift=%d", inMemory, compress, test.strand, test.shift)
			}
			// The strand suffix of the name is honored when no strand is given.
			got, err := l.GetSequence("chr1:100-200:-", region.Unstranded, 0)
			assert.NoError(t, err)
			expect.EQ(t, got, dataset.ReverseComplement(chr1[100:200]))
		}
	}
}

func TestGetSequenceChromStartWithoutSizes(t *testing.T) {
	for _, inMemory := range []bool{false, true} {
		l, seqs := newLoader(t, false, dataset.SequenceLoaderOpts{
			InMemory:                inMemory,
			AlwaysReverseComplement: true,
			MaxStochasticShift:      20,
		}, []string{"chr1:0-50"})
		chr1 := seqs["chr1"]
		n10 := strings.Repeat("N", 10)

		// [-20, 70) clamps to [0, 70), so negative shifts run off the window.
		got, err := l.GetSequence("chr1:0-50", region.Forward, -10)
		assert.NoError(t, err)
		expect.EQ(t, got, n10+chr1[0:40])
		got, err = l.GetSequence("chr1:0-50", region.Forward, 0)
		assert.NoError(t, err)
		expect.EQ(t, got, chr1[0:50])
		got, err = l.GetSequence("chr1:0-50", region.Forward, 20)
		assert.NoError(t, err)
		expect.EQ(t, got, chr1[20:70])

		got, err = l.GetSequence("chr1:0-50", region.Reverse, 10)
		assert.NoError(t, err)
		expect.EQ(t, got, dataset.ReverseComplement(chr1[0:40])+n10)
		got, err = l.GetSequence("chr1:0-50", region.Reverse, -10)
		assert.NoError(t, err)
		expect.EQ(t, got, dataset.ReverseComplement(chr1[10:60]))
	}
}

func TestGetSequenceSlidesAtContigEnds(t *testing.T) {
	l, seqs := newLoader(t, true, dataset.SequenceLoaderOpts{MaxStochasticShift: 20}, nil)
	chr1 := seqs["chr1"]

	// With sizes the window slides to [0, 90) and the crop stays in bounds.
	got, err := l.GetSequence("chr1:0-50", region.Forward, -10)
	assert.NoError(t, err)
	expect.EQ(t, got, chr1[0:50])
	got, err = l.GetSequence("chr1:0-50", region.Forward, 15)
	assert.NoError(t, err)
	expect.EQ(t, got, chr1[15:65])

	got, err = l.GetSequence("chr1:950-1000", region.Forward, 10)
	assert.NoError(t, err)
	expect.EQ(t, got, chr1[950:1000])
	got, err = l.GetSequence("chr1:950-1000", region.Forward, -20)
	assert.NoError(t, err)
	expect.EQ(t, got, chr1[930:980])
	got, err = l.GetSequence("chr1:950-1000", region.Reverse, -10)
	assert.NoError(t, err)
	expect.EQ(t, got, dataset.ReverseComplement(chr1[950:1000]))
}

func TestGetSequenceContigEndWithoutSizes(t *testing.T) {
	for _, inMemory := range []bool{false, true} {
		l, seqs := newLoader(t, false, dataset.SequenceLoaderOpts{
			InMemory:                inMemory,
			AlwaysReverseComplement: true,
			MaxStochasticShift:      5,
		}, []string{"chr1:960-1000"})
		chr1 := seqs["chr1"]
		n5 := strings.Repeat("N", 5)

		// The fetch stops at 1000, so bases past the contig end are N.
		got, err := l.GetSequence("chr1:960-1000", region.Forward, 5)
		assert.NoError(t, err)
		expect.EQ(t, got, chr1[965:1000]+n5)
		got, err = l.GetSequence("chr1:960-1000", region.Forward, -5)
		assert.NoError(t, err)
		expect.EQ(t, got, chr1[955:995])

		got, err = l.GetSequence("chr1:960-1000", region.Reverse, -5)
		assert.NoError(t, err)
		expect.EQ(t, got, n5+dataset.ReverseComplement(chr1[965:1000]))
		got, err = l.GetSequence("chr1:960-1000", region.Reverse, 5)
		assert.NoError(t, err)
		expect.EQ(t, got, dataset.ReverseComplement(chr1[955:995]))
	}
}

func TestGetSequenceShortContig(t *testing.T) {
	for _, withSizes := range []bool{false, true} {
		l, seqs := newLoader(t, withSizes, dataset.SequenceLoaderOpts{MaxStochasticShift: 5}, nil)
		chr2 := seqs["chr2"]

		got, err := l.GetSequence("chr2:0-100", region.Forward, 0)
		assert.NoError(t, err)
		expect.EQ(t, got, chr2+strings.Repeat("N", 100-chr2Len))
		got, err = l.GetSequence("chr2:0-100", region.Forward, 3)
		assert.NoError(t, err)
		expect.EQ(t, got, chr2[3:]+strings.Repeat("N", 100-chr2Len+3))

		// [-3, 97) on '-': 37 bases past the end, then the contig, then 3
		// bases before its start.
		got, err = l.GetSequence("chr2:0-100", region.Reverse, 3)
		assert.NoError(t, err)
		expect.EQ(t, got, strings.Repeat("N", 37)+dataset.ReverseComplement(chr2)+strings.Repeat("N", 3))
	}
}

func TestGetSequenceUppercases(t *testing.T) {
	l, seqs := newLoader(t, true, dataset.SequenceLoaderOpts{}, nil)
	got, err := l.GetSequence(fmt.Sprintf("chr1:%d-%d", lowerStart-5, lowerEnd+5), region.Forward, 0)
	assert.NoError(t, err)
	expect.EQ(t, got, seqs["chr1"][lowerStart-5:lowerEnd+5])
}

func TestSequenceLength(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 20; iter++ {
		var regions []string
		for i := 0; i < 20; i++ {
			chrom, size := "chr1", chr1Len
			if r.Intn(4) == 0 {
				chrom, size = "chr2", chr2Len
			}
			start := r.Intn(size)
			end := start + 1 + r.Intn(80)
			regions = append(regions, fmt.Sprintf("%s:%d-%d", chrom, start, end))
		}
		m := r.Intn(30)
		opts := dataset.SequenceLoaderOpts{
			InMemory:                r.Intn(2) == 0,
			AlwaysReverseComplement: true,
			MaxStochasticShift:      m,
		}
		l, _ := newLoader(t, r.Intn(2) == 0, opts, regions)
		for _, name := range regions {
			reg := region.MustParse(name)
			for _, strand := range []region.Strand{region.Forward, region.Reverse} {
				shift := r.Intn(2*m+1) - m
				got, err := l.GetSequence(name, strand, shift)
				assert.NoError(t, err)
				assert.EQ(t, len(got), reg.Len(), "%s %v shift=%d opts=%+v", name, strand, shift, opts)
			}
		}
	}
}

func TestGetSequenceErrors(t *testing.T) {
	l, _ := newLoader(t, true, dataset.SequenceLoaderOpts{InMemory: true, MaxStochasticShift: 5}, []string{"chr1:100-200"})

	_, err := l.GetSequence("chr1:100", region.Forward, 0)
	expect.True(t, errors.Is(errors.Invalid, err))
	assert.HasSubstr(t, err.Error(), "chr1:100")

	_, err = l.GetSequence("chr1:100-200", region.Forward, 6)
	expect.True(t, errors.Is(errors.Invalid, err))

	// Only '+' was cached.
	_, err = l.GetSequence("chr1:100-200", region.Reverse, 0)
	expect.True(t, errors.Is(errors.NotExist, err))
	_, err = l.GetSequence("chr1:300-400", region.Forward, 0)
	expect.True(t, errors.Is(errors.NotExist, err))

	g, _ := testGenome(t, true)
	_, err = dataset.NewSequenceLoader(vcontext.Background(), g, dataset.SequenceLoaderOpts{InMemory: true}, []string{"chrX:0-10"})
	expect.True(t, errors.Is(errors.NotExist, err))
	_, err = dataset.NewSequenceLoader(vcontext.Background(), g, dataset.SequenceLoaderOpts{InMemory: true}, []string{"chr1:0-10", "chr1:10-20:+"})
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestReverseComplementInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 100; i++ {
		s := randomBases(r, r.Intn(200)) + "N"
		expect.EQ(t, dataset.ReverseComplement(dataset.ReverseComplement(s)), s)
	}
}
