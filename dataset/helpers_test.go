package dataset_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/grailbio/testutil/assert"
	"github.com/mtvector/CREsted/anndata"
	"github.com/mtvector/CREsted/genome"
	"gonum.org/v1/gonum/mat"
)

const (
	chr1Len = 1000
	chr2Len = 60
	// Bases [lowerStart, lowerEnd) of chr1 are soft-masked in the FASTA.
	lowerStart = 600
	lowerEnd   = 620
)

func randomBases(r *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = "ACGT"[r.Intn(4)]
	}
	return string(buf)
}

// testGenome returns a two-contig genome and its (uppercase) sequences.
func testGenome(t *testing.T, withSizes bool) (*genome.Genome, map[string]string) {
	r := rand.New(rand.NewSource(1))
	seqs := map[string]string{
		"chr1": randomBases(r, chr1Len),
		"chr2": randomBases(r, chr2Len),
	}
	chr1 := seqs["chr1"][:lowerStart] + strings.ToLower(seqs["chr1"][lowerStart:lowerEnd]) + seqs["chr1"][lowerEnd:]
	fa, err := genome.NewFasta(strings.NewReader(">chr1\n" + chr1 + "\n>chr2 short\n" + seqs["chr2"] + "\n"))
	assert.NoError(t, err)
	var sizes genome.ChromSizes
	if withSizes {
		sizes = genome.SizesFromFasta(fa)
	}
	return genome.New(fa, sizes), seqs
}

// testAnnData builds a 2-output AnnData over regions with X[i][j] = 10*i+j.
// weights, if non-nil, becomes the sample_prob column.
func testAnnData(t *testing.T, regions []string, splits []string, weights []float64) *anndata.AnnData {
	x := mat.NewDense(2, len(regions), nil)
	for i := 0; i < 2; i++ {
		for j := range regions {
			x.Set(i, j, float64(10*i+j))
		}
	}
	ad, err := anndata.New(x, []string{"Topic_1", "Topic_2"}, regions)
	assert.NoError(t, err)
	if splits != nil {
		assert.NoError(t, ad.SetVarColumn(series.New(splits, series.String, anndata.SplitColumn)))
	}
	if weights != nil {
		assert.NoError(t, ad.SetVarColumn(series.New(weights, series.Float, anndata.SampleProbColumn)))
	}
	return ad
}

var testRegions = []string{"chr1:100-200", "chr1:300-400", "chr1:500-600", "chr1:700-800"}
