package anndata_test

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/grailbio/base/errors"
	"github.com/mtvector/CREsted/anndata"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// newTestAnnData returns a 2 obs × 4 var AnnData with X[i][j] = 10*i + j.
func newTestAnnData(t *testing.T, sparse bool) *anndata.AnnData {
	x := mat.NewDense(2, 4, []float64{
		0, 1, 2, 3,
		10, 11, 12, 13,
	})
	var xm mat.Matrix = x
	if sparse {
		xm = anndata.CSCFromDense(x)
	}
	ad, err := anndata.New(xm, []string{"topic_1", "topic_2"},
		[]string{"chr1:0-10", "chr1:10-20", "chr2:0-10", "chr2:10-20"})
	require.NoError(t, err)
	require.NoError(t, ad.SetVarColumn(series.New([]string{"train", "val", "train", "test"}, series.String, "split")))
	require.NoError(t, ad.SetVarColumn(series.New([]float64{1, 2, 3, 4}, series.Float, "sample_prob")))
	require.NoError(t, ad.SetObsColumn(series.New([]string{"a", "b"}, series.String, "celltype")))
	ad.Obsm["embedding"] = mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	varp := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			varp.Set(i, j, float64(i*4+j))
		}
	}
	ad.Varp["distance"] = varp
	require.NoError(t, ad.Validate())
	return ad
}

func TestNewValidates(t *testing.T) {
	_, err := anndata.New(mat.NewDense(2, 3, nil), []string{"a", "b"}, []string{"r1", "r2"})
	require.True(t, errors.Is(errors.Invalid, err))

	ad := newTestAnnData(t, false)
	ad.Obsm["bad"] = mat.NewDense(3, 1, nil)
	require.True(t, errors.Is(errors.Invalid, ad.Validate()))

	ad = newTestAnnData(t, false)
	ad.Var = dataframe.New(series.New([]int{1}, series.Int, "x"))
	require.True(t, errors.Is(errors.Invalid, ad.Validate()))

	ad = newTestAnnData(t, false)
	require.Error(t, ad.SetVarColumn(series.New([]int{1, 2}, series.Int, "short")))
}

func TestColumn(t *testing.T) {
	for _, sparse := range []bool{false, true} {
		ad := newTestAnnData(t, sparse)
		dst := make([]float32, 2)
		ad.Column(2, dst)
		require.Equal(t, []float32{2, 12}, dst)
		ad.Column(0, dst)
		require.Equal(t, []float32{0, 10}, dst)
	}
}

func TestSplitIndices(t *testing.T) {
	ad := newTestAnnData(t, false)
	idx, err := ad.SplitIndices("train")
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, idx)

	idx, err = ad.SplitIndices("nope")
	require.NoError(t, err)
	require.Len(t, idx, 0)

	ad2, err := anndata.New(mat.NewDense(1, 1, nil), []string{"o"}, []string{"chr1:0-1"})
	require.NoError(t, err)
	_, err = ad2.SplitIndices("train")
	require.True(t, errors.Is(errors.NotExist, err))

	_, err = ad.VarColumn("splt")
	require.True(t, errors.Is(errors.NotExist, err))
	require.Contains(t, err.Error(), `did you mean "split"?`)
}

func TestSubsetVar(t *testing.T) {
	for _, sparse := range []bool{false, true} {
		ad := newTestAnnData(t, sparse)
		sub, err := ad.SubsetVar([]int{3, 1})
		require.NoError(t, err)
		require.NoError(t, sub.Validate())
		require.Equal(t, []string{"chr2:10-20", "chr1:10-20"}, sub.VarNames)
		require.Equal(t, []string{"test", "val"}, sub.Var.Col("split").Records())
		require.Equal(t, []float64{4, 2}, sub.Var.Col("sample_prob").Float())
		r, c := sub.X.Dims()
		require.Equal(t, 2, r)
		require.Equal(t, 2, c)
		require.Equal(t, 13.0, sub.X.At(1, 0))
		require.Equal(t, 1.0, sub.X.At(0, 1))
		_, isCSC := sub.X.(*anndata.CSC)
		require.Equal(t, sparse, isCSC)
		require.Equal(t, 13.0, sub.Varp["distance"].At(0, 1))
		require.Equal(t, 7.0, sub.Varp["distance"].At(1, 0))

		// The source is untouched.
		require.Equal(t, 4, ad.NVar())
		require.Equal(t, 3.0, ad.X.At(0, 3))
	}
	ad := newTestAnnData(t, false)
	_, err := ad.SubsetVar(nil)
	require.True(t, errors.Is(errors.Invalid, err))
	_, err = ad.SubsetVar([]int{4})
	require.True(t, errors.Is(errors.Invalid, err))
}

func TestString(t *testing.T) {
	ad := newTestAnnData(t, true)
	require.Contains(t, ad.String(), "n_obs × n_vars = 2 × 4 (sparse)")
}
