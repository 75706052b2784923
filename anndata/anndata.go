// Package anndata holds an annotated data matrix: a target matrix X with one
// row per observation (output channel, e.g. a topic or cell type) and one
// column per variable (genomic region), plus per-observation and
// per-variable tables.
//
// The layout follows the AnnData on-disk model:
//
//   X        nObs × nVar, dense (*mat.Dense) or sparse (*CSC)
//   Obs      nObs-row table
//   Var      nVar-row table; may carry "split" and "sample_prob" columns
//   Obsm     named nObs × k matrices
//   Varp     named nVar × nVar matrices
package anndata

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/grailbio/base/errors"
	"github.com/mtvector/CREsted/util"
	"gonum.org/v1/gonum/mat"
)

const (
	// SplitColumn is the Var column holding "train"/"val"/"test" labels.
	SplitColumn = "split"
	// SampleProbColumn is the Var column holding unnormalized sample weights.
	SampleProbColumn = "sample_prob"
)

// AnnData is an annotated target matrix.
type AnnData struct {
	X        mat.Matrix
	ObsNames []string
	VarNames []string
	Obs      dataframe.DataFrame
	Var      dataframe.DataFrame
	Obsm     map[string]*mat.Dense
	Varp     map[string]mat.Matrix
}

// New creates an AnnData with empty tables.  x must be
// len(obsNames) × len(varNames).
func New(x mat.Matrix, obsNames, varNames []string) (*AnnData, error) {
	ad := &AnnData{
		X:        x,
		ObsNames: obsNames,
		VarNames: varNames,
		Obsm:     map[string]*mat.Dense{},
		Varp:     map[string]mat.Matrix{},
	}
	if err := ad.Validate(); err != nil {
		return nil, err
	}
	return ad, nil
}

// NObs returns the number of observations (rows of X).
func (ad *AnnData) NObs() int { return len(ad.ObsNames) }

// NVar returns the number of variables (columns of X).
func (ad *AnnData) NVar() int { return len(ad.VarNames) }

// Shape returns (NObs, NVar).
func (ad *AnnData) Shape() (int, int) { return ad.NObs(), ad.NVar() }

func dimErr(what string, got, want int) error {
	return errors.E(errors.Invalid, fmt.Sprintf("anndata: %s has %d rows, expected %d", what, got, want))
}

// Validate checks that every component agrees on the number of observations
// and variables.
func (ad *AnnData) Validate() error {
	if ad.X == nil {
		return errors.E(errors.Invalid, "anndata: nil X")
	}
	r, c := ad.X.Dims()
	if r != ad.NObs() || c != ad.NVar() {
		return errors.E(errors.Invalid, fmt.Sprintf("anndata: X is %d×%d but there are %d obs names and %d var names",
			r, c, ad.NObs(), ad.NVar()))
	}
	if ad.Obs.Ncol() > 0 && ad.Obs.Nrow() != r {
		return dimErr("obs table", ad.Obs.Nrow(), r)
	}
	if ad.Var.Ncol() > 0 && ad.Var.Nrow() != c {
		return dimErr("var table", ad.Var.Nrow(), c)
	}
	for key, m := range ad.Obsm {
		if n, _ := m.Dims(); n != r {
			return dimErr("obsm["+key+"]", n, r)
		}
	}
	for key, m := range ad.Varp {
		if n, k := m.Dims(); n != c || k != c {
			return errors.E(errors.Invalid, fmt.Sprintf("anndata: varp[%s] is %d×%d, expected %d×%d", key, n, k, c, c))
		}
	}
	return nil
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// HasVar reports whether the Var table has the named column.
func (ad *AnnData) HasVar(name string) bool { return hasColumn(ad.Var, name) }

// HasObs reports whether the Obs table has the named column.
func (ad *AnnData) HasObs(name string) bool { return hasColumn(ad.Obs, name) }

// VarColumn returns the named Var column, or an errors.NotExist error.
func (ad *AnnData) VarColumn(name string) (series.Series, error) {
	if !ad.HasVar(name) {
		return series.Series{}, util.MissingKey("var", name, ad.Var.Names())
	}
	return ad.Var.Col(name), nil
}

// ObsColumn returns the named Obs column, or an errors.NotExist error.
func (ad *AnnData) ObsColumn(name string) (series.Series, error) {
	if !ad.HasObs(name) {
		return series.Series{}, util.MissingKey("obs", name, ad.Obs.Names())
	}
	return ad.Obs.Col(name), nil
}

// SetVarColumn adds or replaces a Var column.  s must have NVar elements.
func (ad *AnnData) SetVarColumn(s series.Series) error {
	if s.Len() != ad.NVar() {
		return dimErr("var column "+s.Name, s.Len(), ad.NVar())
	}
	if ad.Var.Ncol() == 0 {
		ad.Var = dataframe.New(s)
	} else {
		ad.Var = ad.Var.Mutate(s)
	}
	return ad.Var.Err
}

// SetObsColumn adds or replaces an Obs column.  s must have NObs elements.
func (ad *AnnData) SetObsColumn(s series.Series) error {
	if s.Len() != ad.NObs() {
		return dimErr("obs column "+s.Name, s.Len(), ad.NObs())
	}
	if ad.Obs.Ncol() == 0 {
		ad.Obs = dataframe.New(s)
	} else {
		ad.Obs = ad.Obs.Mutate(s)
	}
	return ad.Obs.Err
}

// SplitIndices returns the indices of the variables whose split label is
// split.  It fails with errors.NotExist if there is no split column.
func (ad *AnnData) SplitIndices(split string) ([]int, error) {
	col, err := ad.VarColumn(SplitColumn)
	if err != nil {
		return nil, err
	}
	var idx []int
	for j, label := range col.Records() {
		if label == split {
			idx = append(idx, j)
		}
	}
	return idx, nil
}

// Column writes column j of X (the targets of variable j) to dst, which must
// have length NObs.
func (ad *AnnData) Column(j int, dst []float32) {
	ColumnInto(ad.X, j, dst)
}

// ColumnInto writes column j of m to dst as float32.
func ColumnInto(m mat.Matrix, j int, dst []float32) {
	switch m := m.(type) {
	case *CSC:
		m.ColInto(j, dst)
	case *mat.Dense:
		raw := m.RawMatrix()
		for i := range dst {
			dst[i] = float32(raw.Data[i*raw.Stride+j])
		}
	default:
		for i := range dst {
			dst[i] = float32(m.At(i, j))
		}
	}
}

// RowInto writes row i of m to dst as float64.
func RowInto(m mat.Matrix, i int, dst []float64) {
	switch m := m.(type) {
	case *mat.Dense:
		mat.Row(dst, i, m)
	default:
		for j := range dst {
			dst[j] = m.At(i, j)
		}
	}
}

// SubsetVar returns a copy of ad restricted to the variables at idx, in that
// order.  X, VarNames, Var and Varp are subset consistently; the
// observation side is shared with ad.  idx must be nonempty.
func (ad *AnnData) SubsetVar(idx []int) (*AnnData, error) {
	if len(idx) == 0 {
		return nil, errors.E(errors.Invalid, "anndata: empty var selection")
	}
	for _, j := range idx {
		if j < 0 || j >= ad.NVar() {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("anndata: var index %d out of range [0, %d)", j, ad.NVar()))
		}
	}
	out := &AnnData{
		X:        subsetCols(ad.X, idx),
		ObsNames: ad.ObsNames,
		VarNames: make([]string, len(idx)),
		Obs:      ad.Obs,
		Obsm:     ad.Obsm,
		Varp:     make(map[string]mat.Matrix, len(ad.Varp)),
	}
	for k, j := range idx {
		out.VarNames[k] = ad.VarNames[j]
	}
	if ad.Var.Ncol() > 0 {
		if out.Var = ad.Var.Subset(idx); out.Var.Err != nil {
			return nil, errors.E(out.Var.Err, "anndata: subset var table")
		}
	}
	for key, m := range ad.Varp {
		out.Varp[key] = subsetSquare(m, idx)
	}
	return out, nil
}

func subsetCols(m mat.Matrix, idx []int) mat.Matrix {
	if c, ok := m.(*CSC); ok {
		return c.SubsetCols(idx)
	}
	r, _ := m.Dims()
	out := mat.NewDense(r, len(idx), nil)
	col := make([]float64, r)
	for k, j := range idx {
		if d, ok := m.(*mat.Dense); ok {
			mat.Col(col, j, d)
		} else {
			for i := range col {
				col[i] = m.At(i, j)
			}
		}
		out.SetCol(k, col)
	}
	return out
}

func subsetSquare(m mat.Matrix, idx []int) mat.Matrix {
	out := mat.NewDense(len(idx), len(idx), nil)
	for a, i := range idx {
		for b, j := range idx {
			out.Set(a, b, m.At(i, j))
		}
	}
	return out
}

// String summarizes ad.
func (ad *AnnData) String() string {
	kind := "dense"
	if _, ok := ad.X.(*CSC); ok {
		kind = "sparse"
	}
	return fmt.Sprintf("AnnData object with n_obs × n_vars = %d × %d (%s)\n    obs: %v\n    var: %v",
		ad.NObs(), ad.NVar(), kind, ad.Obs.Names(), ad.Var.Names())
}
