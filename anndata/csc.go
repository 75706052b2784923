package anndata

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"gonum.org/v1/gonum/mat"
)

// CSC is a read-only compressed sparse column matrix.  The row indices of
// column j are Indices[Indptr[j]:Indptr[j+1]], sorted ascending, with values
// in the same positions of Data.  CSC implements mat.Matrix.
type CSC struct {
	rows, cols int
	Indptr     []int
	Indices    []int
	Data       []float64
}

// NewCSC validates and wraps the given arrays.  Row indices within a column
// are sorted if needed.
func NewCSC(rows, cols int, indptr, indices []int, data []float64) (*CSC, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("csc: negative shape %d×%d", rows, cols))
	}
	if len(indptr) != cols+1 || indptr[0] != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("csc: indptr has length %d, expected %d starting at 0", len(indptr), cols+1))
	}
	if len(indices) != len(data) || indptr[cols] != len(data) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("csc: %d indices, %d values, indptr ends at %d",
			len(indices), len(data), indptr[cols]))
	}
	m := &CSC{rows: rows, cols: cols, Indptr: indptr, Indices: indices, Data: data}
	for j := 0; j < cols; j++ {
		lo, hi := indptr[j], indptr[j+1]
		if hi < lo {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("csc: indptr decreases at column %d", j))
		}
		for _, i := range indices[lo:hi] {
			if i < 0 || i >= rows {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("csc: row index %d out of range in column %d", i, j))
			}
		}
		col := colSorter{m.Indices[lo:hi], m.Data[lo:hi]}
		if !sort.IsSorted(col) {
			sort.Sort(col)
		}
	}
	return m, nil
}

type colSorter struct {
	idx []int
	val []float64
}

func (c colSorter) Len() int           { return len(c.idx) }
func (c colSorter) Less(a, b int) bool { return c.idx[a] < c.idx[b] }
func (c colSorter) Swap(a, b int) {
	c.idx[a], c.idx[b] = c.idx[b], c.idx[a]
	c.val[a], c.val[b] = c.val[b], c.val[a]
}

// CSCFromDense compresses m, dropping zeros.
func CSCFromDense(m mat.Matrix) *CSC {
	rows, cols := m.Dims()
	c := &CSC{rows: rows, cols: cols, Indptr: make([]int, cols+1)}
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			if v := m.At(i, j); v != 0 {
				c.Indices = append(c.Indices, i)
				c.Data = append(c.Data, v)
			}
		}
		c.Indptr[j+1] = len(c.Data)
	}
	return c
}

// CSCFromCSR converts compressed sparse row arrays (scipy's csr_matrix
// layout) into a CSC.
func CSCFromCSR(rows, cols int, indptr, indices []int, data []float64) (*CSC, error) {
	if len(indptr) != rows+1 || len(indices) != len(data) || indptr[rows] != len(data) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("csr: inconsistent arrays for a %d×%d matrix", rows, cols))
	}
	counts := make([]int, cols+1)
	for _, j := range indices {
		if j < 0 || j >= cols {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("csr: column index %d out of range", j))
		}
		counts[j+1]++
	}
	for j := 0; j < cols; j++ {
		counts[j+1] += counts[j]
	}
	outIdx := make([]int, len(data))
	outVal := make([]float64, len(data))
	next := append([]int(nil), counts[:cols]...)
	for i := 0; i < rows; i++ {
		for p := indptr[i]; p < indptr[i+1]; p++ {
			j := indices[p]
			outIdx[next[j]], outVal[next[j]] = i, data[p]
			next[j]++
		}
	}
	return NewCSC(rows, cols, counts, outIdx, outVal)
}

// Dims implements mat.Matrix.
func (c *CSC) Dims() (int, int) { return c.rows, c.cols }

// At implements mat.Matrix.
func (c *CSC) At(i, j int) float64 {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := c.Indptr[j], c.Indptr[j+1]
	idx := c.Indices[lo:hi]
	if k := sort.SearchInts(idx, i); k < len(idx) && idx[k] == i {
		return c.Data[lo+k]
	}
	return 0
}

// T implements mat.Matrix.
func (c *CSC) T() mat.Matrix { return mat.Transpose{Matrix: c} }

// NNZ returns the number of stored values.
func (c *CSC) NNZ() int { return len(c.Data) }

// ColInto writes column j densely to dst, which must have length rows.
func (c *CSC) ColInto(j int, dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	for p := c.Indptr[j]; p < c.Indptr[j+1]; p++ {
		dst[c.Indices[p]] = float32(c.Data[p])
	}
}

// SubsetCols returns a new CSC holding the columns at idx, in that order.
func (c *CSC) SubsetCols(idx []int) *CSC {
	out := &CSC{rows: c.rows, cols: len(idx), Indptr: make([]int, len(idx)+1)}
	for k, j := range idx {
		lo, hi := c.Indptr[j], c.Indptr[j+1]
		out.Indices = append(out.Indices, c.Indices[lo:hi]...)
		out.Data = append(out.Data, c.Data[lo:hi]...)
		out.Indptr[k+1] = len(out.Data)
	}
	return out
}

// ToDense expands c.
func (c *CSC) ToDense() *mat.Dense {
	d := mat.NewDense(c.rows, c.cols, nil)
	for j := 0; j < c.cols; j++ {
		for p := c.Indptr[j]; p < c.Indptr[j+1]; p++ {
			d.Set(c.Indices[p], j, c.Data[p])
		}
	}
	return d
}
