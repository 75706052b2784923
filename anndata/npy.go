package anndata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"path"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/zip"
	"github.com/kshedden/gonpy"
	"github.com/mtvector/CREsted/util"
	"gonum.org/v1/gonum/mat"
)

// DefaultNpzKey is the array name used by the target-generation scripts.
const DefaultNpzKey = "targets"

func npyShape(shape []int) (rows, cols int, err error) {
	switch len(shape) {
	case 1:
		return 1, shape[0], nil
	case 2:
		return shape[0], shape[1], nil
	}
	return 0, 0, errors.E(errors.Invalid, fmt.Sprintf("npy: expected a 1-d or 2-d array, got shape %v", shape))
}

func npyFloats(nr *gonpy.NpyReader) ([]float64, error) {
	var out []float64
	switch dtype := strings.TrimLeft(nr.Dtype, "<>|="); dtype {
	case "f8":
		return nr.GetFloat64()
	case "f4":
		v, err := nr.GetFloat32()
		for _, x := range v {
			out = append(out, float64(x))
		}
		return out, err
	case "i8":
		v, err := nr.GetInt64()
		for _, x := range v {
			out = append(out, float64(x))
		}
		return out, err
	case "i4":
		v, err := nr.GetInt32()
		for _, x := range v {
			out = append(out, float64(x))
		}
		return out, err
	case "u1":
		v, err := nr.GetUint8()
		for _, x := range v {
			out = append(out, float64(x))
		}
		return out, err
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("npy: unsupported dtype %q", nr.Dtype))
	}
}

func npyInts(nr *gonpy.NpyReader) ([]int, error) {
	var out []int
	switch dtype := strings.TrimLeft(nr.Dtype, "<>|="); dtype {
	case "i8":
		v, err := nr.GetInt64()
		for _, x := range v {
			out = append(out, int(x))
		}
		return out, err
	case "i4":
		v, err := nr.GetInt32()
		for _, x := range v {
			out = append(out, int(x))
		}
		return out, err
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("npy: expected an integer array, got dtype %q", nr.Dtype))
	}
}

// ReadNpy decodes a 1-d or 2-d numeric .npy array.  A 1-d array becomes a
// single-row matrix.
func ReadNpy(r io.Reader) (*mat.Dense, error) {
	nr, err := gonpy.NewReader(r)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "npy header")
	}
	rows, cols, err := npyShape(nr.Shape)
	if err != nil {
		return nil, err
	}
	data, err := npyFloats(nr)
	if err != nil {
		return nil, err
	}
	if rows == 0 || cols == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("npy: empty array of shape %v", nr.Shape))
	}
	if nr.ColumnMajor {
		return mat.DenseCopyOf(mat.NewDense(cols, rows, data).T()), nil
	}
	return mat.NewDense(rows, cols, data), nil
}

// npzArchive is a numpy .npz file held in memory.
type npzArchive struct {
	path  string
	files map[string]*zip.File
}

func openNpz(ctx context.Context, p string) (*npzArchive, error) {
	var data []byte
	if err := util.WithReader(ctx, p, func(r io.Reader) (err error) {
		data, err = ioutil.ReadAll(r)
		return
	}); err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "npz", p)
	}
	a := &npzArchive{path: p, files: map[string]*zip.File{}}
	for _, f := range zr.File {
		a.files[strings.TrimSuffix(f.Name, ".npy")] = f
	}
	return a, nil
}

func (a *npzArchive) keys() []string {
	var keys []string
	for k := range a.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *npzArchive) raw(key string) ([]byte, error) {
	f, ok := a.files[key]
	if !ok {
		return nil, util.MissingKey(a.path, key, a.keys())
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.E(err, a.path, key)
	}
	defer rc.Close() // nolint: errcheck
	return ioutil.ReadAll(rc)
}

func (a *npzArchive) reader(key string) (*gonpy.NpyReader, error) {
	b, err := a.raw(key)
	if err != nil {
		return nil, err
	}
	nr, err := gonpy.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, a.path, key)
	}
	return nr, nil
}

func (a *npzArchive) dense(key string) (*mat.Dense, error) {
	b, err := a.raw(key)
	if err != nil {
		return nil, err
	}
	m, err := ReadNpy(bytes.NewReader(b))
	if err != nil {
		return nil, errors.E(err, a.path, key)
	}
	return m, nil
}

func (a *npzArchive) ints(key string) ([]int, error) {
	nr, err := a.reader(key)
	if err != nil {
		return nil, err
	}
	v, err := npyInts(nr)
	if err != nil {
		return nil, errors.E(err, a.path, key)
	}
	return v, nil
}

func (a *npzArchive) floats(key string) ([]float64, error) {
	nr, err := a.reader(key)
	if err != nil {
		return nil, err
	}
	v, err := npyFloats(nr)
	if err != nil {
		return nil, errors.E(err, a.path, key)
	}
	return v, nil
}

// isSparse reports whether the archive was written by scipy.sparse.save_npz.
func (a *npzArchive) isSparse() bool {
	for _, k := range []string{"data", "indices", "indptr", "shape", "format"} {
		if _, ok := a.files[k]; !ok {
			return false
		}
	}
	return true
}

// sparse decodes a scipy csr/csc archive.  The format array is a 0-d byte
// string, so its payload is the tail of the entry.
func (a *npzArchive) sparse() (*CSC, error) {
	format, err := a.raw("format")
	if err != nil {
		return nil, err
	}
	shape, err := a.ints("shape")
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("npz %s: sparse shape %v", a.path, shape))
	}
	indptr, err := a.ints("indptr")
	if err != nil {
		return nil, err
	}
	indices, err := a.ints("indices")
	if err != nil {
		return nil, err
	}
	data, err := a.floats("data")
	if err != nil {
		return nil, err
	}
	switch {
	case bytes.HasSuffix(format, []byte("csc")):
		return NewCSC(shape[0], shape[1], indptr, indices, data)
	case bytes.HasSuffix(format, []byte("csr")):
		return CSCFromCSR(shape[0], shape[1], indptr, indices, data)
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("npz %s: unsupported sparse format", a.path))
}

// ReadNpz decodes every array of a .npz archive.
func ReadNpz(ctx context.Context, p string) (map[string]*mat.Dense, error) {
	a, err := openNpz(ctx, p)
	if err != nil {
		return nil, err
	}
	out := map[string]*mat.Dense{}
	for _, k := range a.keys() {
		if out[k], err = a.dense(k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadMatrix loads a target matrix from a .npy file, a .npz archive or a
// scipy sparse .npz archive.  For a dense archive, key selects the array;
// an empty key means DefaultNpzKey, or the only array if there is just one.
func ReadMatrix(ctx context.Context, p, key string) (mat.Matrix, error) {
	if path.Ext(strings.TrimSuffix(p, ".gz")) == ".npy" {
		var m *mat.Dense
		err := util.WithReader(ctx, p, func(r io.Reader) (err error) {
			m, err = ReadNpy(r)
			return
		})
		return m, err
	}
	a, err := openNpz(ctx, p)
	if err != nil {
		return nil, err
	}
	if a.isSparse() {
		return a.sparse()
	}
	if key == "" {
		key = DefaultNpzKey
		if keys := a.keys(); len(keys) == 1 {
			key = keys[0]
		}
	}
	return a.dense(key)
}
