package anndata

import (
	"context"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/mtvector/CREsted/util"
	"gonum.org/v1/gonum/mat"
)

// ParseTable reads a tab-separated table with a header row.  Column types
// are detected from the values.
func ParseTable(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, dataframe.WithDelimiter('\t'), dataframe.HasHeader(true))
	if df.Err != nil {
		return df, errors.E(errors.Invalid, df.Err, "parse table")
	}
	return df, nil
}

// ReadTable reads a tab-separated table, optionally gzipped.
func ReadTable(ctx context.Context, path string) (df dataframe.DataFrame, err error) {
	err = util.WithReader(ctx, path, func(r io.Reader) (err error) {
		df, err = ParseTable(r)
		return
	})
	return
}

// LoadOpts names the files that make up an AnnData on disk.
type LoadOpts struct {
	// X is a .npy, .npz or scipy sparse .npz file.
	X string
	// XKey selects the array in a dense .npz archive.
	XKey string
	// Transpose reads X as variables × observations.
	Transpose bool
	// Var is a TSV table with one row per region.  Its first column holds
	// the region names.
	Var string
	// Obs is an optional TSV table with one row per observation.  Its first
	// column holds the observation names.  Without it observations are
	// named by their row number.
	Obs string
}

// Load assembles an AnnData from files.
func Load(ctx context.Context, opts LoadOpts) (*AnnData, error) {
	x, err := ReadMatrix(ctx, opts.X, opts.XKey)
	if err != nil {
		return nil, err
	}
	if opts.Transpose {
		if c, ok := x.(*CSC); ok {
			x = CSCFromDense(mat.DenseCopyOf(c.T()))
		} else {
			x = mat.DenseCopyOf(x.T())
		}
	}
	if opts.Var == "" {
		return nil, errors.E(errors.Invalid, "load: a var table is required")
	}
	varTable, err := ReadTable(ctx, opts.Var)
	if err != nil {
		return nil, err
	}
	if varTable.Ncol() == 0 {
		return nil, errors.E(errors.Invalid, "load: empty var table", opts.Var)
	}
	varNames := varTable.Col(varTable.Names()[0]).Records()

	nObs, _ := x.Dims()
	obsNames := make([]string, nObs)
	var obsTable dataframe.DataFrame
	if opts.Obs != "" {
		if obsTable, err = ReadTable(ctx, opts.Obs); err != nil {
			return nil, err
		}
		if obsTable.Ncol() == 0 {
			return nil, errors.E(errors.Invalid, "load: empty obs table", opts.Obs)
		}
		obsNames = obsTable.Col(obsTable.Names()[0]).Records()
	} else {
		for i := range obsNames {
			obsNames[i] = fmt.Sprint(i)
		}
	}
	ad, err := New(x, obsNames, varNames)
	if err != nil {
		return nil, err
	}
	ad.Var, ad.Obs = varTable, obsTable
	if err := ad.Validate(); err != nil {
		return nil, err
	}
	log.Printf("load: %v", ad)
	return ad, nil
}
