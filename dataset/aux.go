package dataset

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/series"
	"github.com/grailbio/base/errors"
	"github.com/mtvector/CREsted/anndata"
	"github.com/mtvector/CREsted/util"
	"gonum.org/v1/gonum/mat"
)

// AuxKind says where an auxiliary field is read from.
type AuxKind int

const (
	// AuxObs is a column of the Obs table.  Every sample carries the whole
	// column, one value per output: []float32 for numeric columns, []int
	// category codes for string columns.
	AuxObs AuxKind = iota
	// AuxObsm is an Obsm matrix, nObs × k, shared by every sample as a
	// mat.Matrix.
	AuxObsm
	// AuxVarp is a Varp matrix.  A sample carries the row of its region as
	// []float32.
	AuxVarp
	// AuxVar is a column of the Var table.  A sample carries the value of its
	// region: float64 for numeric columns, int category code for string
	// columns.
	AuxVar
)

func (k AuxKind) String() string {
	switch k {
	case AuxObs:
		return "obs"
	case AuxObsm:
		return "obsm"
	case AuxVarp:
		return "varp"
	case AuxVar:
		return "var"
	}
	return fmt.Sprintf("AuxKind(%d)", int(k))
}

// AuxField names an auxiliary value to attach to every sample.
type AuxField struct {
	// Name is the key in Sample.Aux.  Defaults to Key.
	Name string
	Kind AuxKind
	// Key is the column or matrix name in the AnnData.
	Key string
}

// auxExtractor returns the value of one field for the region at the given
// logical position.
type auxExtractor struct {
	name string
	get  func(logical int) interface{}
}

// categoryCodes maps every distinct value of records, in sorted order, to its
// rank.
func categoryCodes(records []string) []int {
	uniq := append([]string(nil), records...)
	sort.Strings(uniq)
	rank := map[string]int{}
	for _, v := range uniq {
		if _, ok := rank[v]; !ok {
			rank[v] = len(rank)
		}
	}
	codes := make([]int, len(records))
	for i, v := range records {
		codes[i] = rank[v]
	}
	return codes
}

func newAuxExtractors(ad *anndata.AnnData, fields []AuxField) ([]auxExtractor, error) {
	var (
		out   []auxExtractor
		names = map[string]bool{}
	)
	nObs, nVar := ad.Shape()
	for _, f := range fields {
		name := f.Name
		if name == "" {
			name = f.Key
		}
		if names[name] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: duplicate aux field %q", name))
		}
		names[name] = true
		ex := auxExtractor{name: name}
		switch f.Kind {
		case AuxObs:
			col, err := ad.ObsColumn(f.Key)
			if err != nil {
				return nil, err
			}
			if col.Len() != nObs {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("dataset: obs[%s] has %d rows, expected %d", f.Key, col.Len(), nObs))
			}
			var v interface{}
			if col.Type() == series.String {
				v = categoryCodes(col.Records())
			} else {
				vals := col.Float()
				f32 := make([]float32, len(vals))
				for i, x := range vals {
					f32[i] = float32(x)
				}
				v = f32
			}
			ex.get = func(int) interface{} { return v }
		case AuxObsm:
			m, ok := ad.Obsm[f.Key]
			if !ok {
				return nil, util.MissingKey("obsm", f.Key, obsmKeys(ad))
			}
			if r, _ := m.Dims(); r != nObs {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("dataset: obsm[%s] has %d rows, expected %d", f.Key, r, nObs))
			}
			var v mat.Matrix = m
			ex.get = func(int) interface{} { return v }
		case AuxVarp:
			m, ok := ad.Varp[f.Key]
			if !ok {
				return nil, util.MissingKey("varp", f.Key, varpKeys(ad))
			}
			if r, c := m.Dims(); r != nVar || c != nVar {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("dataset: varp[%s] is %d×%d, expected %d×%d", f.Key, r, c, nVar, nVar))
			}
			ex.get = func(logical int) interface{} {
				row := make([]float32, nVar)
				anndata.ColumnInto(mat.Transpose{Matrix: m}, logical, row)
				return row
			}
		case AuxVar:
			col, err := ad.VarColumn(f.Key)
			if err != nil {
				return nil, err
			}
			if col.Type() == series.String {
				codes := categoryCodes(col.Records())
				ex.get = func(logical int) interface{} { return codes[logical] }
			} else {
				vals := col.Float()
				ex.get = func(logical int) interface{} { return vals[logical] }
			}
		default:
			return nil, errors.E(errors.Invalid, fmt.Sprintf("dataset: aux field %q has unknown kind %v", name, f.Kind))
		}
		out = append(out, ex)
	}
	return out, nil
}

func obsmKeys(ad *anndata.AnnData) []string {
	keys := make([]string, 0, len(ad.Obsm))
	for k := range ad.Obsm {
		keys = append(keys, k)
	}
	return keys
}

func varpKeys(ad *anndata.AnnData) []string {
	keys := make([]string, 0, len(ad.Varp))
	for k := range ad.Varp {
		keys = append(keys, k)
	}
	return keys
}
