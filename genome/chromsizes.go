package genome

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/mtvector/CREsted/util"
)

// ChromSizes maps a contig name to its length.
type ChromSizes map[string]int

// Names returns the contig names in sorted order.
func (c ChromSizes) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type chromSizeRow struct {
	Chrom string
	Size  int64
}

// ParseChromSizes reads a two-column "chrom<TAB>size" table.  Lines starting
// with '#' are skipped.
func ParseChromSizes(r io.Reader) (ChromSizes, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	sizes := ChromSizes{}
	for {
		var row chromSizeRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, "chrom sizes")
		}
		if row.Size <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("chrom sizes: %s has non-positive size %d", row.Chrom, row.Size))
		}
		if _, dup := sizes[row.Chrom]; dup {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("chrom sizes: duplicate contig %s", row.Chrom))
		}
		sizes[row.Chrom] = int(row.Size)
	}
	return sizes, nil
}

// ReadChromSizes reads a chrom sizes file, optionally gzipped.
func ReadChromSizes(ctx context.Context, path string) (sizes ChromSizes, err error) {
	err = util.WithReader(ctx, path, func(r io.Reader) (err error) {
		sizes, err = ParseChromSizes(r)
		return
	})
	return
}
