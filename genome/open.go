package genome

import (
	"bytes"
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/mtvector/CREsted/util"
)

// Opts controls Open.
type Opts struct {
	// ChromSizesPath, if nonempty, is a "chrom<TAB>size" table used for
	// ChromSizes.
	ChromSizesPath string
	// NoChromSizes leaves ChromSizes nil when ChromSizesPath is empty.
	// Otherwise sizes are taken from the FASTA itself.
	NoChromSizes bool
	// InMemory reads the whole FASTA into memory even if a .fai index exists.
	InMemory bool
}

// Open opens a FASTA file.  If path+".fai" exists and the file is not
// gzipped, sequences are read on demand through the index.  Otherwise the
// whole file is loaded into memory.  The caller must Close the result.
func Open(ctx context.Context, path string, opts Opts) (g *Genome, err error) {
	var sizes ChromSizes
	if opts.ChromSizesPath != "" {
		if sizes, err = ReadChromSizes(ctx, opts.ChromSizesPath); err != nil {
			return nil, err
		}
	}
	indexPath := path + ".fai"
	indexed := !opts.InMemory && fileio.DetermineType(path) != fileio.Gzip
	if indexed {
		if _, serr := file.Stat(ctx, indexPath); serr != nil {
			log.Debug.Printf("genome: no index at %s, loading %s into memory", indexPath, path)
			indexed = false
		}
	}
	if indexed {
		g, err = openIndexed(ctx, path, indexPath)
	} else {
		var fa Fasta
		err = util.WithReader(ctx, path, func(r io.Reader) (err error) {
			fa, err = NewFasta(r)
			return
		})
		g = New(fa, nil)
	}
	if err != nil {
		return nil, err
	}
	switch {
	case sizes != nil:
		g.sizes = sizes
	case !opts.NoChromSizes:
		g.sizes = SizesFromFasta(g.fa)
	}
	log.Debug.Printf("genome: opened %s: %d contigs, indexed=%v", path, len(g.fa.SeqNames()), indexed)
	return g, nil
}

func openIndexed(ctx context.Context, path, indexPath string) (*Genome, error) {
	var index []byte
	if err := util.WithReader(ctx, indexPath, func(r io.Reader) (err error) {
		var buf bytes.Buffer
		_, err = io.Copy(&buf, r)
		index = buf.Bytes()
		return
	}); err != nil {
		return nil, err
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
	}
	fa, err := NewIndexedFasta(in.Reader(ctx), bytes.NewReader(index))
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.E(err, indexPath)
	}
	g := New(fa, nil)
	g.close = in.Close
	return g, nil
}
