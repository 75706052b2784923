package dataset

import (
	"context"
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/mtvector/CREsted/genome"
	"github.com/mtvector/CREsted/region"
	"github.com/mtvector/CREsted/seq"
)

// SequenceLoader resolves a region, strand and shift to a sequence of exactly
// end-start bases.
//
// Each region is fetched with MaxStochasticShift extra bases on both sides.
// When the contig length is known, the extended window is slid (never
// shrunk) to stay inside the contig, and the crop is moved with it.  When it
// is not known, the window is only clamped at 0 and missing bases are
// replaced by N.
type SequenceLoader struct {
	genome genome.Accessor
	sizes  genome.ChromSizes
	opts   SequenceLoaderOpts
	// cache is nil unless opts.InMemory.
	cache *sequenceCache
}

// NewSequenceLoader creates a SequenceLoader over g.  If opts.InMemory is
// set, the extended sequence of every augmented key derived from regions is
// fetched up front, in parallel.
func NewSequenceLoader(ctx context.Context, g genome.Accessor, opts SequenceLoaderOpts, regions []string) (*SequenceLoader, error) {
	if opts.MaxStochasticShift < 0 {
		return nil, errors.E(errors.Invalid, "dataset: MaxStochasticShift must be >= 0")
	}
	l := &SequenceLoader{
		genome: g,
		sizes:  g.ChromSizes(),
		opts:   opts,
	}
	if !opts.InMemory {
		return l, nil
	}
	index, err := NewIndexManager(regions, opts.indexOpts())
	if err != nil {
		return nil, err
	}
	if err := l.load(ctx, index.keys); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SequenceLoader) load(ctx context.Context, keys []region.Region) error {
	parallelism := l.opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(keys) {
		parallelism = len(keys)
	}
	log.Printf("dataset: loading %d sequences into memory", len(keys))
	cache := newSequenceCache(l.opts.CompressCache)
	if parallelism > 0 {
		err := traverse.Each(parallelism, func(worker int) error {
			for i := worker; i < len(keys); i += parallelism {
				if err := ctx.Err(); err != nil {
					return err
				}
				ws, we, _ := l.window(keys[i])
				s, err := l.fetch(keys[i], ws, we)
				if err != nil {
					return err
				}
				cache.put(keys[i].String(), s)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	n, size := cache.stats()
	log.Debug.Printf("dataset: cached %d sequences, %d bytes (compressed: %v)", n, size, l.opts.CompressCache)
	l.cache = cache
	return nil
}

// window returns the genomic extent [ws, we) fetched for r.  slid is true if
// the contig length was known and the window was fit inside it.
func (l *SequenceLoader) window(r region.Region) (ws, we int, slid bool) {
	m := l.opts.MaxStochasticShift
	ws, we = r.Start-m, r.End+m
	size, ok := l.sizes[r.Chrom]
	if !ok {
		if ws < 0 {
			ws = 0
		}
		return ws, we, false
	}
	switch {
	case we-ws >= size:
		ws, we = 0, size
	case ws < 0:
		we -= ws
		ws = 0
	case we > size:
		ws -= we - size
		we = size
	}
	return ws, we, true
}

// fetch reads [ws, we) on r.Chrom, uppercased and oriented along r.Strand.
func (l *SequenceLoader) fetch(r region.Region, ws, we int) (string, error) {
	s, err := l.genome.Fetch(r.Chrom, ws, we)
	if err != nil {
		return "", errors.E(err, fmt.Sprintf("dataset: fetch %s", r))
	}
	buf := []byte(s)
	seq.CleanInplace(buf)
	if r.Strand == region.Reverse {
		seq.ReverseComplementInplace(buf)
	}
	return string(buf), nil
}

// GetSequence returns the sequence of name on strand, cropped at shift
// bases from its canonical position.  If strand is region.Unstranded, the
// strand is taken from name, and an unstranded name reads as '+'.  shift must
// be within [-MaxStochasticShift, MaxStochasticShift].
func (l *SequenceLoader) GetSequence(name string, strand region.Strand, shift int) (string, error) {
	r, err := region.Parse(name)
	if err != nil {
		return "", err
	}
	if strand == region.Unstranded {
		strand = r.Strand.Resolve()
	}
	return l.sequence(r.WithStrand(strand), shift)
}

// sequence implements GetSequence for a region with an explicit strand.
func (l *SequenceLoader) sequence(r region.Region, shift int) (string, error) {
	m := l.opts.MaxStochasticShift
	if shift < -m || shift > m {
		return "", errors.E(errors.Invalid,
			fmt.Sprintf("dataset: shift %d outside [-%d, %d] for %s", shift, m, m, r))
	}
	ws, we, slid := l.window(r)
	var (
		ext string
		err error
	)
	if l.cache != nil {
		var ok bool
		if ext, ok, err = l.cache.get(r.String()); err != nil {
			return "", err
		} else if !ok {
			return "", errors.E(errors.NotExist, fmt.Sprintf("dataset: %s is not in the sequence cache", r))
		}
	} else if ext, err = l.fetch(r, ws, we); err != nil {
		return "", err
	}

	// Offset of the crop in ext, which is oriented along r.Strand.  On '-'
	// index 0 of ext is genomic position ws+len(ext)-1.
	n := r.Len()
	var off int
	if r.Strand == region.Reverse {
		off = ws + len(ext) - (r.End - shift)
	} else {
		off = r.Start + shift - ws
	}
	if slid && len(ext) >= n {
		if off < 0 {
			off = 0
		} else if off > len(ext)-n {
			off = len(ext) - n
		}
		return ext[off : off+n], nil
	}
	// Bases of the crop that fall outside ext become N on the side they are
	// missing from.
	lo, hi := off, off+n
	if lo < 0 {
		lo = 0
	}
	if hi > len(ext) {
		hi = len(ext)
	}
	var s string
	if lo < hi {
		s = ext[lo:hi]
	}
	left := lo - off
	if left > n {
		left = n
	}
	return seq.Pad(s, left, n-left-len(s)), nil
}

// InMemory reports whether sequences are served from the cache.
func (l *SequenceLoader) InMemory() bool { return l.cache != nil }

// ReverseComplement returns the reverse complement of s.
func ReverseComplement(s string) string { return seq.ReverseComplement(s) }
