// Package genome provides random access to reference sequences.
//
// An Accessor serves bases by half-open coordinates and, optionally, the
// length of every contig.  Genome implements Accessor over FASTA data, held
// either in memory or behind a samtools .fai index.
package genome

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
)

// Accessor is the contract between the dataset layer and a reference genome.
type Accessor interface {
	// Fetch returns the bases of chrom in [start, end).  Reads past the end
	// of the contig are truncated, so the result may be shorter than
	// end-start.  Fetch must be safe for concurrent use.
	Fetch(chrom string, start, end int) (string, error)

	// ChromSizes returns contig lengths, or nil if they are unknown.
	ChromSizes() ChromSizes
}

// Genome is an Accessor backed by a Fasta.
type Genome struct {
	fa    Fasta
	sizes ChromSizes
	close func(ctx context.Context) error
}

// New creates a Genome.  sizes may be nil, in which case ChromSizes returns
// nil and callers cannot clamp windows at contig ends.
func New(fa Fasta, sizes ChromSizes) *Genome {
	return &Genome{fa: fa, sizes: sizes}
}

// SizesFromFasta returns the length of every sequence in fa.
func SizesFromFasta(fa Fasta) ChromSizes {
	sizes := make(ChromSizes, len(fa.SeqNames()))
	for _, name := range fa.SeqNames() {
		n, err := fa.Len(name)
		if err != nil {
			panic(err)
		}
		sizes[name] = n
	}
	return sizes
}

// Fetch implements Accessor.
func (g *Genome) Fetch(chrom string, start, end int) (string, error) {
	if start < 0 || end < start {
		return "", errors.E(errors.Invalid, fmt.Sprintf("genome: invalid range %s:%d-%d", chrom, start, end))
	}
	n, err := g.fa.Len(chrom)
	if err != nil {
		return "", errors.E(errors.NotExist, err, fmt.Sprintf("genome: contig %s", chrom))
	}
	if end > n {
		end = n
	}
	if start >= end {
		return "", nil
	}
	return g.fa.Get(chrom, start, end)
}

// ChromSizes implements Accessor.
func (g *Genome) ChromSizes() ChromSizes { return g.sizes }

// SeqNames lists the contigs in FASTA order.
func (g *Genome) SeqNames() []string { return g.fa.SeqNames() }

// Close releases the underlying file, if any.
func (g *Genome) Close(ctx context.Context) error {
	if g.close == nil {
		return nil
	}
	return g.close(ctx)
}
