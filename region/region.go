// Package region parses and formats genomic region identifiers of the form
//
//   chrom:start-end
//   chrom:start-end:strand
//
// Coordinates are 0-based and half-open, [start, end).  Strand is '+' or '-'.
// A region without a strand suffix is unstranded and is treated as '+'
// wherever a strand is required.
package region

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/grailbio/base/errors"
)

// Strand is the orientation of a region.
type Strand int8

const (
	// Unstranded means that the region text carried no strand suffix.
	Unstranded Strand = iota
	// Forward is the '+' strand.
	Forward
	// Reverse is the '-' strand.
	Reverse
)

// String returns "+", "-", or "" for Unstranded.
func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return ""
}

// Resolve maps Unstranded to Forward.
func (s Strand) Resolve() Strand {
	if s == Unstranded {
		return Forward
	}
	return s
}

// Flip returns the opposite strand.  Unstranded flips to Reverse, since it is
// read as '+'.
func (s Strand) Flip() Strand {
	if s == Reverse {
		return Forward
	}
	return Reverse
}

// ParseStrand parses "+" or "-".
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return Forward, nil
	case "-":
		return Reverse, nil
	case "":
		return Unstranded, nil
	}
	return Unstranded, errors.E(errors.Invalid, fmt.Sprintf("region: invalid strand %q", s))
}

// Region is a genomic interval.
type Region struct {
	Chrom      string
	Start, End int
	Strand     Strand
}

// The chromosome name is matched greedily so that names containing ':' (e.g.
// "HLA-A*01:01") still parse when followed by a valid coordinate suffix.
var (
	strandedRE   = regexp.MustCompile(`^(.+):(\d+)-(\d+):([+-])$`)
	unstrandedRE = regexp.MustCompile(`^(.+):(\d+)-(\d+)$`)
)

// Parse parses "chrom:start-end" or "chrom:start-end:strand".
func Parse(s string) (Region, error) {
	var (
		r Region
		m []string
	)
	if m = strandedRE.FindStringSubmatch(s); m != nil {
		r.Strand, _ = ParseStrand(m[4])
	} else if m = unstrandedRE.FindStringSubmatch(s); m == nil {
		return Region{}, errors.E(errors.Invalid,
			fmt.Sprintf("region: %q does not match chrom:start-end or chrom:start-end:strand", s))
	}
	r.Chrom = m[1]
	var err error
	if r.Start, err = strconv.Atoi(m[2]); err != nil {
		return Region{}, errors.E(errors.Invalid, err, fmt.Sprintf("region: parse start of %q", s))
	}
	if r.End, err = strconv.Atoi(m[3]); err != nil {
		return Region{}, errors.E(errors.Invalid, err, fmt.Sprintf("region: parse end of %q", s))
	}
	if r.Start >= r.End {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("region: %q has start >= end", s))
	}
	return r, nil
}

// MustParse is Parse that panics on error.  For tests and constants.
func MustParse(s string) Region {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String formats r.  The strand suffix is emitted only for stranded regions.
func (r Region) String() string {
	if r.Strand == Unstranded {
		return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
	}
	return fmt.Sprintf("%s:%d-%d:%s", r.Chrom, r.Start, r.End, r.Strand)
}

// Unstranded returns r without its strand, i.e. the "chrom:start-end" form.
func (r Region) Unstranded() Region {
	r.Strand = Unstranded
	return r
}

// Len returns end - start.
func (r Region) Len() int { return r.End - r.Start }

// Stranded reports whether r carries an explicit strand.
func (r Region) Stranded() bool { return r.Strand != Unstranded }

// WithStrand returns a copy of r on strand s.
func (r Region) WithStrand(s Strand) Region {
	r.Strand = s
	return r
}

// Shift moves r by n bases.  If the result would start before 0, the window
// is pinned at 0 and keeps its length.
func (r Region) Shift(n int) Region {
	if r.Start+n < 0 {
		n = -r.Start
	}
	r.Start += n
	r.End += n
	return r
}

// ParseList parses a list of region strings and reports whether they are
// stranded.  All entries must be uniformly stranded or uniformly unstranded.
func ParseList(names []string) (regions []Region, stranded bool, err error) {
	regions = make([]Region, len(names))
	for i, name := range names {
		if regions[i], err = Parse(name); err != nil {
			return nil, false, err
		}
		if i == 0 {
			stranded = regions[i].Stranded()
		} else if regions[i].Stranded() != stranded {
			return nil, false, errors.E(errors.Invalid,
				fmt.Sprintf("region: %q mixes stranded and unstranded regions (first is %q)", name, names[0]))
		}
	}
	return regions, stranded, nil
}
