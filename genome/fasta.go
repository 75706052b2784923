package genome

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const maxLineSize = 1024 * 1024 * 300 // 300 MB

// Fasta is a set of named sequences.  See http://www.htslib.org/doc/faidx.html.
// Sequence names are the characters after '>' up to the first space, so
// ">chr1 A viral sequence" names "chr1".
type Fasta interface {
	// Get returns the bases of seqName in the 0-based half-open interval
	// [start, end).  Get is thread-safe.
	Get(seqName string, start, end int) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (int, error)

	// SeqNames returns the names of all sequences, in file order.
	SeqNames() []string
}

type memFasta struct {
	seqs     map[string]string
	seqNames []string
}

// NewFasta reads all of r into memory.
func NewFasta(r io.Reader) (Fasta, error) {
	f := &memFasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)
	var (
		name string
		buf  strings.Builder
		seen bool
	)
	add := func() error {
		if !seen {
			return nil
		}
		if _, dup := f.seqs[name]; dup {
			return errors.Errorf("duplicate FASTA sequence name %q", name)
		}
		f.seqs[name] = buf.String()
		f.seqNames = append(f.seqNames, name)
		buf.Reset()
		return nil
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := add(); err != nil {
				return nil, err
			}
			name, seen = strings.Split(line[1:], " ")[0], true
			continue
		}
		if !seen {
			return nil, errors.Errorf("malformed FASTA file: sequence data before the first header")
		}
		buf.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if err := add(); err != nil {
		return nil, err
	}
	return f, nil
}

func checkRange(seqName string, start, end, length int) error {
	if start < 0 || end <= start {
		return errors.Errorf("invalid query range %d - %d for sequence %s", start, end, seqName)
	}
	if end > length {
		return errors.Errorf("end is past end of sequence %s: %d", seqName, length)
	}
	return nil
}

func (f *memFasta) Get(seqName string, start, end int) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if err := checkRange(seqName, start, end, len(s)); err != nil {
		return "", err
	}
	return s[start:end], nil
}

func (f *memFasta) Len(seqName string) (int, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seqName)
	}
	return len(s), nil
}

func (f *memFasta) SeqNames() []string { return f.seqNames }
