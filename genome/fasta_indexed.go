package genome

import (
	"io"
	"sort"
	"sync"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// faiEntry is one line of a .fai index: "<name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>", e.g. "chr3\t12345\t9000\t80\t81".
type faiEntry struct {
	Name      string
	Length    int64
	Offset    int64
	LineBases int64
	LineWidth int64
}

// readIndex parses a .fai index.  Entries are returned in file offset order.
func readIndex(r io.Reader) ([]faiEntry, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	var entries []faiEntry
	seen := map[string]bool{}
	for {
		var e faiEntry
		if err := tr.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "invalid index line")
		}
		if e.Length > 0 && (e.LineBases <= 0 || e.LineWidth < e.LineBases) {
			return nil, errors.Errorf("invalid index line for %s: line bases %d, line width %d",
				e.Name, e.LineBases, e.LineWidth)
		}
		if seen[e.Name] {
			return nil, errors.Errorf("duplicate index entry %s", e.Name)
		}
		seen[e.Name] = true
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })
	return entries, nil
}

// IndexSizes returns the sequence lengths recorded in a .fai index, without
// touching the FASTA data.
func IndexSizes(index io.Reader) (ChromSizes, error) {
	entries, err := readIndex(index)
	if err != nil {
		return nil, err
	}
	sizes := make(ChromSizes, len(entries))
	for _, e := range entries {
		sizes[e.Name] = int(e.Length)
	}
	return sizes, nil
}

type indexedFasta struct {
	seqs     map[string]faiEntry
	seqNames []string

	mu      sync.Mutex
	reader  io.ReadSeeker
	bufOff  int64
	buf     []byte // file contents starting at bufOff
	lineBuf []byte // bases with line terminators removed
}

// NewIndexedFasta creates a Fasta that seeks into fasta on each Get, using
// the given .fai index.  Nothing but the index is held in memory.
func NewIndexedFasta(fasta io.ReadSeeker, index io.Reader) (Fasta, error) {
	entries, err := readIndex(index)
	if err != nil {
		return nil, err
	}
	f := &indexedFasta{seqs: make(map[string]faiEntry, len(entries)), reader: fasta}
	for _, e := range entries {
		f.seqs[e.Name] = e
		f.seqNames = append(f.seqNames, e.Name)
	}
	return f, nil
}

func (f *indexedFasta) Len(seqName string) (int, error) {
	e, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return int(e.Length), nil
}

func (f *indexedFasta) SeqNames() []string { return f.seqNames }

// read returns file bytes [off, off+n).  REQUIRES: f.mu is held.
func (f *indexedFasta) read(off int64, n int) ([]byte, error) {
	if off < f.bufOff || off+int64(n) > f.bufOff+int64(len(f.buf)) {
		if got, err := f.reader.Seek(off, io.SeekStart); err != nil || got != off {
			return nil, errors.Errorf("failed to seek to offset %d: %d, %v", off, got, err)
		}
		size := 8192
		if size < n {
			size = n
		}
		if cap(f.buf) < size {
			f.buf = make([]byte, size)
		}
		f.buf = f.buf[:size]
		nRead, err := io.ReadAtLeast(f.reader, f.buf, n)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return nil, err
		}
		if nRead < n {
			return nil, errors.Errorf("unexpected end of file at offset %d (bad index? file doesn't end in newline?)", off)
		}
		f.bufOff, f.buf = off, f.buf[:nRead]
	}
	return f.buf[off-f.bufOff : off-f.bufOff+int64(n)], nil
}

func (f *indexedFasta) Get(seqName string, start, end int) (string, error) {
	e, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found in index: %s", seqName)
	}
	if err := checkRange(seqName, start, end, int(e.Length)); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s, n := int64(start), int64(end-start)
	terminator := e.LineWidth - e.LineBases
	off := e.Offset + s + terminator*(s/e.LineBases)
	// Bytes to read, counting the terminators of every line boundary crossed.
	firstLine := e.LineBases - s%e.LineBases
	var crossed int64
	if n > firstLine {
		crossed = 1 + (n-firstLine-1)/e.LineBases
	}
	raw, err := f.read(off, int(n+crossed*terminator))
	if err != nil {
		return "", err
	}
	if cap(f.lineBuf) < int(n) {
		f.lineBuf = make([]byte, n)
	}
	out := f.lineBuf[:0]
	col := s % e.LineBases
	for i := 0; i < len(raw); {
		take := int(e.LineBases - col)
		if rem := len(raw) - i; take > rem {
			take = rem
		}
		out = append(out, raw[i:i+take]...)
		i += take + int(terminator)
		col = 0
	}
	if len(out) != int(n) {
		return "", errors.Errorf("%s:%d-%d: read %d bases, expected %d", seqName, start, end, len(out), n)
	}
	return string(out), nil
}
