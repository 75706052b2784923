package dataset

import "io"

// Iterator walks an AnnDataset in order, one epoch at a time.
type Iterator struct {
	d    *AnnDataset
	pos  int
	done bool
}

// Iterator returns an iterator positioned at the first sample.
func (d *AnnDataset) Iterator() *Iterator { return &Iterator{d: d} }

// Next returns the next sample, or io.EOF at the end of an epoch.  The call
// after io.EOF starts a new epoch, reshuffling first if the dataset's
// shuffle flag is set.
func (it *Iterator) Next() (Sample, error) {
	if it.done {
		it.done = false
		it.pos = 0
		if it.d.shuffle {
			it.d.ShuffleIndices()
		}
	}
	if it.pos >= it.d.Len() {
		it.done = true
		return Sample{}, io.EOF
	}
	s, err := it.d.Get(it.pos)
	if err != nil {
		return Sample{}, err
	}
	it.pos++
	return s, nil
}
