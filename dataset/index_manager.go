package dataset

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/minio/highwayhash"
	"github.com/mtvector/CREsted/region"
)

// IndexManager expands logical regions into augmented keys.
//
// An augmented key always carries an explicit strand.  Unstranded regions
// are canonicalized to '+'.  With AlwaysReverseComplement every key is
// followed by its opposite strand; with DeterministicShift every region
// becomes 2*NShifts+1 shifted variants, each of which is reverse-complemented
// separately.  So
//
//   Len() == len(Indices()) * Multiplier()
type IndexManager struct {
	opts    IndexOpts
	indices []string
	regions []region.Region

	// keys, augmented and logical are parallel.  logical[i] is the position
	// in indices that keys[i] derives from.  Positions, not names, link a key
	// to its region since shifted variants of nearby regions may coincide.
	keys      []region.Region
	augmented []string
	logical   []int
	mapping   map[string]string
}

// NewIndexManager creates an IndexManager over indices.  The indices must be
// either all stranded or all unstranded.
func NewIndexManager(indices []string, opts IndexOpts) (*IndexManager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	regions, _, err := region.ParseList(indices)
	if err != nil {
		return nil, err
	}
	m := &IndexManager{
		opts:    opts,
		indices: indices,
		regions: regions,
	}
	m.augment()
	return m, nil
}

func (m *IndexManager) augment() {
	n := len(m.regions) * m.Multiplier()
	m.keys = make([]region.Region, 0, n)
	m.augmented = make([]string, 0, n)
	m.logical = make([]int, 0, n)
	m.mapping = make(map[string]string, n)
	add := func(k region.Region, i int) {
		s := k.String()
		m.keys = append(m.keys, k)
		m.augmented = append(m.augmented, s)
		m.logical = append(m.logical, i)
		if _, ok := m.mapping[s]; !ok {
			m.mapping[s] = m.indices[i]
		}
	}
	for i, r := range m.regions {
		canonical := r.WithStrand(r.Strand.Resolve())
		for _, offset := range m.shifts() {
			k := canonical.Shift(offset)
			add(k, i)
			if m.opts.AlwaysReverseComplement {
				add(k.WithStrand(k.Strand.Flip()), i)
			}
		}
	}
}

// shifts returns the coordinate offsets of the deterministic variants.
func (m *IndexManager) shifts() []int {
	if !m.opts.DeterministicShift {
		return []int{0}
	}
	offsets := make([]int, 0, 2*m.opts.NShifts+1)
	for k := -m.opts.NShifts; k <= m.opts.NShifts; k++ {
		offsets = append(offsets, k*m.opts.ShiftStride)
	}
	return offsets
}

// Multiplier is the number of augmented keys per logical region.
func (m *IndexManager) Multiplier() int {
	n := 1
	if m.opts.AlwaysReverseComplement {
		n *= 2
	}
	if m.opts.DeterministicShift {
		n *= 2*m.opts.NShifts + 1
	}
	return n
}

// Len returns the number of augmented keys.
func (m *IndexManager) Len() int { return len(m.augmented) }

// Indices returns the logical regions, in construction order.  The caller
// must not modify the result.
func (m *IndexManager) Indices() []string { return m.indices }

// AugmentedIndices returns the augmented keys in visiting order.  The caller
// must not modify the result.
func (m *IndexManager) AugmentedIndices() []string { return m.augmented }

// AugmentedIndicesMap maps every augmented key to its logical region.  If
// shifted variants of two regions coincide, the key maps to the region that
// comes first in Indices.  The caller must not modify the result.
func (m *IndexManager) AugmentedIndicesMap() map[string]string { return m.mapping }

// Map returns the logical region of an augmented key.
func (m *IndexManager) Map(key string) (string, bool) {
	r, ok := m.mapping[key]
	return r, ok
}

// Key returns the i'th augmented key, parsed.
func (m *IndexManager) Key(i int) region.Region { return m.keys[i] }

// Logical returns the position in Indices of the region that the i'th
// augmented key derives from.
func (m *IndexManager) Logical(i int) int { return m.logical[i] }

// ShuffleIndices permutes the augmented keys in place.  The logical regions
// and the key to region mapping do not change.
func (m *IndexManager) ShuffleIndices(r *rand.Rand) {
	r.Shuffle(len(m.augmented), func(i, j int) {
		m.keys[i], m.keys[j] = m.keys[j], m.keys[i]
		m.augmented[i], m.augmented[j] = m.augmented[j], m.augmented[i]
		m.logical[i], m.logical[j] = m.logical[j], m.logical[i]
	})
}

// Checksum is a digest of the augmented keys in visiting order.
func (m *IndexManager) Checksum() string {
	var zeroKey [32]byte
	sum := highwayhash.Sum([]byte(strings.Join(m.augmented, "\n")), zeroKey[:])
	return fmt.Sprintf("%x", sum[:])
}
