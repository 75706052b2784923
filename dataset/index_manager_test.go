package dataset_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/mtvector/CREsted/dataset"
)

func TestIndexManagerMultiplier(t *testing.T) {
	regions := []string{"chr1:100-200", "chr1:300-400", "chr2:0-60"}
	for _, rc := range []bool{false, true} {
		for _, det := range []bool{false, true} {
			for _, n := range []int{0, 1, 3} {
				opts := dataset.DefaultIndexOpts
				opts.AlwaysReverseComplement = rc
				opts.DeterministicShift = det
				opts.NShifts = n
				m, err := dataset.NewIndexManager(regions, opts)
				assert.NoError(t, err)
				want := 1
				if rc {
					want *= 2
				}
				if det {
					want *= 2*n + 1
				}
				expect.EQ(t, m.Multiplier(), want, "%+v", opts)
				expect.EQ(t, m.Len(), len(regions)*want, "%+v", opts)
				expect.EQ(t, len(m.AugmentedIndices()), m.Len())

				// Every key maps back to a region of the input, and every
				// region is reached.
				reached := map[string]bool{}
				for _, key := range m.AugmentedIndices() {
					r, ok := m.Map(key)
					assert.True(t, ok, key)
					reached[r] = true
				}
				for _, r := range regions {
					expect.True(t, reached[r], r)
				}
				for k, v := range m.AugmentedIndicesMap() {
					expect.True(t, reached[v], k)
				}
			}
		}
	}
}

func TestIndexManagerKeys(t *testing.T) {
	m, err := dataset.NewIndexManager([]string{"chr1:100-200"}, dataset.IndexOpts{
		AlwaysReverseComplement: true,
		DeterministicShift:      true,
		NShifts:                 1,
		ShiftStride:             50,
	})
	assert.NoError(t, err)
	expect.EQ(t, m.AugmentedIndices(), []string{
		"chr1:50-150:+", "chr1:50-150:-",
		"chr1:100-200:+", "chr1:100-200:-",
		"chr1:150-250:+", "chr1:150-250:-",
	})
	for i := 0; i < m.Len(); i++ {
		expect.EQ(t, m.Logical(i), 0)
		expect.EQ(t, m.Key(i).String(), m.AugmentedIndices()[i])
	}

	// Stranded regions keep their strand; shifts past 0 are pinned.
	m, err = dataset.NewIndexManager([]string{"chr1:20-120:-"}, dataset.IndexOpts{
		AlwaysReverseComplement: true,
		DeterministicShift:      true,
		NShifts:                 1,
		ShiftStride:             50,
	})
	assert.NoError(t, err)
	expect.EQ(t, m.AugmentedIndices(), []string{
		"chr1:0-100:-", "chr1:0-100:+",
		"chr1:20-120:-", "chr1:20-120:+",
		"chr1:70-170:-", "chr1:70-170:+",
	})
	r, ok := m.Map("chr1:0-100:+")
	expect.True(t, ok)
	expect.EQ(t, r, "chr1:20-120:-")
	_, ok = m.Map("chr1:20-120")
	expect.False(t, ok)

	m, err = dataset.NewIndexManager([]string{"chr1:0-10", "chr1:5-15"}, dataset.DefaultIndexOpts)
	assert.NoError(t, err)
	expect.EQ(t, m.AugmentedIndices(), []string{"chr1:0-10:+", "chr1:5-15:+"})
}

func TestIndexManagerErrors(t *testing.T) {
	_, err := dataset.NewIndexManager([]string{"chr1:0-10", "chr1:0-10:+"}, dataset.DefaultIndexOpts)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = dataset.NewIndexManager([]string{"chr1-0-10"}, dataset.DefaultIndexOpts)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = dataset.NewIndexManager([]string{"chr1:0-10"}, dataset.IndexOpts{DeterministicShift: true, NShifts: 2})
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = dataset.NewIndexManager([]string{"chr1:0-10"}, dataset.IndexOpts{NShifts: -1})
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestIndexManagerShuffle(t *testing.T) {
	var regions []string
	for i := 0; i < 100; i++ {
		regions = append(regions, fmt.Sprintf("chr1:%d-%d", i*1000, i*1000+500))
	}
	opts := dataset.IndexOpts{AlwaysReverseComplement: true, DeterministicShift: true, NShifts: 2, ShiftStride: 10}
	m, err := dataset.NewIndexManager(regions, opts)
	assert.NoError(t, err)
	before := append([]string(nil), m.AugmentedIndices()...)
	sum := m.Checksum()

	m.ShuffleIndices(rand.New(rand.NewSource(42)))
	after := append([]string(nil), m.AugmentedIndices()...)
	expect.False(t, fmt.Sprint(before) == fmt.Sprint(after))
	expect.False(t, sum == m.Checksum())
	expect.EQ(t, m.Indices(), regions)
	for i := 0; i < m.Len(); i++ {
		r, ok := m.Map(after[i])
		assert.True(t, ok)
		expect.EQ(t, regions[m.Logical(i)], r)
		expect.EQ(t, m.Key(i).String(), after[i])
	}
	sort.Strings(before)
	sort.Strings(after)
	expect.EQ(t, after, before)

	// The same seed gives the same order.
	m2, err := dataset.NewIndexManager(regions, opts)
	assert.NoError(t, err)
	m2.ShuffleIndices(rand.New(rand.NewSource(42)))
	expect.EQ(t, m2.Checksum(), m.Checksum())
}
