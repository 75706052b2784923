package dataset

import (
	"encoding/binary"
	"math/rand"
	"sync"

	farm "github.com/dgryski/go-farm"
)

// lockedSource makes a rand.Source safe for concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	v := s.src.Int63()
	s.mu.Unlock()
	return v
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	s.src.Seed(seed)
	s.mu.Unlock()
}

func newRand(src rand.Source, seed int64) *rand.Rand {
	if src == nil {
		src = rand.NewSource(seed)
	}
	return rand.New(&lockedSource{src: src})
}

// DeriveSeed returns a seed for the given worker, derived from a base seed.
// Workers that build their own AnnDataset (e.g. one per process) can use it
// to get independent yet reproducible random streams.
func DeriveSeed(base int64, worker int) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(base))
	binary.LittleEndian.PutUint64(buf[8:], uint64(worker))
	return int64(farm.Hash64WithSeed(buf[:], uint64(base)) >> 1)
}
