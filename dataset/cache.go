package dataset

import (
	"sync"

	"blainsmith.com/go/seahash"
	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	gunsafe "github.com/grailbio/base/unsafe"
)

const numCacheShards = 64

type cacheShard struct {
	mu   sync.Mutex
	seqs map[string][]byte
}

// sequenceCache is a sharded, thread-safe map from augmented key to extended
// sequence.  It is filled once and then only read.
type sequenceCache struct {
	compress bool
	shards   [numCacheShards]cacheShard
}

func newSequenceCache(compress bool) *sequenceCache {
	c := &sequenceCache{compress: compress}
	for i := range c.shards {
		c.shards[i].seqs = make(map[string][]byte)
	}
	return c
}

func (c *sequenceCache) shard(key string) *cacheShard {
	h := seahash.Sum64(gunsafe.StringToBytes(key))
	return &c.shards[int(h%uint64(numCacheShards))]
}

func (c *sequenceCache) put(key, seq string) {
	var data []byte
	if c.compress {
		data = snappy.Encode(nil, gunsafe.StringToBytes(seq))
	} else {
		data = []byte(seq)
	}
	s := c.shard(key)
	s.mu.Lock()
	s.seqs[key] = data
	s.mu.Unlock()
}

// get returns the sequence stored under key.
func (c *sequenceCache) get(key string) (string, bool, error) {
	s := c.shard(key)
	s.mu.Lock()
	data, ok := s.seqs[key]
	s.mu.Unlock()
	if !ok {
		return "", false, nil
	}
	if !c.compress {
		return gunsafe.BytesToString(data), true, nil
	}
	buf, err := snappy.Decode(nil, data)
	if err != nil {
		return "", true, errors.E(err, "dataset: decompress cached sequence", key)
	}
	return gunsafe.BytesToString(buf), true, nil
}

// stats returns the number of entries and their total stored size in bytes.
func (c *sequenceCache) stats() (n, size int) {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.seqs)
		for _, data := range s.seqs {
			size += len(data)
		}
		s.mu.Unlock()
	}
	return n, size
}
