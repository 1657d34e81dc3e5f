package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLock serializes work per key using a fixed set of striped mutexes.
// Distinct keys may share a stripe; that only costs throughput
type keyLock struct {
	stripes [lockStripes]sync.Mutex
}

func (k *keyLock) Lock(key string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
