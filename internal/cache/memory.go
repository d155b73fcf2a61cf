package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mapgrid/tileservice/internal/observability"
)

// Memory is an in-process cache bounded by entry count. Eviction order
// is strict FIFO by insertion time, not LRU-by-access: the underlying
// lru.Cache's Get would promote an entry's recency on every read,
// which is wrong for a cache whose job is to bound memory for a
// bursty fill workload rather than to keep "popular" tiles warm
// indefinitely. Add still pushes the lone true way to insert, but
// every read goes through Peek, which never touches the cache's
// internal order.
type Memory struct {
	mu      sync.RWMutex
	tiles   *lru.Cache[string, []byte]
	pools   *lru.Cache[string, []byte]
	counters statsCounters
}

// NewMemory builds a Memory cache holding up to entries tile-layer
// blobs and up to entries string-pool blobs.
func NewMemory(entries int) (*Memory, error) {
	if entries <= 0 {
		entries = 1024
	}
	tiles, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	pools, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &Memory{tiles: tiles, pools: pools}, nil
}

func (m *Memory) GetTileLayerBlob(key MapTileKey) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tiles.Peek(key.String())
	if ok {
		m.counters.hits.Add(1)
		observability.CacheHit("memory")
	} else {
		m.counters.misses.Add(1)
		observability.CacheMiss("memory")
	}
	return v, ok, nil
}

func (m *Memory) PutTileLayerBlob(key MapTileKey, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles.Add(key.String(), blob)
	observability.CachePut("memory", "tile")
	return nil
}

func (m *Memory) GetStringPoolBlob(nodeID string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.pools.Peek(nodeID)
	if ok {
		m.counters.loadedPools.Add(1)
	}
	return v, ok, nil
}

func (m *Memory) PutStringPoolBlob(nodeID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools.Add(nodeID, blob)
	observability.CachePut("memory", "string-pool")
	return nil
}

func (m *Memory) ForEachTileLayerBlob(fn func(key MapTileKey, blob []byte) bool) error {
	m.mu.RLock()
	keys := m.tiles.Keys()
	m.mu.RUnlock()
	for _, k := range keys {
		m.mu.RLock()
		blob, ok := m.tiles.Peek(k)
		m.mu.RUnlock()
		if !ok {
			continue
		}
		key, err := ParseMapTileKey(k)
		if err != nil {
			continue
		}
		if !fn(key, blob) {
			break
		}
	}
	return nil
}

func (m *Memory) Evict(key MapTileKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles.Remove(key.String())
	return nil
}

func (m *Memory) Stats() Stats { return m.counters.snapshot() }
