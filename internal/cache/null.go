package cache

// Null never stores anything: every get misses, every put is a no-op.
// Useful for benchmarking fill() cost in isolation or for a data
// source that always wants to serve fresh data.
type Null struct {
	counters statsCounters
}

func NewNull() *Null { return &Null{} }

func (n *Null) GetTileLayerBlob(MapTileKey) ([]byte, bool, error) {
	n.counters.misses.Add(1)
	return nil, false, nil
}

func (n *Null) PutTileLayerBlob(MapTileKey, []byte) error { return nil }

func (n *Null) GetStringPoolBlob(string) ([]byte, bool, error) { return nil, false, nil }

func (n *Null) PutStringPoolBlob(string, []byte) error { return nil }

func (n *Null) ForEachTileLayerBlob(func(key MapTileKey, blob []byte) bool) error { return nil }

func (n *Null) Evict(MapTileKey) error { return nil }

func (n *Null) Stats() Stats { return n.counters.snapshot() }
