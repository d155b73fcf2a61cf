// Package cache implements the tile-layer and string-pool blob cache
// (spec.md §4.6): a small Cache interface with Memory (FIFO,
// hashicorp/golang-lru), SQLite (modernc.org/sqlite, WAL-mode,
// oldest-eviction), Null, and an optional Redis L2 tier implementation.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/tileid"
)

// MapTileKey uniquely identifies one cached tile-layer blob.
type MapTileKey struct {
	Layer   layerinfo.LayerType
	MapID   string
	LayerID string
	TileID  tileid.ID
}

// String renders the key canonically as "layer:mapId:layerId:tileIdHex".
func (k MapTileKey) String() string {
	return fmt.Sprintf("%d:%s:%s:%s", k.Layer, k.MapID, k.LayerID, k.TileID.Hex())
}

// ParseMapTileKey is the inverse of String.
func ParseMapTileKey(s string) (MapTileKey, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return MapTileKey{}, fmt.Errorf("cache: malformed map tile key %q", s)
	}
	layerType, err := strconv.Atoi(parts[0])
	if err != nil {
		return MapTileKey{}, fmt.Errorf("cache: malformed layer type in key %q: %w", s, err)
	}
	tid, err := tileid.FromHex(parts[3])
	if err != nil {
		return MapTileKey{}, fmt.Errorf("cache: malformed tile id in key %q: %w", s, err)
	}
	return MapTileKey{
		Layer:   layerinfo.LayerType(layerType),
		MapID:   parts[1],
		LayerID: parts[2],
		TileID:  tid,
	}, nil
}

// Stats is the JSON-serializable counter snapshot spec.md §4.6
// requires a cache to expose ({cache-hits, cache-misses, loaded-string-pools}).
type Stats struct {
	CacheHits          int64 `json:"cache-hits"`
	CacheMisses        int64 `json:"cache-misses"`
	LoadedStringPools  int64 `json:"loaded-string-pools"`
}

type statsCounters struct {
	hits, misses, loadedPools atomic.Int64
}

func (c *statsCounters) snapshot() Stats {
	return Stats{
		CacheHits:         c.hits.Load(),
		CacheMisses:       c.misses.Load(),
		LoadedStringPools: c.loadedPools.Load(),
	}
}

// Cache is the abstract blob store a Service uses to avoid re-filling
// tiles and to share string pool dictionaries across tiles from the
// same data source node (spec.md §4.6). Implementations provide the
// four blob-level primitives plus ForEachTileLayerBlob, which lets
// callers (e.g. an invalidation consumer) enumerate cached entries,
// Evict and Stats.
type Cache interface {
	GetTileLayerBlob(key MapTileKey) ([]byte, bool, error)
	PutTileLayerBlob(key MapTileKey, blob []byte) error
	GetStringPoolBlob(nodeID string) ([]byte, bool, error)
	PutStringPoolBlob(nodeID string, blob []byte) error
	ForEachTileLayerBlob(fn func(key MapTileKey, blob []byte) bool) error
	Evict(key MapTileKey) error
	Stats() Stats
}
