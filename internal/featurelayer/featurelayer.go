// Package featurelayer implements TileFeatureLayer: the columnar,
// queryable container for one tile's worth of map features (spec.md
// §4.4). It wraps a model.Pool (the generic columnar arena) with a
// tile header, a root feature list, and a sorted hash index used to
// resolve features by id without a linear scan.
package featurelayer

import (
	"fmt"
	"sort"
	"time"

	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/model"
	"github.com/mapgrid/tileservice/internal/stringpool"
	"github.com/mapgrid/tileservice/internal/tileid"
)

// Header carries the tile-identifying and bookkeeping fields that sit
// alongside the feature data itself (spec.md §3 TileLayer).
type Header struct {
	MapID      string
	LayerID    string
	MapVersion layerinfo.Version
	TileID     tileid.ID
	NodeID     string
	Timestamp  time.Time
	TTL        *time.Duration
	Info       map[string]any
	Error      *string
}

type hashEntry struct {
	Hash uint64
	Addr model.Address
}

// TileFeatureLayer is one tile's feature data: a model.Pool of
// object/array/feature/geometry columns plus the indexing needed to
// find features by id in O(log n).
type TileFeatureLayer struct {
	Header
	Layer *layerinfo.LayerInfo

	Pool    *model.Pool
	Strings *stringpool.Pool

	roots []model.Address // Feature addresses, in creation order

	hashIndex       []hashEntry
	hashIndexSorted bool
}

// New creates an empty tile feature layer for the given tile/map/layer,
// with its own fresh string pool bound to nodeID.
func New(mapID, layerIDName string, layer *layerinfo.LayerInfo, tile tileid.ID, nodeID string) *TileFeatureLayer {
	return NewWithStrings(mapID, layerIDName, layer, tile, nodeID, stringpool.New(nodeID))
}

// NewWithStrings is like New but binds the layer to an existing
// string pool (e.g. one already populated by a prior wire message for
// the same node id), rather than allocating a fresh one.
func NewWithStrings(mapID, layerIDName string, layer *layerinfo.LayerInfo, tile tileid.ID, nodeID string, strings *stringpool.Pool) *TileFeatureLayer {
	return &TileFeatureLayer{
		Header: Header{
			MapID:     mapID,
			LayerID:   layerIDName,
			TileID:    tile,
			NodeID:    nodeID,
			Timestamp: time.Now().UTC(),
			Info:      map[string]any{},
		},
		Layer:   layer,
		Pool:    model.NewPool(strings),
		Strings: strings,
	}
}

// ReplaceContents adopts another layer's header, pool, strings, and
// indices wholesale. It exists for callers (a remote data source's
// fill()) that decode a freshly constructed TileFeatureLayer off the
// wire and need to hand its contents to the pre-allocated tile the
// caller is waiting on.
func (t *TileFeatureLayer) ReplaceContents(other *TileFeatureLayer) {
	t.Header = other.Header
	t.Layer = other.Layer
	t.Pool = other.Pool
	t.Strings = other.Strings
	t.roots = other.roots
	t.hashIndex = other.hashIndex
	t.hashIndexSorted = other.hashIndexSorted
}

// NumFeatures returns the number of root features in the layer.
func (t *TileFeatureLayer) NumFeatures() int { return len(t.roots) }

// FeatureAt returns the address of the i-th root feature.
func (t *TileFeatureLayer) FeatureAt(i int) model.Address { return t.roots[i] }

func toIDKeyValues(parts []model.IDPart, pool *model.Pool, strings *stringpool.Pool) []idKeyValue {
	out := make([]idKeyValue, len(parts))
	for i, p := range parts {
		key, _ := strings.Resolve(p.Key)
		v := pool.Value(p.ValueAddr)
		switch v.Kind {
		case model.KindInt64:
			out[i] = idKeyValue{Key: key, IsInt: true, Int: v.I64}
		case model.KindString:
			s, _ := strings.Resolve(v.Str)
			out[i] = idKeyValue{Key: key, String: s}
		default:
			out[i] = idKeyValue{Key: key}
		}
	}
	return out
}

// NewFeature allocates a new root feature of typeID with the given id
// parts, validates the id against the layer's declared compositions
// (when Layer is set), and indexes it by its stripped-id hash.
func (t *TileFeatureLayer) NewFeature(typeID string, parts []model.IDPart) (model.Address, error) {
	if len(parts) == 0 {
		return model.NullAddress, fmt.Errorf("featurelayer: cannot create a feature with an empty id")
	}

	var prefixLen int
	if prefix, ok := t.Pool.FeatureIDPrefix(); ok {
		prefixLen = len(t.Pool.Object(prefix))
	}

	typeIDID := t.Strings.Intern(typeID)
	allParts := parts
	if t.Layer != nil {
		keys := make([]string, len(parts))
		for i, p := range parts {
			keys[i], _ = t.Strings.Resolve(p.Key)
		}
		ft, ok := t.Layer.FeatureType(typeID)
		if !ok {
			return model.NullAddress, fmt.Errorf("featurelayer: unknown feature type %q", typeID)
		}
		matched := false
		for _, comp := range ft.UniqueIdCompositions {
			if layerinfo.MatchComposition(comp, prefixLen, keys, true) {
				matched = true
				break
			}
		}
		if !matched {
			return model.NullAddress, fmt.Errorf("featurelayer: no matching id composition for type %q with parts %v", typeID, keys)
		}
	}

	idAddr := t.Pool.NewFeatureID(typeIDID, allParts)
	featureAddr := t.Pool.NewFeature(idAddr)
	t.roots = append(t.roots, featureAddr)

	hash := t.hashForFeatureID(typeID, allParts)
	t.hashIndex = append(t.hashIndex, hashEntry{Hash: hash, Addr: featureAddr})
	t.hashIndexSorted = false

	return featureAddr, nil
}

func (t *TileFeatureLayer) primaryComposition(typeID string) []layerinfo.IdPart {
	if t.Layer == nil {
		return nil
	}
	ft, ok := t.Layer.FeatureType(typeID)
	if !ok || len(ft.UniqueIdCompositions) == 0 {
		return nil
	}
	return ft.UniqueIdCompositions[0]
}

func (t *TileFeatureLayer) hashForFeatureID(typeID string, parts []model.IDPart) uint64 {
	kvs := toIDKeyValues(parts, t.Pool, t.Strings)
	stripped := stripOptionalIdParts(kvs, t.primaryComposition(typeID))
	return hashFeatureID(typeID, stripped)
}

func (t *TileFeatureLayer) sortHashIndex() {
	if t.hashIndexSorted {
		return
	}
	sort.Slice(t.hashIndex, func(i, j int) bool {
		if t.hashIndex[i].Hash != t.hashIndex[j].Hash {
			return t.hashIndex[i].Hash < t.hashIndex[j].Hash
		}
		return t.hashIndex[i].Addr < t.hashIndex[j].Addr
	})
	t.hashIndexSorted = true
}

// Find resolves a feature by (typeID, idParts) using the sorted hash
// index, falling back to an exact part-by-part comparison to resolve
// hash collisions.
func (t *TileFeatureLayer) Find(typeID string, parts []model.IDPart) (model.Address, bool) {
	kvs := toIDKeyValues(parts, t.Pool, t.Strings)
	stripped := stripOptionalIdParts(kvs, t.primaryComposition(typeID))
	hash := hashFeatureID(typeID, stripped)

	t.sortHashIndex()
	lo := sort.Search(len(t.hashIndex), func(i int) bool { return t.hashIndex[i].Hash >= hash })

	for i := lo; i < len(t.hashIndex) && t.hashIndex[i].Hash == hash; i++ {
		addr := t.hashIndex[i].Addr
		feat := t.Pool.Feature(addr)
		fid := t.Pool.FeatureID(feat.IDAddr)
		candType, _ := t.Strings.Resolve(fid.TypeID)
		if candType != typeID {
			continue
		}
		candParts := t.Pool.Object(fid.PartsAddr)
		candIDParts := make([]model.IDPart, len(candParts))
		for j, e := range candParts {
			candIDParts[j] = model.IDPart{Key: e.Key, ValueAddr: e.Val}
		}
		candStripped := stripOptionalIdParts(toIDKeyValues(candIDParts, t.Pool, t.Strings), t.primaryComposition(typeID))
		if len(candStripped) != len(stripped) {
			continue
		}
		exact := true
		for k := range candStripped {
			if candStripped[k] != stripped[k] {
				exact = false
				break
			}
		}
		if exact {
			return addr, true
		}
	}
	return model.NullAddress, false
}

// FindByStringID resolves a feature using its canonical string
// representation "type.key1=val1.key2=val2" (spec.md's stringId
// shorthand for point lookups from external callers).
func (t *TileFeatureLayer) FindByStringID(stringID string) (model.Address, bool) {
	for _, addr := range t.roots {
		if t.FeatureStringID(addr) == stringID {
			return addr, true
		}
	}
	return model.NullAddress, false
}

// FeatureStringID renders a feature's id in canonical string form.
func (t *TileFeatureLayer) FeatureStringID(addr model.Address) string {
	feat := t.Pool.Feature(addr)
	fid := t.Pool.FeatureID(feat.IDAddr)
	typeName, _ := t.Strings.Resolve(fid.TypeID)
	s := typeName
	for _, e := range t.Pool.Object(fid.PartsAddr) {
		key, _ := t.Strings.Resolve(e.Key)
		v := t.Pool.Value(e.Val)
		var valStr string
		switch v.Kind {
		case model.KindInt64:
			valStr = fmt.Sprintf("%d", v.I64)
		case model.KindString:
			valStr, _ = t.Strings.Resolve(v.Str)
		}
		s += fmt.Sprintf(".%s=%s", key, valStr)
	}
	return s
}
