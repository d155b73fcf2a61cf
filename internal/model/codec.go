package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// snapshot is the gob-serializable image of every column in a Pool.
// Columns are plain slices of plain structs, so gob round-trips them
// without custom codecs; this keeps every column's row order (and
// therefore every previously-handed-out Address) stable across a
// write/read cycle, which is the property spec.md's wire format
// depends on.
type snapshot struct {
	Objects        [][]ObjectEntry
	Arrays         [][]Address
	Values         []Value
	Features       []FeatureData
	FeatureIDs     []FeatureIDData
	Attributes     []AttributeData
	AttrLayers     [][]Address
	AttrLayerLists [][]ObjectEntry
	Relations      []RelationData
	PointBuffers   []PointBufferData
	Geometries     []GeometryData
	GeomCollect    [][]Address
	SourceDataRefs [][]SourceDataRefItem
	Validities     []ValidityData
	ValidityColl   [][]Address

	FeatureIDPrefix    Address
	FeatureIDPrefixSet bool
}

func (p *Pool) toSnapshot() snapshot {
	return snapshot{
		Objects:            p.objects,
		Arrays:             p.arrays,
		Values:             p.values,
		Features:           p.features,
		FeatureIDs:         p.featureIDs,
		Attributes:         p.attributes,
		AttrLayers:         p.attrLayers,
		AttrLayerLists:     p.attrLayerLists,
		Relations:          p.relations,
		PointBuffers:       p.pointBuffers,
		Geometries:         p.geometries,
		GeomCollect:        p.geomCollect,
		SourceDataRefs:     p.sourceDataRefColl,
		Validities:         p.validities,
		ValidityColl:       p.validityCollect,
		FeatureIDPrefix:    p.featureIDPrefix,
		FeatureIDPrefixSet: p.featureIDPrefixSet,
	}
}

func (p *Pool) fromSnapshot(s snapshot) {
	p.objects = s.Objects
	p.arrays = s.Arrays
	p.values = s.Values
	p.features = s.Features
	p.featureIDs = s.FeatureIDs
	p.attributes = s.Attributes
	p.attrLayers = s.AttrLayers
	p.attrLayerLists = s.AttrLayerLists
	p.relations = s.Relations
	p.pointBuffers = s.PointBuffers
	p.geometries = s.Geometries
	p.geomCollect = s.GeomCollect
	p.sourceDataRefColl = s.SourceDataRefs
	p.validities = s.Validities
	p.validityCollect = s.ValidityColl
	p.featureIDPrefix = s.FeatureIDPrefix
	p.featureIDPrefixSet = s.FeatureIDPrefixSet
}

// MarshalBinary encodes every column of the pool, in column order, so
// that decoding into a fresh Pool reproduces identical addresses.
func (p *Pool) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p.toSnapshot()); err != nil {
		return nil, fmt.Errorf("model: encode pool: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the pool's columns with the decoded
// snapshot. The pool's Strings field is left untouched; callers are
// expected to have already read/merged the companion string pool.
func (p *Pool) UnmarshalBinary(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("model: decode pool: %w", err)
	}
	p.fromSnapshot(s)
	return nil
}
