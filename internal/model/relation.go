package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// RelationData is the row shape of the Relation column (spec.md §3
// Relation): a named, directional link to another feature id, with
// optional source/target validities and source-data references.
type RelationData struct {
	Name              stringpool.ID
	TargetFeatureID   Address // FeatureID column
	SourceValidityAddr Address // ValidityCollection column, or null
	TargetValidityAddr Address // ValidityCollection column, or null
	SourceDataAddr    Address // SourceDataReferenceCollection column, or null
}

// NewRelation allocates a new relation row.
func (p *Pool) NewRelation(name stringpool.ID, target Address) Address {
	row := uint32(len(p.relations))
	p.relations = append(p.relations, RelationData{Name: name, TargetFeatureID: target})
	return newAddress(ColumnRelation, row)
}

// Relation returns the relation row at addr.
func (p *Pool) Relation(addr Address) RelationData {
	return p.relations[addr.Row()]
}

// SetRelationValidities attaches source/target validity collections.
func (p *Pool) SetRelationValidities(relAddr, source, target Address) {
	r := &p.relations[relAddr.Row()]
	r.SourceValidityAddr = source
	r.TargetValidityAddr = target
}

// SetRelationSourceData attaches a source-data reference collection.
func (p *Pool) SetRelationSourceData(relAddr, addr Address) {
	r := &p.relations[relAddr.Row()]
	r.SourceDataAddr = addr
}
