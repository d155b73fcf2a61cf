package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// SourceDataRefItem is one (qualifier, layer, address) tuple inside a
// SourceDataReferenceCollection (spec.md §3 source-data references).
type SourceDataRefItem struct {
	Qualifier stringpool.ID
	LayerID   stringpool.ID
	Address   uint64
}

// NewSourceDataReferenceCollection allocates a collection of source-data
// reference items and returns its address.
func (p *Pool) NewSourceDataReferenceCollection(items []SourceDataRefItem) Address {
	row := uint32(len(p.sourceDataRefColl))
	cp := make([]SourceDataRefItem, len(items))
	copy(cp, items)
	p.sourceDataRefColl = append(p.sourceDataRefColl, cp)
	return newAddress(ColumnSourceDataReference, row)
}

// SourceDataReferenceCollection returns the items of a collection.
func (p *Pool) SourceDataReferenceCollection(addr Address) []SourceDataRefItem {
	return p.sourceDataRefColl[addr.Row()]
}
