package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// AttributeData is the row shape of the Attribute column (spec.md §3
// attributeLayers): a name, an optional validity/multi-validity
// reference, an extra-fields object and an optional source-data
// reference collection.
type AttributeData struct {
	Name            stringpool.ID
	Direction       Direction
	ValidityAddr    Address // ValidityCollection column, or null
	FieldsAddr      Address // Object column of extra key/value fields
	SourceDataAddr  Address // SourceDataReferenceCollection column, or null
}

// NewAttribute allocates a new attribute row.
func (p *Pool) NewAttribute(name stringpool.ID, fieldsAddr Address) Address {
	row := uint32(len(p.attributes))
	p.attributes = append(p.attributes, AttributeData{Name: name, FieldsAddr: fieldsAddr})
	return newAddress(ColumnAttribute, row)
}

// Attribute returns the attribute row at addr.
func (p *Pool) Attribute(addr Address) AttributeData {
	return p.attributes[addr.Row()]
}

// SetAttributeValidity attaches a validity-collection address and direction.
func (p *Pool) SetAttributeValidity(attrAddr, validityAddr Address, dir Direction) {
	a := &p.attributes[attrAddr.Row()]
	a.ValidityAddr = validityAddr
	a.Direction = dir
}

// SetAttributeSourceData attaches a source-data reference collection.
func (p *Pool) SetAttributeSourceData(attrAddr, addr Address) {
	a := &p.attributes[attrAddr.Row()]
	a.SourceDataAddr = addr
}

// NewAttributeLayer allocates an empty, ordered list of attribute
// addresses and returns its address.
func (p *Pool) NewAttributeLayer(capacityHint int) Address {
	row := uint32(len(p.attrLayers))
	p.attrLayers = append(p.attrLayers, make([]Address, 0, capacityHint))
	return newAddress(ColumnAttributeLayer, row)
}

// AttributeLayerAdd appends an attribute address to a layer.
func (p *Pool) AttributeLayerAdd(layerAddr, attrAddr Address) {
	row := layerAddr.Row()
	p.attrLayers[row] = append(p.attrLayers[row], attrAddr)
}

// AttributeLayer returns the ordered attribute addresses of a layer.
func (p *Pool) AttributeLayer(addr Address) []Address {
	return p.attrLayers[addr.Row()]
}

// NewAttributeLayerList allocates an empty name -> layer dictionary.
func (p *Pool) NewAttributeLayerList(capacityHint int) Address {
	row := uint32(len(p.attrLayerLists))
	p.attrLayerLists = append(p.attrLayerLists, make([]ObjectEntry, 0, capacityHint))
	return newAddress(ColumnAttributeLayerList, row)
}

// AttributeLayerListAdd inserts a named layer into the list.
func (p *Pool) AttributeLayerListAdd(listAddr Address, name stringpool.ID, layerAddr Address) {
	row := listAddr.Row()
	p.attrLayerLists[row] = append(p.attrLayerLists[row], ObjectEntry{Key: name, Val: layerAddr})
}

// AttributeLayerList returns the named-layer entries of a list.
func (p *Pool) AttributeLayerList(addr Address) []ObjectEntry {
	return p.attrLayerLists[addr.Row()]
}

// AttributeLayerListGet looks up a layer by name.
func (p *Pool) AttributeLayerListGet(addr Address, name stringpool.ID) (Address, bool) {
	for _, e := range p.attrLayerLists[addr.Row()] {
		if e.Key == name {
			return e.Val, true
		}
	}
	return NullAddress, false
}

// Direction is the applicability direction of an attribute or relation
// validity (spec.md §3 Validity).
type Direction uint8

const (
	DirectionEmpty Direction = iota
	DirectionPositive
	DirectionNegative
	DirectionBoth
	DirectionNone
)

func (d Direction) String() string {
	switch d {
	case DirectionPositive:
		return "POSITIVE"
	case DirectionNegative:
		return "NEGATIVE"
	case DirectionBoth:
		return "BOTH"
	case DirectionNone:
		return "NONE"
	default:
		return "EMPTY"
	}
}
