package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// FeatureIDData is the row shape of the FeatureID column: a type label
// plus an ordered object of id parts (spec.md §3 Feature.id).
type FeatureIDData struct {
	TypeID    stringpool.ID
	PartsAddr Address // Address into the Object column
}

// FeatureData is the row shape of the Feature column: a materialized
// view combining id, geometry, attributes, attribute layers and
// relations (spec.md §3 Feature).
type FeatureData struct {
	IDAddr         Address // FeatureID column
	GeometryAddr   Address // GeometryCollection column
	AttributesAddr Address // Object column
	AttrLayersAddr Address // AttributeLayerList column
	RelationsAddr  Address // Array column of Relation addresses
}

// NewFeatureID allocates a feature-id row from a type label and an
// ordered list of (key, value) parts, where each value has already
// been interned as a scalar Address.
func (p *Pool) NewFeatureID(typeID stringpool.ID, parts []IDPart) Address {
	obj := p.NewObject(len(parts))
	for _, part := range parts {
		p.ObjectAddField(obj, part.Key, part.ValueAddr)
	}
	row := uint32(len(p.featureIDs))
	p.featureIDs = append(p.featureIDs, FeatureIDData{TypeID: typeID, PartsAddr: obj})
	return newAddress(ColumnFeatureID, row)
}

// IDPart is one key/value id component, already boxed as a node Address.
type IDPart struct {
	Key       stringpool.ID
	ValueAddr Address
}

// FeatureID returns the id row at addr.
func (p *Pool) FeatureID(addr Address) FeatureIDData {
	return p.featureIDs[addr.Row()]
}

// NewFeature allocates a feature row referencing an already-constructed
// FeatureID address; geometry/attributes/attrLayers/relations start
// empty (null address) and are filled in by later calls.
func (p *Pool) NewFeature(idAddr Address) Address {
	row := uint32(len(p.features))
	p.features = append(p.features, FeatureData{IDAddr: idAddr})
	return newAddress(ColumnFeature, row)
}

// Feature returns the feature row at addr.
func (p *Pool) Feature(addr Address) FeatureData {
	return p.features[addr.Row()]
}

// SetFeatureGeometry attaches a geometry-collection address to a feature.
func (p *Pool) SetFeatureGeometry(featureAddr, geomCollectionAddr Address) {
	f := &p.features[featureAddr.Row()]
	f.GeometryAddr = geomCollectionAddr
}

// SetFeatureAttributes attaches an attributes object to a feature.
func (p *Pool) SetFeatureAttributes(featureAddr, objAddr Address) {
	f := &p.features[featureAddr.Row()]
	f.AttributesAddr = objAddr
}

// SetFeatureAttrLayers attaches an attribute-layer-list to a feature.
func (p *Pool) SetFeatureAttrLayers(featureAddr, layersAddr Address) {
	f := &p.features[featureAddr.Row()]
	f.AttrLayersAddr = layersAddr
}

// SetFeatureRelations attaches a relations array to a feature.
func (p *Pool) SetFeatureRelations(featureAddr, arrAddr Address) {
	f := &p.features[featureAddr.Row()]
	f.RelationsAddr = arrAddr
}

// NumFeatures returns the number of features currently stored.
func (p *Pool) NumFeatures() int { return len(p.features) }

// FeatureAt returns the address of the i-th feature in insertion order.
func (p *Pool) FeatureAt(i int) Address {
	return newAddress(ColumnFeature, uint32(i))
}
