package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// Pool is the full per-tile columnar arena: the generic object/array/
// scalar columns plus every mapget-domain column (features, geometries,
// attributes, relations, validities, source-data references). A Pool is
// single-writer during fill (spec.md §3 Lifecycle) and safe for
// concurrent read-only resolution afterwards, since growth only
// appends and never reorders or truncates a column.
type Pool struct {
	Strings *stringpool.Pool

	objects [][]ObjectEntry
	arrays  [][]Address
	values  []Value

	features       []FeatureData
	featureIDs     []FeatureIDData
	attributes     []AttributeData
	attrLayers     [][]Address // name-less ordered attribute list
	attrLayerLists [][]ObjectEntry
	relations      []RelationData

	pointBuffers []PointBufferData
	geometries   []GeometryData
	geomCollect  [][]Address

	sourceDataRefColl  [][]SourceDataRefItem
	validities         []ValidityData
	validityCollect    [][]Address

	// featureIDPrefix is the tile-wide id prefix (spec.md §3), immutable
	// once the first feature is added.
	featureIDPrefix    Address
	featureIDPrefixSet bool
}

// NewPool creates an empty arena bound to the given string pool.
func NewPool(strings *stringpool.Pool) *Pool {
	return &Pool{Strings: strings}
}

// --- generic object/array/value columns -----------------------------------

// NewObject allocates an empty ordered key-value object with the given
// capacity hint and returns its address.
func (p *Pool) NewObject(capacityHint int) Address {
	row := uint32(len(p.objects))
	entries := make([]ObjectEntry, 0, capacityHint)
	p.objects = append(p.objects, entries)
	return newAddress(ColumnObject, row)
}

// ObjectAddField appends a key/value pair to the object at addr.
func (p *Pool) ObjectAddField(addr Address, key stringpool.ID, val Address) {
	row := addr.Row()
	p.objects[row] = append(p.objects[row], ObjectEntry{Key: key, Val: val})
}

// Object returns the entries of the object at addr.
func (p *Pool) Object(addr Address) []ObjectEntry {
	return p.objects[addr.Row()]
}

// ObjectGet looks up a field by key, in insertion order, first match wins.
func (p *Pool) ObjectGet(addr Address, key stringpool.ID) (Address, bool) {
	for _, e := range p.objects[addr.Row()] {
		if e.Key == key {
			return e.Val, true
		}
	}
	return NullAddress, false
}

// NewArray allocates an empty ordered array with the given capacity hint.
func (p *Pool) NewArray(capacityHint int) Address {
	row := uint32(len(p.arrays))
	p.arrays = append(p.arrays, make([]Address, 0, capacityHint))
	return newAddress(ColumnArray, row)
}

// ArrayAppend appends an element address to the array at addr.
func (p *Pool) ArrayAppend(addr Address, elem Address) {
	row := addr.Row()
	p.arrays[row] = append(p.arrays[row], elem)
}

// Array returns the elements of the array at addr.
func (p *Pool) Array(addr Address) []Address {
	return p.arrays[addr.Row()]
}

// NewValue allocates a new scalar value row and returns its address.
func (p *Pool) NewValue(v Value) Address {
	row := uint32(len(p.values))
	p.values = append(p.values, v)
	return newAddress(ColumnValue, row)
}

// Value returns the scalar stored at addr.
func (p *Pool) Value(addr Address) Value {
	return p.values[addr.Row()]
}

// NewScalar is a convenience wrapper that boxes a Go scalar (bool,
// int64-ish integer, float64, or interned string) into a Value node.
func (p *Pool) NewScalar(v any) Address {
	switch x := v.(type) {
	case nil:
		return p.NewValue(Value{Kind: KindNull})
	case bool:
		return p.NewValue(Value{Kind: KindBool, B: x})
	case int:
		return p.NewValue(Value{Kind: KindInt64, I64: int64(x)})
	case int32:
		return p.NewValue(Value{Kind: KindInt64, I64: int64(x)})
	case int64:
		return p.NewValue(Value{Kind: KindInt64, I64: x})
	case uint32:
		return p.NewValue(Value{Kind: KindInt64, I64: int64(x)})
	case uint64:
		return p.NewValue(Value{Kind: KindInt64, I64: int64(x)})
	case float32:
		return p.NewValue(Value{Kind: KindFloat64, F64: float64(x)})
	case float64:
		return p.NewValue(Value{Kind: KindFloat64, F64: x})
	case string:
		return p.NewValue(Value{Kind: KindString, Str: p.Strings.Intern(x)})
	case stringpool.ID:
		return p.NewValue(Value{Kind: KindString, Str: x})
	default:
		panic("model: unsupported scalar type")
	}
}

// SetFeatureIDPrefix sets the tile-wide id prefix object. Returns an
// error if features already exist (spec.md §3/§7 Contract errors).
func (p *Pool) SetFeatureIDPrefix(addr Address) error {
	if len(p.features) > 0 {
		return errPrefixAfterFeatures
	}
	p.featureIDPrefix = addr
	p.featureIDPrefixSet = true
	return nil
}

// FeatureIDPrefix returns the tile-wide id prefix object, if any.
func (p *Pool) FeatureIDPrefix() (Address, bool) {
	return p.featureIDPrefix, p.featureIDPrefixSet
}
