package featurelayer

import "github.com/mapgrid/tileservice/internal/layerinfo"

const (
	fnvPrime      uint64 = 1099511628211
	fnvOffsetBasis uint64 = 14695981039346656037
)

func fnv1aString(s string) uint64 {
	hash := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= fnvPrime
	}
	return hash
}

func fnv1aInt64(value int64) uint64 {
	hash := fnvOffsetBasis
	v := uint64(value)
	for i := 0; i < 8; i++ {
		hash ^= v & 0xff
		hash *= fnvPrime
		v >>= 8
	}
	return hash
}

// idKeyValue is one (key, value) pair of a feature id after optional
// parts have been stripped; value is either an int64 or a string.
type idKeyValue struct {
	Key    string
	IsInt  bool
	Int    int64
	String string
}

// hashFeatureID reproduces the reference FNV-1a mixing order exactly:
// hash starts from fnv1a(type), then for every (key, value) pair the
// key and value are each folded in with their own fnv1a pass followed
// by a multiply, so re-ordering or mistyping a value produces a
// different hash. This must stay byte-for-byte stable across builds,
// since callers persist these hashes in on-disk caches.
func hashFeatureID(typeID string, idParts []idKeyValue) uint64 {
	hash := fnv1aString(typeID)
	for _, kv := range idParts {
		hash ^= fnv1aString(kv.Key)
		hash *= fnvPrime

		var valueHash uint64
		if kv.IsInt {
			valueHash = fnv1aInt64(kv.Int)
		} else {
			valueHash = fnv1aString(kv.String)
		}
		hash ^= valueHash
		hash *= fnvPrime
	}
	return hash
}

// stripOptionalIdParts removes id parts the composition marks
// optional, walking keysAndValues and composition in lockstep: the
// composition cursor advances past every part it inspects, so a key
// that is not found at or after the cursor (out of order relative to
// the composition, or absent from it) is treated as optional (stripped).
func stripOptionalIdParts(keysAndValues []idKeyValue, composition []layerinfo.IdPart) []idKeyValue {
	result := make([]idKeyValue, 0, len(keysAndValues))
	idx := 0
	for _, kv := range keysAndValues {
		isOptional := true
		for idx < len(composition) {
			part := composition[idx]
			idx++
			if part.Label == kv.Key {
				isOptional = part.IsOptional
				break
			}
		}
		if !isOptional {
			result = append(result, kv)
		}
	}
	return result
}
