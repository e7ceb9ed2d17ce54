// Package value implements the tagged Value union, Bin, Key and Record types
// of spec §3. Grounded on original_source/src/value.rs's Value enum (Nil,
// Bool, Int, Uint, Float, String, Blob, List, Map, GeoJson, Hll) and on
// original_source/src/key.rs's Key/UserKey split between the identifying
// tuple and the admitted key-body variants.
package value

import "fmt"

// ParticleType is the wire-level tag identifying how a Value's bytes are laid
// out (spec §4.1.4).
type ParticleType byte

const (
	TypeNull    ParticleType = 0
	TypeInteger ParticleType = 1
	TypeFloat   ParticleType = 2
	TypeString  ParticleType = 3
	TypeBlob    ParticleType = 4
	TypeDigest  ParticleType = 6
	TypeBool    ParticleType = 17
	TypeHLL     ParticleType = 18
	TypeMap     ParticleType = 19
	TypeList    ParticleType = 20
	TypeGeoJSON ParticleType = 23
)

// Kind discriminates the Value union's active variant.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat32
	KindFloat64
	KindString
	KindBlob
	KindList
	KindMap
	KindGeoJSON
	KindHLL
)

// MapKey restricts the admitted key types of a Value Map to Int/Uint/Float/
// String, per spec §3. It is a plain Go value usable as a map key (Value
// itself cannot be, since it may contain slices).
type MapKey struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
}

func NewMapKeyInt(v int64) MapKey      { return MapKey{kind: KindInt, i: v} }
func NewMapKeyUint(v uint64) MapKey    { return MapKey{kind: KindUint, u: v} }
func NewMapKeyFloat(v float64) MapKey  { return MapKey{kind: KindFloat64, f: v} }
func NewMapKeyString(v string) MapKey  { return MapKey{kind: KindString, s: v} }

func (k MapKey) IsString() bool { return k.kind == KindString }
func (k MapKey) IsInt() bool    { return k.kind == KindInt }
func (k MapKey) IsUint() bool   { return k.kind == KindUint }
func (k MapKey) IsFloat() bool  { return k.kind == KindFloat64 }

func (k MapKey) AsString() (string, bool)  { return k.s, k.kind == KindString }
func (k MapKey) AsInt() (int64, bool)      { return k.i, k.kind == KindInt }
func (k MapKey) AsUint() (uint64, bool)    { return k.u, k.kind == KindUint }
func (k MapKey) AsFloat() (float64, bool)  { return k.f, k.kind == KindFloat64 }

// ValueToMapKey narrows a decoded Value to the restricted MapKey domain
// (Int/Uint/Float/String), used by the decoder when reconstructing a map's
// keys (spec §3). Any other kind is a protocol error: the server never
// sends a list, map or nil as a map key.
func ValueToMapKey(v Value) (MapKey, error) {
	switch v.kind {
	case KindInt:
		return NewMapKeyInt(v.i), nil
	case KindUint:
		return NewMapKeyUint(v.u), nil
	case KindFloat64:
		return NewMapKeyFloat(v.f64), nil
	case KindFloat32:
		return NewMapKeyFloat(float64(v.f32)), nil
	case KindString:
		return NewMapKeyString(v.s), nil
	default:
		return MapKey{}, fmt.Errorf("value: kind %v cannot be used as a map key", v.kind)
	}
}

// Value is the tagged union described by spec §3. Only one field is
// meaningful at a time, selected by Kind. Uint exists because nested
// MessagePack admits it but it is a hard error to store at the top level of
// a bin (spec §3, §9 "Uint in values").
type Value struct {
	kind  Kind
	b     bool
	i     int64
	u     uint64
	f32   float32
	f64   float64
	s     string
	blob  []byte
	list  []Value
	m     map[MapKey]Value
	geo   string
	hll   []byte
}

func Nil() Value                      { return Value{kind: KindNil} }
func NewBool(v bool) Value            { return Value{kind: KindBool, b: v} }
func NewInt(v int64) Value            { return Value{kind: KindInt, i: v} }
func NewUint(v uint64) Value          { return Value{kind: KindUint, u: v} }
func NewFloat32(v float32) Value      { return Value{kind: KindFloat32, f32: v} }
func NewFloat64(v float64) Value      { return Value{kind: KindFloat64, f64: v} }
func NewString(v string) Value        { return Value{kind: KindString, s: v} }
func NewBlob(v []byte) Value          { return Value{kind: KindBlob, blob: v} }
func NewList(v []Value) Value         { return Value{kind: KindList, list: v} }
func NewMap(v map[MapKey]Value) Value { return Value{kind: KindMap, m: v} }
func NewGeoJSON(v string) Value       { return Value{kind: KindGeoJSON, geo: v} }
func NewHLL(v []byte) Value           { return Value{kind: KindHLL, hll: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool)         { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)         { return v.i, v.kind == KindInt }
func (v Value) Uint() (uint64, bool)       { return v.u, v.kind == KindUint }
func (v Value) Float32() (float32, bool)   { return v.f32, v.kind == KindFloat32 }
func (v Value) Float64() (float64, bool)   { return v.f64, v.kind == KindFloat64 }
func (v Value) String() (string, bool)     { return v.s, v.kind == KindString }
func (v Value) Blob() ([]byte, bool)       { return v.blob, v.kind == KindBlob }
func (v Value) List() ([]Value, bool)      { return v.list, v.kind == KindList }
func (v Value) Map() (map[MapKey]Value, bool) { return v.m, v.kind == KindMap }
func (v Value) GeoJSON() (string, bool)    { return v.geo, v.kind == KindGeoJSON }
func (v Value) HLL() ([]byte, bool)        { return v.hll, v.kind == KindHLL }

// ParticleType returns the wire particle-type tag for this value's kind, used
// both as the top-level particle tag (spec §4.1.4) and as the inner
// particle-type byte inside nested MessagePack strings/blobs (spec §4.1.5).
func (v Value) ParticleType() ParticleType {
	switch v.kind {
	case KindNil:
		return TypeNull
	case KindBool:
		return TypeBool
	case KindInt, KindUint:
		return TypeInteger
	case KindFloat32, KindFloat64:
		return TypeFloat
	case KindString:
		return TypeString
	case KindBlob:
		return TypeBlob
	case KindList:
		return TypeList
	case KindMap:
		return TypeMap
	case KindGeoJSON:
		return TypeGeoJSON
	case KindHLL:
		return TypeHLL
	default:
		return TypeNull
	}
}

// ErrUintTopLevel is returned when a top-level bin value is a Uint: the wire
// protocol has no unsigned integer particle (spec §3, §9).
var ErrUintTopLevel = fmt.Errorf("value: uint is not a valid top-level bin value")

// ValidateTopLevel enforces the split between what nested MessagePack admits
// and what a top-level bin value may be.
func (v Value) ValidateTopLevel() error {
	if v.kind == KindUint {
		return ErrUintTopLevel
	}
	return nil
}

// Equal performs a structural comparison, used only by round-trip tests (the
// original Rust Value derives PartialEq; Go has no derive, so this exists
// solely to let tests assert decode(encode(v)) == v, per spec §8).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat32:
		return v.f32 == o.f32
	case KindFloat64:
		return v.f64 == o.f64
	case KindString:
		return v.s == o.s
	case KindBlob:
		return bytesEqual(v.blob, o.blob)
	case KindGeoJSON:
		return v.geo == o.geo
	case KindHLL:
		return bytesEqual(v.hll, o.hll)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, vv := range v.m {
			ov, ok := o.m[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
