package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aerokit-io/aerokit/internal/msgpack"
	"github.com/aerokit-io/aerokit/value"
)

// EncodeParticle lays out v's bytes according to its particle type (spec
// §4.1.4): fixed-width wire forms for Null/Integer/Float/Bool, raw bytes for
// String/Blob/HLL, a 3-byte reserved prefix before the JSON body for
// GeoJSON, and a MessagePack container for List/Map.
func EncodeParticle(v value.Value) (ParticleType, []byte, error) {
	if err := v.ValidateTopLevel(); err != nil {
		return 0, nil, err
	}
	switch v.Kind() {
	case value.KindNil:
		return ParticleNull, nil, nil
	case value.KindInt:
		i, _ := v.Int()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(i))
		return ParticleInteger, b[:], nil
	case value.KindFloat32:
		f, _ := v.Float32()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(float64(f)))
		return ParticleFloat, b[:], nil
	case value.KindFloat64:
		f, _ := v.Float64()
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
		return ParticleFloat, b[:], nil
	case value.KindBool:
		b, _ := v.Bool()
		var out [8]byte
		if b {
			out[7] = 1
		}
		return ParticleBool, out[:], nil
	case value.KindString:
		s, _ := v.String()
		return ParticleString, []byte(s), nil
	case value.KindBlob:
		b, _ := v.Blob()
		return ParticleBlob, b, nil
	case value.KindHLL:
		h, _ := v.HLL()
		return ParticleHLL, h, nil
	case value.KindGeoJSON:
		g, _ := v.GeoJSON()
		out := make([]byte, 3+len(g))
		copy(out[3:], g)
		return ParticleGeoJSON, out, nil
	case value.KindList, value.KindMap:
		e := msgpack.NewEncoder()
		e.PackValue(v)
		pt := ParticleList
		if v.Kind() == value.KindMap {
			pt = ParticleMap
		}
		return pt, e.Bytes(), nil
	default:
		return 0, nil, fmt.Errorf("wire: unsupported value kind %v for particle encoding", v.Kind())
	}
}

// DecodeParticle reconstructs a Value from its wire particle type and bytes.
func DecodeParticle(pt ParticleType, body []byte) (value.Value, error) {
	switch pt {
	case ParticleNull:
		return value.Nil(), nil
	case ParticleInteger:
		if len(body) != 8 {
			return value.Value{}, fmt.Errorf("wire: integer particle must be 8 bytes, got %d", len(body))
		}
		return value.NewInt(int64(binary.BigEndian.Uint64(body))), nil
	case ParticleFloat:
		if len(body) != 8 {
			return value.Value{}, fmt.Errorf("wire: float particle must be 8 bytes, got %d", len(body))
		}
		bits := binary.BigEndian.Uint64(body)
		return value.NewFloat64(math.Float64frombits(bits)), nil
	case ParticleBool:
		if len(body) != 8 {
			return value.Value{}, fmt.Errorf("wire: bool particle must be 8 bytes, got %d", len(body))
		}
		return value.NewBool(body[7] != 0), nil
	case ParticleString:
		return value.NewString(string(body)), nil
	case ParticleBlob:
		cp := make([]byte, len(body))
		copy(cp, body)
		return value.NewBlob(cp), nil
	case ParticleHLL:
		cp := make([]byte, len(body))
		copy(cp, body)
		return value.NewHLL(cp), nil
	case ParticleGeoJSON:
		if len(body) < 3 {
			return value.Value{}, fmt.Errorf("wire: geojson particle missing 3-byte prefix")
		}
		return value.NewGeoJSON(string(body[3:])), nil
	case ParticleList, ParticleMap:
		d := msgpack.NewDecoder(body)
		return d.DecodeValue()
	default:
		return value.Value{}, fmt.Errorf("wire: unsupported particle type %d for decoding", pt)
	}
}
