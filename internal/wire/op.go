package wire

import "encoding/binary"

// OpType identifies an operation record's action (spec §4.1.3).
type OpType byte

const (
	OpRead     OpType = 1
	OpWrite    OpType = 2
	OpCdtRead  OpType = 3
	OpCdtWrite OpType = 4
	OpIncr     OpType = 5
	OpAppend   OpType = 9
	OpPrepend  OpType = 10
	OpTouch    OpType = 11
	OpBitRead  OpType = 12
	OpBitWrite OpType = 13
	OpDelete   OpType = 14
	OpHLLRead  OpType = 15
	OpHLLWrite OpType = 16
)

// ParticleType is the wire particle-type tag of an operation's value (spec
// §4.1.4). Re-exported here (not imported from package value) to keep the
// wire layer free of a dependency on the value model's richer Kind
// distinctions (e.g. Int vs Uint collapse to the same wire tag).
type ParticleType byte

const (
	ParticleNull    ParticleType = 0
	ParticleInteger ParticleType = 1
	ParticleFloat   ParticleType = 2
	ParticleString  ParticleType = 3
	ParticleBlob    ParticleType = 4
	ParticleDigest  ParticleType = 6
	ParticleBool    ParticleType = 17
	ParticleHLL     ParticleType = 18
	ParticleMap     ParticleType = 19
	ParticleList    ParticleType = 20
	ParticleGeoJSON ParticleType = 23
)

// Op is a single operation record: `size(u32 BE = 4 + name_len + value_len)
// || op_type(u8) || particle_type(u8) || version(u8=0) || name_len(u8) ||
// name || value`.
type Op struct {
	Type         OpType
	ParticleType ParticleType
	BinName      string
	Value        []byte
}

// Size returns the total encoded size of this operation record, including
// its 4-byte size prefix.
func (o Op) Size() int { return 4 + 4 + len(o.BinName) + len(o.Value) }

// Encode appends this operation's wire encoding to buf and returns the
// result.
func (o Op) Encode(buf []byte) []byte {
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], uint32(4+len(o.BinName)+len(o.Value)))
	buf = append(buf, sz[:]...)
	buf = append(buf, byte(o.Type), byte(o.ParticleType), 0, byte(len(o.BinName)))
	buf = append(buf, o.BinName...)
	buf = append(buf, o.Value...)
	return buf
}

// DecodeOp reads one operation record starting at buf[0], returning the op
// and the number of bytes consumed.
func DecodeOp(buf []byte) (Op, int, error) {
	if len(buf) < 8 {
		return Op{}, 0, ErrShortBuffer
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	if size < 4 {
		return Op{}, 0, ErrMalformedOp
	}
	if len(buf) < 4+int(size) {
		return Op{}, 0, ErrShortBuffer
	}
	opType := OpType(buf[4])
	particleType := ParticleType(buf[5])
	// buf[6] is the version byte, always 0.
	nameLen := int(buf[7])
	offset := 8
	if len(buf) < offset+nameLen {
		return Op{}, 0, ErrShortBuffer
	}
	name := string(buf[offset : offset+nameLen])
	offset += nameLen

	valueLen := int(size) - 4 - nameLen
	if valueLen < 0 || len(buf) < offset+valueLen {
		return Op{}, 0, ErrMalformedOp
	}
	value := buf[offset : offset+valueLen]

	return Op{Type: opType, ParticleType: particleType, BinName: name, Value: value}, 4 + int(size), nil
}
