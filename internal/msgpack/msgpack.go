// Package msgpack implements the Aerospike dialect of MessagePack described
// by spec §4.1.5: standard MessagePack markers for scalars and containers,
// but strings, blobs and GeoJSON are written as a bin/str container whose
// first payload byte is the particle-type tag rather than being a bare
// MessagePack string/bin.
//
// Grounded on original_source/src/msgpack/encoder.rs (pack_value and its
// marker-selection ladder) and original_source/src/msgpack/decoder.rs
// (unpack_value's marker switch, including its "skip extension, emit Nil"
// policy for ext/fixext markers the client never produces itself).
package msgpack

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aerokit-io/aerokit/value"
)

// Encoder appends msgpack-encoded values to an internal byte buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoded output.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len reports how many bytes have been written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) writeByte(b byte) { e.buf = append(e.buf, b) }
func (e *Encoder) writeBytes(b []byte) { e.buf = append(e.buf, b...) }

// PackValue encodes v following the Value union's ParticleType (spec §4.1.5).
func (e *Encoder) PackValue(v value.Value) {
	switch v.Kind() {
	case value.KindNil:
		e.packNil()
	case value.KindBool:
		b, _ := v.Bool()
		e.packBool(b)
	case value.KindInt:
		i, _ := v.Int()
		e.packInteger(i)
	case value.KindUint:
		u, _ := v.Uint()
		e.packUint64(u)
	case value.KindFloat32:
		f, _ := v.Float32()
		e.packFloat32(f)
	case value.KindFloat64:
		f, _ := v.Float64()
		e.packFloat64(f)
	case value.KindString:
		s, _ := v.String()
		e.packTaggedBytes(byte(value.TypeString), []byte(s))
	case value.KindBlob:
		b, _ := v.Blob()
		e.packTaggedBytes(byte(value.TypeBlob), b)
	case value.KindHLL:
		h, _ := v.HLL()
		e.packTaggedBytes(byte(value.TypeBlob), h)
	case value.KindGeoJSON:
		g, _ := v.GeoJSON()
		e.packTaggedBytes(byte(value.TypeGeoJSON), []byte(g))
	case value.KindList:
		l, _ := v.List()
		e.PackArrayBegin(len(l))
		for _, elem := range l {
			e.PackValue(elem)
		}
	case value.KindMap:
		m, _ := v.Map()
		e.PackMapBegin(len(m))
		for k, val := range m {
			e.packMapKey(k)
			e.PackValue(val)
		}
	}
}

func (e *Encoder) packMapKey(k value.MapKey) {
	switch {
	case k.IsString():
		s, _ := k.AsString()
		e.packTaggedBytes(byte(value.TypeString), []byte(s))
	case k.IsInt():
		i, _ := k.AsInt()
		e.packInteger(i)
	case k.IsUint():
		u, _ := k.AsUint()
		e.packUint64(u)
	case k.IsFloat():
		f, _ := k.AsFloat()
		e.packFloat64(f)
	}
}

func (e *Encoder) packNil() { e.writeByte(0xc0) }

func (e *Encoder) packBool(v bool) {
	if v {
		e.writeByte(0xc3)
	} else {
		e.writeByte(0xc2)
	}
}

// packInteger picks a marker by range: positive fixint for 0..127, uint8
// (0xcc) up to 255, uint16 (0xcd) up to MaxInt16, uint32 (0xce) up to
// MaxInt32 and int64 (0xd3) above that; negative fixint for -32..-1, then
// int8 (0xd0), int16 (0xd1), int32 (0xd2) and int64 (0xd3). Values from
// MaxInt16+1 to MaxUint16 and from MaxInt32+1 to MaxUint32 therefore take a
// wider marker than the smallest one that fits.
func (e *Encoder) packInteger(v int64) {
	switch {
	case v >= 0 && v < 1<<7:
		e.writeByte(byte(v))
	case v >= 1<<7 && v <= math.MaxUint8:
		e.writeByte(0xcc)
		e.writeByte(byte(v))
	case v > math.MaxUint8 && v <= math.MaxInt16:
		e.writeByte(0xcd)
		e.writeUint16(uint16(v))
	case v > math.MaxInt16 && v <= math.MaxInt32:
		e.writeByte(0xce)
		e.writeUint32(uint32(v))
	case v > math.MaxInt32:
		e.writeByte(0xd3)
		e.writeUint64(uint64(v))
	case v >= -32 && v < 0:
		e.writeByte(0xe0 | byte(v+32))
	case v >= math.MinInt8 && v < -32:
		e.writeByte(0xd0)
		e.writeByte(byte(v))
	case v >= math.MinInt16 && v < math.MinInt8:
		e.writeByte(0xd1)
		e.writeUint16(uint16(v))
	case v >= math.MinInt32 && v < math.MinInt16:
		e.writeByte(0xd2)
		e.writeUint32(uint32(v))
	default:
		e.writeByte(0xd3)
		e.writeUint64(uint64(v))
	}
}

func (e *Encoder) packUint64(v uint64) {
	if v <= math.MaxInt64 {
		e.packInteger(int64(v))
		return
	}
	e.writeByte(0xcf)
	e.writeUint64(v)
}

func (e *Encoder) packFloat32(v float32) {
	e.writeByte(0xca)
	e.writeUint32(math.Float32bits(v))
}

func (e *Encoder) packFloat64(v float64) {
	e.writeByte(0xcb)
	e.writeUint64(math.Float64bits(v))
}

// PackArrayBegin writes the array-header marker for n following elements.
func (e *Encoder) PackArrayBegin(n int) {
	switch {
	case n < 16:
		e.writeByte(0x90 | byte(n))
	case n < 1<<16:
		e.writeByte(0xdc)
		e.writeUint16(uint16(n))
	default:
		e.writeByte(0xdd)
		e.writeUint32(uint32(n))
	}
}

// PackMapBegin writes the map-header marker for n following key/value pairs.
func (e *Encoder) PackMapBegin(n int) {
	switch {
	case n < 16:
		e.writeByte(0x80 | byte(n))
	case n < 1<<16:
		e.writeByte(0xde)
		e.writeUint16(uint16(n))
	default:
		e.writeByte(0xdf)
		e.writeUint32(uint32(n))
	}
}

func (e *Encoder) packByteArrayBegin(n int) {
	switch {
	case n < 32:
		e.writeByte(0xa0 | byte(n))
	case n < 1<<16:
		e.writeByte(0xda)
		e.writeUint16(uint16(n))
	default:
		e.writeByte(0xdb)
		e.writeUint32(uint32(n))
	}
}

// packTaggedBytes writes the bin/str container used by strings, blobs and
// GeoJSON alike: a byte-array header sized payload+1, followed by the inner
// particle-type tag byte, followed by the payload (spec §4.1.5).
func (e *Encoder) packTaggedBytes(tag byte, payload []byte) {
	e.packByteArrayBegin(len(payload) + 1)
	e.writeByte(tag)
	e.writeBytes(payload)
}

func (e *Encoder) writeUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.writeBytes(b[:])
}

func (e *Encoder) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.writeBytes(b[:])
}

func (e *Encoder) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.writeBytes(b[:])
}

// ErrUnexpectedEOF is returned when the decoder runs out of bytes mid-value.
var ErrUnexpectedEOF = fmt.Errorf("msgpack: unexpected end of buffer")

// ErrUnknownParticleType is returned when a tagged-bytes container carries an
// inner particle-type byte the decoder does not recognize.
type ErrUnknownParticleType byte

func (e ErrUnknownParticleType) Error() string {
	return fmt.Sprintf("msgpack: unrecognized inner particle type %d", byte(e))
}

// Decoder reads msgpack-encoded values from a byte slice.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) peekByte() (byte, bool) {
	if d.pos >= len(d.buf) {
		return 0, false
	}
	return d.buf[d.pos], true
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readUint16() (uint16, error) {
	b, err := d.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	b, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) readUint64() (uint64, error) {
	b, err := d.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// DecodeValue decodes one complete value from the current read position.
func (d *Decoder) DecodeValue() (value.Value, error) {
	marker, err := d.readByte()
	if err != nil {
		return value.Value{}, err
	}
	return d.decodeByMarker(marker)
}

func (d *Decoder) decodeByMarker(marker byte) (value.Value, error) {
	switch {
	case marker <= 0x7f:
		return value.NewInt(int64(marker)), nil
	case marker >= 0xe0:
		return value.NewInt(int64(int8(marker))), nil
	case marker >= 0x80 && marker <= 0x8f:
		return d.decodeMap(int(marker & 0x0f))
	case marker >= 0x90 && marker <= 0x9f:
		return d.decodeArray(int(marker & 0x0f))
	case marker >= 0xa0 && marker <= 0xbf:
		return d.decodeTaggedBytes(int(marker & 0x1f))
	}

	switch marker {
	case 0xc0:
		return value.Nil(), nil
	case 0xc1:
		return value.Nil(), nil // reserved, never produced by the server
	case 0xc2:
		return value.NewBool(false), nil
	case 0xc3:
		return value.NewBool(true), nil
	case 0xc4, 0xd9: // bin8 / str8
		n, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeTaggedBytes(int(n))
	case 0xc5, 0xda: // bin16 / str16
		n, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeTaggedBytes(int(n))
	case 0xc6, 0xdb: // bin32 / str32
		n, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeTaggedBytes(int(n))
	case 0xc7: // ext8
		n, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		if _, err := d.readN(int(n) + 1); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xc8: // ext16
		n, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		if _, err := d.readN(int(n) + 1); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xc9: // ext32
		n, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		if _, err := d.readN(int(n) + 1); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xca:
		b, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat32(math.Float32frombits(b)), nil
	case 0xcb:
		b, err := d.readUint64()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat64(math.Float64frombits(b)), nil
	case 0xcc:
		b, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(b)), nil
	case 0xcd:
		v, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(v)), nil
	case 0xce:
		v, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(v)), nil
	case 0xcf:
		v, err := d.readUint64()
		if err != nil {
			return value.Value{}, err
		}
		if v > math.MaxInt64 {
			return value.NewUint(v), nil
		}
		return value.NewInt(int64(v)), nil
	case 0xd0:
		b, err := d.readByte()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(int8(b))), nil
	case 0xd1:
		v, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(int16(v))), nil
	case 0xd2:
		v, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(int32(v))), nil
	case 0xd3:
		v, err := d.readUint64()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(int64(v)), nil
	case 0xd4: // fixext1
		if _, err := d.readN(2); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xd5: // fixext2
		if _, err := d.readN(3); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xd6: // fixext4
		if _, err := d.readN(5); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xd7: // fixext8
		if _, err := d.readN(9); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xd8: // fixext16
		if _, err := d.readN(17); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	case 0xdc:
		n, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeArray(int(n))
	case 0xdd:
		n, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeArray(int(n))
	case 0xde:
		n, err := d.readUint16()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeMap(int(n))
	case 0xdf:
		n, err := d.readUint32()
		if err != nil {
			return value.Value{}, err
		}
		return d.decodeMap(int(n))
	}

	return value.Value{}, fmt.Errorf("msgpack: invalid marker 0x%02x", marker)
}

// decodeTaggedBytes reads count total bytes: one inner particle-type byte
// followed by count-1 payload bytes, per spec §4.1.5.
func (d *Decoder) decodeTaggedBytes(count int) (value.Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return value.Value{}, err
	}
	payload, err := d.readN(count - 1)
	if err != nil {
		return value.Value{}, err
	}
	switch value.ParticleType(tag) {
	case value.TypeString:
		return value.NewString(string(payload)), nil
	case value.TypeBlob:
		cp := make([]byte, len(payload))
		copy(cp, payload)
		return value.NewBlob(cp), nil
	case value.TypeGeoJSON:
		return value.NewGeoJSON(string(payload)), nil
	default:
		return value.Value{}, ErrUnknownParticleType(tag)
	}
}

// isExtMarker reports whether b begins an ext or fixext marker. The array
// and map decoders skip such a leading element rather than count it as a
// list/map element; the encoder never writes one (the CDT context wrapper
// leads with the integer 0xff).
func isExtMarker(b byte) bool {
	switch b {
	case 0xc7, 0xc8, 0xc9, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8:
		return true
	default:
		return false
	}
}

func (d *Decoder) decodeArray(count int) (value.Value, error) {
	if count > 0 {
		if b, ok := d.peekByte(); ok && isExtMarker(b) {
			if _, err := d.DecodeValue(); err != nil {
				return value.Value{}, err
			}
			count--
		}
	}
	elems := make([]value.Value, 0, count)
	for i := 0; i < count; i++ {
		v, err := d.DecodeValue()
		if err != nil {
			return value.Value{}, err
		}
		elems = append(elems, v)
	}
	return value.NewList(elems), nil
}

func (d *Decoder) decodeMap(count int) (value.Value, error) {
	if count > 0 {
		if b, ok := d.peekByte(); ok && isExtMarker(b) {
			if _, err := d.DecodeValue(); err != nil {
				return value.Value{}, err
			}
			if _, err := d.DecodeValue(); err != nil {
				return value.Value{}, err
			}
			count--
		}
	}
	m := make(map[value.MapKey]value.Value, count)
	for i := 0; i < count; i++ {
		k, err := d.DecodeValue()
		if err != nil {
			return value.Value{}, err
		}
		v, err := d.DecodeValue()
		if err != nil {
			return value.Value{}, err
		}
		mk, err := value.ValueToMapKey(k)
		if err != nil {
			return value.Value{}, err
		}
		m[mk] = v
	}
	return value.NewMap(m), nil
}
