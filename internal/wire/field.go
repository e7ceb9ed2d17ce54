package wire

import "encoding/binary"

// FieldType identifies a field record's purpose (spec §4.1.2).
type FieldType byte

const (
	FieldNamespace          FieldType = 0
	FieldSetName            FieldType = 1
	FieldKey                FieldType = 2
	FieldDigestRipe         FieldType = 4
	FieldTransactionID      FieldType = 7
	FieldScanSocketTimeout  FieldType = 9
	FieldPartitionIDArray   FieldType = 11
	FieldBatchIndex         FieldType = 41
	FieldBatchIndexWithSet  FieldType = 42
)

// Field is a single field record: `size(u32 BE = len(body)+1) ||
// type(u8) || body`.
type Field struct {
	Type FieldType
	Body []byte
}

// NewField builds a field record from a type and raw body.
func NewField(typ FieldType, body []byte) Field { return Field{Type: typ, Body: body} }

// NewNamespaceField builds the Namespace field.
func NewNamespaceField(namespace string) Field {
	return NewField(FieldNamespace, []byte(namespace))
}

// NewSetField builds the Set field.
func NewSetField(set string) Field { return NewField(FieldSetName, []byte(set)) }

// NewDigestField builds the DigestRipe field from a 20-byte key digest.
func NewDigestField(digest [20]byte) Field {
	return NewField(FieldDigestRipe, digest[:])
}

// Size returns the total encoded size of this field record, including its
// 4-byte size prefix and 1-byte type tag.
func (f Field) Size() int { return 4 + 1 + len(f.Body) }

// Encode appends this field's wire encoding to buf and returns the result.
func (f Field) Encode(buf []byte) []byte {
	var sz [4]byte
	binary.BigEndian.PutUint32(sz[:], uint32(len(f.Body)+1))
	buf = append(buf, sz[:]...)
	buf = append(buf, byte(f.Type))
	buf = append(buf, f.Body...)
	return buf
}

// DecodeField reads one field record starting at buf[0], returning the
// field and the number of bytes consumed.
func DecodeField(buf []byte) (Field, int, error) {
	if len(buf) < 5 {
		return Field{}, 0, ErrShortBuffer
	}
	size := binary.BigEndian.Uint32(buf[0:4])
	if size == 0 {
		return Field{}, 0, ErrMalformedField
	}
	bodyLen := int(size) - 1
	if len(buf) < 5+bodyLen {
		return Field{}, 0, ErrShortBuffer
	}
	f := Field{Type: FieldType(buf[4]), Body: buf[5 : 5+bodyLen]}
	return f, 5 + bodyLen, nil
}
