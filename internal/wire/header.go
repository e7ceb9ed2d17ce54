// Package wire implements the bit-exact request/response framing described
// by spec §4.1: the 8-byte proto header shared by data and info messages,
// the 22-byte data-operation header, field and operation records, and the
// particle-type table governing how a value's bytes are laid out on the
// wire.
//
// Grounded on original_source/src/commands/buffer.rs's header constants and
// bitflag layout (MSG_TOTAL_HEADER_SIZE, MSG_REMAINING_HEADER_SIZE, the
// ReadAttr/WriteAttr/InfoAttr bitflags! blocks) and
// original_source/src/commands/field_type.rs / particle_type.rs for the
// field and particle type catalogs.
package wire

import "encoding/binary"

// ProtoType distinguishes a data-operation message from an info (text)
// command at the proto-header level (spec §4.1.1).
type ProtoType byte

const (
	ProtoTypeInfo  ProtoType = 1
	ProtoTypeAdmin ProtoType = 2
	ProtoTypeData  ProtoType = 3
)

const protoVersion = 2

// ProtoHeaderSize is the length of the frame's length-prefix header.
const ProtoHeaderSize = 8

// PackProtoHeader writes the 8-byte version/type/length header: a big-endian
// u64 with version in the top byte, type in the next, and length in the
// remaining 6 bytes.
func PackProtoHeader(typ ProtoType, length uint64) [ProtoHeaderSize]byte {
	var out [ProtoHeaderSize]byte
	word := uint64(protoVersion)<<56 | uint64(typ)<<48 | (length & 0x0000ffffffffffff)
	binary.BigEndian.PutUint64(out[:], word)
	return out
}

// UnpackProtoHeader splits a received 8-byte header back into its type and
// message length.
func UnpackProtoHeader(b [ProtoHeaderSize]byte) (typ ProtoType, length uint64) {
	word := binary.BigEndian.Uint64(b[:])
	typ = ProtoType((word >> 48) & 0xff)
	length = word & 0x0000ffffffffffff
	return
}

// ReadAttr bits select read semantics for a data-operation message (spec
// §4.1.1).
type ReadAttr byte

const (
	ReadAttrRead            ReadAttr = 1
	ReadAttrGetAll          ReadAttr = 2
	ReadAttrShortQuery      ReadAttr = 4
	ReadAttrBatch           ReadAttr = 8
	ReadAttrXDR             ReadAttr = 16
	ReadAttrGetNoBins       ReadAttr = 32
	ReadAttrConsistencyAll  ReadAttr = 64
	ReadAttrCompressResponse ReadAttr = 128
)

// WriteAttr bits select write semantics.
type WriteAttr byte

const (
	WriteAttrWrite          WriteAttr = 1
	WriteAttrDelete         WriteAttr = 2
	WriteAttrGeneration     WriteAttr = 4
	WriteAttrGenerationGT   WriteAttr = 8
	WriteAttrDurableDelete  WriteAttr = 16
	WriteAttrCreateOnly     WriteAttr = 32
	WriteAttrRespondAllOps  WriteAttr = 128
)

// InfoAttr bits classify an operation response (spec §4.1.1).
type InfoAttr byte

const (
	InfoAttrLast            InfoAttr = 1
	InfoAttrCommitMaster    InfoAttr = 2
	InfoAttrPartitionDone   InfoAttr = 4
	InfoAttrUpdateOnly      InfoAttr = 8
	InfoAttrCreateOrReplace InfoAttr = 16
	InfoAttrReplaceOnly     InfoAttr = 32
)

// OpHeaderSize is the fixed 22-byte data-operation header length.
const OpHeaderSize = 22

// OpHeader is the decoded form of a data-operation message's leading 22
// bytes (spec §4.1.1 table).
type OpHeader struct {
	ReadAttr        ReadAttr
	WriteAttr       WriteAttr
	InfoAttr        InfoAttr
	ResultCode      byte
	Generation      uint32
	Expiration      uint32
	TransactionTTLMs uint32
	FieldCount      uint16
	OpCount         uint16
}

// Pack writes the header in the exact byte layout spec §4.1.1 prescribes.
func (h OpHeader) Pack() [OpHeaderSize]byte {
	var b [OpHeaderSize]byte
	b[0] = OpHeaderSize
	b[1] = byte(h.ReadAttr)
	b[2] = byte(h.WriteAttr)
	b[3] = byte(h.InfoAttr)
	b[4] = 0
	b[5] = h.ResultCode
	binary.BigEndian.PutUint32(b[6:10], h.Generation)
	binary.BigEndian.PutUint32(b[10:14], h.Expiration)
	binary.BigEndian.PutUint32(b[14:18], h.TransactionTTLMs)
	binary.BigEndian.PutUint16(b[18:20], h.FieldCount)
	binary.BigEndian.PutUint16(b[20:22], h.OpCount)
	return b
}

// UnpackOpHeader parses a received 22-byte data-operation header.
func UnpackOpHeader(b [OpHeaderSize]byte) OpHeader {
	return OpHeader{
		ReadAttr:         ReadAttr(b[1]),
		WriteAttr:        WriteAttr(b[2]),
		InfoAttr:         InfoAttr(b[3]),
		ResultCode:       b[5],
		Generation:       binary.BigEndian.Uint32(b[6:10]),
		Expiration:       binary.BigEndian.Uint32(b[10:14]),
		TransactionTTLMs: binary.BigEndian.Uint32(b[14:18]),
		FieldCount:       binary.BigEndian.Uint16(b[18:20]),
		OpCount:          binary.BigEndian.Uint16(b[20:22]),
	}
}
