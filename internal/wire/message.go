package wire

// Message assembles a complete data-operation message body (the 22-byte
// header followed by field records then operation records) and exposes the
// full frame including its 8-byte proto header.
type Message struct {
	Header OpHeader
	Fields []Field
	Ops    []Op
}

// Build produces the full frame ready to write to a connection: proto
// header || op header || fields || ops.
func (m Message) Build() []byte {
	m.Header.FieldCount = uint16(len(m.Fields))
	m.Header.OpCount = uint16(len(m.Ops))

	bodyLen := OpHeaderSize
	for _, f := range m.Fields {
		bodyLen += f.Size()
	}
	for _, op := range m.Ops {
		bodyLen += op.Size()
	}

	proto := PackProtoHeader(ProtoTypeData, uint64(bodyLen))
	out := make([]byte, 0, ProtoHeaderSize+bodyLen)
	out = append(out, proto[:]...)

	hdr := m.Header.Pack()
	out = append(out, hdr[:]...)
	for _, f := range m.Fields {
		out = f.Encode(out)
	}
	for _, op := range m.Ops {
		out = op.Encode(out)
	}
	return out
}

// ParsedMessage is a decoded data-operation message body.
type ParsedMessage struct {
	Header OpHeader
	Fields []Field
	Ops    []Op
}

// ParseMessage decodes a data-operation message body (everything after the
// 8-byte proto header), reading FieldCount field records then OpCount
// operation records per the header.
func ParseMessage(body []byte) (ParsedMessage, error) {
	if len(body) < OpHeaderSize {
		return ParsedMessage{}, ErrShortBuffer
	}
	var hdrBytes [OpHeaderSize]byte
	copy(hdrBytes[:], body[:OpHeaderSize])
	hdr := UnpackOpHeader(hdrBytes)

	offset := OpHeaderSize
	fields := make([]Field, 0, hdr.FieldCount)
	for i := 0; i < int(hdr.FieldCount); i++ {
		f, n, err := DecodeField(body[offset:])
		if err != nil {
			return ParsedMessage{}, err
		}
		fields = append(fields, f)
		offset += n
	}

	ops := make([]Op, 0, hdr.OpCount)
	for i := 0; i < int(hdr.OpCount); i++ {
		op, n, err := DecodeOp(body[offset:])
		if err != nil {
			return ParsedMessage{}, err
		}
		ops = append(ops, op)
		offset += n
	}

	return ParsedMessage{Header: hdr, Fields: fields, Ops: ops}, nil
}
