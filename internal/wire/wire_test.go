package wire

import (
	"testing"

	"github.com/aerokit-io/aerokit/value"
)

func TestProtoHeaderRoundTrip(t *testing.T) {
	h := PackProtoHeader(ProtoTypeData, 12345)
	typ, length := UnpackProtoHeader(h)
	if typ != ProtoTypeData || length != 12345 {
		t.Fatalf("got (%v, %d), want (%v, %d)", typ, length, ProtoTypeData, 12345)
	}
}

func TestOpHeaderRoundTrip(t *testing.T) {
	h := OpHeader{
		ReadAttr:         ReadAttrRead | ReadAttrGetAll,
		WriteAttr:        0,
		InfoAttr:         InfoAttrLast,
		ResultCode:       2,
		Generation:       7,
		Expiration:       1000,
		TransactionTTLMs: 500,
		FieldCount:       3,
		OpCount:          1,
	}
	b := h.Pack()
	if b[0] != OpHeaderSize {
		t.Fatalf("header-length byte = %d, want %d", b[0], OpHeaderSize)
	}
	got := UnpackOpHeader(b)
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestFieldRoundTrip(t *testing.T) {
	f := NewNamespaceField("test")
	buf := f.Encode(nil)
	got, n, err := DecodeField(buf)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if got.Type != FieldNamespace || string(got.Body) != "test" {
		t.Fatalf("got %+v", got)
	}
}

func TestOpRoundTrip(t *testing.T) {
	op := Op{Type: OpWrite, ParticleType: ParticleString, BinName: "bin1", Value: []byte("hello")}
	buf := op.Encode(nil)
	got, n, err := DecodeOp(buf)
	if err != nil {
		t.Fatalf("DecodeOp: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if got.Type != op.Type || got.ParticleType != op.ParticleType || got.BinName != op.BinName || string(got.Value) != string(op.Value) {
		t.Fatalf("got %+v, want %+v", got, op)
	}
}

func TestMessageBuildAndParseRoundTrip(t *testing.T) {
	msg := Message{
		Header: OpHeader{ReadAttr: ReadAttrRead},
		Fields: []Field{NewNamespaceField("ns"), NewSetField("set")},
		Ops:    []Op{{Type: OpRead, ParticleType: ParticleNull, BinName: "bin1"}},
	}
	frame := msg.Build()

	if len(frame) < ProtoHeaderSize {
		t.Fatal("frame too short")
	}
	var protoHdr [ProtoHeaderSize]byte
	copy(protoHdr[:], frame[:ProtoHeaderSize])
	typ, length := UnpackProtoHeader(protoHdr)
	if typ != ProtoTypeData {
		t.Fatalf("proto type = %v, want data", typ)
	}
	body := frame[ProtoHeaderSize:]
	if uint64(len(body)) != length {
		t.Fatalf("body length %d does not match header-declared length %d", len(body), length)
	}

	parsed, err := ParseMessage(body)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(parsed.Fields) != 2 || len(parsed.Ops) != 1 {
		t.Fatalf("got %d fields, %d ops", len(parsed.Fields), len(parsed.Ops))
	}
	if string(parsed.Fields[0].Body) != "ns" || string(parsed.Fields[1].Body) != "set" {
		t.Fatalf("field bodies mismatch: %+v", parsed.Fields)
	}
}

func TestParticleRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Nil(),
		value.NewInt(-5),
		value.NewInt(1 << 40),
		value.NewFloat64(2.5),
		value.NewBool(true),
		value.NewBool(false),
		value.NewString("hello"),
		value.NewBlob([]byte{1, 2, 3}),
		value.NewGeoJSON(`{"type":"Point","coordinates":[1,2]}`),
	}
	for _, v := range cases {
		pt, body, err := EncodeParticle(v)
		if err != nil {
			t.Fatalf("EncodeParticle(%v): %v", v.Kind(), err)
		}
		got, err := DecodeParticle(pt, body)
		if err != nil {
			t.Fatalf("DecodeParticle: %v", err)
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch for kind %v: got %v", v.Kind(), got)
		}
	}
}

func TestParticleRoundTripList(t *testing.T) {
	l := value.NewList([]value.Value{value.NewInt(1), value.NewString("x")})
	pt, body, err := EncodeParticle(l)
	if err != nil {
		t.Fatalf("EncodeParticle(list): %v", err)
	}
	got, err := DecodeParticle(pt, body)
	if err != nil {
		t.Fatalf("DecodeParticle(list): %v", err)
	}
	if !got.Equal(l) {
		t.Fatal("list particle round trip mismatch")
	}
}

func TestEncodeParticleRejectsTopLevelUint(t *testing.T) {
	if _, _, err := EncodeParticle(value.NewUint(1)); err == nil {
		t.Fatal("expected error encoding a top-level uint value")
	}
}
