package msgpack

import (
	"testing"

	"github.com/aerokit-io/aerokit/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	e := NewEncoder()
	e.PackValue(v)
	d := NewDecoder(e.Bytes())
	got, err := d.DecodeValue()
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("decoder left %d unread bytes", d.Remaining())
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Nil(),
		value.NewBool(true),
		value.NewBool(false),
		value.NewInt(0),
		value.NewInt(1),
		value.NewInt(127),
		value.NewInt(128),
		value.NewInt(32767),
		value.NewInt(32768),
		value.NewInt(1 << 40),
		value.NewInt(-1),
		value.NewInt(-32),
		value.NewInt(-33),
		value.NewInt(-129),
		value.NewInt(-70000),
		value.NewFloat32(1.5),
		value.NewFloat64(3.14159),
		value.NewString(""),
		value.NewString("hello"),
		value.NewBlob([]byte{1, 2, 3}),
		value.NewGeoJSON(`{"type":"Point","coordinates":[0,0]}`),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: got kind %v, want kind %v", got.Kind(), v.Kind())
		}
	}
}

func TestPackIntegerUsesUint8MarkerFor128To255(t *testing.T) {
	e := NewEncoder()
	e.packInteger(200)
	b := e.Bytes()
	if len(b) != 2 {
		t.Fatalf("encoded length = %d, want 2", len(b))
	}
	if b[0] != 0xcc {
		t.Fatalf("marker = 0x%02x, want 0xcc (uint8)", b[0])
	}
	if b[1] != 200 {
		t.Fatalf("payload byte = %d, want 200", b[1])
	}
}

func TestRoundTripUintPromotesAboveInt64Max(t *testing.T) {
	v := value.NewUint(1 << 63)
	got := roundTrip(t, v)
	if got.Kind() != value.KindUint {
		t.Fatalf("expected decoded kind Uint, got %v", got.Kind())
	}
	u, _ := got.Uint()
	if u != 1<<63 {
		t.Fatalf("got %d, want %d", u, uint64(1)<<63)
	}
}

func TestRoundTripUintBelowInt64MaxDecodesAsInt(t *testing.T) {
	v := value.NewUint(42)
	got := roundTrip(t, v)
	if got.Kind() != value.KindInt {
		t.Fatalf("expected decoded kind Int for small uint, got %v", got.Kind())
	}
}

func TestRoundTripList(t *testing.T) {
	v := value.NewList([]value.Value{
		value.NewInt(1),
		value.NewString("x"),
		value.NewList([]value.Value{value.NewBool(true), value.Nil()}),
	})
	got := roundTrip(t, v)
	if !got.Equal(v) {
		t.Fatal("nested list round trip mismatch")
	}
}

func TestRoundTripMap(t *testing.T) {
	v := value.NewMap(map[value.MapKey]value.Value{
		value.NewMapKeyString("a"): value.NewInt(1),
		value.NewMapKeyInt(7):      value.NewString("seven"),
	})
	got := roundTrip(t, v)
	if !got.Equal(v) {
		t.Fatal("map round trip mismatch")
	}
}

func TestRoundTripLargeArray(t *testing.T) {
	elems := make([]value.Value, 20)
	for i := range elems {
		elems[i] = value.NewInt(int64(i))
	}
	v := value.NewList(elems)
	got := roundTrip(t, v)
	if !got.Equal(v) {
		t.Fatal("16+ element array round trip mismatch")
	}
}

func TestPackCdtOpWithoutContext(t *testing.T) {
	e := NewEncoder()
	e.PackCdtOp(CdtOperation{Op: 1, Args: []CdtArgument{{Value: value.NewInt(5)}}}, nil)
	d := NewDecoder(e.Bytes())
	// op (u16, not a msgpack value) followed by an array-begin(1) and the arg.
	if len(e.Bytes()) < 2 {
		t.Fatal("expected at least the 2-byte opcode")
	}
	_ = d
}

func TestPackCdtOpWithContextWrapsEnvelope(t *testing.T) {
	e := NewEncoder()
	ctx := []CdtContext{{ID: 0x10, Flags: 0, Value: value.NewInt(2)}}
	e.PackCdtOp(CdtOperation{Op: 3, Args: []CdtArgument{{Value: value.NewString("x")}}}, ctx)
	b := e.Bytes()
	if b[0] != 0x93 { // fixarray of 3
		t.Fatalf("expected outer 3-element array marker, got 0x%02x", b[0])
	}
	if b[1] != 0xcc || b[2] != 0xff { // integer 0xff packs as uint8 marker + payload
		t.Fatalf("expected 0xff context marker encoded as 0xcc 0xff, got 0x%02x 0x%02x", b[1], b[2])
	}
}
