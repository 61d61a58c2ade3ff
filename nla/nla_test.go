package nla

import (
	"net"
	"testing"

	"github.com/go-test/deep"

	"github.com/m-lab/tcp-info/nlbuf"
)

func TestEmitParseU32RoundTrip(t *testing.T) {
	a := U32Attr{K: 3, V: 0xdeadbeef}
	buf := make([]byte, nlbuf.Align4(BufferLen(a)))
	n := Emit(a, buf)
	if n != 8 {
		t.Fatalf("Emit wrote %d bytes, want 8", n)
	}
	tlv, err := nlbuf.NewTLVChecked(buf)
	if err != nil {
		t.Fatalf("NewTLVChecked: %v", err)
	}
	if tlv.Kind() != 3 {
		t.Errorf("Kind = %d, want 3", tlv.Kind())
	}
	got, err := U32("test", tlv.Value())
	if err != nil {
		t.Fatalf("U32: %v", err)
	}
	if got != 0xdeadbeef {
		t.Errorf("U32 = %x, want deadbeef", got)
	}
}

func TestIterateStopsAtMalformed(t *testing.T) {
	good := make([]byte, 8)
	Emit(U32Attr{K: 1, V: 9}, good)
	buf := append(good, []byte{3, 0, 0, 0}...) // length 3 < header size: malformed
	it := Iterate(buf)
	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Errorf("parsed %d attrs before stopping, want 1", count)
	}
	if it.Err() != nlbuf.ErrMalformed {
		t.Errorf("Err() = %v, want ErrMalformed", it.Err())
	}
}

func TestIterateAdvancesByAlignedStride(t *testing.T) {
	a1 := U16Attr{K: 1, V: 7} // wire len 6, stride 8
	a2 := U32Attr{K: 2, V: 9} // wire len 8, stride 8
	attrs := []Attr{a1, a2}
	buf := make([]byte, TotalAlignedLen(attrs))
	if _, err := EmitMany(attrs, buf); err != nil {
		t.Fatalf("EmitMany: %v", err)
	}
	it := Iterate(buf)
	t1, ok := it.Next()
	if !ok {
		t.Fatal("expected first attr")
	}
	if t1.Kind() != 1 || t1.Length() != 6 {
		t.Errorf("first attr = kind %d length %d", t1.Kind(), t1.Length())
	}
	t2, ok := it.Next()
	if !ok {
		t.Fatal("expected second attr")
	}
	if t2.Kind() != 2 {
		t.Errorf("second attr kind = %d, want 2", t2.Kind())
	}
	if _, ok := it.Next(); ok {
		t.Error("expected iteration to end")
	}
	if it.Err() != nil {
		t.Errorf("Err() = %v, want nil", it.Err())
	}
}

func TestEmitManyExhausted(t *testing.T) {
	attrs := []Attr{U32Attr{K: 1, V: 1}, U32Attr{K: 2, V: 2}}
	buf := make([]byte, 8) // only room for one
	if _, err := EmitMany(attrs, buf); err != Exhausted {
		t.Errorf("got %v, want Exhausted", err)
	}
}

func TestStringEmptyPayload(t *testing.T) {
	got, err := String("name", nil)
	if err != nil || got != "" {
		t.Errorf("String(nil) = %q, %v, want \"\", nil", got, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	a := StringAttr{K: 5, V: "eth0"}
	buf := make([]byte, nlbuf.Align4(BufferLen(a)))
	Emit(a, buf)
	tlv, _ := nlbuf.NewTLVChecked(buf)
	got, err := String("ifname", tlv.Value())
	if err != nil {
		t.Fatalf("String: %v", err)
	}
	if got != "eth0" {
		t.Errorf("String = %q, want eth0", got)
	}
}

func TestIPv4RejectsWrongLength(t *testing.T) {
	if _, err := IPv4("addr", []byte{1, 2, 3}); err == nil {
		t.Error("expected error for 3 byte IPv4")
	}
	got, err := IPv4("addr", []byte{192, 168, 1, 1})
	if err != nil {
		t.Fatalf("IPv4: %v", err)
	}
	if !got.Equal(net.IPv4(192, 168, 1, 1)) {
		t.Errorf("IPv4 = %v", got)
	}
}

func TestBitmaskBitAddressing(t *testing.T) {
	words := make([]uint32, 4) // 128 bits
	BitmaskSetBit(words, 0)
	BitmaskSetBit(words, 33)
	BitmaskSetBit(words, 127)
	if !BitmaskTestBit(words, 0) || !BitmaskTestBit(words, 33) || !BitmaskTestBit(words, 127) {
		t.Fatal("expected bits 0, 33, 127 set")
	}
	if BitmaskTestBit(words, 1) || BitmaskTestBit(words, 32) {
		t.Error("unexpected bits set")
	}
	encoded := PutBitmask(words)
	decoded, err := Bitmask("mask", encoded, 4)
	if err != nil {
		t.Fatalf("Bitmask: %v", err)
	}
	if diff := deep.Equal(decoded, words); diff != nil {
		t.Errorf("round trip mismatch: %v", diff)
	}
}

func TestRawAttrRoundTrip(t *testing.T) {
	a := NewRawAttr(99, []byte{1, 2, 3})
	buf := make([]byte, nlbuf.Align4(BufferLen(a)))
	Emit(a, buf)
	tlv, err := nlbuf.NewTLVChecked(buf)
	if err != nil {
		t.Fatal(err)
	}
	if tlv.Kind() != 99 {
		t.Errorf("Kind = %d, want 99", tlv.Kind())
	}
	if diff := deep.Equal(tlv.Value(), []byte{1, 2, 3}); diff != nil {
		t.Errorf("Value mismatch: %v", diff)
	}
}

func TestNestedAttr(t *testing.T) {
	inner := []Attr{U32Attr{K: 1, V: 10}, U16Attr{K: 2, V: 20}}
	outer := NestedAttr{K: 5, Children: inner}
	buf := make([]byte, nlbuf.Align4(BufferLen(outer)))
	Emit(outer, buf)
	tlv, err := nlbuf.NewTLVChecked(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !tlv.Nested() {
		t.Error("expected NESTED flag set")
	}
	if tlv.Kind() != 5 {
		t.Errorf("Kind = %d, want 5", tlv.Kind())
	}
	children, err := All(tlv.Value())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
}
