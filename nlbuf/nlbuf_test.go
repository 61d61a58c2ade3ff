package nlbuf

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderLen+4)
	mh := NewMutableHeader(buf)
	mh.SetLength(uint32(len(buf)))
	mh.SetType(16)
	mh.SetFlags(5)
	mh.SetSequence(42)
	mh.SetPort(1001)

	h, err := NewHeaderChecked(buf)
	if err != nil {
		t.Fatalf("NewHeaderChecked: %v", err)
	}
	if h.Length() != uint32(len(buf)) {
		t.Errorf("Length = %d, want %d", h.Length(), len(buf))
	}
	if h.Type() != 16 {
		t.Errorf("Type = %d, want 16", h.Type())
	}
	if h.Flags() != 5 {
		t.Errorf("Flags = %d, want 5", h.Flags())
	}
	if h.Sequence() != 42 {
		t.Errorf("Sequence = %d, want 42", h.Sequence())
	}
	if h.Port() != 1001 {
		t.Errorf("Port = %d, want 1001", h.Port())
	}
}

func TestHeaderCheckedTruncated(t *testing.T) {
	if _, err := NewHeaderChecked(make([]byte, 4)); err != ErrTruncated {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestHeaderCheckedMalformedLength(t *testing.T) {
	buf := make([]byte, HeaderLen)
	NewMutableHeader(buf).SetLength(2) // less than HeaderLen
	if _, err := NewHeaderChecked(buf); err != ErrMalformed {
		t.Errorf("got %v, want ErrMalformed", err)
	}

	buf2 := make([]byte, HeaderLen)
	NewMutableHeader(buf2).SetLength(1000) // greater than len(buf)
	if _, err := NewHeaderChecked(buf2); err != ErrMalformed {
		t.Errorf("got %v, want ErrMalformed", err)
	}
}

func TestAlign4(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0}, {1, 4}, {2, 4}, {3, 4}, {4, 4}, {5, 8}, {8, 8}, {9, 12},
	}
	for _, c := range cases {
		if got := Align4(c.in); got != c.want {
			t.Errorf("Align4(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTLVCheckedStride(t *testing.T) {
	// length=6 (header+2 bytes value), stride should align to 8.
	buf := []byte{6, 0, 1, 0, 0xAA, 0xBB, 0, 0}
	tlv, err := NewTLVChecked(buf)
	if err != nil {
		t.Fatalf("NewTLVChecked: %v", err)
	}
	if tlv.Length() != 6 {
		t.Errorf("Length = %d, want 6", tlv.Length())
	}
	if tlv.Kind() != 1 {
		t.Errorf("Kind = %d, want 1", tlv.Kind())
	}
	if got, want := tlv.Value(), []byte{0xAA, 0xBB}; len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Value = %v, want %v", got, want)
	}
	if tlv.Stride() != 8 {
		t.Errorf("Stride = %d, want 8", tlv.Stride())
	}
}

func TestTLVCheckedTruncatedAndMalformed(t *testing.T) {
	if _, err := NewTLVChecked([]byte{1, 0}); err != ErrTruncated {
		t.Errorf("got %v, want ErrTruncated", err)
	}
	if _, err := NewTLVChecked([]byte{2, 0, 0, 0}); err != ErrMalformed {
		t.Errorf("length below header size: got %v, want ErrMalformed", err)
	}
	if _, err := NewTLVChecked([]byte{100, 0, 0, 0}); err != ErrMalformed {
		t.Errorf("length beyond buffer: got %v, want ErrMalformed", err)
	}
}

func TestTLVFlags(t *testing.T) {
	buf := make([]byte, 4)
	EncodeTLVHeader(buf, 4, MakeNestedKind(MakeNetByteOrderKind(7)))
	tlv, err := NewTLVChecked(buf)
	if err != nil {
		t.Fatal(err)
	}
	if tlv.Kind() != 7 {
		t.Errorf("Kind = %d, want 7", tlv.Kind())
	}
	if !tlv.Nested() || !tlv.NetByteOrder() {
		t.Errorf("Nested/NetByteOrder flags not round-tripped")
	}
}
