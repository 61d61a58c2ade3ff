package nla

import "github.com/m-lab/tcp-info/nlbuf"

// The generic Attr implementations below cover the common value
// shapes every family reuses (§3's "NLA value shapes"). Family
// packages build their closed attribute enums on top of these rather
// than hand-rolling PutValue for every scalar kind.

// RawAttr implements Attr by holding an already-encoded value. It is
// also how the Other(raw-header, raw-bytes) catch-all variant (§4.2)
// re-emits attributes a decoder didn't recognise: the kind and value
// bytes are carried through unchanged, so round-tripping is faithful
// even for attributes newer than this codec's attribute tables.
type RawAttr struct {
	kind  uint16
	value []byte
}

// NewRawAttr wraps an already-encoded kind/value pair.
func NewRawAttr(kind uint16, value []byte) RawAttr {
	return RawAttr{kind: kind, value: value}
}

func (a RawAttr) Kind() uint16     { return a.kind }
func (a RawAttr) ValueLen() int    { return len(a.value) }
func (a RawAttr) PutValue(b []byte) { copy(b, a.value) }

// U8Attr, U16Attr, U32Attr, U64Attr encode native-endian scalars.
type U8Attr struct {
	K uint16
	V uint8
}

func (a U8Attr) Kind() uint16      { return a.K }
func (a U8Attr) ValueLen() int     { return 1 }
func (a U8Attr) PutValue(b []byte) { b[0] = a.V }

type U16Attr struct {
	K uint16
	V uint16
}

func (a U16Attr) Kind() uint16      { return a.K }
func (a U16Attr) ValueLen() int     { return 2 }
func (a U16Attr) PutValue(b []byte) { nlbuf.PutNativeUint16(b, a.V) }

type U32Attr struct {
	K uint16
	V uint32
}

func (a U32Attr) Kind() uint16      { return a.K }
func (a U32Attr) ValueLen() int     { return 4 }
func (a U32Attr) PutValue(b []byte) { nlbuf.PutNativeUint32(b, a.V) }

type U64Attr struct {
	K uint16
	V uint64
}

func (a U64Attr) Kind() uint16      { return a.K }
func (a U64Attr) ValueLen() int     { return 8 }
func (a U64Attr) PutValue(b []byte) { nlbuf.PutNativeUint64(b, a.V) }

// StringAttr encodes a NUL-terminated string value.
type StringAttr struct {
	K uint16
	V string
}

func (a StringAttr) Kind() uint16  { return a.K }
func (a StringAttr) ValueLen() int { return len(a.V) + 1 }
func (a StringAttr) PutValue(b []byte) {
	copy(b, a.V)
	b[len(a.V)] = 0
}

// BytesAttr encodes an opaque fixed- or variable-width byte blob (IP
// addresses, hardware addresses, crypto keys, cookies).
type BytesAttr struct {
	K uint16
	V []byte
}

func (a BytesAttr) Kind() uint16      { return a.K }
func (a BytesAttr) ValueLen() int     { return len(a.V) }
func (a BytesAttr) PutValue(b []byte) { copy(b, a.V) }

// NestedAttr encodes a parent attribute whose value is itself a
// sequence of attributes (§4.2's nested-attribute recursion).
type NestedAttr struct {
	K        uint16
	Children []Attr
}

func (a NestedAttr) Kind() uint16 { return nlbuf.MakeNestedKind(a.K) }
func (a NestedAttr) ValueLen() int {
	return TotalAlignedLen(a.Children)
}
func (a NestedAttr) PutValue(b []byte) {
	off := 0
	for _, c := range a.Children {
		n := Emit(c, b[off:])
		off += nlbuf.Align4(n)
	}
}
